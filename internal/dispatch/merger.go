package dispatch

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/stac"
)

// FailurePolicy selects how the merger treats backend failures after the
// barrier completes.
type FailurePolicy string

const (
	// PolicyAbort rejects the whole response when any backend failed.
	PolicyAbort FailurePolicy = "abort"
	// PolicyPartial merges whatever succeeded and reports failures
	// out-of-band.
	PolicyPartial FailurePolicy = "partial"
)

// MergedEnvelope is an ordered mapping from collection id to the merged
// feature collection. Iteration and JSON output follow first-insertion
// order, which the merger derives from dispatch order, so the envelope
// is deterministic no matter which backend finished first.
type MergedEnvelope struct {
	order []string
	items map[string]*stac.FeatureCollection
}

// NewMergedEnvelope returns an empty envelope.
func NewMergedEnvelope() *MergedEnvelope {
	return &MergedEnvelope{items: make(map[string]*stac.FeatureCollection)}
}

// add appends the collection's features under id, inserting the id on
// first sight and concatenating on repeats. A nil collection counts as
// empty: the invoker rejects null collections, but the fold must never
// panic on one.
func (m *MergedEnvelope) add(id string, fc *stac.FeatureCollection) {
	existing, ok := m.items[id]
	if !ok {
		existing = stac.NewFeatureCollection()
		m.items[id] = existing
		m.order = append(m.order, id)
	}
	if fc != nil {
		existing.Features = append(existing.Features, fc.Features...)
	}
}

// Get returns the merged collection for id, or nil.
func (m *MergedEnvelope) Get(id string) *stac.FeatureCollection {
	return m.items[id]
}

// CollectionIDs returns the collection ids in insertion order.
func (m *MergedEnvelope) CollectionIDs() []string {
	return m.order
}

// Len returns the number of distinct collection ids.
func (m *MergedEnvelope) Len() int {
	return len(m.order)
}

// MarshalJSON emits the envelope as a JSON object whose keys appear in
// insertion order.
func (m *MergedEnvelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.items[id])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Merge folds the collected results into one envelope.
//
// The fold walks results in dispatch order — the same order Dispatch
// returned them in — so feature ordering within a repeated collection id
// follows the request's datasources order, never completion order.
// Collection ids within a single payload are folded in sorted order to
// keep the envelope's key order deterministic.
//
// Under PolicyAbort any failed slot rejects the merge with a
// PartialFailure listing every failure. Under PolicyPartial the
// successes are merged and the failures returned alongside.
func Merge(results []SourceResult, policy FailurePolicy) (*MergedEnvelope, []*errors.GatewayError, error) {
	var failures []*errors.GatewayError
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, r.Err)
		}
	}

	if len(failures) > 0 && policy != PolicyPartial {
		return nil, failures, &errors.PartialFailure{Failures: failures, Total: len(results)}
	}

	merged := NewMergedEnvelope()
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		ids := make([]string, 0, len(r.Payload))
		for id := range r.Payload {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			merged.add(id, r.Payload[id])
		}
	}

	return merged, failures, nil
}
