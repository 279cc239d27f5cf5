package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gaterr "github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/query"
	"github.com/geoplex/stacfan/internal/stac"
)

// fakeInvoker returns canned payloads per datasource, with optional
// per-datasource delay and failure injection.
type fakeInvoker struct {
	mu       sync.Mutex
	payloads map[string]map[string]*stac.FeatureCollection
	errs     map[string]error
	delays   map[string]time.Duration
	panics   map[string]bool
	calls    []string
	queries  []*query.Canonical
}

func (f *fakeInvoker) Invoke(ctx context.Context, datasource string, q *query.Canonical) (map[string]*stac.FeatureCollection, error) {
	f.mu.Lock()
	f.calls = append(f.calls, datasource)
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if d := f.delays[datasource]; d > 0 {
		time.Sleep(d)
	}
	if f.panics[datasource] {
		panic("backend exploded: " + datasource)
	}
	if err := f.errs[datasource]; err != nil {
		return nil, err
	}
	return f.payloads[datasource], nil
}

func fc(features ...string) *stac.FeatureCollection {
	out := stac.NewFeatureCollection()
	for _, f := range features {
		out.Features = append(out.Features, json.RawMessage(f))
	}
	return out
}

func testQuery(t *testing.T) *query.Canonical {
	t.Helper()
	q, err := query.Build(&stac.SearchRequest{
		Bbox:        []float64{-1, -1, 1, 1},
		Datasources: []string{"placeholder"},
	})
	if err != nil {
		t.Fatalf("Build query: %v", err)
	}
	return q
}

func TestDispatch_ResultsFollowRequestOrder(t *testing.T) {
	// First datasource is the slowest; order must not change.
	inv := &fakeInvoker{
		payloads: map[string]map[string]*stac.FeatureCollection{
			"slow":   {"A": fc(`{"id":"slow-1"}`)},
			"medium": {"A": fc(`{"id":"medium-1"}`)},
			"fast":   {"A": fc(`{"id":"fast-1"}`)},
		},
		delays: map[string]time.Duration{
			"slow":   60 * time.Millisecond,
			"medium": 30 * time.Millisecond,
		},
	}
	d := New(inv)

	results := d.Dispatch(context.Background(), testQuery(t), []string{"slow", "medium", "fast"})

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"slow", "medium", "fast"} {
		if results[i].Datasource != want {
			t.Errorf("Result %d from %q, want %q", i, results[i].Datasource, want)
		}
	}
}

func TestDispatch_RunsBackendsConcurrently(t *testing.T) {
	// Three backends each sleeping 50ms must finish well under 150ms.
	inv := &fakeInvoker{
		payloads: map[string]map[string]*stac.FeatureCollection{
			"a": {}, "b": {}, "c": {},
		},
		delays: map[string]time.Duration{
			"a": 50 * time.Millisecond,
			"b": 50 * time.Millisecond,
			"c": 50 * time.Millisecond,
		},
	}
	d := New(inv)

	start := time.Now()
	results := d.Dispatch(context.Background(), testQuery(t), []string{"a", "b", "c"})
	elapsed := time.Since(start)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if elapsed > 120*time.Millisecond {
		t.Errorf("Dispatch took %v; backends did not run in parallel", elapsed)
	}
}

func TestDispatch_FailedBackendDoesNotHangBarrier(t *testing.T) {
	inv := &fakeInvoker{
		payloads: map[string]map[string]*stac.FeatureCollection{
			"ok1": {"X": fc(`{"id":"1"}`)},
			"ok2": {"X": fc(`{"id":"2"}`)},
		},
		errs: map[string]error{
			"bad": errors.New("connection refused"),
		},
	}
	d := New(inv)

	done := make(chan []SourceResult, 1)
	go func() {
		done <- d.Dispatch(context.Background(), testQuery(t), []string{"ok1", "bad", "ok2"})
	}()

	select {
	case results := <-done:
		if results[0].Err != nil || results[2].Err != nil {
			t.Errorf("Healthy backends reported errors: %v, %v", results[0].Err, results[2].Err)
		}
		if results[1].Err == nil {
			t.Fatal("Expected failure in slot 1")
		}
		if results[1].Err.Datasource() != "bad" {
			t.Errorf("Failure attributed to %q, want bad", results[1].Err.Datasource())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch hung on a failed backend")
	}
}

func TestDispatch_PanicIsConfinedToItsSlot(t *testing.T) {
	inv := &fakeInvoker{
		payloads: map[string]map[string]*stac.FeatureCollection{
			"ok": {"X": fc(`{"id":"1"}`)},
		},
		panics: map[string]bool{"boom": true},
	}
	d := New(inv)

	done := make(chan []SourceResult, 1)
	go func() {
		done <- d.Dispatch(context.Background(), testQuery(t), []string{"boom", "ok"})
	}()

	select {
	case results := <-done:
		if results[0].Err == nil {
			t.Fatal("Expected panicking slot to surface a failure")
		}
		if !errors.Is(results[0].Err, gaterr.New(gaterr.ErrCodeBackendFailure, "", nil)) {
			t.Errorf("Expected ERR_301_BACKEND_FAILURE, got %v", results[0].Err)
		}
		if results[1].Err != nil {
			t.Errorf("Healthy slot failed: %v", results[1].Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch hung on a panicking backend")
	}
}

func TestDispatch_QueryPassedToEveryBackend(t *testing.T) {
	inv := &fakeInvoker{
		payloads: map[string]map[string]*stac.FeatureCollection{"a": {}, "b": {}},
	}
	d := New(inv)
	q := testQuery(t)

	d.Dispatch(context.Background(), q, []string{"a", "b"})

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(inv.queries) != 2 {
		t.Fatalf("Expected 2 invocations, got %d", len(inv.queries))
	}
	for i, got := range inv.queries {
		if got != q {
			t.Errorf("Invocation %d got a different query", i)
		}
		if got.Limit != query.DefaultLimit {
			t.Errorf("Invocation %d limit = %d, want %d", i, got.Limit, query.DefaultLimit)
		}
	}
}

func TestDispatch_BoundedConcurrencyKeepsOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	inv := &trackingInvoker{inFlight: &inFlight, peak: &peak}
	d := New(inv, WithMaxConcurrent(2))

	names := []string{"a", "b", "c", "d", "e"}
	results := d.Dispatch(context.Background(), testQuery(t), names)

	for i, name := range names {
		if results[i].Datasource != name {
			t.Errorf("Result %d from %q, want %q", i, results[i].Datasource, name)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("Peak concurrency %d exceeds bound 2", p)
	}
}

// trackingInvoker records peak concurrent invocations.
type trackingInvoker struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (ti *trackingInvoker) Invoke(ctx context.Context, datasource string, q *query.Canonical) (map[string]*stac.FeatureCollection, error) {
	n := ti.inFlight.Add(1)
	defer ti.inFlight.Add(-1)
	for {
		p := ti.peak.Load()
		if n <= p || ti.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return map[string]*stac.FeatureCollection{datasource: fc(`{"id":"` + datasource + `"}`)}, nil
}
