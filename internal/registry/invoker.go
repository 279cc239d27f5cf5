package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/query"
	"github.com/geoplex/stacfan/internal/stac"
)

// DefaultInvokeTimeout bounds a single backend HTTP call. The dispatcher
// itself never times out; this is the transport's own limit.
const DefaultInvokeTimeout = 30 * time.Second

// HTTPInvoker invokes datasource backends over HTTP: it POSTs the
// canonical query as JSON and decodes the collection map the backend
// returns. It implements dispatch.Invoker.
type HTTPInvoker struct {
	registry *Registry
	client   *http.Client
}

// NewHTTPInvoker creates an invoker resolving names through the given
// registry. A zero timeout falls back to DefaultInvokeTimeout.
func NewHTTPInvoker(reg *Registry, timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	return &HTTPInvoker{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
	}
}

// Invoke executes the query against one named backend.
//
// Failures are reported per slot: an unknown name, transport error,
// non-2xx status, or undecodable body all return an error attributed to
// this datasource and never affect sibling invocations.
func (h *HTTPInvoker) Invoke(ctx context.Context, datasource string, q *query.Canonical) (map[string]*stac.FeatureCollection, error) {
	src, ok := h.registry.Lookup(datasource)
	if !ok {
		return nil, errors.New(errors.ErrCodeBackendUnknown,
			fmt.Sprintf("unknown datasource %q", datasource), nil)
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, src.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBackendFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBackendFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, errors.New(errors.ErrCodeBackendFailure,
			fmt.Sprintf("%s returned %d: %s", src.Endpoint, resp.StatusCode, snippet), nil).
			WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
	}

	var payload map[string]*stac.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(errors.ErrCodeBackendBadResponse,
			fmt.Sprintf("decode response from %s: %v", src.Endpoint, err), err)
	}
	for id, fc := range payload {
		if fc == nil {
			return nil, errors.New(errors.ErrCodeBackendBadResponse,
				fmt.Sprintf("response from %s has null collection %q", src.Endpoint, id), nil)
		}
	}

	return payload, nil
}
