// Package dispatch fans a canonical query out to every named datasource
// backend concurrently and folds the per-backend payloads into one
// merged envelope.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/query"
	"github.com/geoplex/stacfan/internal/stac"
)

// Invoker executes a canonical query against one named backend and
// returns its payload: a mapping from collection id to the matching
// features. Implementations are injected; the dispatcher never resolves
// backend names itself.
type Invoker interface {
	Invoke(ctx context.Context, datasource string, q *query.Canonical) (map[string]*stac.FeatureCollection, error)
}

// SourceResult is the outcome of one backend invocation. Exactly one of
// Payload and Err is set.
type SourceResult struct {
	Datasource string
	Payload    map[string]*stac.FeatureCollection
	Err        *errors.GatewayError
}

// Dispatcher runs the fan-out/fan-in barrier over an injected Invoker.
type Dispatcher struct {
	invoker       Invoker
	maxConcurrent int
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrent bounds the number of in-flight backend invocations.
// Zero or negative means unbounded (the default). Bounding changes only
// how many calls run at once, never the order results are collected in.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		d.maxConcurrent = n
	}
}

// New creates a dispatcher over the given invoker.
func New(invoker Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{invoker: invoker}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch invokes every datasource concurrently and blocks until all of
// them have produced a result or failed. Results are returned in
// datasources order regardless of completion order.
//
// Each invocation owns a dedicated one-shot channel; the dispatcher is
// the only reader and drains the channels in launch order, which is the
// barrier: Dispatch cannot return before the slowest backend finishes.
// There is no timeout and no early exit on failure — a failed slot
// surfaces as SourceResult.Err while the remaining backends run to
// completion.
func (d *Dispatcher) Dispatch(ctx context.Context, q *query.Canonical, datasources []string) []SourceResult {
	start := time.Now()

	var sem chan struct{}
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	chans := make([]chan SourceResult, len(datasources))
	for i, name := range datasources {
		ch := make(chan SourceResult, 1)
		chans[i] = ch
		go d.invoke(ctx, name, q, ch, sem)
	}

	results := make([]SourceResult, len(datasources))
	failed := 0
	for i, ch := range chans {
		results[i] = <-ch
		if results[i].Err != nil {
			failed++
		}
	}

	slog.Debug("fanout_complete",
		slog.Int("datasources", len(datasources)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))

	return results
}

// invoke executes one backend call and sends its single result. A panic
// inside the invoker is confined to this slot and reported as a backend
// failure instead of losing the channel send.
func (d *Dispatcher) invoke(ctx context.Context, name string, q *query.Canonical, ch chan<- SourceResult, sem chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("backend_panic",
				slog.String("datasource", name),
				slog.Any("panic", r))
			ch <- SourceResult{
				Datasource: name,
				Err:        errors.BackendFailure(name, fmt.Errorf("panic: %v", r)),
			}
		}
	}()

	if sem != nil {
		sem <- struct{}{}
		defer func() { <-sem }()
	}

	payload, err := d.invoker.Invoke(ctx, name, q)
	if err != nil {
		ch <- SourceResult{Datasource: name, Err: errors.BackendFailure(name, err)}
		return
	}

	ch <- SourceResult{Datasource: name, Payload: payload}
}
