// Package gateway is the HTTP surface of stacfan: it decodes search
// requests, runs the normalize/fan-out/merge pipeline, and maps the
// outcome onto HTTP responses.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geoplex/stacfan/internal/dispatch"
	"github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/query"
	"github.com/geoplex/stacfan/internal/stac"
)

// FailuresHeader names the datasources that failed when the partial
// policy still produced a merged response. The body stays a pure
// collection-id mapping, so failure reporting rides out-of-band here.
const FailuresHeader = "X-Stacfan-Failures"

// errorBody is the JSON error envelope.
type errorBody struct {
	Error    string        `json:"error"`
	Failures []slotFailure `json:"failures,omitempty"`
}

type slotFailure struct {
	Datasource string `json:"datasource"`
	Error      string `json:"error"`
}

// searchHandler serves POST /stac/search.
type searchHandler struct {
	dispatcher *dispatch.Dispatcher
	policy     dispatch.FailurePolicy
}

func (h *searchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req stac.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}

	start := time.Now()

	q, err := query.Build(&req)
	if err != nil {
		// Normalization failures short-circuit: nothing was dispatched.
		writeGatewayError(w, err)
		return
	}

	// Every dispatched unit runs to completion, so a client that goes
	// away mid-flight must not cancel the backend calls.
	ctx := context.WithoutCancel(r.Context())

	results := h.dispatcher.Dispatch(ctx, q, req.Datasources)
	merged, failures, err := dispatch.Merge(results, h.policy)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	slog.Info("search_complete",
		slog.Int("datasources", len(req.Datasources)),
		slog.Int("failed", len(failures)),
		slog.Int("collections", merged.Len()),
		slog.Duration("duration", time.Since(start)))

	if len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = f.Datasource()
		}
		w.Header().Set(FailuresHeader, strings.Join(names, ","))
	}

	writeJSON(w, http.StatusOK, merged)
}

// healthHandler serves GET /healthz.
type healthHandler struct {
	sources interface{ Len() int }
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": h.sources.Len(),
	})
}

// writeGatewayError maps a pipeline error onto its HTTP status and body.
func writeGatewayError(w http.ResponseWriter, err error) {
	var pf *errors.PartialFailure
	if stderrors.As(err, &pf) {
		failures := make([]slotFailure, len(pf.Failures))
		for i, f := range pf.Failures {
			failures[i] = slotFailure{Datasource: f.Datasource(), Error: f.Error()}
		}
		writeError(w, pf.HTTPStatus(), pf.Error(), failures)
		return
	}

	var ge *errors.GatewayError
	if stderrors.As(err, &ge) {
		writeError(w, ge.HTTPStatus(), ge.Message, nil)
		return
	}

	writeError(w, http.StatusInternalServerError, err.Error(), nil)
}

func writeError(w http.ResponseWriter, status int, msg string, failures []slotFailure) {
	slog.Debug("request_failed", slog.Int("status", status), slog.String("error", msg))
	writeJSON(w, status, errorBody{Error: msg, Failures: failures})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("write_response_failed", slog.String("error", err.Error()))
	}
}
