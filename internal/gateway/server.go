package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geoplex/stacfan/internal/config"
	"github.com/geoplex/stacfan/internal/dispatch"
	"github.com/geoplex/stacfan/internal/registry"
)

// Server wires the registry, dispatcher, and HTTP listener together and
// manages their lifecycle.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	httpSrv  *http.Server
}

// New builds a server from configuration: it loads the source registry,
// constructs the HTTP invoker and dispatcher, and registers the routes.
func New(cfg *config.Config) (*Server, error) {
	reg, err := registry.Load(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	invoker := registry.NewHTTPInvoker(reg, cfg.Server.BackendTimeout)
	dispatcher := dispatch.New(invoker,
		dispatch.WithMaxConcurrent(cfg.Dispatch.MaxConcurrent))

	mux := http.NewServeMux()
	mux.Handle("/stac/search", &searchHandler{
		dispatcher: dispatcher,
		policy:     dispatch.FailurePolicy(cfg.Dispatch.OnBackendFailure),
	})
	mux.Handle("/healthz", &healthHandler{sources: reg})

	return &Server{
		cfg:      cfg,
		registry: reg,
		httpSrv: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: mux,
		},
	}, nil
}

// Registry exposes the loaded source registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Run serves until the context is cancelled, then shuts down gracefully.
// The registry watcher runs alongside the listener so source edits take
// effect without a restart.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.registry.Watch(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		slog.Info("gateway_listening",
			slog.String("addr", s.cfg.Server.Addr),
			slog.Int("sources", s.registry.Len()))
		err := s.httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		grace := s.cfg.Server.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
