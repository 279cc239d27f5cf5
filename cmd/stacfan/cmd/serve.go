package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geoplex/stacfan/internal/config"
	"github.com/geoplex/stacfan/internal/gateway"
	"github.com/geoplex/stacfan/internal/logging"
	"github.com/geoplex/stacfan/pkg/version"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	configPath string
	addr       string
	sources    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search gateway",
		Long: `Start the stacfan HTTP gateway.

The gateway accepts POST /stac/search requests, dispatches them to all
named datasource backends concurrently, and returns the merged result.
Sources are read from the configured sources file and reloaded on change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: built-in defaults)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&opts.sources, "sources", "", "Path to sources file (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.sources != "" {
		cfg.SourcesFile = opts.sources
	}

	cleanup, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: true,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("stacfan_starting", slog.String("version", version.Short()))

	srv, err := gateway.New(cfg)
	if err != nil {
		return err
	}

	err = srv.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		slog.Info("stacfan_stopped")
		return nil
	}
	return err
}
