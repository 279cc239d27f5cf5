// Package cmd provides the CLI commands for stacfan.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geoplex/stacfan/pkg/version"
)

// NewRootCmd creates the root command for the stacfan CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stacfan",
		Short: "Federated STAC search gateway",
		Long: `stacfan fans a spatio-temporal search request out to multiple
datasource backends concurrently and merges their results into one
response keyed by collection id.

Run 'stacfan serve' to start the gateway, or 'stacfan search' to query
a running gateway from the command line.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("stacfan version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware context cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
