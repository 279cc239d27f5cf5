package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/geoplex/stacfan/internal/config"
	"github.com/geoplex/stacfan/internal/registry"
)

func newSourcesCmd() *cobra.Command {
	var configPath string
	var sourcesPath string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured datasource backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd.OutOrStdout(), configPath, sourcesPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "Path to sources file (overrides config)")

	return cmd
}

func runSources(stdout io.Writer, configPath, sourcesPath string) error {
	if sourcesPath == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		sourcesPath = cfg.SourcesFile
	}

	reg, err := registry.Load(sourcesPath)
	if err != nil {
		return err
	}

	for _, name := range reg.Names() {
		src, _ := reg.Lookup(name)
		fmt.Fprintf(stdout, "%s\t%s\n", name, src.Endpoint)
	}
	return nil
}
