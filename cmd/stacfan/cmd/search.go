package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/geoplex/stacfan/internal/stac"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	endpoint    string
	bbox        []float64
	startDate   string
	endDate     string
	datasources []string
	limit       int
	output      string
	debug       bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query a running gateway",
		Long: `Send a search request to a stacfan gateway and print the merged
feature collections.

The bounding box is one comma-joined value: west,south,east,north.

Examples:
  stacfan search --bbox -120.5,34.0,-119.5,35.0 -d landsat8 -d sentinel2
  stacfan search --bbox -120.5,34.0,-119.5,35.0 -d naip \
      --start-date 2020-01-01 --end-date 2020-02-01 -o results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "http://localhost:8080", "Gateway base URL")
	cmd.Flags().Float64SliceVar(&opts.bbox, "bbox", nil, "Bounding box: west,south,east,north")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", "Start date, e.g. 2020-01-01")
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", "End date, e.g. 2020-02-01")
	cmd.Flags().StringSliceVarP(&opts.datasources, "datasource", "d", nil, "Datasource to query (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Max results per datasource (gateway default: 10)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the merged response to a file")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Print per-collection feature counts and timing to stderr")

	_ = cmd.MarkFlagRequired("bbox")
	_ = cmd.MarkFlagRequired("datasource")

	return cmd
}

func runSearch(ctx context.Context, stdout io.Writer, opts searchOptions) error {
	if len(opts.bbox) != 4 {
		return fmt.Errorf("--bbox needs exactly 4 comma-joined values (west,south,east,north), got %d", len(opts.bbox))
	}

	req := stac.SearchRequest{
		Bbox:        opts.bbox,
		Datasources: opts.datasources,
	}
	if opts.startDate != "" {
		req.Time = opts.startDate
		if opts.endDate != "" {
			req.Time = opts.startDate + "/" + opts.endDate
		}
	}
	if opts.limit > 0 {
		req.Limit = &opts.limit
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return err
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		opts.endpoint+"/stac/search", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw)
	}

	if opts.debug {
		printDebug(os.Stderr, raw, time.Since(start))
	}

	if opts.output != "" {
		return os.WriteFile(opts.output, raw, 0o644)
	}

	// Pretty-print on a terminal, raw otherwise so output pipes cleanly.
	if f, ok := stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err == nil {
			raw = pretty.Bytes()
		}
	}
	_, err = fmt.Fprintln(stdout, string(bytes.TrimSpace(raw)))
	return err
}

// printDebug summarizes the merged response per collection id.
func printDebug(w io.Writer, raw []byte, elapsed time.Duration) {
	var envelope map[string]stac.FeatureCollection
	if err := json.Unmarshal(raw, &envelope); err != nil {
		fmt.Fprintf(w, "debug: could not parse response: %v\n", err)
		return
	}
	for id, fc := range envelope {
		fmt.Fprintf(w, "Found %d features for %s\n", len(fc.Features), id)
	}
	fmt.Fprintf(w, "Search completed in %s\n", elapsed)
}
