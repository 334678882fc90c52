package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/aswath86/opensearch-query-profiler/internal/search"
)

func runFetch(args []string, stdin io.Reader, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("fetch", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	index := flagSet.String("index", "", "Index to search (defaults to cluster.index)")
	queryFile := flagSet.String("query-file", "", "Query body to send (path or - for stdin; defaults to cluster.default_query)")
	format := flagSet.String("format", "text", "Output format: text or json")
	top := flagSet.Int("top", 10, "Number of most expensive components to show")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "fetch does not accept positional arguments")
		return 2
	}

	normalizedFormat, err := normalizeTextJSONFormat("fetch", *format, "text")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	cfg, stage, err := loadAndValidateConfig(*configPath)
	if err != nil {
		if stage == configStageLoad {
			fmt.Fprintf(errOut, "failed to load config: %v\n", err)
		} else {
			fmt.Fprintf(errOut, "config is invalid: %v\n", err)
		}
		return 1
	}

	query := cfg.Cluster.DefaultQuery
	if strings.TrimSpace(*queryFile) != "" {
		query, err = readInputDocument(*queryFile, stdin)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}

	client, err := newSearchClient(cfg.Cluster, nil)
	if err != nil {
		fmt.Fprintf(errOut, "failed to configure cluster client: %v\n", err)
		return 1
	}

	raw, err := client.ProfileSearch(context.Background(), *index, query)
	if err != nil {
		fmt.Fprintf(errOut, "profiled search failed: %v\n", err)
		var fetchErr *search.FetchError
		if errors.As(err, &fetchErr) && (fetchErr.StatusCode == 401 || fetchErr.StatusCode == 403) {
			return 6
		}
		return 1
	}

	report, code := analyzeDocument(raw, errOut)
	if code != 0 {
		return code
	}

	if err := writeReport(out, report, normalizedFormat, *top); err != nil {
		fmt.Fprintf(errOut, "failed to render report: %v\n", err)
		return 1
	}
	return 0
}
