package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aswath86/opensearch-query-profiler/internal/profile"
)

type componentRow struct {
	profile.ComponentRef
	Percentage float64 `json:"percentage"`
	Severity   string  `json:"severity"`
}

type reportDocument struct {
	TookMS        float64               `json:"took_ms"`
	ShardCount    int                   `json:"shard_count"`
	HasPhases     bool                  `json:"has_phases"`
	Phases        []profile.PhaseTiming `json:"phases,omitempty"`
	TopComponents []componentRow        `json:"top_components"`
	SlowShards    []profile.ShardCost   `json:"slow_shards"`
	Shards        []profile.Shard       `json:"shards"`
	LargeProfile  bool                  `json:"large_profile"`
}

func buildReportDocument(report *profile.Report, top int) reportDocument {
	components := report.TopComponents(top)
	rows := make([]componentRow, 0, len(components))
	for _, component := range components {
		percentage := profile.PercentageOf(component.TimeMS, report.TookMS)
		rows = append(rows, componentRow{
			ComponentRef: component,
			Percentage:   percentage,
			Severity:     profile.SeverityFor(percentage),
		})
	}

	slow := report.SlowShards
	if len(slow) > 10 {
		slow = slow[:10]
	}

	return reportDocument{
		TookMS:        report.TookMS,
		ShardCount:    report.ShardCount(),
		HasPhases:     report.HasPhases,
		Phases:        report.Phases,
		TopComponents: rows,
		SlowShards:    slow,
		Shards:        report.Shards,
		LargeProfile:  report.ShardCount() > profile.LargeProfileShardCount,
	}
}

func writeReport(out io.Writer, report *profile.Report, format string, top int) error {
	doc := buildReportDocument(report, top)
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	}
	return writeReportText(out, doc)
}

func writeReportText(out io.Writer, doc reportDocument) error {
	summaryWriter := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(summaryWriter, "Took\t%.2f ms\n", doc.TookMS)
	fmt.Fprintf(summaryWriter, "Shards\t%d\n", doc.ShardCount)
	if doc.LargeProfile {
		fmt.Fprintf(summaryWriter, "Warning\tlarge profile (over %d shards); rendering may be slow\n", profile.LargeProfileShardCount)
	}
	if err := summaryWriter.Flush(); err != nil {
		return err
	}

	if doc.HasPhases {
		fmt.Fprintln(out, "\nPhases")
		phaseWriter := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(phaseWriter, "PHASE\tTIME_MS")
		for _, phase := range doc.Phases {
			fmt.Fprintf(phaseWriter, "%s\t%.2f\n", phase.Phase, phase.TimeMS)
		}
		if err := phaseWriter.Flush(); err != nil {
			return err
		}
	}

	if len(doc.TopComponents) > 0 {
		fmt.Fprintln(out, "\nMost expensive components")
		componentWriter := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(componentWriter, "SHARD\tKIND\tNAME\tTIME_MS\tPCT\tSEVERITY")
		for _, row := range doc.TopComponents {
			fmt.Fprintf(componentWriter, "%s\t%s\t%s\t%.2f\t%.1f%%\t%s\n",
				row.Shard, row.Kind, row.Name, row.TimeMS, row.Percentage, row.Severity)
		}
		if err := componentWriter.Flush(); err != nil {
			return err
		}
	}

	if len(doc.SlowShards) > 0 {
		fmt.Fprintln(out, "\nSlowest shards")
		shardWriter := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(shardWriter, "SHARD\tQUERY_TIME_MS")
		for _, shard := range doc.SlowShards {
			fmt.Fprintf(shardWriter, "%s\t%.2f\n", shard.Label, shard.TimeMS)
		}
		if err := shardWriter.Flush(); err != nil {
			return err
		}
	}

	for _, shard := range doc.Shards {
		if err := writeShardText(out, shard); err != nil {
			return err
		}
	}

	return nil
}

func writeShardText(out io.Writer, shard profile.Shard) error {
	fmt.Fprintf(out, "\nShard %s\n", shard.Label())

	for i, search := range shard.Searches {
		if len(shard.Searches) > 1 {
			fmt.Fprintf(out, "  Search %d\n", i)
		}
		for _, query := range search.Queries {
			fmt.Fprintf(out, "  query %s\t%.2f ms\n", query.Type, query.TimeMS)
			if description := strings.TrimSpace(query.Description); description != "" {
				fmt.Fprintf(out, "    %s\n", truncateLine(description, 120))
			}
			writeBreakdownText(out, query.Breakdown)
		}
		for _, collector := range search.Collectors {
			fmt.Fprintf(out, "  collector %s\t%.2f ms\n", collector.Name, collector.TimeMS)
			for _, child := range collector.Children {
				fmt.Fprintf(out, "    %s\t%.2f ms\n", child.Name, child.TimeMS)
			}
		}
	}
	for _, agg := range shard.Aggregations {
		fmt.Fprintf(out, "  aggregation %s\t%.2f ms\n", agg.Type, agg.TimeMS)
		writeBreakdownText(out, agg.Breakdown)
	}

	return nil
}

func writeBreakdownText(out io.Writer, breakdown []profile.BreakdownEntry) {
	entries := profile.ReshapeBreakdown(breakdown, 5)
	for _, entry := range entries {
		fmt.Fprintf(out, "    %s\t%.3f ms\n", entry.Operation, entry.TimeMS)
	}
}

func truncateLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
