package profile

import (
	"errors"
	"testing"
)

func sampleDocument() Document {
	return Document{
		"took": float64(150),
		"phase_took": map[string]any{
			"query": float64(120),
			"fetch": float64(30),
		},
		"profile": map[string]any(sampleProfileSection()),
	}
}

func TestAnalyzeBuildsFullReport(t *testing.T) {
	t.Parallel()

	report, err := Analyze(sampleDocument())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if report.TookMS != 150 {
		t.Fatalf("TookMS=%v, want 150", report.TookMS)
	}
	if !report.HasPhases || len(report.Phases) != 6 {
		t.Fatalf("HasPhases=%v len(Phases)=%d, want phases summarized", report.HasPhases, len(report.Phases))
	}
	if report.ShardCount() != 2 {
		t.Fatalf("ShardCount()=%d, want 2", report.ShardCount())
	}
	if len(report.Components) == 0 {
		t.Fatal("Components empty, want ranked leaves")
	}
	// Slowest component across the sample is the 7ms aggregation.
	if report.Components[0].Kind != KindAggregation {
		t.Fatalf("Components[0].Kind=%q, want Aggregation", report.Components[0].Kind)
	}
	if len(report.SlowShards) != 2 {
		t.Fatalf("len(SlowShards)=%d, want 2", len(report.SlowShards))
	}
}

func TestAnalyzeMissingProfile(t *testing.T) {
	t.Parallel()

	doc := Document{"took": float64(5), "hits": map[string]any{}}
	var missing *MissingProfileError
	_, err := Analyze(doc)
	if !errors.As(err, &missing) {
		t.Fatalf("Analyze() error = %v, want MissingProfileError", err)
	}
	if missing.Document == nil {
		t.Fatal("MissingProfileError.Document is nil, want the parsed document retained")
	}
}

func TestAnalyzeWithoutPhaseTook(t *testing.T) {
	t.Parallel()

	doc := Document{"profile": map[string]any(sampleProfileSection())}
	report, err := Analyze(doc)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if report.HasPhases {
		t.Fatal("HasPhases=true, want false without phase_took")
	}
	if report.Phases != nil {
		t.Fatalf("Phases=%v, want nil", report.Phases)
	}
}

func TestTopComponents(t *testing.T) {
	t.Parallel()

	report, err := Analyze(sampleDocument())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	top := report.TopComponents(2)
	if len(top) != 2 {
		t.Fatalf("len(top)=%d, want 2", len(top))
	}
	all := report.TopComponents(0)
	if len(all) != len(report.Components) {
		t.Fatalf("len(all)=%d, want %d", len(all), len(report.Components))
	}
	over := report.TopComponents(1000)
	if len(over) != len(report.Components) {
		t.Fatalf("len(over)=%d, want clamped to %d", len(over), len(report.Components))
	}
}

func TestOperationsFor(t *testing.T) {
	t.Parallel()

	report, err := Analyze(sampleDocument())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	ops, ok := report.OperationsFor(0, 0)
	if !ok {
		t.Fatal("OperationsFor(0, 0) not ok, want operation tree")
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops)=%d, want 2 top-level operations", len(ops))
	}
	if ops[0].Percentage != 100 {
		t.Fatalf("ops[0].Percentage=%v, want 100 at the top level", ops[0].Percentage)
	}

	if _, ok := report.OperationsFor(0, 5); ok {
		t.Fatal("OperationsFor(0, 5) ok, want false for missing search")
	}
	if _, ok := report.OperationsFor(9, 0); ok {
		t.Fatal("OperationsFor(9, 0) ok, want false for missing shard")
	}
	if _, ok := report.OperationsFor(-1, 0); ok {
		t.Fatal("OperationsFor(-1, 0) ok, want false for negative index")
	}
}
