package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleProfileDocument = `{
  "took": 250,
  "phase_took": {"query": 200, "fetch": 30},
  "profile": {
    "shards": [
      {
        "id": "myindex[0]",
        "searches": [
          {
            "query": [
              {
                "type": "TermQuery",
                "description": "level:error",
                "time_in_nanos": 150000000,
                "breakdown": {"score": 100000000, "score_count": 12, "next_doc": 50000000}
              }
            ],
            "rewrite_time": 1000,
            "collector": [
              {"name": "SimpleTopScoreDocCollector", "reason": "search_top_hits", "time_in_nanos": 20000000}
            ]
          }
        ],
        "aggregations": [
          {"type": "terms", "description": "levels", "time_in_nanos": 40000000}
        ]
      }
    ]
  }
}`

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestAnalyzeTextOutput(t *testing.T) {
	var out, errOut strings.Builder
	code := runAnalyze([]string{"--file", "-"}, strings.NewReader(sampleProfileDocument), &out, &errOut)
	if code != 0 {
		t.Fatalf("runAnalyze = %d, stderr %s", code, errOut.String())
	}

	text := out.String()
	for _, want := range []string{
		"Took",
		"250.00 ms",
		"Phases",
		"query",
		"TermQuery",
		"SimpleTopScoreDocCollector",
		"terms",
		"Slowest shards",
		"myindex[myindex[0]]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	// Counter keys never appear in rendered breakdowns.
	if strings.Contains(text, "score_count") {
		t.Errorf("output contains counter key:\n%s", text)
	}
}

func TestAnalyzeJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeFile(t, path, sampleProfileDocument)

	var out, errOut strings.Builder
	code := runAnalyze([]string{"--file", path, "--format", "json", "--top", "2"}, nil, &out, &errOut)
	if code != 0 {
		t.Fatalf("runAnalyze = %d, stderr %s", code, errOut.String())
	}

	var doc reportDocument
	if err := json.Unmarshal([]byte(out.String()), &doc); err != nil {
		t.Fatalf("decode json output: %v", err)
	}
	if doc.TookMS != 250 || doc.ShardCount != 1 || !doc.HasPhases {
		t.Fatalf("unexpected report: %+v", doc)
	}
	if len(doc.TopComponents) != 2 {
		t.Fatalf("len(TopComponents) = %d, want --top applied", len(doc.TopComponents))
	}
	if doc.TopComponents[0].Name != "TermQuery" {
		t.Fatalf("top component = %q", doc.TopComponents[0].Name)
	}
	if doc.TopComponents[0].Severity != "high" {
		t.Fatalf("severity = %q, want high for 60%% of took", doc.TopComponents[0].Severity)
	}
}

func TestAnalyzeExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		document string
		wantCode int
	}{
		{"too large", `{"a":"` + strings.Repeat("x", 10_000_001) + `"}`, 3},
		{"malformed", `{"took":`, 4},
		{"missing profile", `{"took": 5}`, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut strings.Builder
			code := runAnalyze([]string{"--file", "-"}, strings.NewReader(tt.document), &out, &errOut)
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d (stderr %s)", code, tt.wantCode, errOut.String())
			}
		})
	}
}

func TestAnalyzeRejectsBadFlags(t *testing.T) {
	var out, errOut strings.Builder
	if code := runAnalyze([]string{"--format", "yaml"}, strings.NewReader("{}"), &out, &errOut); code != 2 {
		t.Fatalf("bad format code = %d, want 2", code)
	}
	if code := runAnalyze([]string{"positional"}, strings.NewReader("{}"), &out, &errOut); code != 2 {
		t.Fatalf("positional arg code = %d, want 2", code)
	}
}
