package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/aswath86/opensearch-query-profiler/internal/config"
)

func configHistory(driver, path, dsn string, limit int) config.HistoryConfig {
	return config.HistoryConfig{Driver: driver, Path: path, DSN: dsn, Limit: limit}
}

func TestNormalizeTextJSONFormat(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"text", "text", false},
		{"JSON", "json", false},
		{"  json  ", "json", false},
		{"", "text", false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := normalizeTextJSONFormat("analyze", tt.raw, "text")
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeTextJSONFormat(%q) error=nil", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeTextJSONFormat(%q) = %q, %v", tt.raw, got, err)
		}
	}
}

func TestLoadAndValidateConfigStages(t *testing.T) {
	badYAML := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, badYAML, "server: [not a map\n")

	if _, stage, err := loadAndValidateConfig(badYAML); err == nil || stage != configStageLoad {
		t.Fatalf("stage = %q, err = %v", stage, err)
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	writeFile(t, invalid, "server:\n  port: -1\n")
	if _, stage, err := loadAndValidateConfig(invalid); err == nil || stage != configStageValidate {
		t.Fatalf("stage = %q, err = %v", stage, err)
	}
}

func TestReadInputDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	writeFile(t, path, `{"took": 1}`)

	got, err := readInputDocument(path, nil)
	if err != nil || got != `{"took": 1}` {
		t.Fatalf("readInputDocument(file) = %q, %v", got, err)
	}

	got, err = readInputDocument("-", strings.NewReader(`{"took": 2}`))
	if err != nil || got != `{"took": 2}` {
		t.Fatalf("readInputDocument(stdin) = %q, %v", got, err)
	}

	if _, err := readInputDocument(filepath.Join(t.TempDir(), "absent.json"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
