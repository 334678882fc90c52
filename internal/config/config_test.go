package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queryprofiler.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if got := cfg.Server.Address(); got != "0.0.0.0:8686" {
		t.Fatalf("Server.Address() = %q", got)
	}
	if cfg.Cluster.Index != "opensearch_dashboards*" {
		t.Fatalf("Cluster.Index = %q", cfg.Cluster.Index)
	}
	if cfg.Cluster.TimeoutMS != 30000 {
		t.Fatalf("Cluster.TimeoutMS = %d", cfg.Cluster.TimeoutMS)
	}
	if !strings.Contains(cfg.Cluster.DefaultQuery, "match_all") {
		t.Fatalf("Cluster.DefaultQuery = %q", cfg.Cluster.DefaultQuery)
	}
	if cfg.History.Driver != "memory" || cfg.History.Limit != 50 {
		t.Fatalf("History = %+v", cfg.History)
	}
	if cfg.Explain.Model != "gpt-4o-mini" {
		t.Fatalf("Explain.Model = %q", cfg.Explain.Model)
	}
	if cfg.Observability.OTel.Enabled {
		t.Fatal("OTel should be disabled by default")
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 127.0.0.1
  port: 9000
cluster:
  endpoint: https://search.example.com:9200
  index: logs-*
  username: profiler
history:
  driver: sqlite
  path: /tmp/history.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Address(); got != "127.0.0.1:9000" {
		t.Fatalf("Server.Address() = %q", got)
	}
	if cfg.Cluster.Endpoint != "https://search.example.com:9200" {
		t.Fatalf("Cluster.Endpoint = %q", cfg.Cluster.Endpoint)
	}
	if cfg.Cluster.Index != "logs-*" {
		t.Fatalf("Cluster.Index = %q", cfg.Cluster.Index)
	}
	if cfg.History.Driver != "sqlite" || cfg.History.Path != "/tmp/history.db" {
		t.Fatalf("History = %+v", cfg.History)
	}
	// Unset fields keep defaults.
	if cfg.History.Limit != 50 {
		t.Fatalf("History.Limit = %d", cfg.History.Limit)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, "cluster:\n  endpont: http://localhost:9200\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error=nil, want unknown field error")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n---\nserver:\n  port: 9100\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error=nil, want multi-document error")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8686 {
		t.Fatalf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("QUERYPROFILER_PORT", "9100")
	t.Setenv("QUERYPROFILER_CLUSTER_ENDPOINT", "http://cluster:9200")
	t.Setenv("QUERYPROFILER_CLUSTER_PASSWORD", "hunter2")
	t.Setenv("QUERYPROFILER_HISTORY_DRIVER", "postgres")
	t.Setenv("QUERYPROFILER_HISTORY_DSN", "postgres://localhost/profiles")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Cluster.Endpoint != "http://cluster:9200" || cfg.Cluster.Password != "hunter2" {
		t.Fatalf("Cluster = %+v", cfg.Cluster)
	}
	if cfg.History.Driver != "postgres" || cfg.History.DSN != "postgres://localhost/profiles" {
		t.Fatalf("History = %+v", cfg.History)
	}
}

func TestApplyEnvInvalidPort(t *testing.T) {
	t.Setenv("QUERYPROFILER_PORT", "not-a-port")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() error=nil, want invalid port error")
	}
}

func TestOTelEnvImpliesEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Observability.OTel.Enabled {
		t.Fatal("OTel.Enabled = false, want true when OTEL endpoint set")
	}
	if cfg.Observability.OTel.Endpoint != "collector:4318" {
		t.Fatalf("OTel.Endpoint = %q", cfg.Observability.OTel.Endpoint)
	}
}

func TestOTelSDKDisabledWins(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SDK_DISABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Observability.OTel.Enabled {
		t.Fatal("OTel.Enabled = true, want false when OTEL_SDK_DISABLED=true")
	}
}

func TestValidateDefaultConfig(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(default) error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"bad port", func(cfg *Config) { cfg.Server.Port = 0 }},
		{"bad endpoint scheme", func(cfg *Config) { cfg.Cluster.Endpoint = "ftp://cluster:21" }},
		{"unknown history driver", func(cfg *Config) { cfg.History.Driver = "redis" }},
		{"sqlite without path", func(cfg *Config) {
			cfg.History.Driver = "sqlite"
			cfg.History.Path = ""
		}},
		{"postgres without dsn", func(cfg *Config) { cfg.History.Driver = "postgres" }},
		{"zero history limit", func(cfg *Config) { cfg.History.Limit = 0 }},
		{"explain key without model", func(cfg *Config) {
			cfg.Explain.APIKey = "sk-test"
			cfg.Explain.Model = ""
		}},
		{"otel enabled without endpoint", func(cfg *Config) {
			cfg.Observability.OTel.Enabled = true
			cfg.Observability.OTel.Endpoint = ""
		}},
		{"otel bad sampling ratio", func(cfg *Config) {
			cfg.Observability.OTel.Enabled = true
			cfg.Observability.OTel.SamplingRatio = 1.5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("Validate() error=nil, want rejection")
			}
		})
	}
}
