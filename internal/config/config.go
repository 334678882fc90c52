package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cluster       ClusterConfig       `yaml:"cluster"`
	History       HistoryConfig       `yaml:"history"`
	Explain       ExplainConfig       `yaml:"explain"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClusterConfig describes the OpenSearch/Elasticsearch cluster that profiled
// searches are fetched from. Password may be left empty and supplied via
// environment instead.
type ClusterConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Index              string `yaml:"index"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	TimeoutMS          int    `yaml:"timeout_ms"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	DefaultQuery       string `yaml:"default_query"`
}

func (c ClusterConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return defaultClusterTimeoutMS * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type HistoryConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Limit  int    `yaml:"limit"`
}

type ExplainConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type ObservabilityConfig struct {
	OTel OTelConfig `yaml:"otel"`
}

type OTelConfig struct {
	Enabled                bool    `yaml:"enabled"`
	Endpoint               string  `yaml:"endpoint"`
	Insecure               bool    `yaml:"insecure"`
	ServiceName            string  `yaml:"service_name"`
	TracesEnabled          bool    `yaml:"traces_enabled"`
	MetricsEnabled         bool    `yaml:"metrics_enabled"`
	SamplingRatio          float64 `yaml:"sampling_ratio"`
	ExportTimeoutMS        int     `yaml:"export_timeout_ms"`
	MetricExportIntervalMS int     `yaml:"metric_export_interval_ms"`
}

const (
	defaultClusterTimeoutMS = 30000
	defaultHistoryLimit     = 50

	defaultOTELEndpoint               = "localhost:4318"
	defaultOTELServiceName            = "queryprofiler"
	defaultOTELSamplingRatio          = 1.0
	defaultOTELExportTimeoutMS        = 3000
	defaultOTELMetricExportIntervalMS = 10000
)

// defaultQueryBody is the query sent when a fetch request supplies no body:
// match everything and aggregate the most common log levels and sources.
const defaultQueryBody = `{
  "query": {"match_all": {}},
  "aggs": {
    "levels": {"terms": {"field": "level.keyword", "size": 10}},
    "sources": {"terms": {"field": "source.keyword", "size": 10}}
  }
}`

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8686,
		},
		Cluster: ClusterConfig{
			Endpoint:     "http://localhost:9200",
			Index:        "opensearch_dashboards*",
			TimeoutMS:    defaultClusterTimeoutMS,
			DefaultQuery: defaultQueryBody,
		},
		History: HistoryConfig{
			Driver: "memory",
			Path:   "./data/queryprofiler.db",
			Limit:  defaultHistoryLimit,
		},
		Explain: ExplainConfig{
			Model: "gpt-4o-mini",
		},
		Observability: ObservabilityConfig{
			OTel: OTelConfig{
				Enabled:                false,
				Endpoint:               defaultOTELEndpoint,
				Insecure:               true,
				ServiceName:            defaultOTELServiceName,
				TracesEnabled:          true,
				MetricsEnabled:         true,
				SamplingRatio:          defaultOTELSamplingRatio,
				ExportTimeoutMS:        defaultOTELExportTimeoutMS,
				MetricExportIntervalMS: defaultOTELMetricExportIntervalMS,
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true)
			decodeErr := decoder.Decode(&cfg)
			if errors.Is(decodeErr, io.EOF) {
				decodeErr = nil
			}
			if decodeErr != nil {
				return Config{}, fmt.Errorf("parse yaml %q: %w", path, decodeErr)
			}
			// Reject multi-document configs to keep runtime configuration
			// unambiguous and avoid hidden trailing documents.
			var trailing any
			trailingErr := decoder.Decode(&trailing)
			if trailingErr != nil && !errors.Is(trailingErr, io.EOF) {
				return Config{}, fmt.Errorf("parse yaml %q: %w", path, trailingErr)
			}
			if trailing != nil {
				return Config{}, fmt.Errorf("parse yaml %q: multiple yaml documents are not supported", path)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks configuration invariants required at runtime.
func Validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}

	if endpoint := strings.TrimSpace(cfg.Cluster.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("cluster.endpoint is not a valid URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("cluster.endpoint must use http or https (got %q)", cfg.Cluster.Endpoint)
		}
		if parsed.Host == "" {
			return fmt.Errorf("cluster.endpoint must include a host (got %q)", cfg.Cluster.Endpoint)
		}
	}
	if cfg.Cluster.TimeoutMS < 0 {
		return fmt.Errorf("cluster.timeout_ms must be >= 0 (got %d)", cfg.Cluster.TimeoutMS)
	}
	if query := strings.TrimSpace(cfg.Cluster.DefaultQuery); query != "" && !strings.HasPrefix(query, "{") {
		return errors.New("cluster.default_query must be a JSON object")
	}

	driver := strings.TrimSpace(cfg.History.Driver)
	switch driver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.History.Path) == "" {
			return errors.New("history.path is required when history.driver=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(cfg.History.DSN) == "" {
			return errors.New("history.dsn is required when history.driver=postgres")
		}
	default:
		return fmt.Errorf("history.driver must be one of memory, sqlite, postgres (got %q)", cfg.History.Driver)
	}
	if cfg.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be > 0 (got %d)", cfg.History.Limit)
	}

	if strings.TrimSpace(cfg.Explain.APIKey) != "" && strings.TrimSpace(cfg.Explain.Model) == "" {
		return errors.New("explain.model is required when explain.api_key is set")
	}

	if err := validateOTelConfig(cfg.Observability.OTel); err != nil {
		return err
	}

	return nil
}

func validateOTelConfig(cfg OTelConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("observability.otel.endpoint is required when observability.otel.enabled=true")
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return errors.New("observability.otel.service_name is required when observability.otel.enabled=true")
	}
	if !cfg.TracesEnabled && !cfg.MetricsEnabled {
		return errors.New("observability.otel requires traces_enabled and/or metrics_enabled when enabled")
	}
	if cfg.SamplingRatio < 0 || cfg.SamplingRatio > 1 {
		return fmt.Errorf("observability.otel.sampling_ratio must be between 0 and 1 (got %f)", cfg.SamplingRatio)
	}
	if cfg.ExportTimeoutMS <= 0 {
		return fmt.Errorf("observability.otel.export_timeout_ms must be > 0 (got %d)", cfg.ExportTimeoutMS)
	}
	if cfg.MetricExportIntervalMS <= 0 {
		return fmt.Errorf("observability.otel.metric_export_interval_ms must be > 0 (got %d)", cfg.MetricExportIntervalMS)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("QUERYPROFILER_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if port := os.Getenv("QUERYPROFILER_PORT"); port != "" {
		v, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid QUERYPROFILER_PORT: %w", err)
		}
		cfg.Server.Port = v
	}

	if endpoint := os.Getenv("QUERYPROFILER_CLUSTER_ENDPOINT"); endpoint != "" {
		cfg.Cluster.Endpoint = endpoint
	}
	if index := os.Getenv("QUERYPROFILER_CLUSTER_INDEX"); index != "" {
		cfg.Cluster.Index = index
	}
	if username := os.Getenv("QUERYPROFILER_CLUSTER_USERNAME"); username != "" {
		cfg.Cluster.Username = username
	}
	if password := os.Getenv("QUERYPROFILER_CLUSTER_PASSWORD"); password != "" {
		cfg.Cluster.Password = password
	}
	if timeout := os.Getenv("QUERYPROFILER_CLUSTER_TIMEOUT_MS"); timeout != "" {
		v, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid QUERYPROFILER_CLUSTER_TIMEOUT_MS: %w", err)
		}
		cfg.Cluster.TimeoutMS = v
	}
	if insecure := os.Getenv("QUERYPROFILER_CLUSTER_INSECURE_SKIP_VERIFY"); insecure != "" {
		v, err := strconv.ParseBool(insecure)
		if err != nil {
			return fmt.Errorf("invalid QUERYPROFILER_CLUSTER_INSECURE_SKIP_VERIFY: %w", err)
		}
		cfg.Cluster.InsecureSkipVerify = v
	}

	if historyDriver := os.Getenv("QUERYPROFILER_HISTORY_DRIVER"); historyDriver != "" {
		cfg.History.Driver = historyDriver
	}
	if historyPath := os.Getenv("QUERYPROFILER_HISTORY_PATH"); historyPath != "" {
		cfg.History.Path = historyPath
	}
	if historyDSN := os.Getenv("QUERYPROFILER_HISTORY_DSN"); historyDSN != "" {
		cfg.History.DSN = historyDSN
	}
	if historyLimit := os.Getenv("QUERYPROFILER_HISTORY_LIMIT"); historyLimit != "" {
		v, err := strconv.Atoi(historyLimit)
		if err != nil {
			return fmt.Errorf("invalid QUERYPROFILER_HISTORY_LIMIT: %w", err)
		}
		cfg.History.Limit = v
	}

	if apiKey := os.Getenv("QUERYPROFILER_EXPLAIN_API_KEY"); apiKey != "" {
		cfg.Explain.APIKey = apiKey
	}
	if model := os.Getenv("QUERYPROFILER_EXPLAIN_MODEL"); model != "" {
		cfg.Explain.Model = model
	}
	if baseURL := os.Getenv("QUERYPROFILER_EXPLAIN_BASE_URL"); baseURL != "" {
		cfg.Explain.BaseURL = baseURL
	}

	otelConfigured := false
	otelSDKDisabledSet := false
	if sdkDisabled := strings.TrimSpace(os.Getenv("OTEL_SDK_DISABLED")); sdkDisabled != "" {
		v, err := strconv.ParseBool(sdkDisabled)
		if err != nil {
			return fmt.Errorf("invalid OTEL_SDK_DISABLED: %w", err)
		}
		cfg.Observability.OTel.Enabled = !v
		otelSDKDisabledSet = true
		otelConfigured = true
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		cfg.Observability.OTel.Endpoint = endpoint
		otelConfigured = true
	}
	if insecure := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); insecure != "" {
		v, err := strconv.ParseBool(insecure)
		if err != nil {
			return fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
		}
		cfg.Observability.OTel.Insecure = v
		otelConfigured = true
	}
	if serviceName := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); serviceName != "" {
		cfg.Observability.OTel.ServiceName = serviceName
		otelConfigured = true
	}
	if tracesExporter := strings.TrimSpace(os.Getenv("OTEL_TRACES_EXPORTER")); tracesExporter != "" {
		enabled, err := otelExporterEnabled(tracesExporter)
		if err != nil {
			return fmt.Errorf("invalid OTEL_TRACES_EXPORTER: %w", err)
		}
		cfg.Observability.OTel.TracesEnabled = enabled
		otelConfigured = true
	}
	if metricsExporter := strings.TrimSpace(os.Getenv("OTEL_METRICS_EXPORTER")); metricsExporter != "" {
		enabled, err := otelExporterEnabled(metricsExporter)
		if err != nil {
			return fmt.Errorf("invalid OTEL_METRICS_EXPORTER: %w", err)
		}
		cfg.Observability.OTel.MetricsEnabled = enabled
		otelConfigured = true
	}
	if samplingArg := strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")); samplingArg != "" {
		v, err := strconv.ParseFloat(samplingArg, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
		cfg.Observability.OTel.SamplingRatio = v
		otelConfigured = true
	}

	// Standard OTEL_* variables imply opt-in even without an explicit enable
	// flag, unless OTEL_SDK_DISABLED said otherwise.
	if otelConfigured && !otelSDKDisabledSet {
		cfg.Observability.OTel.Enabled = true
	}

	return nil
}

func otelExporterEnabled(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "otlp":
		return true, nil
	case "none":
		return false, nil
	default:
		return false, fmt.Errorf("must be one of otlp, none (got %q)", value)
	}
}
