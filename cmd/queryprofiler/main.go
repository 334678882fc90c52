package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/api"
	"github.com/aswath86/opensearch-query-profiler/internal/config"
	"github.com/aswath86/opensearch-query-profiler/internal/explain"
	"github.com/aswath86/opensearch-query-profiler/internal/history"
	"github.com/aswath86/opensearch-query-profiler/internal/observability"
	"github.com/aswath86/opensearch-query-profiler/internal/search"
	"github.com/aswath86/opensearch-query-profiler/internal/session"
	"github.com/aswath86/opensearch-query-profiler/internal/version"
)

const defaultConfigPath = "queryprofiler.yaml"

const otelShutdownTimeout = 5 * time.Second
const serverReadHeaderTimeout = 10 * time.Second
const serverReadTimeout = 30 * time.Second
const serverIdleTimeout = 2 * time.Minute

var signalNotifyContext = signal.NotifyContext

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runServe(nil)
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return 0
	case "serve":
		return runServe(args[1:])
	case "analyze":
		return runAnalyze(args[1:], os.Stdin, os.Stdout, os.Stderr)
	case "fetch":
		return runFetch(args[1:], os.Stdin, os.Stdout, os.Stderr)
	case "config":
		return runConfig(args[1:], os.Stdout, os.Stderr)
	default:
		printUsage(os.Stderr)
		return 2
	}
}

func runConfig(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printConfigUsage(errOut)
		return 2
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], out, errOut)
	default:
		printConfigUsage(errOut)
		return 2
	}
}

func runConfigValidate(args []string, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("config validate", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "config validate does not accept positional arguments")
		return 2
	}

	_, _, err := loadAndValidateConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config is invalid: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "config is valid: %s\n", *configPath)
	return 0
}

func runServe(args []string) int {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	cfg, stage, err := loadAndValidateConfig(*configPath)
	if err != nil {
		if stage == configStageLoad {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "config is invalid: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	otelRuntime, otelErr := observability.Setup(context.Background(), cfg.Observability.OTel, version.String(), logger)
	if otelErr != nil {
		logger.Error("failed to initialize opentelemetry; continuing with instrumentation disabled", "error", otelErr)
	}
	if otelRuntime != nil {
		defer shutdownOpenTelemetry(logger, otelRuntime, otelShutdownTimeout)
	}

	store, err := newHistoryStore(cfg.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize history store: %v\n", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close history store", "error", err)
		}
	}()

	var executor api.QueryExecutor
	if cfg.Cluster.Endpoint != "" {
		client, err := newSearchClient(cfg.Cluster, otelRuntime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to configure cluster client: %v\n", err)
			return 1
		}
		executor = client
	}

	sess := session.New()
	explainer := explain.New(cfg.Explain)
	apiHandler := api.NewRouter(api.RouterOptions{
		AppVersion:    version.String(),
		Session:       sess,
		History:       store,
		HistoryDriver: cfg.History.Driver,
		HistoryPath:   cfg.History.Path,
		Executor:      executor,
		Explainer:     explainer,
		Metrics:       otelRuntime,
	})

	serverHandler := otelRuntime.SpanStatusMiddleware(apiHandler)
	serverHandler = otelRuntime.WrapHTTPHandler(serverHandler)
	server := newProfilerServer(cfg, logger, serverHandler)

	logger.Info(
		"startup banner",
		"version", version.String(),
		"addr", server.Addr,
		"port", cfg.Server.Port,
		"history_driver", cfg.History.Driver,
		"cluster_endpoint", cfg.Cluster.Endpoint,
		"explain_configured", explainer.Configured(),
		"config_path", *configPath,
	)

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown", "error", err)
			return 1
		}
		logger.Info("profiler stopped")
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error("profiler failed", "error", err)
			return 1
		}
		return 0
	}
}

func newHistoryStore(cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return history.NewMemoryStore(cfg.Limit), nil
	case "sqlite":
		return history.NewSQLiteStore(cfg.Path, cfg.Limit)
	case "postgres":
		return history.NewPostgresStore(cfg.DSN, cfg.Limit)
	default:
		return nil, fmt.Errorf("unsupported history.driver %q", cfg.Driver)
	}
}

func newSearchClient(cfg config.ClusterConfig, otelRuntime *observability.Runtime) (*search.Client, error) {
	password, err := search.ResolvePassword(cfg.Password)
	if err != nil && cfg.Username != "" {
		return nil, err
	}

	clientConfig := search.Config{
		Endpoint:           cfg.Endpoint,
		Index:              cfg.Index,
		Username:           cfg.Username,
		Password:           password,
		Timeout:            cfg.Timeout(),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if otelRuntime.Enabled() {
		clientConfig.Transport = otelRuntime.WrapHTTPTransport(nil)
	}
	return search.NewClient(clientConfig)
}

func newProfilerServer(cfg config.Config, logger *slog.Logger, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.LoggingMiddleware(logger, handler),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		IdleTimeout:       serverIdleTimeout,
	}
}

func shutdownOpenTelemetry(logger *slog.Logger, runtime *observability.Runtime, timeout time.Duration) {
	if runtime == nil || !runtime.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := runtime.Shutdown(ctx); err != nil {
		if logger != nil {
			logger.Error("failed to shutdown opentelemetry providers", "error", err, "timeout", timeout.String())
		}
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  queryprofiler serve [--config path/to/queryprofiler.yaml]")
	fmt.Fprintln(out, "  queryprofiler version")
	fmt.Fprintln(out, "  queryprofiler config validate [--config path/to/queryprofiler.yaml]")
	fmt.Fprintln(out, "  queryprofiler analyze [--file PATH|-] [--format text|json] [--top N]")
	fmt.Fprintln(out, "  queryprofiler fetch [--config path/to/queryprofiler.yaml] [--index NAME] [--query-file PATH|-] [--format text|json] [--top N]")
}

func printConfigUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  queryprofiler config validate [--config path/to/queryprofiler.yaml]")
}
