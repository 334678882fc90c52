// Package api exposes the profiler over HTTP: loading profile documents,
// fetching profiled searches from a cluster, and reading the analyzed view.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/explain"
	"github.com/aswath86/opensearch-query-profiler/internal/history"
	"github.com/aswath86/opensearch-query-profiler/internal/observability"
	"github.com/aswath86/opensearch-query-profiler/internal/session"
)

// QueryExecutor runs a profiled search against the cluster and returns the
// raw response body.
type QueryExecutor interface {
	ProfileSearch(ctx context.Context, index, query string) (string, error)
}

type RouterOptions struct {
	AppVersion    string
	Session       *session.Session
	History       history.Store
	HistoryDriver string
	HistoryPath   string
	Executor      QueryExecutor
	Explainer     *explain.Explainer
	Metrics       *observability.Runtime
}

func NewRouter(options RouterOptions) http.Handler {
	startedAt := time.Now().UTC()
	mux := http.NewServeMux()

	mux.Handle("/api/health", HealthHandler(HealthOptions{
		Version:       options.AppVersion,
		StartedAt:     startedAt,
		HistoryDriver: options.HistoryDriver,
		HistoryPath:   options.HistoryPath,
		Session:       options.Session,
	}))
	mux.Handle("/api/profiles", ProfilesHandler(options))
	mux.Handle("/api/profiles/", ProfileDetailHandler(options))
	mux.Handle("/api/session/panels", PanelsHandler(options.Session))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    "query profiler",
			"version": options.AppVersion,
			"status":  "ok",
		})
	})

	return withCORS(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("{\"error\":\"internal server error\"}\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method+", OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
