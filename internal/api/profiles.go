package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/explain"
	"github.com/aswath86/opensearch-query-profiler/internal/history"
	"github.com/aswath86/opensearch-query-profiler/internal/profile"
	"github.com/aswath86/opensearch-query-profiler/internal/search"
	"github.com/aswath86/opensearch-query-profiler/internal/session"
)

const (
	defaultComponentLimit = 10
	maxComponentLimit     = 100

	// Pasted documents are read with headroom above the parser's own ceiling
	// so oversized input surfaces as a 413 instead of a truncated read.
	maxRequestBody = profile.MaxDocumentSize + 1<<20
)

type loadRequest struct {
	Document string `json:"document"`
}

type fetchRequest struct {
	Index string `json:"index"`
	Query string `json:"query"`
}

type loadResponse struct {
	ID             string  `json:"id"`
	Source         string  `json:"source"`
	TookMS         float64 `json:"took_ms"`
	HasPhases      bool    `json:"has_phases"`
	ShardCount     int     `json:"shard_count"`
	ComponentCount int     `json:"component_count"`
	LargeProfile   bool    `json:"large_profile"`
}

// ProfilesHandler serves POST (load a pasted document) and GET (history list)
// at /api/profiles.
func ProfilesHandler(options RouterOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handleLoadProfile(w, r, options)
		case http.MethodGet:
			handleListProfiles(w, r, options)
		default:
			w.Header().Set("Allow", "GET, POST, OPTIONS")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

// ProfileDetailHandler serves /api/profiles/{...}: the fetch operation, the
// current session views, and stored history entries.
func ProfileDetailHandler(options RouterOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
		if rest == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		head, tail, _ := strings.Cut(rest, "/")
		switch head {
		case "fetch":
			if !requireMethod(w, r, http.MethodPost) {
				return
			}
			handleFetchProfile(w, r, options)
		case "current":
			handleCurrentProfile(w, r, options, tail)
		default:
			if tail != "" {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			if !requireMethod(w, r, http.MethodGet) {
				return
			}
			handleProfileByID(w, r, options, head)
		}
	})
}

func handleLoadProfile(w http.ResponseWriter, r *http.Request, options RouterOptions) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	var req loadRequest
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Document) == "" {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object with a non-empty document field")
		return
	}

	loadDocument(w, r, options, req.Document, "paste")
}

func handleFetchProfile(w http.ResponseWriter, r *http.Request, options RouterOptions) {
	if options.Executor == nil {
		writeError(w, http.StatusServiceUnavailable, "no cluster configured")
		return
	}

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid fetch request body")
		return
	}

	raw, err := options.Executor.ProfileSearch(r.Context(), req.Index, req.Query)
	if err != nil {
		options.Metrics.RecordClusterFetch(req.Index, false)

		var fetchErr *search.FetchError
		switch {
		case errors.As(err, &fetchErr):
			if fetchErr.StatusCode == http.StatusUnauthorized || fetchErr.StatusCode == http.StatusForbidden {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, r.Context().Err()):
			writeError(w, http.StatusGatewayTimeout, "cluster request timed out")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	options.Metrics.RecordClusterFetch(req.Index, true)

	source := "fetch"
	if index := strings.TrimSpace(req.Index); index != "" {
		source = "fetch:" + index
	}
	loadDocument(w, r, options, raw, source)
}

// loadDocument sanitizes, parses, and analyzes a document, then swaps it into
// the session. The session keeps its previous profile when any stage fails.
func loadDocument(w http.ResponseWriter, r *http.Request, options RouterOptions, raw, source string) {
	doc, err := profile.ParseDocument(raw)
	if err != nil {
		options.Metrics.RecordProfileLoadFailure(loadFailureReason(err))
		writeLoadError(w, err)
		return
	}

	report, err := profile.Analyze(doc)
	if err != nil {
		options.Metrics.RecordProfileLoadFailure(loadFailureReason(err))
		writeLoadError(w, err)
		return
	}

	loadedAt := time.Now().UTC()
	if options.Session != nil {
		options.Session.Load(report, raw, source, loadedAt)
	}
	options.Metrics.RecordProfileLoad(source)

	entry := &history.Entry{
		Source:         source,
		LoadedAt:       loadedAt,
		Document:       raw,
		TookMS:         report.TookMS,
		ShardCount:     report.ShardCount(),
		ComponentCount: len(report.Components),
	}
	if options.History != nil {
		if err := options.History.Put(r.Context(), entry); err != nil {
			slog.Warn("failed to record profile in history", "source", source, "error", err)
		}
	}

	large := report.ShardCount() > profile.LargeProfileShardCount
	if large {
		slog.Warn("large profile loaded", "shards", report.ShardCount(), "source", source)
	}

	writeJSON(w, http.StatusOK, loadResponse{
		ID:             entry.ID,
		Source:         source,
		TookMS:         report.TookMS,
		HasPhases:      report.HasPhases,
		ShardCount:     report.ShardCount(),
		ComponentCount: len(report.Components),
		LargeProfile:   large,
	})
}

func writeLoadError(w http.ResponseWriter, err error) {
	var (
		tooLarge  *profile.TraceTooLargeError
		malformed *profile.MalformedTraceError
		missing   *profile.MissingProfileError
	)
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &missing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to analyze profile")
	}
}

func loadFailureReason(err error) string {
	var (
		tooLarge  *profile.TraceTooLargeError
		malformed *profile.MalformedTraceError
		missing   *profile.MissingProfileError
	)
	switch {
	case errors.As(err, &tooLarge):
		return "too_large"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &missing):
		return "missing_profile"
	default:
		return "other"
	}
}

func handleListProfiles(w http.ResponseWriter, r *http.Request, options RouterOptions) {
	if options.History == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}

	entries, err := options.History.List(r.Context(), parseLimit(r, 0, 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func handleProfileByID(w http.ResponseWriter, r *http.Request, options RouterOptions, id string) {
	if options.History == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	entry, err := options.History.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read profile")
		return
	}

	doc, err := profile.ParseDocument(entry.Document)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored profile is unreadable")
		return
	}
	report, err := profile.Analyze(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored profile is unreadable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entry":  entry,
		"report": report,
	})
}

func handleCurrentProfile(w http.ResponseWriter, r *http.Request, options RouterOptions, view string) {
	if view == "explain" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		handleExplain(w, r, options)
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	report, meta, ok := currentReport(options.Session)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile loaded")
		return
	}

	switch view {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{
			"source":    meta.Source,
			"loaded_at": meta.LoadedAt,
			"report":    report,
		})
	case "components":
		limit := parseLimit(r, defaultComponentLimit, maxComponentLimit)
		components := report.TopComponents(limit)
		items := make([]componentView, 0, len(components))
		for _, component := range components {
			percentage := profile.PercentageOf(component.TimeMS, report.TookMS)
			items = append(items, componentView{
				ComponentRef: component,
				Percentage:   percentage,
				Severity:     profile.SeverityFor(percentage),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case "phases":
		if !report.HasPhases {
			writeError(w, http.StatusNotFound, "profile has no phase timings")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": report.Phases})
	case "operations":
		shardIdx, err := parseIndexParam(r, "shard")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		searchIdx, err := parseIndexParam(r, "search")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		operations, ok := report.OperationsFor(shardIdx, searchIdx)
		if !ok {
			writeError(w, http.StatusNotFound, "no such shard or search")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": operations})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type componentView struct {
	profile.ComponentRef
	Percentage float64 `json:"percentage"`
	Severity   string  `json:"severity"`
}

func handleExplain(w http.ResponseWriter, r *http.Request, options RouterOptions) {
	if !options.Explainer.Configured() {
		writeError(w, http.StatusServiceUnavailable, "explain is not configured")
		return
	}

	report, _, ok := currentReport(options.Session)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile loaded")
		return
	}

	narrative, err := options.Explainer.Explain(r.Context(), report)
	if err != nil {
		if errors.Is(err, explain.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "explain is not configured")
			return
		}
		writeError(w, http.StatusBadGateway, "explain request failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": narrative})
}

func currentReport(s *session.Session) (*profile.Report, session.Meta, bool) {
	if s == nil {
		return nil, session.Meta{}, false
	}
	report, ok := s.Current()
	if !ok {
		return nil, session.Meta{}, false
	}
	meta, _ := s.CurrentMeta()
	return report, meta, true
}

func parseLimit(r *http.Request, fallback, max int) int {
	value := strings.TrimSpace(r.URL.Query().Get("limit"))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if max > 0 && parsed > max {
		return max
	}
	return parsed
}

func parseIndexParam(r *http.Request, name string) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return parsed, nil
}
