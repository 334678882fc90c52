package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/session"
)

type HealthOptions struct {
	Version       string
	StartedAt     time.Time
	HistoryDriver string
	HistoryPath   string
	Session       *session.Session
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSec     int64  `json:"uptime_sec"`
	HistoryDriver string `json:"history_driver"`
	ProfileLoaded bool   `json:"profile_loaded"`
	DBSizeBytes   int64  `json:"db_size_bytes,omitempty"`
}

func HealthHandler(options HealthOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}

		uptime := time.Since(options.StartedAt)
		profileLoaded := false
		if options.Session != nil {
			_, profileLoaded = options.Session.Current()
		}

		dbSizeBytes := int64(0)
		if strings.EqualFold(options.HistoryDriver, "sqlite") && options.HistoryPath != "" {
			if info, err := os.Stat(options.HistoryPath); err == nil {
				dbSizeBytes = info.Size()
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:        "ok",
			Version:       options.Version,
			UptimeSec:     int64(uptime.Seconds()),
			HistoryDriver: options.HistoryDriver,
			ProfileLoaded: profileLoaded,
			DBSizeBytes:   dbSizeBytes,
		})
	})
}
