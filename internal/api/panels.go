package api

import (
	"encoding/json"
	"net/http"

	"github.com/aswath86/opensearch-query-profiler/internal/session"
)

type panelUpdateRequest struct {
	Panel  string `json:"panel"`
	Toggle bool   `json:"toggle"`
	Open   *bool  `json:"open,omitempty"`
}

type panelUpdateResponse struct {
	Panel string `json:"panel"`
	Open  bool   `json:"open"`
}

// PanelsHandler serves the per-session expanded-panel state: GET returns the
// open panels, PUT toggles or sets one.
func PanelsHandler(s *session.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			writeError(w, http.StatusServiceUnavailable, "no session")
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"panels": s.Panels()})
		case http.MethodPut:
			var req panelUpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid panel update body")
				return
			}
			key, err := session.ParsePanelKey(req.Panel)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			var open bool
			if req.Open != nil {
				s.SetPanel(key, *req.Open)
				open = *req.Open
			} else {
				open = s.TogglePanel(key)
			}
			writeJSON(w, http.StatusOK, panelUpdateResponse{Panel: key.String(), Open: open})
		default:
			w.Header().Set("Allow", "GET, PUT, OPTIONS")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}
