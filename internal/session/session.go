// Package session owns the presentation-side state of the profiler: the
// currently loaded report snapshot and the expanded/collapsed state of
// breakdown panels. The analysis core never sees any of this.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/profile"
)

// PanelKey addresses one breakdown panel by its structural position, not
// by an ad hoc string path. Kind distinguishes query, collector, and
// aggregation panels at the same position.
type PanelKey struct {
	Shard    int    `json:"shard"`
	Search   int    `json:"search"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
}

func (k PanelKey) String() string {
	return fmt.Sprintf("%d/%d/%s/%d", k.Shard, k.Search, k.Kind, k.Position)
}

// ParsePanelKey parses the "shard/search/kind/position" form produced by
// PanelKey.String.
func ParsePanelKey(raw string) (PanelKey, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 4 {
		return PanelKey{}, fmt.Errorf("panel key must have 4 segments (got %q)", raw)
	}
	shard, err := strconv.Atoi(parts[0])
	if err != nil {
		return PanelKey{}, fmt.Errorf("panel key shard segment: %w", err)
	}
	search, err := strconv.Atoi(parts[1])
	if err != nil {
		return PanelKey{}, fmt.Errorf("panel key search segment: %w", err)
	}
	kind := strings.TrimSpace(parts[2])
	if kind == "" {
		return PanelKey{}, fmt.Errorf("panel key kind segment is empty (got %q)", raw)
	}
	position, err := strconv.Atoi(parts[3])
	if err != nil {
		return PanelKey{}, fmt.Errorf("panel key position segment: %w", err)
	}
	return PanelKey{Shard: shard, Search: search, Kind: kind, Position: position}, nil
}

// Session holds the active report and panel state. Loads replace the
// snapshot atomically; a failed load simply never calls Load, so the
// previous report stays active.
type Session struct {
	mu       sync.RWMutex
	report   *profile.Report
	document string
	source   string
	loadedAt time.Time
	panels   map[PanelKey]bool
}

func New() *Session {
	return &Session{
		panels: make(map[PanelKey]bool),
	}
}

// Load swaps in a freshly analyzed report. Panel state is reset because
// panel keys address positions in the replaced tree.
func (s *Session) Load(report *profile.Report, document, source string, loadedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	s.document = document
	s.source = source
	s.loadedAt = loadedAt.UTC()
	s.panels = make(map[PanelKey]bool)
}

// Current returns the active report, or false when nothing is loaded.
func (s *Session) Current() (*profile.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.report != nil
}

// Meta describes the active load for status surfaces.
type Meta struct {
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Session) CurrentMeta() (Meta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return Meta{}, false
	}
	return Meta{Source: s.source, LoadedAt: s.loadedAt}, true
}

// TogglePanel flips one panel and returns its new state. Toggling is pure
// presentation state; the report snapshot is untouched.
func (s *Session) TogglePanel(key PanelKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := !s.panels[key]
	if next {
		s.panels[key] = true
	} else {
		delete(s.panels, key)
	}
	return next
}

func (s *Session) SetPanel(key PanelKey, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.panels[key] = true
	} else {
		delete(s.panels, key)
	}
}

func (s *Session) PanelOpen(key PanelKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panels[key]
}

// Panels returns a snapshot of the open panels keyed by their string form.
func (s *Session) Panels() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.panels))
	for key, open := range s.panels {
		if open {
			out[key.String()] = true
		}
	}
	return out
}
