package session

import (
	"testing"
	"time"

	"github.com/aswath86/opensearch-query-profiler/internal/profile"
)

func TestParsePanelKey(t *testing.T) {
	t.Parallel()

	key, err := ParsePanelKey("2/0/query/3")
	if err != nil {
		t.Fatalf("ParsePanelKey() error: %v", err)
	}
	want := PanelKey{Shard: 2, Search: 0, Kind: "query", Position: 3}
	if key != want {
		t.Fatalf("key=%+v, want %+v", key, want)
	}
	if key.String() != "2/0/query/3" {
		t.Fatalf("String()=%q, want round-trip", key.String())
	}

	invalid := []string{"", "1/2/3", "a/0/query/1", "0/0//1", "0/0/query/x", "0/0/query/1/extra"}
	for _, raw := range invalid {
		if _, err := ParsePanelKey(raw); err == nil {
			t.Fatalf("ParsePanelKey(%q) succeeded, want error", raw)
		}
	}
}

func TestSessionLoadSwapsSnapshot(t *testing.T) {
	t.Parallel()

	s := New()
	if _, ok := s.Current(); ok {
		t.Fatal("Current() ok on empty session, want false")
	}

	first := &profile.Report{TookMS: 1}
	s.Load(first, "{}", "paste", time.Now())

	got, ok := s.Current()
	if !ok || got != first {
		t.Fatalf("Current()=%v ok=%v, want first report", got, ok)
	}
	meta, ok := s.CurrentMeta()
	if !ok || meta.Source != "paste" {
		t.Fatalf("CurrentMeta()=%+v ok=%v, want paste source", meta, ok)
	}

	second := &profile.Report{TookMS: 2}
	s.Load(second, "{}", "fetch", time.Now())
	if got, _ := s.Current(); got != second {
		t.Fatal("Current() did not swap to second report")
	}
}

func TestSessionPanelToggleDoesNotTouchReport(t *testing.T) {
	t.Parallel()

	s := New()
	report := &profile.Report{TookMS: 3}
	s.Load(report, "{}", "paste", time.Now())

	key := PanelKey{Shard: 0, Search: 0, Kind: "query", Position: 1}
	if !s.TogglePanel(key) {
		t.Fatal("TogglePanel() first toggle=false, want true")
	}
	if !s.PanelOpen(key) {
		t.Fatal("PanelOpen()=false after toggle on")
	}
	if s.TogglePanel(key) {
		t.Fatal("TogglePanel() second toggle=true, want false")
	}

	if got, _ := s.Current(); got != report {
		t.Fatal("report snapshot changed across toggles")
	}
}

func TestSessionLoadResetsPanels(t *testing.T) {
	t.Parallel()

	s := New()
	s.Load(&profile.Report{}, "{}", "paste", time.Now())
	key := PanelKey{Shard: 1, Search: 0, Kind: "aggregation", Position: 0}
	s.SetPanel(key, true)

	if panels := s.Panels(); len(panels) != 1 || !panels[key.String()] {
		t.Fatalf("Panels()=%v, want one open panel", panels)
	}

	s.Load(&profile.Report{}, "{}", "fetch", time.Now())
	if panels := s.Panels(); len(panels) != 0 {
		t.Fatalf("Panels()=%v after reload, want reset", panels)
	}
}
