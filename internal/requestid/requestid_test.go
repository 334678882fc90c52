package requestid

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnsureRequestGeneratesID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/api/profiles", nil)
	req, id := EnsureRequest(req)
	if id == "" {
		t.Fatal("EnsureRequest returned empty id")
	}
	if !strings.HasPrefix(id, "req-") {
		t.Fatalf("id = %q, want req- prefix", id)
	}
	if got := req.Header.Get(HeaderName); got != id {
		t.Fatalf("header = %q, want %q", got, id)
	}
	if got, ok := FromContext(req.Context()); !ok || got != id {
		t.Fatalf("FromContext = %q, %t", got, ok)
	}
}

func TestEnsureRequestKeepsInboundID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderName, "client-supplied-id")
	_, id := EnsureRequest(req)
	if id != "client-supplied-id" {
		t.Fatalf("id = %q", id)
	}
}

func TestFromHeadersFallbacks(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	if got := FromHeaders(req.Header); got != "corr-123" {
		t.Fatalf("FromHeaders = %q", got)
	}
}

func TestNormalizeRejectsUnsafeIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"ok-id_1.2:3", "ok-id_1.2:3"},
		{"  padded  ", "padded"},
		{"has space", ""},
		{"has\nnewline", ""},
		{strings.Repeat("a", 200), strings.Repeat("a", 128)},
	}
	for _, tt := range tests {
		if got := normalizeID(tt.raw); got != tt.want {
			t.Errorf("normalizeID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestWithContextEmptyIDIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := WithContext(context.Background(), "   ")
	if _, ok := FromContext(ctx); ok {
		t.Fatal("empty id should not be stored")
	}
}
