// Package history keeps a bounded record of analyzed profile documents so a
// profile loaded earlier in a session can be re-opened without pasting it
// again. The in-memory driver is the default; sqlite and postgres drivers
// survive restarts.
package history

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("history entry not found")

// Entry is one analyzed profile document plus the headline numbers shown in
// history listings. Document holds the sanitized JSON as submitted.
type Entry struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	LoadedAt       time.Time `json:"loaded_at"`
	Document       string    `json:"-"`
	TookMS         float64   `json:"took_ms"`
	ShardCount     int       `json:"shard_count"`
	ComponentCount int       `json:"component_count"`
}

type Store interface {
	// Put records an entry, assigning an ID when the entry has none, and
	// evicts the oldest entries beyond the store's limit.
	Put(ctx context.Context, entry *Entry) error
	// Get returns the entry with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)
	// List returns entries newest first, without documents, up to limit
	// (limit <= 0 means the store's own cap).
	List(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}

const DefaultLimit = 50

func newEntryID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("prof_%d", time.Now().UnixNano())
	}
	return "prof_" + hex.EncodeToString(buf[:])
}

func normalizeEntry(entry *Entry) *Entry {
	row := *entry
	if row.ID == "" {
		row.ID = newEntryID()
	}
	if row.LoadedAt.IsZero() {
		row.LoadedAt = time.Now().UTC()
	}
	return &row
}
