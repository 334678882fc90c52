package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aswath86/opensearch-query-profiler/migrations"
)

type SQLiteStore struct {
	Path  string
	db    *sql.DB
	limit int
	// SQLite allows only one writer at a time; serialize writes to avoid
	// SQLITE_BUSY contention when handlers record entries concurrently.
	writeMu sync.Mutex
}

func NewSQLiteStore(path string, limit int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	store := &SQLiteStore{
		Path:  path,
		db:    db,
		limit: limit,
	}
	if err := store.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.Apply(context.Background(), db, migrations.DriverSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	row := normalizeEntry(entry)
	entry.ID = row.ID
	entry.LoadedAt = row.LoadedAt

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := retrySQLiteBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
INSERT INTO profiles (id, source, loaded_at, document, took_ms, shard_count, component_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    source = excluded.source,
    loaded_at = excluded.loaded_at,
    document = excluded.document,
    took_ms = excluded.took_ms,
    shard_count = excluded.shard_count,
    component_count = excluded.component_count
`, row.ID, row.Source, row.LoadedAt.UTC().Format(time.RFC3339Nano), row.Document, row.TookMS, row.ShardCount, row.ComponentCount)
		if execErr != nil {
			return execErr
		}
		_, execErr = s.db.ExecContext(ctx, `
DELETE FROM profiles WHERE id NOT IN (
    SELECT id FROM profiles ORDER BY loaded_at DESC LIMIT ?
)`, s.limit)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("write history entry %q: %w", row.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source, loaded_at, document, took_ms, shard_count, component_count
FROM profiles WHERE id = ?`, id)

	entry, err := scanEntry(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read history entry %q: %w", id, err)
	}
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, loaded_at, '', took_ms, shard_count, component_count
FROM profiles ORDER BY loaded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		entry, scanErr := scanEntry(rows, false)
		if scanErr != nil {
			return nil, fmt.Errorf("scan history entry: %w", scanErr)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) configure() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return fmt.Errorf("enable sqlite WAL mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		return fmt.Errorf("set sqlite synchronous mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return fmt.Errorf("set sqlite busy timeout: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, withDocument bool) (*Entry, error) {
	var (
		entry    Entry
		loadedAt string
	)
	if err := row.Scan(&entry.ID, &entry.Source, &loadedAt, &entry.Document, &entry.TookMS, &entry.ShardCount, &entry.ComponentCount); err != nil {
		return nil, err
	}
	if !withDocument {
		entry.Document = ""
	}
	if ts, err := time.Parse(time.RFC3339Nano, loadedAt); err == nil {
		entry.LoadedAt = ts
	}
	return &entry, nil
}

const (
	sqliteBusyMaxRetries     = 12
	sqliteBusyInitialBackoff = 5 * time.Millisecond
	sqliteBusyMaxBackoff     = 250 * time.Millisecond
)

// retrySQLiteBusy retries transient lock contention so entries are not dropped
// during concurrent writes.
func retrySQLiteBusy(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		err   error
		timer *time.Timer
	)
	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
	defer stopTimer()

	for retries := 0; ; retries++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusyError(err) || retries >= sqliteBusyMaxRetries {
			return err
		}

		wait := sqliteBusyInitialBackoff << retries
		if wait > sqliteBusyMaxBackoff {
			wait = sqliteBusyMaxBackoff
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			stopTimer()
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "sqlite_busy") || strings.Contains(value, "database is locked")
}
