package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aswath86/opensearch-query-profiler/migrations"
)

type PostgresStore struct {
	DSN   string
	db    *sql.DB
	limit int
}

func NewPostgresStore(dsn string, limit int) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	store := &PostgresStore{
		DSN:   dsn,
		db:    db,
		limit: limit,
	}
	if err := migrations.Apply(context.Background(), db, migrations.DriverPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	row := normalizeEntry(entry)
	entry.ID = row.ID
	entry.LoadedAt = row.LoadedAt

	_, err := s.db.ExecContext(ctx, `
INSERT INTO profiles (id, source, loaded_at, document, took_ms, shard_count, component_count)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    source = EXCLUDED.source,
    loaded_at = EXCLUDED.loaded_at,
    document = EXCLUDED.document,
    took_ms = EXCLUDED.took_ms,
    shard_count = EXCLUDED.shard_count,
    component_count = EXCLUDED.component_count
`, row.ID, row.Source, row.LoadedAt.UTC(), row.Document, row.TookMS, row.ShardCount, row.ComponentCount)
	if err != nil {
		return fmt.Errorf("write history entry %q: %w", row.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
DELETE FROM profiles WHERE id NOT IN (
    SELECT id FROM profiles ORDER BY loaded_at DESC LIMIT $1
)`, s.limit)
	if err != nil {
		return fmt.Errorf("trim history entries: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	var (
		entry    Entry
		loadedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, source, loaded_at, document, took_ms, shard_count, component_count
FROM profiles WHERE id = $1`, id).Scan(
		&entry.ID, &entry.Source, &loadedAt, &entry.Document,
		&entry.TookMS, &entry.ShardCount, &entry.ComponentCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read history entry %q: %w", id, err)
	}
	entry.LoadedAt = loadedAt
	return &entry, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, loaded_at, took_ms, shard_count, component_count
FROM profiles ORDER BY loaded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			entry    Entry
			loadedAt time.Time
		)
		if scanErr := rows.Scan(&entry.ID, &entry.Source, &loadedAt, &entry.TookMS, &entry.ShardCount, &entry.ComponentCount); scanErr != nil {
			return nil, fmt.Errorf("scan history entry: %w", scanErr)
		}
		entry.LoadedAt = loadedAt
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	return out, nil
}
