// Package postgres stores raw vacancy documents in a Postgres JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

const (
	defaultTable = "raw_vacancies"

	// duplicate_table is raised when the index name is already taken.
	codeDuplicateTable  = "42P07"
	codeUniqueViolation = "23505"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for raw documents.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RawStore implements vacancy.RawStore on a table of (id, doc jsonb, stamps).
type RawStore struct {
	pool  pool
	table string
}

// New connects a pool and creates the table if needed.
func New(ctx context.Context, cfg Config) (*RawStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*RawStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RawStore{pool: p, table: table}, nil
}

// Migrate creates the raw table.
func (s *RawStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	doc JSONB NOT NULL,
	source_region_id INTEGER NOT NULL,
	run_id TEXT,
	fetched_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Wipe deletes every row.
func (s *RawStore) Wipe(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table))
	if err != nil {
		return 0, fmt.Errorf("wipe %s: %w", s.table, err)
	}
	return tag.RowsAffected(), nil
}

// EnsureUniqueID creates the unique index on id. An existing index yields
// vacancy.ErrIndexExists.
func (s *RawStore) EnsureUniqueID(ctx context.Context) error {
	query := fmt.Sprintf("CREATE UNIQUE INDEX %s_id_unique ON %s (id)", s.table, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		if pgCode(err) == codeDuplicateTable {
			return fmt.Errorf("create index on %s: %w", s.table, vacancy.ErrIndexExists)
		}
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}
	return nil
}

// InsertMany inserts documents one statement at a time so a failing row never
// blocks the rest. Rows skipped by ON CONFLICT count as duplicates.
func (s *RawStore) InsertMany(ctx context.Context, docs []vacancy.RawDocument) (vacancy.InsertResult, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (id, doc, source_region_id, run_id, fetched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`, s.table)

	var (
		result vacancy.InsertResult
		failed int
		first  error
	)
	for _, doc := range docs {
		stamped, err := doc.Stamped()
		if err == nil {
			var tag pgconn.CommandTag
			tag, err = s.pool.Exec(ctx, query, doc.ID, []byte(stamped), doc.SourceRegionID, doc.RunID, doc.FetchedAt)
			if err == nil {
				if tag.RowsAffected() == 0 {
					result.Duplicates++
				} else {
					result.Inserted++
				}
				continue
			}
			if pgCode(err) == codeUniqueViolation {
				result.Duplicates++
				continue
			}
		}
		failed++
		if first == nil {
			first = fmt.Errorf("insert vacancy %s: %w", doc.ID, err)
		}
	}
	if failed > 0 {
		return result, &vacancy.InsertionError{Failed: failed, Err: first}
	}
	return result, nil
}

// Scan streams every stored document.
func (s *RawStore) Scan(ctx context.Context, fn func(json.RawMessage) error) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT doc FROM %s", s.table))
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan %s row: %w", s.table, err)
		}
		if err := fn(json.RawMessage(doc)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RawStore) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
