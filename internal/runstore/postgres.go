package runstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for pair records.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresRecorder writes pair records into Postgres.
//
// Expected schema:
//
//	CREATE TABLE sweep_pairs (
//	    id BIGSERIAL PRIMARY KEY,
//	    run_id UUID NOT NULL,
//	    dataset TEXT NOT NULL,
//	    period TEXT NOT NULL,
//	    routes_fetched INT NOT NULL,
//	    routes_failed INT NOT NULL,
//	    csv_path TEXT,
//	    fetch_error TEXT,
//	    parse_error TEXT,
//	    started_at TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRecorder struct {
	pool  execCloser
	table string
}

// NewPostgresRecorder creates a Postgres-backed Recorder using the provided config.
func NewPostgresRecorder(ctx context.Context, cfg PostgresConfig) (*PostgresRecorder, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "sweep_pairs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresRecorder{pool: pool, table: table}, nil
}

// NewPostgresRecorderWithPool constructs a recorder from an existing pool
// (primarily for testing).
func NewPostgresRecorderWithPool(pool execCloser, table string) (*PostgresRecorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "sweep_pairs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresRecorder{pool: pool, table: table}, nil
}

// RecordPair inserts one pair outcome row.
func (r *PostgresRecorder) RecordPair(ctx context.Context, rec PairRecord) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(run_id, dataset, period, routes_fetched, routes_failed, csv_path, fetch_error, parse_error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, r.table)

	if _, err := r.pool.Exec(ctx, query,
		rec.RunID,
		rec.Dataset,
		rec.Period,
		rec.RoutesFetched,
		rec.RoutesFailed,
		rec.CSVPath,
		rec.FetchError,
		rec.ParseError,
		rec.StartedAt,
		rec.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert pair record: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (r *PostgresRecorder) Close() {
	r.pool.Close()
}
