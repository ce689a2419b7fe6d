// Package postgres records crawled pages in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "crawled_pages"

// Page outcomes written to the status column.
const (
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
)

// PageLogConfig controls the Postgres connection pool used for page rows.
type PageLogConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PageRecord is one crawl attempt.
type PageRecord struct {
	JobID      string
	URL        string
	Title      string
	WordCount  int
	Status     string
	ErrorKind  string
	StatusCode int
	Duration   time.Duration
	FetchedAt  time.Time
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PageLog writes crawl attempts into Postgres.
type PageLog struct {
	pool  execCloser
	table string
}

// NewPageLog connects a pool using cfg.
func NewPageLog(ctx context.Context, cfg PageLogConfig) (*PageLog, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	return &PageLog{pool: pool, table: table}, nil
}

// NewPageLogWithPool builds a PageLog over an existing pool.
func NewPageLogWithPool(pool execCloser, table string) (*PageLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PageLog{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the pool.
func (l *PageLog) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// RecordPage inserts one row.
func (l *PageLog) RecordPage(ctx context.Context, rec PageRecord) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("page log is not configured")
	}
	if rec.URL == "" {
		return fmt.Errorf("record url is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	url,
	title,
	word_count,
	status,
	error_kind,
	status_code,
	duration_ms,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, l.table)

	args := []any{
		nullable(rec.JobID),
		rec.URL,
		rec.Title,
		rec.WordCount,
		rec.Status,
		nullable(rec.ErrorKind),
		rec.StatusCode,
		rec.Duration.Milliseconds(),
		rec.FetchedAt,
	}
	if _, err := l.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert crawled page: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
