// Package postgres implements a Postgres storage.Repository using pgx v5.
// Bulk writes use the COPY protocol via pgx's CopyFrom; staging loads can
// additionally stream a raw TSV file straight through COPY FROM STDIN.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pimdb/internal/storage"
)

// See https://www.postgresql.org/docs/current/sql-syntax-lexical.html#SQL-SYNTAX-IDENTIFIERS
const maxIdentifierLength = 63

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects a pgx pool and verifies the connection.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// CopyFrom bulk-inserts rows into table using the COPY protocol.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("copy into %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
		}
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// CopyFile streams a raw TSV file (header line included) into table through
// COPY FROM STDIN. This is the opportunistic fast path for staging loads; it
// bypasses row decoding entirely and lets Postgres parse the file.
//
// Some IMDb text fields start with a double quote that is never closed before
// the next tab, so with CSV defaults COPY would read a very long bogus field.
// The escape and quote characters are therefore set to control characters
// that cannot appear in the data.
func (r *Repository) CopyFile(ctx context.Context, table string, columns []string, src io.Reader) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	command := fmt.Sprintf(
		`copy %s (%s) from stdin with (delimiter E'\t', encoding 'utf-8', escape E'\f', format csv, header, null '\N', quote E'\v')`,
		storage.QuoteIdent(table),
		strings.Join(storage.QuoteIdents(columns), ", "),
	)
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, src, command)
	if err != nil {
		return 0, fmt.Errorf("copy file into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Exec runs a statement without results.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Query runs a row-returning statement.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) (storage.Rows, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return pgRows{rows}, nil
}

// QueryValue scans a single value from a single-row result.
func (r *Repository) QueryValue(ctx context.Context, sql string, dest any, args ...any) error {
	return r.pool.QueryRow(ctx, sql, args...).Scan(dest)
}

// TableExists reports whether table is present in the connected database.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var regclass *string
	if err := r.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", storage.QuoteIdent(table)).Scan(&regclass); err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	return regclass != nil && *regclass != "", nil
}

// MaxIdentifierLength returns the Postgres identifier limit.
func (r *Repository) MaxIdentifierLength() int { return maxIdentifierLength }

// Close releases the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// pgRows adapts pgx.Rows to storage.Rows.
type pgRows struct{ rows pgx.Rows }

func (r pgRows) Next() bool             { return r.rows.Next() }
func (r pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r pgRows) Err() error             { return r.rows.Err() }
func (r pgRows) Close()                 { r.rows.Close() }

func (r pgRows) Columns() []string {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols
}
