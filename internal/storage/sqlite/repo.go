// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. It performs batched INSERTs inside a transaction; SQLite has
// no dedicated bulk-load API like Postgres COPY, but transactions keep
// performance acceptable even for the larger relation tables.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pimdb/internal/storage"
)

// SQLite has no practical identifier limit; this matches the conservative
// default the schema generation assumes for portability.
const maxIdentifierLength = 128

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite database. A bare file path or ":memory:"
// works; URI forms with parameters are passed through untouched.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", normalizeDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Builders keep a read cursor on a staging table open while inserting
	// into the table being built, and several builders may run at once, so
	// the pool must be big enough that writers never wait behind every
	// open cursor. WAL mode plus the busy timeout (set per connection via
	// the DSN) lets readers and the writer coexist.
	db.SetMaxOpenConns(16)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Repository{db: db}, nil
}

// normalizeDSN turns a bare path or ":memory:" into a URI DSN with the
// pragmas every pooled connection needs. DSNs that already carry
// parameters are left alone.
func normalizeDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	if dsn == ":memory:" {
		// A plain in-memory DSN would give every pooled connection its own
		// empty database.
		return "file::memory:?cache=shared&" + pragmas
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + "?" + pragmas
}

// CopyFrom inserts the given rows into table using a single transaction and
// a prepared INSERT statement. len(row) must equal len(columns) for every row.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		storage.QuoteIdent(table),
		strings.Join(storage.QuoteIdents(columns), ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Query runs a row-returning statement.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	return sqlRows{rows}, nil
}

// QueryValue scans a single value from a single-row result.
func (r *Repository) QueryValue(ctx context.Context, query string, dest any, args ...any) error {
	return r.db.QueryRowContext(ctx, query, args...).Scan(dest)
}

// TableExists reports whether table is present in the database.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT count(1) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: table exists %s: %w", table, err)
	}
	return n > 0, nil
}

// MaxIdentifierLength returns the assumed identifier limit.
func (r *Repository) MaxIdentifierLength() int { return maxIdentifierLength }

// Close closes the underlying database handle.
func (r *Repository) Close() error { return r.db.Close() }

// sqlRows adapts *sql.Rows to storage.Rows.
type sqlRows struct{ rows *sql.Rows }

func (r sqlRows) Next() bool             { return r.rows.Next() }
func (r sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRows) Err() error             { return r.rows.Err() }
func (r sqlRows) Close()                 { _ = r.rows.Close() }

func (r sqlRows) Columns() []string {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil
	}
	return cols
}
