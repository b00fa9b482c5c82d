// Package storage contains storage-agnostic contracts and utilities for the
// pipeline: the Repository interface every backend implements, a factory
// registry keyed by storage kind, a generic batched loader, and a small DDL
// model rendered into CREATE/DROP statements.
//
// Backends (Postgres, SQLite) register themselves at init time; callers stay
// fully backend-agnostic and pick a backend purely through the connection
// string.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Rows is the minimal result-set iterator shared by all backends. It mirrors
// database/sql semantics: call Next, then Scan, and always Close.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()

	// Columns returns the result column names, or nil when unavailable.
	Columns() []string
}

// Repository abstracts a relational database engine for the pipeline. All
// bulk writes go through CopyFrom; backends implement it with their most
// efficient primitive (Postgres COPY, SQLite transactional multi-insert).
type Repository interface {
	// CopyFrom bulk-inserts rows (aligned to columns order) into table and
	// returns the number of rows inserted.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Exec runs a statement (typically DDL) without results.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query runs a row-returning statement.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryValue scans the single value of a single-row result into dest.
	QueryValue(ctx context.Context, sql string, dest any, args ...any) error

	// TableExists reports whether a table is present in the connected database.
	TableExists(ctx context.Context, table string) (bool, error)

	// MaxIdentifierLength is the engine's identifier length limit, consulted
	// when generating index names.
	MaxIdentifierLength() int

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Kind selects the backend ("postgres", "sqlite"). Empty means: infer
	// from the DSN via KindFromDSN.
	Kind string

	// DSN is the backend connection string. A bare file path is treated as a
	// SQLite database file.
	DSN string
}

// Factory constructs a backend Repository.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a backend factory for the given storage kind. It is
// typically called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg, inferring the backend kind from the DSN
// when cfg.Kind is empty.
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindFromDSN(cfg.DSN)
	}
	regMu.RLock()
	fn, ok := factories[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (did you import storage/all?)", kind)
	}
	repo, err := fn(ctx, Config{Kind: kind, DSN: cfg.DSN})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", kind, err)
	}
	return repo, nil
}

// KindFromDSN infers the backend kind from a connection string. Anything that
// is not recognizably Postgres is treated as a SQLite path, mirroring the
// "bare path means local database file" convention.
func KindFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}
