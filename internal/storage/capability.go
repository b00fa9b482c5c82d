package storage

import (
	"context"
	"io"
)

// FileCopier is an optional backend capability: streaming an entire raw
// dataset file into a table through an engine-specific bulk path (e.g.
// Postgres COPY FROM STDIN). Only the named columns are loaded from the
// file; any other table columns take their defaults. Callers type-assert
// and fall back to batched CopyFrom when the backend does not implement it
// or the fast path fails.
type FileCopier interface {
	CopyFile(ctx context.Context, table string, columns []string, src io.Reader) (int64, error)
}
