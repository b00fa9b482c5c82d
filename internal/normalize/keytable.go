package normalize

import (
	"context"
	"sync"

	"pimdb/internal/storage"
)

// KeyResolver owns the code-to-id mapping of one categorical vocabulary
// (title types, genres, professions, alias types, characters) during a
// build run. The first resolution of an unseen code allocates the next id,
// starting at 1; later resolutions return the same id. Access is
// serialized internally so id allocation stays deterministic when builders
// share a vocabulary.
type KeyResolver struct {
	mu     sync.Mutex
	table  string
	ids    map[string]int64
	codes  []string // in id order
	frozen bool
}

// NewKeyResolver creates an empty resolver writing to the given key table.
func NewKeyResolver(table string) *KeyResolver {
	return &KeyResolver{table: table, ids: make(map[string]int64)}
}

// Seed registers codes in order, allocating ids for the unseen ones.
func (r *KeyResolver) Seed(codes ...string) {
	for _, code := range codes {
		r.Resolve(code)
	}
}

// Freeze closes the vocabulary: Resolve no longer allocates and behaves
// like Lookup. Used for fixed vocabularies where unknown codes must be
// dropped instead of admitted.
func (r *KeyResolver) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve returns the id for code, allocating the next id on first sight.
// On a frozen resolver unknown codes report ok=false.
func (r *KeyResolver) Resolve(code string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[code]; ok {
		return id, true
	}
	if r.frozen {
		return 0, false
	}
	id := int64(len(r.codes)) + 1
	r.ids[code] = id
	r.codes = append(r.codes, code)
	return id, true
}

// Lookup returns the id for code without allocating.
func (r *KeyResolver) Lookup(code string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[code]
	return id, ok
}

// Table returns the key table this resolver flushes to.
func (r *KeyResolver) Table() string { return r.table }

// Len returns the number of codes seen so far.
func (r *KeyResolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// Flush writes the full mapping to the resolver's key table in id order.
func (r *KeyResolver) Flush(ctx context.Context, repo storage.Repository, batchSize int) (int64, error) {
	r.mu.Lock()
	codes := make([]string, len(r.codes))
	copy(codes, r.codes)
	r.mu.Unlock()

	out := make(chan []any, batchSize)
	go func() {
		defer close(out)
		for i, code := range codes {
			select {
			case out <- []any{int64(i) + 1, code}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return storage.LoadBatches(ctx, r.table, keyTableColumns, out, batchSize, storage.RepoCopyFn(repo, r.table))
}
