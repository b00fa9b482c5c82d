package normalize

import (
	"sync"
	"testing"
)

// TestKeyResolverIdempotence verifies that resolving the same code twice
// returns the same id and that distinct codes never collide.
func TestKeyResolverIdempotence(t *testing.T) {
	t.Parallel()

	r := NewKeyResolver(TableGenre)
	first, ok := r.Resolve("Documentary")
	if !ok || first != 1 {
		t.Fatalf("first Resolve = %d, %v; want 1, true", first, ok)
	}
	again, _ := r.Resolve("Documentary")
	if again != first {
		t.Errorf("second Resolve = %d, want %d", again, first)
	}

	other, _ := r.Resolve("Short")
	if other == first {
		t.Errorf("distinct codes share id %d", other)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

// TestKeyResolverFirstSeenOrder verifies that ids follow first-sight
// order, starting at 1.
func TestKeyResolverFirstSeenOrder(t *testing.T) {
	t.Parallel()

	r := NewKeyResolver(TableProfession)
	for i, code := range []string{"actor", "director", "composer"} {
		id, _ := r.Resolve(code)
		if id != int64(i)+1 {
			t.Errorf("Resolve(%q) = %d, want %d", code, id, i+1)
		}
	}
}

// TestKeyResolverFrozen verifies that a frozen resolver rejects unknown
// codes instead of allocating.
func TestKeyResolverFrozen(t *testing.T) {
	t.Parallel()

	r := NewKeyResolver(TableTitleAliasType)
	r.Seed(TitleAliasTypes...)
	r.Freeze()

	if id, ok := r.Resolve("dvd"); !ok || id != 2 {
		t.Errorf("Resolve(dvd) = %d, %v; want 2, true", id, ok)
	}
	if _, ok := r.Resolve("bogus"); ok {
		t.Error("frozen resolver allocated an unknown code")
	}
	if r.Len() != len(TitleAliasTypes) {
		t.Errorf("Len = %d, want %d", r.Len(), len(TitleAliasTypes))
	}
}

// TestKeyResolverConcurrentResolve verifies that concurrent resolution of
// the same codes yields one id per code.
func TestKeyResolverConcurrentResolve(t *testing.T) {
	t.Parallel()

	r := NewKeyResolver(TableGenre)
	codes := []string{"Comedy", "Drama", "Horror", "Short"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, code := range codes {
				r.Resolve(code)
			}
		}()
	}
	wg.Wait()

	if r.Len() != len(codes) {
		t.Fatalf("Len = %d, want %d", r.Len(), len(codes))
	}
	seen := map[int64]string{}
	for _, code := range codes {
		id, ok := r.Lookup(code)
		if !ok {
			t.Fatalf("Lookup(%q) missing", code)
		}
		if prev, dup := seen[id]; dup {
			t.Errorf("codes %q and %q share id %d", prev, code, id)
		}
		seen[id] = code
	}
}
