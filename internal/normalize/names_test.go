package normalize

import (
	"strings"
	"testing"
)

// TestNamePoolShortNamesPassThrough verifies that names within the limit
// are used verbatim.
func TestNamePoolShortNamesPassThrough(t *testing.T) {
	t.Parallel()

	pool := NewNamePool(63)
	if got := pool.Name("idx", "genre", "name"); got != "idx_genre_name" {
		t.Errorf("Name = %q", got)
	}
}

// TestNamePoolShortensLongNames verifies truncation plus a numeric suffix
// when the joined name exceeds the limit.
func TestNamePoolShortensLongNames(t *testing.T) {
	t.Parallel()

	pool := NewNamePool(24)
	got := pool.Name("idx", "title_alias_to_title_alias_type", "title_alias_id", "ordering")
	if len(got) > 24 {
		t.Fatalf("Name %q exceeds limit (%d chars)", got, len(got))
	}
	if !strings.HasSuffix(got, "_1") {
		t.Errorf("shortened name %q should carry a numeric suffix", got)
	}
}

// TestNamePoolUniquifiesCollisions verifies that equal inputs yield
// distinct identifiers, all within the limit.
func TestNamePoolUniquifiesCollisions(t *testing.T) {
	t.Parallel()

	pool := NewNamePool(20)
	seen := map[string]struct{}{}
	for i := 0; i < 10; i++ {
		name := pool.Name("idx", "participation", "title_id")
		if len(name) > 20 {
			t.Fatalf("name %q exceeds limit", name)
		}
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate name %q on call %d", name, i)
		}
		seen[name] = struct{}{}
	}
}

// TestAllTableDefsIndexNamesFitPostgres verifies that the generated schema
// respects the Postgres identifier limit out of the box.
func TestAllTableDefsIndexNamesFitPostgres(t *testing.T) {
	t.Parallel()

	const postgresLimit = 63
	seen := map[string]struct{}{}
	for _, def := range AllTableDefs(NewNamePool(postgresLimit)) {
		for _, ix := range def.Indexes {
			if len(ix.Name) > postgresLimit {
				t.Errorf("index %q on %s is %d chars, limit %d", ix.Name, def.Name, len(ix.Name), postgresLimit)
			}
			if _, dup := seen[ix.Name]; dup {
				t.Errorf("index name %q used twice", ix.Name)
			}
			seen[ix.Name] = struct{}{}
		}
	}
}
