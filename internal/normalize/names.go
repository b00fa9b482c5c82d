// Package normalize derives the normalized relational schema from the
// staging tables: key tables for categorical vocabularies, surrogate-keyed
// entity tables, and ordered many-to-many relation tables.
//
// Builders read staging rows in storage order, assign surrogate ids
// monotonically, and repair dataset inconsistencies by omitting rows whose
// references do not resolve. All writes go through the batched storage
// loader.
package normalize

import (
	"fmt"
	"strings"
)

// NamePool generates database identifiers (index names) that respect an
// engine's maximum identifier length. Names that fit are used verbatim;
// longer ones are truncated and uniquified with a numeric suffix.
//
// A pool is scoped to one schema generation pass. It is not safe for
// concurrent use.
type NamePool struct {
	maxLen int
	used   map[string]struct{}
}

// NewNamePool creates a pool for identifiers up to maxLen characters.
func NewNamePool(maxLen int) *NamePool {
	if maxLen < 8 {
		maxLen = 8
	}
	return &NamePool{maxLen: maxLen, used: make(map[string]struct{})}
}

// Name joins parts with underscores into an identifier, shortening and
// uniquifying it as needed. Identical part lists yield distinct names on
// repeated calls.
func (p *NamePool) Name(parts ...string) string {
	base := strings.Join(parts, "_")
	if len(base) <= p.maxLen {
		if _, taken := p.used[base]; !taken {
			p.used[base] = struct{}{}
			return base
		}
	}
	for n := 1; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		keep := p.maxLen - len(suffix)
		candidate := base
		if len(candidate) > keep {
			candidate = candidate[:keep]
		}
		candidate += suffix
		if _, taken := p.used[candidate]; !taken {
			p.used[candidate] = struct{}{}
			return candidate
		}
	}
}
