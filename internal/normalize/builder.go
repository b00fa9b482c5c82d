package normalize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"pimdb/internal/dataset"
	"pimdb/internal/metrics"
	"pimdb/internal/storage"
)

// Result summarizes one build stage: rows read from staging, rows written
// to the normalized table, and rows dropped because a reference did not
// resolve.
type Result struct {
	Table   string
	Read    int64
	Written int64
	Dropped int64
	Elapsed time.Duration
}

// titleOrdering is the composite natural key shared by title.akas and
// title.principals rows.
type titleOrdering struct {
	tconst   string
	ordering int64
}

// Builder derives all normalized tables from the staging tables of one
// database. It owns the per-vocabulary key resolvers and the natural-key to
// surrogate-id maps that dependent stages consume, so stages must run in
// dependency order (entities before the relations referencing them).
type Builder struct {
	repo      storage.Repository
	batchSize int

	TitleTypes  *KeyResolver
	Genres      *KeyResolver
	Professions *KeyResolver
	AliasTypes  *KeyResolver
	Characters  *KeyResolver

	nameIDs          map[string]int64
	titleIDs         map[string]int64
	aliasIDs         map[titleOrdering]int64
	participationIDs map[titleOrdering]int64

	// Distinct values already warned about, to keep repair warnings from
	// flooding the log.
	unknownAliasTypes map[string]struct{}
	badCharacterJSON  map[string]struct{}

	mu      sync.Mutex
	results []Result
}

// NewBuilder creates a Builder writing through repo in batches of
// batchSize rows. The alias-type vocabulary is fixed, so its resolver is
// seeded and frozen up front; every other vocabulary grows on first sight.
func NewBuilder(repo storage.Repository, batchSize int) *Builder {
	b := &Builder{
		repo:      repo,
		batchSize: batchSize,

		TitleTypes:  NewKeyResolver(TableTitleType),
		Genres:      NewKeyResolver(TableGenre),
		Professions: NewKeyResolver(TableProfession),
		AliasTypes:  NewKeyResolver(TableTitleAliasType),
		Characters:  NewKeyResolver(TableCharacter),

		unknownAliasTypes: make(map[string]struct{}),
		badCharacterJSON:  make(map[string]struct{}),
	}
	b.AliasTypes.Seed(TitleAliasTypes...)
	b.AliasTypes.Freeze()
	return b
}

// Results returns the per-stage summaries recorded so far.
func (b *Builder) Results() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Result, len(b.results))
	copy(out, b.results)
	return out
}

// CreateTables drops obsolete and current normalized tables and creates the
// full normalized schema from scratch. Index names are shortened to the
// backend's identifier limit.
func (b *Builder) CreateTables(ctx context.Context) error {
	log.Printf("creating normalized tables")
	for _, name := range ObsoleteTableNames {
		if err := b.repo.Exec(ctx, storage.BuildDropTableSQL(name)); err != nil {
			return fmt.Errorf("drop obsolete table %s: %w", name, err)
		}
	}
	defs := AllTableDefs(NewNamePool(b.repo.MaxIdentifierLength()))
	for i := len(defs) - 1; i >= 0; i-- {
		if err := b.repo.Exec(ctx, storage.BuildDropTableSQL(defs[i].Name)); err != nil {
			return fmt.Errorf("drop table %s: %w", defs[i].Name, err)
		}
	}
	for _, def := range defs {
		if err := storage.CreateTable(ctx, b.repo, def); err != nil {
			return err
		}
	}
	return nil
}

// FlushKeyTables writes every vocabulary mapping to its key table in id
// order. Must run after all entity and relation stages.
func (b *Builder) FlushKeyTables(ctx context.Context) error {
	for _, r := range []*KeyResolver{b.TitleTypes, b.Genres, b.Professions, b.AliasTypes, b.Characters} {
		start := time.Now()
		n, err := r.Flush(ctx, b.repo, b.batchSize)
		if err != nil {
			return fmt.Errorf("flush key table %s: %w", r.Table(), err)
		}
		b.record(Result{Table: r.Table(), Read: int64(r.Len()), Written: n, Elapsed: time.Since(start)})
	}
	return nil
}

func (b *Builder) record(res Result) {
	logAdded(res.Table, res.Written, res.Elapsed)
	metrics.RecordRows(res.Table, "inserted", res.Written)
	metrics.RecordRows(res.Table, "dangling", res.Dropped)
	if res.Elapsed > 0 {
		metrics.RecordThroughput(res.Table, float64(res.Written)/res.Elapsed.Seconds())
	}
	b.mu.Lock()
	b.results = append(b.results, res)
	b.mu.Unlock()
}

// load runs produce and the batched loader concurrently: produce emits
// rows, the loader drains them into table. Returns rows written.
func (b *Builder) load(
	ctx context.Context,
	table string,
	columns []string,
	produce func(ctx context.Context, emit func([]any) error) error,
) (int64, error) {
	out := make(chan []any, b.batchSize)
	g, gctx := errgroup.WithContext(ctx)

	var written int64
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, table, columns, out, b.batchSize, storage.RepoCopyFn(b.repo, table))
		written = n
		return err
	})
	g.Go(func() error {
		defer close(out)
		emit := func(row []any) error {
			select {
			case out <- row:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return produce(gctx, emit)
	})
	if err := g.Wait(); err != nil {
		return written, fmt.Errorf("build %s: %w", table, err)
	}
	return written, nil
}

// queryStaging selects columns from a staging table in storage order: the
// synthetic sequence column first, natural key columns as tie breakers so
// the order stays total when the sequence is not populated (bulk file
// loads).
func (b *Builder) queryStaging(ctx context.Context, id dataset.ID, columns ...string) (storage.Rows, error) {
	desc, err := dataset.DescriptorFor(id)
	if err != nil {
		return nil, err
	}
	order := append([]string{dataset.SeqColumn}, desc.KeyColumns()...)
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(storage.QuoteIdents(columns), ", "),
		storage.QuoteIdent(id.TableName()),
		strings.Join(storage.QuoteIdents(order), ", "),
	)
	rows, err := b.repo.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("read staging %s: %w", id.TableName(), err)
	}
	return rows, nil
}

// checkTableCount warns when a normalized table ended up with a different
// row count than the staging table it was derived from. Count mismatches
// point at dataset inconsistencies, not at build failures.
func (b *Builder) checkTableCount(ctx context.Context, sourceTable, targetTable string) {
	source, err := b.tableCount(ctx, sourceTable)
	if err != nil {
		log.Printf("warning: cannot count rows of %s: %v", sourceTable, err)
		return
	}
	target, err := b.tableCount(ctx, targetTable)
	if err != nil {
		log.Printf("warning: cannot count rows of %s: %v", targetTable, err)
		return
	}
	if target != source {
		log.Printf(
			"warning: target table %q has %d rows but should have %d same as source table %q",
			targetTable, target, source, sourceTable,
		)
	}
}

func (b *Builder) tableCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := b.repo.QueryValue(ctx, fmt.Sprintf("SELECT count(1) FROM %s", storage.QuoteIdent(table)), &n)
	return n, err
}

// scanRow scans the current row into a freshly allocated value slice.
func scanRow(rows storage.Rows, n int) ([]any, error) {
	values := make([]any, n)
	targets := make([]any, n)
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}
	return values, nil
}

// The as* helpers coerce scanned values across backend type differences
// (SQLite reports booleans as integers, text may scan as []byte).

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, true
	}
	return false, false
}

func logAdded(table string, count int64, elapsed time.Duration) {
	seconds := elapsed.Seconds()
	rps := float64(count)
	if seconds > 0 {
		rps = float64(count) / seconds
	}
	log.Printf(
		"%s: added %s rows in %s (%s rows per second)",
		table,
		humanize.Comma(count),
		formatDuration(elapsed),
		humanize.Comma(int64(rps)),
	)
}

// formatDuration renders a duration as MM:SS (or HH:MM:SS past an hour).
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
