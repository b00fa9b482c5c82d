// Package pipeline orchestrates the two runs of the system: transfer
// (dataset files into deduplicated staging tables, one parallel worker per
// dataset) and build (staging tables into the normalized schema, in
// dependency order). Both runs recreate their output tables from scratch,
// so re-running either is idempotent.
package pipeline

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"pimdb/internal/dataset"
	"pimdb/internal/metrics"
	"pimdb/internal/normalize"
)

// DefaultBatchSize is the bulk insert batch size used when none is
// configured.
const DefaultBatchSize = 1024

// Options configures a transfer or build run.
type Options struct {
	// DatasetFolder holds the downloaded dataset files.
	DatasetFolder string

	// BatchSize is the bulk insert batch size. Zero means DefaultBatchSize.
	BatchSize int

	// Drop recreates staging tables instead of truncating them. Needed
	// after schema changes.
	Drop bool

	// Datasets limits a transfer to the given datasets. Empty means all.
	Datasets []dataset.ID
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o Options) datasets() []dataset.ID {
	if len(o.Datasets) == 0 {
		return dataset.All()
	}
	return o.Datasets
}

// TableSummary reports one table's outcome to the operator.
type TableSummary struct {
	Table   string
	Read    int64
	Written int64
	Skipped int64
	Elapsed time.Duration
}

// LogSummary prints one line per table: rows read, written, skipped, and
// throughput.
func LogSummary(summaries []TableSummary) {
	for _, s := range summaries {
		rps := float64(s.Written)
		if secs := s.Elapsed.Seconds(); secs > 0 {
			rps = float64(s.Written) / secs
		}
		log.Printf(
			"%-32s read=%s written=%s skipped=%s elapsed=%s (%s rows per second)",
			s.Table,
			humanize.Comma(s.Read),
			humanize.Comma(s.Written),
			humanize.Comma(s.Skipped),
			s.Elapsed.Round(time.Millisecond),
			humanize.Comma(int64(rps)),
		)
	}
}

func buildSummaries(results []normalize.Result) []TableSummary {
	summaries := make([]TableSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, TableSummary{
			Table:   r.Table,
			Read:    r.Read,
			Written: r.Written,
			Skipped: r.Dropped,
			Elapsed: r.Elapsed,
		})
	}
	return summaries
}

// runStage times fn and records its outcome with the metrics backend.
func runStage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStage(name, err, time.Since(start))
	return err
}
