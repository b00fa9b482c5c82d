// Package tsv streams rows out of the gzip-compressed tab-separated IMDb
// dataset files.
//
// The reader decodes each line through the dataset descriptor, deduplicates
// on the natural key (first occurrence wins), and emits typed rows tagged
// with a monotonic sequence number recording file position. Malformed lines
// are reported through a soft error callback and skipped; only I/O level
// failures abort the stream.
package tsv

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"pimdb/internal/dataset"
)

// maxLineSize bounds a single TSV line. The widest IMDb rows (akas titles,
// principals character lists) stay far below this.
const maxLineSize = 4 << 20

// Row is one decoded record plus its position in the source file.
type Row struct {
	// Seq is the 1-based line number of the record within the data section
	// of the file. It defines staging storage order.
	Seq int64

	// Values holds one typed value per descriptor column.
	Values []any
}

// Stats summarizes one streamed file.
type Stats struct {
	Read       int64 // data lines read
	Emitted    int64 // rows emitted downstream
	Duplicates int64 // rows skipped because their natural key was already seen
	RowErrors  int64 // malformed lines skipped
}

// Options tunes a streaming run. The zero value is usable.
type Options struct {
	// OnRowErr receives recoverable per-line decode errors (soft-drop).
	OnRowErr func(line int64, err error)

	// Progress, when set, is invoked at most every ProgressInterval with the
	// running read and duplicate counts.
	Progress func(read, duplicates int64)

	// ProgressInterval defaults to 3s.
	ProgressInterval time.Duration
}

// RowError is a decode error bound to its file and line.
type RowError struct {
	Path string
	Line int64
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s (%d): %v", filepath.Base(e.Path), e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// StreamFile opens path (gzip-compressed unless it ends in ".tsv") and
// streams its rows into out. The channel is not closed by StreamFile; the
// caller owns it.
func StreamFile(ctx context.Context, path string, desc dataset.Descriptor, out chan<- Row, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Stats{}, fmt.Errorf("open gzip %s: %w", filepath.Base(path), err)
		}
		defer gz.Close()
		r = gz
	}
	return Stream(ctx, path, r, desc, out, opts)
}

// Stream reads TSV content from r and sends decoded, deduplicated rows to
// out. The first line must be the header matching the descriptor's column
// names; a mismatch is fatal because it means the descriptor is out of date
// with the published schema.
func Stream(ctx context.Context, path string, r io.Reader, desc dataset.Descriptor, out chan<- Row, opts Options) (Stats, error) {
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Stats{}, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
		}
		return Stats{}, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err := checkHeader(desc, sc.Text()); err != nil {
		return Stats{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var (
		stats        Stats
		seen         = make(map[uint64]struct{})
		keyIdx       = desc.KeyIndexes()
		lastProgress = time.Now()
	)

	for sc.Scan() {
		stats.Read++

		fields := strings.Split(sc.Text(), "\t")
		key := keyOf(fields, keyIdx)
		if _, dup := seen[key]; dup {
			stats.Duplicates++
		} else {
			seen[key] = struct{}{}
			values, err := desc.Decode(fields)
			if err != nil {
				stats.RowErrors++
				if opts.OnRowErr != nil {
					opts.OnRowErr(stats.Read, &RowError{Path: path, Line: stats.Read, Err: err})
				}
			} else {
				select {
				case out <- Row{Seq: stats.Read, Values: values}:
					stats.Emitted++
				case <-ctx.Done():
					return stats, ctx.Err()
				}
			}
		}

		if opts.Progress != nil && time.Since(lastProgress) > interval {
			opts.Progress(stats.Read, stats.Duplicates)
			lastProgress = time.Now()
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read %s (%d): %w", filepath.Base(path), stats.Read, err)
	}
	if opts.Progress != nil {
		opts.Progress(stats.Read, stats.Duplicates)
	}
	return stats, nil
}

func checkHeader(desc dataset.Descriptor, header string) error {
	got := strings.Split(header, "\t")
	want := desc.ColumnNames()
	if len(got) != len(want) {
		return fmt.Errorf("header has %d columns, descriptor has %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("header column %d is %q, descriptor expects %q", i, got[i], want[i])
		}
	}
	return nil
}

// keyOf hashes the natural key fields into the seen-set key. Fields are
// joined with an unlikely separator so composite keys cannot collide by
// concatenation.
func keyOf(fields []string, keyIdx []int) uint64 {
	var b strings.Builder
	for i, ix := range keyIdx {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if ix < len(fields) {
			b.WriteString(fields[ix])
		}
	}
	return xxh3.HashString(b.String())
}
