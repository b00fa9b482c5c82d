package tsv

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pimdb/internal/dataset"
)

func collect(t *testing.T, content string, id dataset.ID, opts Options) ([]Row, Stats, error) {
	t.Helper()
	desc, err := dataset.DescriptorFor(id)
	if err != nil {
		t.Fatal(err)
	}

	out := make(chan Row, 64)
	var (
		stats     Stats
		streamErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer close(done)
		stats, streamErr = Stream(context.Background(), id.TSVFilename(), strings.NewReader(content), desc, out, opts)
	}()

	var rows []Row
	for row := range out {
		rows = append(rows, row)
	}
	<-done
	return rows, stats, streamErr
}

// TestStreamDeduplicatesFirstWins verifies that rows repeating a natural
// key are skipped and the first occurrence survives.
func TestStreamDeduplicatesFirstWins(t *testing.T) {
	t.Parallel()

	content := "tconst\taverageRating\tnumVotes\n" +
		"tt1\t7.5\t100\n" +
		"tt2\t5.0\t10\n" +
		"tt1\t1.0\t1\n"
	rows, stats, err := collect(t, content, dataset.TitleRatings, Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.Read != 3 || stats.Emitted != 2 || stats.Duplicates != 1 {
		t.Fatalf("stats = %+v, want read=3 emitted=2 duplicates=1", stats)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Values[1] != 7.5 {
		t.Errorf("first occurrence should win, got rating %v", rows[0].Values[1])
	}
}

// TestStreamCompositeKey verifies deduplication on a multi-column natural
// key: same tconst with different orderings is not a duplicate.
func TestStreamCompositeKey(t *testing.T) {
	t.Parallel()

	content := "tconst\tordering\tnconst\tcategory\tjob\tcharacters\n" +
		"tt1\t1\tnm1\tactor\t\\N\t\\N\n" +
		"tt1\t2\tnm2\tactor\t\\N\t\\N\n" +
		"tt1\t1\tnm3\tactor\t\\N\t\\N\n"
	_, stats, err := collect(t, content, dataset.TitlePrincipals, Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.Emitted != 2 || stats.Duplicates != 1 {
		t.Fatalf("stats = %+v, want emitted=2 duplicates=1", stats)
	}
}

// TestStreamSequenceNumbers verifies that emitted rows carry their 1-based
// file position, with gaps where rows were skipped.
func TestStreamSequenceNumbers(t *testing.T) {
	t.Parallel()

	content := "tconst\taverageRating\tnumVotes\n" +
		"tt1\t7.5\t100\n" +
		"tt1\t7.5\t100\n" +
		"tt2\t5.0\t10\n"
	rows, _, err := collect(t, content, dataset.TitleRatings, Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Seq != 1 || rows[1].Seq != 3 {
		t.Errorf("seq = %d, %d; want 1, 3", rows[0].Seq, rows[1].Seq)
	}
}

// TestStreamRowErrorsAreSoft verifies that malformed lines are reported and
// skipped without aborting the stream.
func TestStreamRowErrorsAreSoft(t *testing.T) {
	t.Parallel()

	content := "tconst\taverageRating\tnumVotes\n" +
		"tt1\tnot-a-number\t100\n" +
		"tt2\t5.0\t10\n"
	var softErrs []error
	rows, stats, err := collect(t, content, dataset.TitleRatings, Options{
		OnRowErr: func(line int64, err error) { softErrs = append(softErrs, err) },
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.RowErrors != 1 || len(softErrs) != 1 {
		t.Fatalf("row errors = %d, callbacks = %d, want 1 and 1", stats.RowErrors, len(softErrs))
	}
	if len(rows) != 1 || rows[0].Values[0] != "tt2" {
		t.Fatalf("rows = %v, want only tt2", rows)
	}
	if !strings.Contains(softErrs[0].Error(), "(1)") {
		t.Errorf("soft error should carry the line number: %v", softErrs[0])
	}
}

// TestStreamHeaderMismatchIsFatal verifies that an unexpected header aborts
// the stream before any row is emitted.
func TestStreamHeaderMismatchIsFatal(t *testing.T) {
	t.Parallel()

	content := "tconst\trating\tnumVotes\n" + "tt1\t7.5\t100\n"
	rows, _, err := collect(t, content, dataset.TitleRatings, Options{})
	if err == nil {
		t.Fatal("Stream succeeded, want header error")
	}
	if len(rows) != 0 {
		t.Fatalf("emitted %d rows despite header mismatch", len(rows))
	}
}

// TestStreamFileGzip verifies reading a gzip-compressed dataset file from
// disk.
func TestStreamFileGzip(t *testing.T) {
	t.Parallel()

	desc, err := dataset.DescriptorFor(dataset.TitleRatings)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), dataset.TitleRatings.Filename())
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte("tconst\taverageRating\tnumVotes\ntt1\t7.5\t100\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	out := make(chan Row, 4)
	var stats Stats
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer close(done)
		stats, err = StreamFile(context.Background(), path, desc, out, Options{})
	}()
	var rows []Row
	for row := range out {
		rows = append(rows, row)
	}
	<-done
	if err != nil {
		t.Fatalf("StreamFile: %v", err)
	}
	if stats.Emitted != 1 || len(rows) != 1 {
		t.Fatalf("stats = %+v, rows = %d", stats, len(rows))
	}
}
