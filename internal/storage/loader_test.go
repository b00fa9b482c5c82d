package storage

import (
	"context"
	"errors"
	"testing"
)

func feed(rows [][]any) chan []any {
	in := make(chan []any, len(rows))
	for _, row := range rows {
		in <- row
	}
	close(in)
	return in
}

// TestLoadBatchesFlushesInBatchSizeGroups verifies that rows arrive at the
// copy function grouped by batch size, with a final partial batch.
func TestLoadBatchesFlushesInBatchSizeGroups(t *testing.T) {
	t.Parallel()

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	var batchSizes []int
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		batchSizes = append(batchSizes, len(batch))
		return int64(len(batch)), nil
	}

	total, err := LoadBatches(context.Background(), "t", []string{"id"}, feed(rows), 2, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	want := []int{2, 2, 1}
	if len(batchSizes) != len(want) {
		t.Fatalf("batches = %v, want %v", batchSizes, want)
	}
	for i := range want {
		if batchSizes[i] != want[i] {
			t.Errorf("batch %d has %d rows, want %d", i, batchSizes[i], want[i])
		}
	}
}

// TestLoadBatchesEmptyInput verifies that a closed, empty channel produces
// no copy calls.
func TestLoadBatchesEmptyInput(t *testing.T) {
	t.Parallel()

	calls := 0
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		calls++
		return 0, nil
	}
	total, err := LoadBatches(context.Background(), "t", []string{"id"}, feed(nil), 10, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 0 || calls != 0 {
		t.Errorf("total = %d, calls = %d; want 0 and 0", total, calls)
	}
}

// TestLoadBatchesPropagatesCopyError verifies that the first copy error
// stops the load and is returned.
func TestLoadBatchesPropagatesCopyError(t *testing.T) {
	t.Parallel()

	boom := errors.New("constraint violation")
	calls := 0
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		calls++
		return 0, boom
	}
	_, err := LoadBatches(context.Background(), "t", []string{"id"}, feed([][]any{{1}, {2}, {3}}), 2, copyFn)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("copy called %d times after failure, want 1", calls)
	}
}

// TestLoadBatchesInvalidArguments verifies the batch size and copy
// function guards.
func TestLoadBatchesInvalidArguments(t *testing.T) {
	t.Parallel()

	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(context.Background(), "t", nil, feed(nil), 0, copyFn); err == nil {
		t.Error("batchSize 0 accepted")
	}
	if _, err := LoadBatches(context.Background(), "t", nil, feed(nil), 1, nil); err == nil {
		t.Error("nil copyFn accepted")
	}
}

// TestLoadBatchesCancellation verifies that cancellation stops draining.
func TestLoadBatchesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan []any) // never written, never closed
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) { return 0, nil }
	_, err := LoadBatches(ctx, "t", []string{"id"}, in, 2, copyFn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
