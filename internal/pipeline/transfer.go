package pipeline

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"pimdb/internal/dataset"
	"pimdb/internal/metrics"
	"pimdb/internal/storage"
	"pimdb/internal/tsv"
)

// Transfer loads the selected dataset files into their staging tables, one
// worker per dataset. Staging tables are truncated (or dropped and
// recreated with Options.Drop) before loading, so a transfer is a full
// reload. Returns one summary per dataset in selection order.
func Transfer(ctx context.Context, repo storage.Repository, opts Options) ([]TableSummary, error) {
	datasets := opts.datasets()
	summaries := make([]TableSummary, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range datasets {
		g.Go(func() error {
			return runStage("transfer:"+id.TableName(), func() error {
				summary, err := transferDataset(gctx, repo, id, opts)
				summaries[i] = summary
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}
	return summaries, nil
}

// DatasetPath locates a dataset file in folder, preferring the compressed
// name as published by IMDb and falling back to an uncompressed .tsv.
func DatasetPath(folder string, id dataset.ID) (string, error) {
	for _, name := range []string{id.Filename(), id.TSVFilename()} {
		path := filepath.Join(folder, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s or %s in %s (run download first?)", id.Filename(), id.TSVFilename(), folder)
}

func transferDataset(ctx context.Context, repo storage.Repository, id dataset.ID, opts Options) (TableSummary, error) {
	start := time.Now()
	table := id.TableName()

	desc, err := dataset.DescriptorFor(id)
	if err != nil {
		return TableSummary{Table: table}, err
	}
	path, err := DatasetPath(opts.DatasetFolder, id)
	if err != nil {
		return TableSummary{Table: table}, err
	}
	if err := prepareStaging(ctx, repo, desc, opts.Drop); err != nil {
		return TableSummary{Table: table}, err
	}

	// Fast path: stream the raw file through the backend's bulk file load.
	// It cannot deduplicate, so any error (including key collisions from
	// duplicated source rows) reverts to the decoding path.
	if fc, ok := repo.(storage.FileCopier); ok {
		n, err := copyDatasetFile(ctx, fc, desc, path)
		if err == nil {
			summary := TableSummary{Table: table, Read: n, Written: n, Elapsed: time.Since(start)}
			metrics.RecordRows(table, "read", n)
			metrics.RecordRows(table, "inserted", n)
			logTransferred(summary)
			return summary, nil
		}
		log.Printf("%s: cannot quickly insert data, reverting to slower variant (reason: %v)", table, err)
		if err := truncateTable(ctx, repo, table); err != nil {
			return TableSummary{Table: table}, err
		}
	}

	stats, written, err := loadDataset(ctx, repo, desc, path, opts.batchSize())
	summary := TableSummary{
		Table:   table,
		Read:    stats.Read,
		Written: written,
		Skipped: stats.Duplicates + stats.RowErrors,
		Elapsed: time.Since(start),
	}
	if err != nil {
		return summary, fmt.Errorf("transfer %s: %w", table, err)
	}
	metrics.RecordRows(table, "read", stats.Read)
	metrics.RecordRows(table, "duplicates", stats.Duplicates)
	metrics.RecordRows(table, "row_errors", stats.RowErrors)
	metrics.RecordRows(table, "inserted", written)
	logTransferred(summary)
	return summary, nil
}

// prepareStaging makes the staging table exist and be empty.
func prepareStaging(ctx context.Context, repo storage.Repository, desc dataset.Descriptor, drop bool) error {
	table := desc.Dataset.TableName()
	if drop {
		if err := repo.Exec(ctx, storage.BuildDropTableSQL(table)); err != nil {
			return fmt.Errorf("drop staging table %s: %w", table, err)
		}
	}
	exists, err := repo.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return storage.CreateTable(ctx, repo, StagingTableDef(desc))
	}
	return truncateTable(ctx, repo, table)
}

func truncateTable(ctx context.Context, repo storage.Repository, table string) error {
	if err := repo.Exec(ctx, fmt.Sprintf("DELETE FROM %s", storage.QuoteIdent(table))); err != nil {
		return fmt.Errorf("clear staging table %s: %w", table, err)
	}
	return nil
}

// copyDatasetFile feeds the decompressed dataset file to the backend's
// file-level bulk load, header included. Only the descriptor columns are
// loaded; the sequence column takes its default.
func copyDatasetFile(ctx context.Context, fc storage.FileCopier, desc dataset.Descriptor, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var src = io.Reader(f)
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer gz.Close()
		src = gz
	}
	return fc.CopyFile(ctx, desc.Dataset.TableName(), desc.ColumnNames(), src)
}

// loadDataset is the decoding path: stream, decode, deduplicate, batch
// insert. Row decode errors are logged and skipped.
func loadDataset(
	ctx context.Context,
	repo storage.Repository,
	desc dataset.Descriptor,
	path string,
	batchSize int,
) (tsv.Stats, int64, error) {
	table := desc.Dataset.TableName()
	columns := append(desc.ColumnNames(), dataset.SeqColumn)

	rowCh := make(chan tsv.Row, batchSize)
	out := make(chan []any, batchSize)

	var (
		stats   tsv.Stats
		written int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rowCh)
		s, err := tsv.StreamFile(gctx, path, desc, rowCh, tsv.Options{
			OnRowErr: func(line int64, err error) {
				log.Printf("warning: skipping row: %v", err)
			},
			Progress: func(read, duplicates int64) {
				log.Printf("%s: read=%d duplicates=%d", table, read, duplicates)
			},
		})
		stats = s
		return err
	})
	g.Go(func() error {
		defer close(out)
		for row := range rowCh {
			values := make([]any, 0, len(row.Values)+1)
			for _, v := range row.Values {
				values = append(values, dataset.StorageValue(v))
			}
			values = append(values, row.Seq)
			select {
			case out <- values:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, table, columns, out, batchSize, storage.RepoCopyFn(repo, table))
		written = n
		return err
	})
	err := g.Wait()
	return stats, written, err
}

// StagingTableDef derives a staging table definition from a dataset
// descriptor: one column per field (natural key columns form the primary
// key) plus the sequence column recording file position.
func StagingTableDef(desc dataset.Descriptor) storage.TableDef {
	columns := make([]storage.ColumnDef, 0, len(desc.Columns)+1)
	for _, c := range desc.Columns {
		columns = append(columns, storage.ColumnDef{
			Name:       c.Name,
			SQLType:    stagingSQLType(c),
			Nullable:   c.Nullable,
			PrimaryKey: c.Key,
		})
	}
	columns = append(columns, storage.ColumnDef{
		Name:    dataset.SeqColumn,
		SQLType: storage.TypeBigInt,
		Default: "0",
	})
	return storage.TableDef{Name: desc.Dataset.TableName(), Columns: columns}
}

func stagingSQLType(c dataset.Column) string {
	switch c.Kind {
	case dataset.Integer:
		return storage.TypeBigInt
	case dataset.Float:
		return storage.TypeDouble
	case dataset.Boolean:
		return storage.TypeBool
	default:
		if c.Key {
			// IMDb identifier codes, short and fixed-format.
			return storage.VarChar(16)
		}
		return storage.TypeText
	}
}

func logTransferred(s TableSummary) {
	rps := float64(s.Written)
	if secs := s.Elapsed.Seconds(); secs > 0 {
		rps = float64(s.Written) / secs
	}
	log.Printf("%s: added %d rows in %s (%d rows per second)", s.Table, s.Written, s.Elapsed.Round(time.Second), int64(rps))
}
