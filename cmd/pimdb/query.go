package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pimdb/internal/dataset"
	"pimdb/internal/storage"
)

// runQuery executes one SQL statement and writes the result as TSV: a
// header line with the column names, then one line per row with null
// rendered as the dataset null sentinel.
func runQuery(ctx context.Context, repo storage.Repository, sql string, w io.Writer) error {
	rows, err := repo.Query(ctx, sql)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns := rows.Columns()
	if len(columns) > 0 {
		if _, err := fmt.Fprintln(w, strings.Join(columns, "\t")); err != nil {
			return err
		}
	}

	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return fmt.Errorf("query: %w", err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return dataset.NullSentinel
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
