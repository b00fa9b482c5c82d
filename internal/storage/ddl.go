package storage

import (
	"context"
	"fmt"
	"strings"
)

// This file defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE / CREATE INDEX / DROP TABLE statements from it.
//
// The model stays generic: identifiers are double-quoted (valid in both
// Postgres and SQLite), SQLType strings are emitted as-is, and Default is
// treated as a raw SQL expression. Backends needing dialect-specific clauses
// can wrap these builders.

// Generic SQL types shared by the supported engines.
const (
	TypeText   = "TEXT"
	TypeBigInt = "BIGINT"
	TypeDouble = "DOUBLE PRECISION"
	TypeBool   = "BOOLEAN"
)

// VarChar renders a bounded character type.
func VarChar(n int) string { return fmt.Sprintf("VARCHAR(%d)", n) }

// ColumnDef describes a single column in a table definition.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string // raw SQL expression
}

// IndexDef describes a secondary index on a table.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableDef holds a table name, its ordered columns, and its indexes.
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Indexes []IndexDef
}

// QuoteIdent double-quotes a single identifier.
func QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteIdents maps a list of identifiers to their quoted forms.
func QuoteIdents(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = QuoteIdent(id)
	}
	return out
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Each column is rendered as:
//
//	"name" <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// Columns with PrimaryKey set are collected into a trailing
// PRIMARY KEY (...) clause.
func BuildCreateTableSQL(t TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: table %s needs at least one column", name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		if strings.TrimSpace(c.SQLType) == "" {
			return "", fmt.Errorf("ddl: column %s.%s missing SQLType", name, c.Name)
		}

		var sb strings.Builder
		sb.WriteString(QuoteIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.SQLType)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, QuoteIdent(c.Name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteIdent(name), strings.Join(cols, ",\n  ")), nil
}

// BuildCreateIndexSQL renders a CREATE [UNIQUE] INDEX statement for table.
func BuildCreateIndexSQL(table string, ix IndexDef) (string, error) {
	if strings.TrimSpace(ix.Name) == "" {
		return "", fmt.Errorf("ddl: index on %s missing name", table)
	}
	if len(ix.Columns) == 0 {
		return "", fmt.Errorf("ddl: index %s needs at least one column", ix.Name)
	}
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf(
		"CREATE %sINDEX %s ON %s (%s);",
		unique, QuoteIdent(ix.Name), QuoteIdent(table), strings.Join(QuoteIdents(ix.Columns), ", "),
	), nil
}

// BuildDropTableSQL renders an idempotent DROP TABLE statement.
func BuildDropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteIdent(table))
}

// CreateTable renders and applies a TableDef plus its indexes through repo.
func CreateTable(ctx context.Context, repo Repository, t TableDef) error {
	stmt, err := BuildCreateTableSQL(t)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	for _, ix := range t.Indexes {
		stmt, err := BuildCreateIndexSQL(t.Name, ix)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s: %w", ix.Name, err)
		}
	}
	return nil
}
