package storage

import (
	"strings"
	"testing"
)

// TestBuildCreateTableSQL verifies column rendering, NOT NULL, defaults,
// and the composite primary key clause.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := TableDef{
		Name: "TitlePrincipals",
		Columns: []ColumnDef{
			{Name: "tconst", SQLType: VarChar(16), PrimaryKey: true},
			{Name: "ordering", SQLType: TypeBigInt, PrimaryKey: true},
			{Name: "job", SQLType: TypeText, Nullable: true},
			{Name: "seq", SQLType: TypeBigInt, Default: "0"},
		},
	}
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE "TitlePrincipals"`,
		`"tconst" VARCHAR(16) NOT NULL`,
		`"ordering" BIGINT NOT NULL`,
		`"job" TEXT,`,
		`"seq" BIGINT NOT NULL DEFAULT 0`,
		`PRIMARY KEY ("tconst", "ordering")`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("missing %q in:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, `"job" TEXT NOT NULL`) {
		t.Errorf("nullable column rendered NOT NULL:\n%s", sql)
	}
}

// TestBuildCreateTableSQLErrors verifies validation of empty names and
// missing types.
func TestBuildCreateTableSQLErrors(t *testing.T) {
	t.Parallel()

	cases := []TableDef{
		{},
		{Name: "t"},
		{Name: "t", Columns: []ColumnDef{{Name: "", SQLType: TypeText}}},
		{Name: "t", Columns: []ColumnDef{{Name: "c"}}},
	}
	for i, def := range cases {
		if _, err := BuildCreateTableSQL(def); err == nil {
			t.Errorf("case %d: BuildCreateTableSQL succeeded, want error", i)
		}
	}
}

// TestBuildCreateIndexSQL verifies unique and plain index rendering.
func TestBuildCreateIndexSQL(t *testing.T) {
	t.Parallel()

	sql, err := BuildCreateIndexSQL("title_to_genre", IndexDef{
		Name:    "idx_title_to_genre_title_id_ordering",
		Columns: []string{"title_id", "ordering"},
		Unique:  true,
	})
	if err != nil {
		t.Fatalf("BuildCreateIndexSQL: %v", err)
	}
	want := `CREATE UNIQUE INDEX "idx_title_to_genre_title_id_ordering" ON "title_to_genre" ("title_id", "ordering");`
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}

	sql, err = BuildCreateIndexSQL("title_to_genre", IndexDef{Name: "ix", Columns: []string{"genre_id"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sql, "UNIQUE") {
		t.Errorf("plain index rendered UNIQUE: %s", sql)
	}
}

// TestQuoteIdent verifies identifier quoting, including embedded quotes.
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := QuoteIdent("NameBasics"); got != `"NameBasics"` {
		t.Errorf("QuoteIdent = %s", got)
	}
	if got := QuoteIdent(`odd"name`); got != `"odd""name"` {
		t.Errorf("QuoteIdent = %s", got)
	}
}

// TestBuildDropTableSQL verifies the idempotent drop statement.
func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	if got := BuildDropTableSQL("episode"); got != `DROP TABLE IF EXISTS "episode";` {
		t.Errorf("BuildDropTableSQL = %s", got)
	}
}

// TestKindFromDSN verifies backend inference from connection strings.
func TestKindFromDSN(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"postgres://user@host/db":   "postgres",
		"postgresql://user@host/db": "postgres",
		"pimdb.db":                  "sqlite",
		":memory:":                  "sqlite",
		"/var/data/imdb.db":         "sqlite",
	}
	for dsn, want := range cases {
		if got := KindFromDSN(dsn); got != want {
			t.Errorf("KindFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}
