package normalize

import "pimdb/internal/storage"

// Normalized table names. Entities and key tables are snake_case singular;
// relation tables are named <from>_to_<to>.
const (
	TableTitleType      = "title_type"
	TableGenre          = "genre"
	TableProfession     = "profession"
	TableTitleAliasType = "title_alias_type"
	TableCharacter      = "character"

	TableName          = "name"
	TableTitle         = "title"
	TableTitleAlias    = "title_alias"
	TableEpisode       = "episode"
	TableParticipation = "participation"

	TableTitleToGenre               = "title_to_genre"
	TableNameToKnownForTitle        = "name_to_known_for_title"
	TableParticipationToCharacter   = "participation_to_character"
	TableTitleAliasToTitleAliasType = "title_alias_to_title_alias_type"
)

// TitleAliasTypes is the fixed vocabulary of title.akas alias types. List
// elements outside it are dropped during the build, with a warning per
// distinct unknown value.
var TitleAliasTypes = []string{
	"alternative", "dvd", "festival", "tv", "video", "working", "original", "imdbDisplay",
}

// ObsoleteTableNames are normalized tables produced by earlier schema
// versions, dropped at build start when present.
var ObsoleteTableNames = []string{
	"characters_to_character", "title_to_director", "title_to_writer",
}

// Insert column orders, matching the table definitions below.
var (
	keyTableColumns = []string{"id", "name"}

	nameColumns = []string{
		"id", "nconst", "primary_name", "birth_year", "death_year", "primary_professions",
	}
	titleColumns = []string{
		"id", "tconst", "title_type_id", "primary_title", "original_title", "is_adult",
		"start_year", "end_year", "runtime_minutes", "average_rating", "rating_count",
	}
	titleAliasColumns = []string{
		"id", "title_id", "ordering", "title", "region_code", "language_code", "is_original_title",
	}
	episodeColumns = []string{
		"title_id", "parent_title_id", "season", "episode",
	}
	participationColumns = []string{
		"id", "title_id", "ordering", "name_id", "profession_id", "job",
	}
)

// relationColumns is the insert column order of a relation table.
func relationColumns(fromColumn, toColumn string) []string {
	return []string{"id", fromColumn, "ordering", toColumn}
}

func keyTableDef(name string, pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: name,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "name", SQLType: storage.TypeText},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", name, "name"), Columns: []string{"name"}, Unique: true},
		},
	}
}

func relationTableDef(name, fromColumn, toColumn string, pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: name,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: fromColumn, SQLType: storage.TypeBigInt},
			{Name: "ordering", SQLType: storage.TypeBigInt},
			{Name: toColumn, SQLType: storage.TypeBigInt},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", name, fromColumn, "ordering"), Columns: []string{fromColumn, "ordering"}, Unique: true},
			{Name: pool.Name("idx", name, toColumn), Columns: []string{toColumn}},
		},
	}
}

func nameTableDef(pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: TableName,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "nconst", SQLType: storage.VarChar(16)},
			{Name: "primary_name", SQLType: storage.TypeText},
			{Name: "birth_year", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "death_year", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "primary_professions", SQLType: storage.TypeText, Nullable: true},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", TableName, "nconst"), Columns: []string{"nconst"}, Unique: true},
		},
	}
}

func titleTableDef(pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: TableTitle,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "tconst", SQLType: storage.VarChar(16)},
			{Name: "title_type_id", SQLType: storage.TypeBigInt},
			{Name: "primary_title", SQLType: storage.TypeText, Nullable: true},
			{Name: "original_title", SQLType: storage.TypeText, Nullable: true},
			{Name: "is_adult", SQLType: storage.TypeBool},
			{Name: "start_year", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "end_year", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "runtime_minutes", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "average_rating", SQLType: storage.TypeDouble, Default: "0"},
			{Name: "rating_count", SQLType: storage.TypeBigInt, Default: "0"},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", TableTitle, "tconst"), Columns: []string{"tconst"}, Unique: true},
			{Name: pool.Name("idx", TableTitle, "title_type_id"), Columns: []string{"title_type_id"}},
		},
	}
}

func titleAliasTableDef(pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: TableTitleAlias,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "title_id", SQLType: storage.TypeBigInt},
			{Name: "ordering", SQLType: storage.TypeBigInt},
			{Name: "title", SQLType: storage.TypeText, Nullable: true},
			{Name: "region_code", SQLType: storage.VarChar(8), Nullable: true},
			{Name: "language_code", SQLType: storage.VarChar(8), Nullable: true},
			{Name: "is_original_title", SQLType: storage.TypeBool, Nullable: true},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", TableTitleAlias, "title_id", "ordering"), Columns: []string{"title_id", "ordering"}, Unique: true},
		},
	}
}

func episodeTableDef(pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: TableEpisode,
		Columns: []storage.ColumnDef{
			{Name: "title_id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "parent_title_id", SQLType: storage.TypeBigInt},
			{Name: "season", SQLType: storage.TypeBigInt, Nullable: true},
			{Name: "episode", SQLType: storage.TypeBigInt, Nullable: true},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", TableEpisode, "parent_title_id"), Columns: []string{"parent_title_id"}},
		},
	}
}

func participationTableDef(pool *NamePool) storage.TableDef {
	return storage.TableDef{
		Name: TableParticipation,
		Columns: []storage.ColumnDef{
			{Name: "id", SQLType: storage.TypeBigInt, PrimaryKey: true},
			{Name: "title_id", SQLType: storage.TypeBigInt},
			{Name: "ordering", SQLType: storage.TypeBigInt},
			{Name: "name_id", SQLType: storage.TypeBigInt},
			{Name: "profession_id", SQLType: storage.TypeBigInt},
			{Name: "job", SQLType: storage.TypeText, Nullable: true},
		},
		Indexes: []storage.IndexDef{
			{Name: pool.Name("idx", TableParticipation, "title_id", "ordering"), Columns: []string{"title_id", "ordering"}, Unique: true},
			{Name: pool.Name("idx", TableParticipation, "name_id"), Columns: []string{"name_id"}},
		},
	}
}

// AllTableDefs returns every normalized table definition in dependency
// order: key tables, then entities, then relations. Index names are drawn
// from pool, which must be sized to the backend's identifier limit.
func AllTableDefs(pool *NamePool) []storage.TableDef {
	return []storage.TableDef{
		keyTableDef(TableTitleType, pool),
		keyTableDef(TableGenre, pool),
		keyTableDef(TableProfession, pool),
		keyTableDef(TableTitleAliasType, pool),
		keyTableDef(TableCharacter, pool),

		nameTableDef(pool),
		titleTableDef(pool),
		titleAliasTableDef(pool),
		episodeTableDef(pool),
		participationTableDef(pool),

		relationTableDef(TableTitleToGenre, "title_id", "genre_id", pool),
		relationTableDef(TableNameToKnownForTitle, "name_id", "title_id", pool),
		relationTableDef(TableParticipationToCharacter, "participation_id", "character_id", pool),
		relationTableDef(TableTitleAliasToTitleAliasType, "title_alias_id", "title_alias_type_id", pool),
	}
}
