package dataset

import "fmt"

// Kind is the semantic type of a dataset column. It is a small tagged set;
// decoded values are Go strings, int64, float64, bool, or []string.
type Kind int

const (
	String Kind = iota
	Integer
	Float
	Boolean
	// StringList is a comma-separated list field, e.g. genres or
	// knownForTitles. Decoded as []string; stored in staging tables as the
	// original comma-joined text.
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case StringList:
		return "list"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Column describes one dataset column: its source field name (camelCase, as
// in the TSV header), its kind, nullability, and whether it is part of the
// dataset's natural key.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	Key      bool
}

// Descriptor is the static schema of one dataset file.
type Descriptor struct {
	Dataset ID
	Columns []Column
}

// ColumnNames returns the ordered column names.
func (d Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the natural key column names in declaration order.
func (d Descriptor) KeyColumns() []string {
	var keys []string
	for _, c := range d.Columns {
		if c.Key {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// KeyIndexes returns the positions of the natural key columns.
func (d Descriptor) KeyIndexes() []int {
	var idx []int
	for i, c := range d.Columns {
		if c.Key {
			idx = append(idx, i)
		}
	}
	return idx
}

// descriptors is the fixed per-dataset schema table. Column order matches the
// published TSV field order exactly.
var descriptors = map[ID]Descriptor{
	TitleBasics: {
		Dataset: TitleBasics,
		Columns: []Column{
			{Name: "tconst", Kind: String, Key: true},
			{Name: "titleType", Kind: String},
			{Name: "primaryTitle", Kind: String, Nullable: true},
			{Name: "originalTitle", Kind: String, Nullable: true},
			{Name: "isAdult", Kind: Boolean},
			{Name: "startYear", Kind: Integer, Nullable: true},
			{Name: "endYear", Kind: Integer, Nullable: true},
			{Name: "runtimeMinutes", Kind: Integer, Nullable: true},
			{Name: "genres", Kind: StringList, Nullable: true},
		},
	},
	NameBasics: {
		Dataset: NameBasics,
		Columns: []Column{
			{Name: "nconst", Kind: String, Key: true},
			{Name: "primaryName", Kind: String},
			{Name: "birthYear", Kind: Integer, Nullable: true},
			{Name: "deathYear", Kind: Integer, Nullable: true},
			{Name: "primaryProfession", Kind: StringList, Nullable: true},
			{Name: "knownForTitles", Kind: StringList, Nullable: true},
		},
	},
	TitleAkas: {
		Dataset: TitleAkas,
		Columns: []Column{
			{Name: "titleId", Kind: String, Key: true},
			{Name: "ordering", Kind: Integer, Key: true},
			{Name: "title", Kind: String, Nullable: true},
			{Name: "region", Kind: String, Nullable: true},
			{Name: "language", Kind: String, Nullable: true},
			{Name: "types", Kind: StringList, Nullable: true},
			{Name: "attributes", Kind: StringList, Nullable: true},
			// isOriginalTitle sometimes actually is null.
			{Name: "isOriginalTitle", Kind: Boolean, Nullable: true},
		},
	},
	TitleCrew: {
		Dataset: TitleCrew,
		Columns: []Column{
			{Name: "tconst", Kind: String, Key: true},
			{Name: "directors", Kind: StringList, Nullable: true},
			{Name: "writers", Kind: StringList, Nullable: true},
		},
	},
	TitleEpisode: {
		Dataset: TitleEpisode,
		Columns: []Column{
			{Name: "tconst", Kind: String, Key: true},
			{Name: "parentTconst", Kind: String},
			{Name: "seasonNumber", Kind: Integer, Nullable: true},
			{Name: "episodeNumber", Kind: Integer, Nullable: true},
		},
	},
	TitlePrincipals: {
		Dataset: TitlePrincipals,
		Columns: []Column{
			{Name: "tconst", Kind: String, Key: true},
			{Name: "ordering", Kind: Integer, Key: true},
			{Name: "nconst", Kind: String},
			{Name: "category", Kind: String},
			{Name: "job", Kind: String, Nullable: true},
			{Name: "characters", Kind: String, Nullable: true},
		},
	},
	TitleRatings: {
		Dataset: TitleRatings,
		Columns: []Column{
			{Name: "tconst", Kind: String, Key: true},
			{Name: "averageRating", Kind: Float},
			{Name: "numVotes", Kind: Integer},
		},
	},
}

// DescriptorFor returns the static descriptor for the given dataset.
func DescriptorFor(id ID) (Descriptor, error) {
	d, ok := descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("dataset: no descriptor for %q", id)
	}
	return d, nil
}
