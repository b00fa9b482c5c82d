// Package dataset defines the fixed set of IMDb dataset exports, their
// schemas, and the decoding of raw TSV rows into typed values.
//
// Every dataset is described by a static Descriptor: an ordered list of typed
// column definitions plus the natural key columns. The descriptors are the
// single source of truth consulted by the TSV decoder, the staging DDL
// generation, and the normalized builders, so types are checked once and
// reused everywhere.
package dataset

import "strings"

// SeqColumn is the synthetic staging table column recording a row's
// position in the source file. It defines the storage order builders read
// staging rows in.
const SeqColumn = "seq"

// ID names one IMDb dataset export, e.g. "title.basics".
type ID string

const (
	NameBasics      ID = "name.basics"
	TitleAkas       ID = "title.akas"
	TitleBasics     ID = "title.basics"
	TitleCrew       ID = "title.crew"
	TitleEpisode    ID = "title.episode"
	TitlePrincipals ID = "title.principals"
	TitleRatings    ID = "title.ratings"
)

// All lists every known dataset in a stable order.
func All() []ID {
	return []ID{NameBasics, TitleAkas, TitleBasics, TitleCrew, TitleEpisode, TitlePrincipals, TitleRatings}
}

// IsValid reports whether id names a known dataset.
func IsValid(id ID) bool {
	for _, d := range All() {
		if d == id {
			return true
		}
	}
	return false
}

// TSVFilename is the uncompressed file name, mostly used for testing,
// e.g. "name.basics.tsv".
func (id ID) TSVFilename() string { return string(id) + ".tsv" }

// Filename is the compressed file name as published by IMDb,
// e.g. "name.basics.tsv.gz".
func (id ID) Filename() string { return string(id) + ".tsv.gz" }

// TableName is the staging table name: the dataset name camelized at dots,
// e.g. "name.basics" -> "NameBasics".
func (id ID) TableName() string {
	var b strings.Builder
	upper := true
	for _, r := range string(id) {
		if r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
