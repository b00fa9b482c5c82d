package normalize

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"pimdb/internal/dataset"
)

// splitList splits a staging list field (comma-joined text) into its
// elements. Null and empty fields yield no elements.
func splitList(v any) []string {
	s, ok := asString(v)
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// BuildTitleToGenre derives title_to_genre from the genres list of
// TitleBasics. Ordering follows list position; genres feed the genre
// vocabulary on first sight. Requires BuildTitle.
func (b *Builder) BuildTitleToGenre(ctx context.Context) error {
	log.Printf("building %s table", TableTitleToGenre)
	start := time.Now()

	var read, dropped int64
	written, err := b.load(ctx, TableTitleToGenre, relationColumns("title_id", "genre_id"),
		func(ctx context.Context, emit func([]any) error) error {
			rows, err := b.queryStaging(ctx, dataset.TitleBasics, "tconst", "genres")
			if err != nil {
				return err
			}
			defer rows.Close()

			var nextID int64
			for rows.Next() {
				values, err := scanRow(rows, 2)
				if err != nil {
					return err
				}
				read++
				tconst, _ := asString(values[0])
				titleID, ok := b.titleIDs[tconst]
				if !ok {
					dropped++
					continue
				}
				ordering := int64(0)
				for _, genre := range splitList(values[1]) {
					genreID, ok := b.Genres.Resolve(genre)
					if !ok {
						dropped++
						continue
					}
					nextID++
					if err := emit([]any{nextID, titleID, ordering, genreID}); err != nil {
						return err
					}
					ordering++
				}
			}
			return rows.Err()
		})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableTitleToGenre, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}

// BuildNameToKnownForTitle derives name_to_known_for_title from the
// knownForTitles list of NameBasics. List elements naming a title absent
// from TitleBasics are dropped; ordering stays dense over the remaining
// elements. Requires BuildName and BuildTitle.
func (b *Builder) BuildNameToKnownForTitle(ctx context.Context) error {
	log.Printf("building %s table", TableNameToKnownForTitle)
	start := time.Now()

	var read, dropped int64
	written, err := b.load(ctx, TableNameToKnownForTitle, relationColumns("name_id", "title_id"),
		func(ctx context.Context, emit func([]any) error) error {
			rows, err := b.queryStaging(ctx, dataset.NameBasics, "nconst", "knownForTitles")
			if err != nil {
				return err
			}
			defer rows.Close()

			var nextID int64
			for rows.Next() {
				values, err := scanRow(rows, 2)
				if err != nil {
					return err
				}
				read++
				nconst, _ := asString(values[0])
				nameID, ok := b.nameIDs[nconst]
				if !ok {
					dropped++
					continue
				}
				ordering := int64(0)
				for _, tconst := range splitList(values[1]) {
					titleID, ok := b.titleIDs[tconst]
					if !ok {
						dropped++
						continue
					}
					nextID++
					if err := emit([]any{nextID, nameID, ordering, titleID}); err != nil {
						return err
					}
					ordering++
				}
			}
			return rows.Err()
		})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableNameToKnownForTitle, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}

// characterNames decodes a characters JSON array, caching per distinct raw
// value since the same array text repeats across many principals rows.
// Malformed JSON is warned about once per distinct value and treated as an
// empty list.
func (b *Builder) characterNames(cache map[string][]string, raw string) []string {
	if names, ok := cache[raw]; ok {
		return names
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		if _, warned := b.badCharacterJSON[raw]; !warned {
			b.badCharacterJSON[raw] = struct{}{}
			log.Printf("warning: ignoring malformed %s.characters %q: %v",
				dataset.TitlePrincipals.TableName(), raw, err)
		}
		names = nil
	}
	cache[raw] = names
	return names
}

// BuildParticipationToCharacter derives participation_to_character from the
// characters JSON arrays of TitlePrincipals. Each participation links to
// its characters in array order; character names feed the character
// vocabulary on first sight. Requires BuildParticipation.
func (b *Builder) BuildParticipationToCharacter(ctx context.Context) error {
	log.Printf("building %s table", TableParticipationToCharacter)
	start := time.Now()
	cache := make(map[string][]string)

	var read, dropped int64
	written, err := b.load(ctx, TableParticipationToCharacter, relationColumns("participation_id", "character_id"),
		func(ctx context.Context, emit func([]any) error) error {
			rows, err := b.queryStaging(ctx, dataset.TitlePrincipals, "tconst", "ordering", "characters")
			if err != nil {
				return err
			}
			defer rows.Close()

			var nextID int64
			for rows.Next() {
				values, err := scanRow(rows, 3)
				if err != nil {
					return err
				}
				read++
				raw, ok := asString(values[2])
				if !ok || raw == "" {
					continue
				}
				tconst, _ := asString(values[0])
				principalOrdering, _ := asInt64(values[1])
				participationID, ok := b.participationIDs[titleOrdering{tconst: tconst, ordering: principalOrdering}]
				if !ok {
					dropped++
					continue
				}
				ordering := int64(0)
				for _, character := range b.characterNames(cache, raw) {
					characterID, ok := b.Characters.Resolve(character)
					if !ok {
						dropped++
						continue
					}
					nextID++
					if err := emit([]any{nextID, participationID, ordering, characterID}); err != nil {
						return err
					}
					ordering++
				}
			}
			return rows.Err()
		})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableParticipationToCharacter, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}

// BuildTitleAliasToTitleAliasType derives title_alias_to_title_alias_type
// from the types list of TitleAkas. The alias-type vocabulary is fixed;
// unknown types are warned about once per distinct value and dropped.
// Requires BuildTitleAlias.
func (b *Builder) BuildTitleAliasToTitleAliasType(ctx context.Context) error {
	log.Printf("building %s table", TableTitleAliasToTitleAliasType)
	start := time.Now()

	var read, dropped int64
	written, err := b.load(ctx, TableTitleAliasToTitleAliasType, relationColumns("title_alias_id", "title_alias_type_id"),
		func(ctx context.Context, emit func([]any) error) error {
			rows, err := b.queryStaging(ctx, dataset.TitleAkas, "titleId", "ordering", "types")
			if err != nil {
				return err
			}
			defer rows.Close()

			var nextID int64
			for rows.Next() {
				values, err := scanRow(rows, 3)
				if err != nil {
					return err
				}
				read++
				tconst, _ := asString(values[0])
				aliasOrdering, _ := asInt64(values[1])
				aliasID, ok := b.aliasIDs[titleOrdering{tconst: tconst, ordering: aliasOrdering}]
				if !ok {
					dropped++
					continue
				}
				ordering := int64(0)
				for _, aliasType := range splitList(values[2]) {
					aliasTypeID, ok := b.AliasTypes.Lookup(aliasType)
					if !ok {
						if _, warned := b.unknownAliasTypes[aliasType]; !warned {
							b.unknownAliasTypes[aliasType] = struct{}{}
							log.Printf("warning: ignoring unknown %s.types value %q",
								dataset.TitleAkas.TableName(), aliasType)
						}
						dropped++
						continue
					}
					nextID++
					if err := emit([]any{nextID, aliasID, ordering, aliasTypeID}); err != nil {
						return err
					}
					ordering++
				}
			}
			return rows.Err()
		})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableTitleAliasToTitleAliasType, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}
