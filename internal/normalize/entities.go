package normalize

import (
	"context"
	"fmt"
	"log"
	"time"

	"pimdb/internal/dataset"
)

// BuildName derives the name entity table from NameBasics. Surrogate ids
// are assigned in staging storage order, starting at 1.
func (b *Builder) BuildName(ctx context.Context) error {
	log.Printf("building %s table", TableName)
	start := time.Now()
	b.nameIDs = make(map[string]int64)

	var read int64
	written, err := b.load(ctx, TableName, nameColumns, func(ctx context.Context, emit func([]any) error) error {
		rows, err := b.queryStaging(ctx, dataset.NameBasics,
			"nconst", "primaryName", "birthYear", "deathYear", "primaryProfession")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			values, err := scanRow(rows, 5)
			if err != nil {
				return err
			}
			read++
			nconst, ok := asString(values[0])
			if !ok {
				return fmt.Errorf("%s: nconst is not text: %v", dataset.NameBasics.TableName(), values[0])
			}
			id := int64(len(b.nameIDs)) + 1
			b.nameIDs[nconst] = id
			if err := emit([]any{id, nconst, values[1], values[2], values[3], values[4]}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableName, Read: read, Written: written, Elapsed: time.Since(start)})
	return nil
}

type ratingInfo struct {
	rating float64
	votes  int64
}

func (b *Builder) loadRatings(ctx context.Context) (map[string]ratingInfo, error) {
	rows, err := b.queryStaging(ctx, dataset.TitleRatings, "tconst", "averageRating", "numVotes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make(map[string]ratingInfo)
	for rows.Next() {
		values, err := scanRow(rows, 3)
		if err != nil {
			return nil, err
		}
		tconst, _ := asString(values[0])
		rating, _ := asFloat64(values[1])
		votes, _ := asInt64(values[2])
		ratings[tconst] = ratingInfo{rating: rating, votes: votes}
	}
	return ratings, rows.Err()
}

// BuildTitle derives the title entity table from TitleBasics, left-joined
// with TitleRatings on tconst. Unrated titles get rating 0 with 0 votes.
// Title types are resolved through the title_type vocabulary.
func (b *Builder) BuildTitle(ctx context.Context) error {
	log.Printf("building %s table", TableTitle)
	start := time.Now()

	ratings, err := b.loadRatings(ctx)
	if err != nil {
		return fmt.Errorf("build %s: %w", TableTitle, err)
	}
	b.titleIDs = make(map[string]int64)

	var read int64
	written, err := b.load(ctx, TableTitle, titleColumns, func(ctx context.Context, emit func([]any) error) error {
		rows, err := b.queryStaging(ctx, dataset.TitleBasics,
			"tconst", "titleType", "primaryTitle", "originalTitle", "isAdult",
			"startYear", "endYear", "runtimeMinutes")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			values, err := scanRow(rows, 8)
			if err != nil {
				return err
			}
			read++
			tconst, ok := asString(values[0])
			if !ok {
				return fmt.Errorf("%s: tconst is not text: %v", dataset.TitleBasics.TableName(), values[0])
			}
			titleType, _ := asString(values[1])
			titleTypeID, _ := b.TitleTypes.Resolve(titleType)

			id := int64(len(b.titleIDs)) + 1
			b.titleIDs[tconst] = id
			rating := ratings[tconst]
			row := []any{
				id, tconst, titleTypeID, values[2], values[3], values[4],
				values[5], values[6], values[7], rating.rating, rating.votes,
			}
			if err := emit(row); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableTitle, Read: read, Written: written, Elapsed: time.Since(start)})
	b.checkTableCount(ctx, dataset.TitleBasics.TableName(), TableTitle)
	return nil
}

// BuildTitleAlias derives title_alias from TitleAkas. Aliases whose title
// is absent from TitleBasics are dropped. Requires BuildTitle.
func (b *Builder) BuildTitleAlias(ctx context.Context) error {
	log.Printf("building %s table", TableTitleAlias)
	start := time.Now()
	b.aliasIDs = make(map[titleOrdering]int64)

	var read, dropped int64
	written, err := b.load(ctx, TableTitleAlias, titleAliasColumns, func(ctx context.Context, emit func([]any) error) error {
		rows, err := b.queryStaging(ctx, dataset.TitleAkas,
			"titleId", "ordering", "title", "region", "language", "isOriginalTitle")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			values, err := scanRow(rows, 6)
			if err != nil {
				return err
			}
			read++
			tconst, _ := asString(values[0])
			ordering, _ := asInt64(values[1])
			titleID, ok := b.titleIDs[tconst]
			if !ok {
				dropped++
				continue
			}
			id := int64(len(b.aliasIDs)) + 1
			b.aliasIDs[titleOrdering{tconst: tconst, ordering: ordering}] = id
			row := []any{id, titleID, ordering, values[2], values[3], values[4], values[5]}
			if err := emit(row); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableTitleAlias, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}

// BuildEpisode derives episode from TitleEpisode, resolving both the
// episode title and its parent title. Rows are dropped when either title
// does not resolve. Requires BuildTitle.
func (b *Builder) BuildEpisode(ctx context.Context) error {
	log.Printf("building %s table", TableEpisode)
	start := time.Now()

	var read, dropped int64
	written, err := b.load(ctx, TableEpisode, episodeColumns, func(ctx context.Context, emit func([]any) error) error {
		rows, err := b.queryStaging(ctx, dataset.TitleEpisode,
			"tconst", "parentTconst", "seasonNumber", "episodeNumber")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			values, err := scanRow(rows, 4)
			if err != nil {
				return err
			}
			read++
			tconst, _ := asString(values[0])
			parentTconst, _ := asString(values[1])
			titleID, ok := b.titleIDs[tconst]
			if !ok {
				dropped++
				continue
			}
			parentTitleID, ok := b.titleIDs[parentTconst]
			if !ok {
				dropped++
				continue
			}
			if err := emit([]any{titleID, parentTitleID, values[2], values[3]}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableEpisode, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	return nil
}

// BuildParticipation derives participation from TitlePrincipals: one row
// per billing entry, keeping the source billing position as ordering. The
// principal's category feeds the profession vocabulary. Rows whose title or
// name does not resolve are dropped. Requires BuildName and BuildTitle.
func (b *Builder) BuildParticipation(ctx context.Context) error {
	log.Printf("building %s table", TableParticipation)
	start := time.Now()
	b.participationIDs = make(map[titleOrdering]int64)

	var read, dropped int64
	written, err := b.load(ctx, TableParticipation, participationColumns, func(ctx context.Context, emit func([]any) error) error {
		rows, err := b.queryStaging(ctx, dataset.TitlePrincipals,
			"tconst", "ordering", "nconst", "category", "job")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			values, err := scanRow(rows, 5)
			if err != nil {
				return err
			}
			read++
			tconst, _ := asString(values[0])
			ordering, _ := asInt64(values[1])
			nconst, _ := asString(values[2])
			category, _ := asString(values[3])

			titleID, ok := b.titleIDs[tconst]
			if !ok {
				dropped++
				continue
			}
			nameID, ok := b.nameIDs[nconst]
			if !ok {
				dropped++
				continue
			}
			professionID, _ := b.Professions.Resolve(category)

			id := int64(len(b.participationIDs)) + 1
			b.participationIDs[titleOrdering{tconst: tconst, ordering: ordering}] = id
			if err := emit([]any{id, titleID, ordering, nameID, professionID, values[4]}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	b.record(Result{Table: TableParticipation, Read: read, Written: written, Dropped: dropped, Elapsed: time.Since(start)})
	b.checkTableCount(ctx, dataset.TitlePrincipals.TableName(), TableParticipation)
	return nil
}
