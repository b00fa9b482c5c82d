package pipeline

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"pimdb/internal/dataset"
	"pimdb/internal/normalize"
	"pimdb/internal/storage"
)

// buildInputs are the staging tables the build reads. TitleCrew is staged
// for direct querying only and takes no part in the normalized schema.
var buildInputs = []dataset.ID{
	dataset.NameBasics,
	dataset.TitleAkas,
	dataset.TitleBasics,
	dataset.TitleEpisode,
	dataset.TitlePrincipals,
	dataset.TitleRatings,
}

// intermediateStaging are staging tables consumed only by the build. They
// are dropped once a build completes, keeping the queryable ones
// (NameBasics, TitleBasics, TitleCrew).
var intermediateStaging = []dataset.ID{
	dataset.TitleAkas,
	dataset.TitleEpisode,
	dataset.TitlePrincipals,
	dataset.TitleRatings,
}

// Build derives the full normalized schema from the current staging
// tables. Stages run in dependency order: entities first (names and titles
// before the tables referencing them), then the independent relation
// tables concurrently, then the key table flush. A failed stage leaves
// completed stages' tables in place; re-running recreates everything.
func Build(ctx context.Context, repo storage.Repository, opts Options) ([]TableSummary, error) {
	for _, id := range buildInputs {
		exists, err := repo.TableExists(ctx, id.TableName())
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("staging table %s is missing, run transfer first", id.TableName())
		}
	}

	b := normalize.NewBuilder(repo, opts.batchSize())
	if err := runStage("build:create-tables", func() error { return b.CreateTables(ctx) }); err != nil {
		return nil, err
	}

	entityStages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{normalize.TableName, b.BuildName},
		{normalize.TableTitle, b.BuildTitle},
		{normalize.TableTitleAlias, b.BuildTitleAlias},
		{normalize.TableEpisode, b.BuildEpisode},
		{normalize.TableParticipation, b.BuildParticipation},
	}
	for _, stage := range entityStages {
		if err := runStage("build:"+stage.name, func() error { return stage.fn(ctx) }); err != nil {
			return buildSummaries(b.Results()), err
		}
	}

	// The relation tables have no dependencies on each other and touch
	// disjoint vocabularies, so they can run concurrently.
	relationStages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{normalize.TableTitleToGenre, b.BuildTitleToGenre},
		{normalize.TableNameToKnownForTitle, b.BuildNameToKnownForTitle},
		{normalize.TableParticipationToCharacter, b.BuildParticipationToCharacter},
		{normalize.TableTitleAliasToTitleAliasType, b.BuildTitleAliasToTitleAliasType},
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, stage := range relationStages {
		g.Go(func() error {
			return runStage("build:"+stage.name, func() error { return stage.fn(gctx) })
		})
	}
	if err := g.Wait(); err != nil {
		return buildSummaries(b.Results()), err
	}

	if err := runStage("build:key-tables", func() error { return b.FlushKeyTables(ctx) }); err != nil {
		return buildSummaries(b.Results()), err
	}

	for _, id := range intermediateStaging {
		log.Printf("dropping intermediate staging table %s", id.TableName())
		if err := repo.Exec(ctx, storage.BuildDropTableSQL(id.TableName())); err != nil {
			return buildSummaries(b.Results()), fmt.Errorf("drop %s: %w", id.TableName(), err)
		}
	}
	return buildSummaries(b.Results()), nil
}
