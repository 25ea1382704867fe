// Command importer resolves target series names against a source catalog
// export and reconciles them into the destination store.
//
// Usage:
//
//	importer [flags] "Series Name" ["Series Name" ...]
//
// Flags:
//
//	--source           path to the catalog source (snapshot .db or raw dump);
//	                   overrides the configured paths
//	--genre            genre tag stamped onto inserted series
//	--merge-subseries  fold direct sub-series into their target parent
//	--dry-run          resolve and report without writing to the DB
//
// Exit codes: 0 = success, 1 = error (including zero matched series).
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shelfmark/seriesdb/internal/adapter/postgres"
	"github.com/shelfmark/seriesdb/internal/adapter/postgres/seriesstore"
	"github.com/shelfmark/seriesdb/internal/app"
	"github.com/shelfmark/seriesdb/internal/config"
	"github.com/shelfmark/seriesdb/internal/domain"
	"github.com/shelfmark/seriesdb/internal/importer"
	"github.com/shelfmark/seriesdb/internal/resolver"
)

// Compile-time interface assertion.
var _ importer.SeriesStore = (*seriesstore.Repo)(nil)

func main() {
	sourceFlag := flag.String("source", "", "path to catalog source (snapshot or raw dump)")
	genreFlag := flag.String("genre", "", "genre tag for inserted series")
	mergeFlag := flag.Bool("merge-subseries", false, "fold direct sub-series into their parent")
	dryRunFlag := flag.Bool("dry-run", false, "resolve and report without writing")
	flag.Parse()

	names := flag.Args()
	if len(names) == 0 {
		log.Fatal("usage: importer [flags] \"Series Name\" [\"Series Name\" ...]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg.Log)

	sourcePath := *sourceFlag
	if sourcePath == "" {
		sourcePath = cfg.Source.SnapshotPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	backend, err := app.OpenBackend(ctx, sourcePath, logger)
	if err != nil {
		logger.Error("open source backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()

	res, err := resolver.New(backend, logger).Resolve(ctx, names, resolver.Options{
		MergeSubseries: *mergeFlag,
	})
	if err != nil {
		logger.Error("resolve series", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, name := range res.Unmatched {
		logger.Warn("not found in catalog", slog.String("series", name))
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	engineCfg := importer.Config{
		Source: cfg.Import.SourceTag,
		DryRun: *dryRunFlag,
	}
	if *genreFlag != "" {
		engineCfg.Genre = genreFlag
	}

	engine := importer.NewEngine(
		seriesstore.New(pool),
		postgres.NewTxManager(pool),
		logger,
		engineCfg,
	)

	summary, err := engine.Import(ctx, res.Entries)
	if errors.Is(err, domain.ErrNoSeriesMatched) {
		logger.Error("no series matched, nothing to import")
		os.Exit(1)
	}
	if err != nil {
		logger.Error("import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("import complete",
		slog.Bool("dry_run", *dryRunFlag),
		slog.Int("series_inserted", summary.SeriesInserted),
		slog.Int("series_updated", summary.SeriesUpdated),
		slog.Int("series_unchanged", summary.SeriesUnchanged),
		slog.Int("books_inserted", summary.BooksInserted),
		slog.Int("parent_stubs", summary.ParentStubs),
		slog.Int("source_records", summary.SourceRecords),
	)
}
