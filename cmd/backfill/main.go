// Command backfill resolves a large batch of already-known destination series
// against the source catalog and fills in missing external identifiers and
// parent links. It never creates non-parent series and never touches book
// lists; resolving skips the title/author/edition graph entirely, which is
// what makes large batches practical.
//
// Flags:
//
//	--source      path to the catalog source (snapshot .db or raw dump)
//	--names-file  file with one series name per line ("-" for stdin)
//	--dry-run     resolve and report without writing to the DB
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shelfmark/seriesdb/internal/adapter/postgres"
	"github.com/shelfmark/seriesdb/internal/adapter/postgres/seriesstore"
	"github.com/shelfmark/seriesdb/internal/app"
	"github.com/shelfmark/seriesdb/internal/config"
	"github.com/shelfmark/seriesdb/internal/importer"
	"github.com/shelfmark/seriesdb/internal/resolver"
)

func main() {
	sourceFlag := flag.String("source", "", "path to catalog source (snapshot or raw dump)")
	namesFileFlag := flag.String("names-file", "", `file with one series name per line ("-" for stdin)`)
	dryRunFlag := flag.Bool("dry-run", false, "resolve and report without writing")
	flag.Parse()

	if *namesFileFlag == "" {
		log.Fatal("usage: backfill --names-file <file> [flags]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg.Log)

	names, err := readNames(*namesFileFlag)
	if err != nil {
		logger.Error("read names file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(names) == 0 {
		logger.Error("names file contains no series names")
		os.Exit(1)
	}

	sourcePath := *sourceFlag
	if sourcePath == "" {
		sourcePath = cfg.Source.SnapshotPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
	defer cancel()

	backend, err := app.OpenBackend(ctx, sourcePath, logger)
	if err != nil {
		logger.Error("open source backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()

	logger.Info("resolving identifiers", slog.Int("names", len(names)))
	res, err := resolver.New(backend, logger).ResolveIdentifiers(ctx, names)
	if err != nil {
		logger.Error("resolve identifiers", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("resolution done",
		slog.Int("matched", len(res.Entries)),
		slog.Int("unmatched", len(res.Unmatched)))

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	engine := importer.NewEngine(
		seriesstore.New(pool),
		postgres.NewTxManager(pool),
		logger,
		importer.Config{Source: cfg.Import.SourceTag, DryRun: *dryRunFlag},
	)

	summary, err := engine.Backfill(ctx, res.Entries)
	if err != nil {
		logger.Error("backfill failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("backfill complete",
		slog.Bool("dry_run", *dryRunFlag),
		slog.Int("series_updated", summary.SeriesUpdated),
		slog.Int("series_unchanged", summary.SeriesUnchanged),
		slog.Int("series_skipped", summary.SeriesSkipped),
		slog.Int("parent_stubs", summary.ParentStubs),
	)
}

func readNames(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	return names, scanner.Err()
}
