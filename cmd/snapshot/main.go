// Command snapshot loads a raw catalog export into an indexed SQLite
// snapshot so later imports query it instead of re-scanning the dump
// (roughly a 100x speedup per query).
//
// Usage:
//
//	snapshot --dump <export.sql> [--out <snapshot.db>]
//
// The load is idempotent: rows already present are skipped.
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shelfmark/seriesdb/internal/app"
	"github.com/shelfmark/seriesdb/internal/catalog/snapshot"
	"github.com/shelfmark/seriesdb/internal/config"
)

func main() {
	dumpFlag := flag.String("dump", "", "path to the raw catalog export")
	outFlag := flag.String("out", "./catalog-snapshot.db", "path of the snapshot database to create")
	flag.Parse()

	if *dumpFlag == "" {
		log.Fatal("usage: snapshot --dump <export.sql> [--out <snapshot.db>]")
	}

	// No destination store involved; logging config comes from env only.
	logger := app.NewLogger(config.LogConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	start := time.Now()
	counts, err := snapshot.CreateSnapshot(ctx, *dumpFlag, *outFlag, logger)
	if err != nil {
		logger.Error("create snapshot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	total := int64(0)
	for table, n := range counts {
		logger.Info("table loaded", slog.String("table", table), slog.Int64("rows", n))
		total += n
	}
	logger.Info("snapshot ready",
		slog.String("path", *outFlag),
		slog.Int64("rows", total),
		slog.Duration("took", time.Since(start)))
}
