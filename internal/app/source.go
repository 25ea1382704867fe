package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shelfmark/seriesdb/internal/catalog"
	"github.com/shelfmark/seriesdb/internal/catalog/dump"
	"github.com/shelfmark/seriesdb/internal/catalog/snapshot"
)

var sqliteMagic = []byte("SQLite format 3")

// OpenBackend opens the right catalog backend for path: the indexed snapshot
// when the file is a SQLite database (by extension or header), the raw-scan
// backend otherwise.
func OpenBackend(ctx context.Context, path string, log *slog.Logger) (catalog.Backend, error) {
	isSnapshot := strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite")
	if !isSnapshot {
		header := make([]byte, len(sqliteMagic))
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open source %s: %w", path, err)
		}
		n, _ := f.Read(header)
		f.Close()
		isSnapshot = n == len(sqliteMagic) && string(header) == string(sqliteMagic)
	}

	if isSnapshot {
		log.Info("using indexed snapshot backend", "path", path)
		return snapshot.Open(ctx, path)
	}
	log.Info("using raw-scan backend, every query is a full file pass", "path", path)
	return dump.NewBackend(path), nil
}
