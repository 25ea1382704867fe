package snapshot

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/shelfmark/seriesdb/internal/catalog/dump"
)

// Only the six tables the queries touch are materialized; the rest of the
// export is skipped. Schemas mirror the source's column order exactly so the
// parsed tuples insert positionally.
var tableSchemas = map[string]string{
	dump.TableSeries: `
		CREATE TABLE IF NOT EXISTS series (
			series_id     INTEGER PRIMARY KEY,
			series_title  TEXT,
			series_parent INTEGER,
			series_type   TEXT,
			series_parent_position INTEGER,
			series_note_id INTEGER
		)`,
	dump.TableTitles: `
		CREATE TABLE IF NOT EXISTS titles (
			title_id        INTEGER PRIMARY KEY,
			title_title     TEXT,
			title_translator INTEGER,
			title_synopsis  INTEGER,
			note_id         INTEGER,
			series_id       INTEGER,
			title_seriesnum TEXT,
			title_copyright TEXT,
			title_storylen  TEXT,
			title_ttype     TEXT,
			title_wikipedia TEXT,
			title_views     INTEGER,
			title_parent    INTEGER,
			title_rating    REAL,
			title_annualviews INTEGER,
			title_ctl       INTEGER,
			title_language  INTEGER,
			title_seriesnum_2 TEXT,
			title_non_genre TEXT,
			title_graphic   TEXT,
			title_nvz       TEXT,
			title_jvn       TEXT,
			title_content   INTEGER
		)`,
	dump.TableCanonicalAuthor: `
		CREATE TABLE IF NOT EXISTS canonical_author (
			ca_id     INTEGER PRIMARY KEY,
			title_id  INTEGER,
			author_id INTEGER,
			ca_status INTEGER
		)`,
	dump.TableAuthors: `
		CREATE TABLE IF NOT EXISTS authors (
			author_id        INTEGER PRIMARY KEY,
			author_canonical TEXT,
			author_legalname TEXT,
			author_birthplace TEXT,
			author_birthdate  TEXT,
			author_deathdate  TEXT,
			note_id           INTEGER,
			author_wikipedia  TEXT,
			author_views      INTEGER,
			author_imdb       TEXT,
			author_marque     TEXT,
			author_image      TEXT,
			author_annualviews INTEGER,
			author_lastname   TEXT,
			author_language   INTEGER,
			author_note       INTEGER
		)`,
	dump.TablePubContent: `
		CREATE TABLE IF NOT EXISTS pub_content (
			pubc_id   INTEGER PRIMARY KEY,
			title_id  INTEGER,
			pub_id    INTEGER,
			pubc_page TEXT
		)`,
	dump.TablePubs: `
		CREATE TABLE IF NOT EXISTS pubs (
			pub_id       INTEGER PRIMARY KEY,
			pub_title    TEXT,
			pub_tag      TEXT,
			pub_year     TEXT,
			publisher_id INTEGER,
			pub_pages    TEXT,
			pub_ptype    TEXT,
			pub_ctype    TEXT,
			pub_isbn     TEXT,
			pub_frontimage TEXT,
			pub_price    TEXT,
			note_id      INTEGER,
			pub_series_id INTEGER,
			pub_series_num TEXT,
			pub_catalog  TEXT
		)`,
}

// Export lines hold whole bulk-insert statements and run to many megabytes.
const (
	scanInitialBuf = 1 << 20 // 1 MiB
	scanMaxBuf     = 256 << 20
)

// commitEveryRows bounds how much uncommitted work a load transaction holds;
// the export runs to millions of rows. Variable so tests can force multiple
// commit cycles on a small fixture.
var commitEveryRows = 50000

var indexDDL = []string{
	"CREATE INDEX IF NOT EXISTS idx_series_title ON series(series_title)",
	"CREATE INDEX IF NOT EXISTS idx_series_parent ON series(series_parent)",
	"CREATE INDEX IF NOT EXISTS idx_titles_series_id ON titles(series_id)",
	"CREATE INDEX IF NOT EXISTS idx_titles_ttype ON titles(title_ttype)",
	"CREATE INDEX IF NOT EXISTS idx_titles_parent ON titles(title_parent)",
	"CREATE INDEX IF NOT EXISTS idx_ca_title_id ON canonical_author(title_id)",
	"CREATE INDEX IF NOT EXISTS idx_ca_author_id ON canonical_author(author_id)",
	"CREATE INDEX IF NOT EXISTS idx_pc_title_id ON pub_content(title_id)",
	"CREATE INDEX IF NOT EXISTS idx_pc_pub_id ON pub_content(pub_id)",
}

// Bulk-load tuning; safe because the snapshot is rebuilt from scratch if the
// process dies mid-load.
var loadPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
}

// CreateSnapshot builds a snapshot database at dbPath from the raw export at
// dumpPath. Existing rows are kept (INSERT OR IGNORE), so re-running over the
// same file is harmless. Returns per-table row counts.
func CreateSnapshot(ctx context.Context, dumpPath, dbPath string, log *slog.Logger) (map[string]int64, error) {
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	for _, pragma := range loadPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	for table, ddl := range tableSchemas {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}

	counts, err := loadDump(ctx, db, dumpPath, log)
	if err != nil {
		return nil, err
	}

	log.Info("creating indexes")
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return counts, nil
}

func loadDump(ctx context.Context, db *sql.DB, dumpPath string, log *slog.Logger) (map[string]int64, error) {
	f, err := os.Open(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	stmts := make(map[string]*sql.Stmt, len(tableSchemas))
	for table, cols := range dump.ColumnCounts {
		placeholders := make([]any, cols)
		query, _, err := sq.Insert(table).Options("OR IGNORE").Values(placeholders...).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert for %s: %w", table, err)
		}
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("prepare insert for %s: %w", table, err)
		}
		defer stmt.Close()
		stmts[table] = stmt
	}

	// Work happens in bounded transactions, committed every commitEveryRows
	// rows so a multi-hundred-MB load never holds one giant transaction.
	var tx *sql.Tx
	txStmts := make(map[string]*sql.Stmt, len(stmts))
	begin := func() error {
		var err error
		tx, err = db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin load tx: %w", err)
		}
		for table, stmt := range stmts {
			txStmts[table] = tx.StmtContext(ctx, stmt)
		}
		return nil
	}
	if err := begin(); err != nil {
		return nil, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	counts := make(map[string]int64, len(tableSchemas))
	pending := 0

	scanner := bufio.NewScanner(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	scanner.Buffer(make([]byte, 0, scanInitialBuf), scanMaxBuf)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		table := dump.DetectTable(line)
		if _, ok := stmts[table]; !ok {
			continue
		}
		want := dump.ColumnCounts[table]

		for _, row := range dump.ParseTuples(line) {
			// Pad short tuples with NULL and drop extra columns so schema
			// drift in the export degrades instead of aborting the load.
			vals := make([]any, want)
			copy(vals, row)
			res, err := txStmts[table].ExecContext(ctx, vals...)
			if err != nil {
				log.Warn("insert failed, row skipped", "table", table, "error", err)
				continue
			}
			if n, err := res.RowsAffected(); err == nil {
				counts[table] += n
			}

			pending++
			if pending >= commitEveryRows {
				if err := tx.Commit(); err != nil {
					tx = nil
					return nil, fmt.Errorf("commit load batch: %w", err)
				}
				tx = nil
				if err := begin(); err != nil {
					return nil, err
				}
				pending = 0
			}
		}

		if counts[table]%100000 == 0 && counts[table] > 0 {
			log.Info("loading", "table", table, "rows", counts[table])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		tx = nil
		return nil, fmt.Errorf("commit load: %w", err)
	}
	tx = nil
	return counts, nil
}
