// Package snapshot is the indexed backend: the raw export loaded once into a
// local SQLite file, then queried with ordinary SQL.
package snapshot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	sqlite "modernc.org/sqlite"

	"github.com/shelfmark/seriesdb/internal/catalog"
	"github.com/shelfmark/seriesdb/internal/domain"
)

const driverName = "sqlite"

// SQLite's built-in LOWER folds ASCII only. Name matching has to fold the
// same way the raw-scan backend does (strings.ToLower), or the two backends
// disagree on non-ASCII series names, so a Unicode-aware variant is
// registered with the driver.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("ulower", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			if s, ok := args[0].(string); ok {
				return strings.ToLower(s), nil
			}
			return args[0], nil
		})
}

// maxParamsPerQuery keeps IN-list expansion under SQLite's bound-parameter
// limit (999 by default); inputs longer than this are queried in batches.
const maxParamsPerQuery = 900

// Backend serves catalog lookups from a snapshot database file.
type Backend struct {
	db *sql.DB
}

var _ catalog.Backend = (*Backend)(nil)

// Open opens an existing snapshot file.
func Open(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot: %w", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Close() error { return b.db.Close() }

// batched runs fn once per id chunk that fits the parameter budget.
func batched(ids []int64, fn func(chunk []int64) error) error {
	for start := 0; start < len(ids); start += maxParamsPerQuery {
		end := start + maxParamsPerQuery
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type seriesRow struct {
	id       int64
	title    sql.NullString
	parent   sql.NullInt64
	stype    sql.NullString
	position sql.NullInt64
}

func (r seriesRow) ref() domain.SeriesRef {
	ref := domain.SeriesRef{ID: r.id, Title: r.title.String}
	if r.parent.Valid && r.parent.Int64 > 0 {
		ref.ParentID = &r.parent.Int64
	}
	if r.stype.Valid {
		ref.Type = &r.stype.String
	}
	if r.position.Valid {
		ref.Position = &r.position.Int64
	}
	return ref
}

func (b *Backend) querySeries(ctx context.Context, where sq.Sqlizer, fn func(seriesRow)) error {
	query, args, err := sq.
		Select("series_id", "series_title", "series_parent", "series_type", "series_parent_position").
		From("series").
		Where(where).
		ToSql()
	if err != nil {
		return fmt.Errorf("build series query: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r seriesRow
		if err := rows.Scan(&r.id, &r.title, &r.parent, &r.stype, &r.position); err != nil {
			return fmt.Errorf("scan series row: %w", err)
		}
		fn(r)
	}
	return rows.Err()
}

func (b *Backend) FindSeriesByName(ctx context.Context, names []string) (map[string]domain.SeriesRef, error) {
	byLower := make(map[string]string, len(names))
	lower := make([]string, 0, len(names))
	for _, n := range names {
		l := strings.ToLower(n)
		byLower[l] = n
		lower = append(lower, l)
	}

	found := make(map[string]domain.SeriesRef)
	for start := 0; start < len(lower); start += maxParamsPerQuery {
		end := start + maxParamsPerQuery
		if end > len(lower) {
			end = len(lower)
		}
		err := b.querySeries(ctx, sq.Eq{"ulower(series_title)": lower[start:end]}, func(r seriesRow) {
			ref := r.ref()
			if orig, ok := byLower[strings.ToLower(ref.Title)]; ok {
				found[orig] = ref
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (b *Backend) FindSeriesByID(ctx context.Context, ids []int64) (map[int64]domain.SeriesRef, error) {
	found := make(map[int64]domain.SeriesRef, len(ids))
	err := batched(ids, func(chunk []int64) error {
		return b.querySeries(ctx, sq.Eq{"series_id": chunk}, func(r seriesRow) {
			found[r.id] = r.ref()
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (b *Backend) FindChildSeries(ctx context.Context, parentIDs []int64) (map[int64][]domain.SeriesRef, error) {
	children := make(map[int64][]domain.SeriesRef)
	err := batched(parentIDs, func(chunk []int64) error {
		return b.querySeries(ctx, sq.Eq{"series_parent": chunk}, func(r seriesRow) {
			ref := r.ref()
			if ref.ParentID != nil {
				children[*ref.ParentID] = append(children[*ref.ParentID], ref)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (b *Backend) FindTitles(ctx context.Context, seriesIDs []int64) (map[int64][]domain.TitleRef, error) {
	types := make([]string, 0, len(domain.IncludedWorkTypes))
	for t := range domain.IncludedWorkTypes {
		types = append(types, t)
	}

	titles := make(map[int64][]domain.TitleRef)
	err := batched(seriesIDs, func(chunk []int64) error {
		// The type filter is pushed into SQL; parentage, language and the
		// title denylist are applied in Go so both backends share one rule.
		query, args, err := sq.
			Select("title_id", "title_title", "series_id", "title_seriesnum",
				"title_copyright", "title_ttype", "title_parent", "title_language").
			From("titles").
			Where(sq.Eq{"series_id": chunk}).
			Where(sq.Eq{"title_ttype": types}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build titles query: %w", err)
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query titles: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id        int64
				title     sql.NullString
				seriesID  int64
				seriesNum sql.NullString
				copyright sql.NullString
				ttype     string
				parent    sql.NullInt64
				language  sql.NullInt64
			)
			if err := rows.Scan(&id, &title, &seriesID, &seriesNum, &copyright, &ttype, &parent, &language); err != nil {
				return fmt.Errorf("scan title row: %w", err)
			}

			var parentPtr, languagePtr *int64
			if parent.Valid {
				parentPtr = &parent.Int64
			}
			if language.Valid {
				languagePtr = &language.Int64
			}
			if !catalog.TitleEligible(ttype, parentPtr, languagePtr) {
				continue
			}
			if !catalog.IncludeTitle(title.String) {
				continue
			}

			ref := domain.TitleRef{
				ID:       id,
				Title:    title.String,
				SeriesID: seriesID,
				Type:     ttype,
			}
			if seriesNum.Valid {
				ref.SeriesNum = &seriesNum.String
			}
			if copyright.Valid {
				ref.Copyright = &copyright.String
			}
			titles[seriesID] = append(titles[seriesID], ref)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return titles, nil
}

func (b *Backend) FindTitleAuthors(ctx context.Context, titleIDs []int64) (map[int64]int64, error) {
	authors := make(map[int64]int64, len(titleIDs))
	err := batched(titleIDs, func(chunk []int64) error {
		query, args, err := sq.
			Select("title_id", "author_id").
			From("canonical_author").
			Where(sq.Eq{"title_id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build canonical_author query: %w", err)
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query canonical_author: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var titleID, authorID int64
			if err := rows.Scan(&titleID, &authorID); err != nil {
				return fmt.Errorf("scan canonical_author row: %w", err)
			}
			authors[titleID] = authorID
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return authors, nil
}

func (b *Backend) FindAuthorNames(ctx context.Context, authorIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(authorIDs))
	err := batched(authorIDs, func(chunk []int64) error {
		query, args, err := sq.
			Select("author_id", "author_canonical").
			From("authors").
			Where(sq.Eq{"author_id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build authors query: %w", err)
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query authors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   int64
				name sql.NullString
			)
			if err := rows.Scan(&id, &name); err != nil {
				return fmt.Errorf("scan author row: %w", err)
			}
			if name.Valid {
				names[id] = name.String
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (b *Backend) FindEditions(ctx context.Context, titleIDs []int64) (map[int64]domain.EditionRef, error) {
	titleToPubs := make(map[int64][]int64)
	var pubIDs []int64
	seenPub := make(map[int64]bool)

	err := batched(titleIDs, func(chunk []int64) error {
		query, args, err := sq.
			Select("title_id", "pub_id").
			From("pub_content").
			Where(sq.Eq{"title_id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build pub_content query: %w", err)
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query pub_content: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var titleID, pubID int64
			if err := rows.Scan(&titleID, &pubID); err != nil {
				return fmt.Errorf("scan pub_content row: %w", err)
			}
			titleToPubs[titleID] = append(titleToPubs[titleID], pubID)
			if !seenPub[pubID] {
				seenPub[pubID] = true
				pubIDs = append(pubIDs, pubID)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	editions := make(map[int64]domain.EditionRef, len(pubIDs))
	err = batched(pubIDs, func(chunk []int64) error {
		query, args, err := sq.
			Select("pub_id", "pub_pages", "pub_ptype", "pub_isbn", "pub_frontimage", "pub_price").
			From("pubs").
			Where(sq.Eq{"pub_id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build pubs query: %w", err)
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query pubs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id                                    int64
				pages, ptype, isbn, frontimage, price sql.NullString
			)
			if err := rows.Scan(&id, &pages, &ptype, &isbn, &frontimage, &price); err != nil {
				return fmt.Errorf("scan pub row: %w", err)
			}
			e := domain.EditionRef{ID: id}
			if pages.Valid {
				e.Pages = &pages.String
			}
			if ptype.Valid {
				e.Format = &ptype.String
			}
			if isbn.Valid {
				e.ISBN = &isbn.String
			}
			if frontimage.Valid {
				e.CoverURL = &frontimage.String
			}
			if price.Valid {
				e.Price = &price.String
			}
			editions[id] = e
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return catalog.BuildEditionIndex(titleToPubs, editions), nil
}
