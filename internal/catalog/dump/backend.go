package dump

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/shelfmark/seriesdb/internal/catalog"
	"github.com/shelfmark/seriesdb/internal/domain"
)

// Scanner buffer sizing: export lines hold whole bulk-insert statements and
// run to many megabytes.
const (
	scanInitialBuf = 1 << 20 // 1 MiB
	scanMaxBuf     = 256 << 20
)

// Backend answers catalog lookups by scanning the raw export file. Every
// query is one full pass over the file; no state is kept between queries, so
// an interrupted run restarts from scratch.
type Backend struct {
	path string
}

var _ catalog.Backend = (*Backend)(nil)

// NewBackend creates a raw-scan backend over the export at path.
func NewBackend(path string) *Backend {
	return &Backend{path: path}
}

// Close is a no-op; the file is reopened per query.
func (b *Backend) Close() error { return nil }

// scanTable runs fn over every tuple of the named table's insert statements.
// The export is latin1 encoded.
func (b *Backend) scanTable(ctx context.Context, table string, fn func(Row)) error {
	f, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	marker := "INSERT INTO `" + table + "`"

	scanner := bufio.NewScanner(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	scanner.Buffer(make([]byte, 0, scanInitialBuf), scanMaxBuf)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if !strings.Contains(line, marker) {
			continue
		}
		for _, row := range ParseTuples(line) {
			fn(row)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan export: %w", err)
	}
	return nil
}

// seriesFromRow builds a SeriesRef from a series tuple. A parent id of 0 is
// the same "no parent" sentinel as NULL.
func seriesFromRow(row Row) (domain.SeriesRef, bool) {
	if len(row) < ColumnCounts[TableSeries] {
		return domain.SeriesRef{}, false
	}
	id, ok := row.Int(seriesColID)
	if !ok {
		return domain.SeriesRef{}, false
	}
	title, _ := row.String(seriesColTitle)

	ref := domain.SeriesRef{
		ID:       id,
		Title:    title,
		Position: row.IntPtr(seriesColPosition),
		Type:     row.StringPtr(seriesColType),
	}
	if p := row.IntPtr(seriesColParent); p != nil && *p > 0 {
		ref.ParentID = p
	}
	return ref, true
}

func (b *Backend) FindSeriesByName(ctx context.Context, names []string) (map[string]domain.SeriesRef, error) {
	byLower := make(map[string]string, len(names))
	for _, n := range names {
		byLower[strings.ToLower(n)] = n
	}

	found := make(map[string]domain.SeriesRef)
	err := b.scanTable(ctx, TableSeries, func(row Row) {
		ref, ok := seriesFromRow(row)
		if !ok || ref.Title == "" {
			return
		}
		if orig, ok := byLower[strings.ToLower(ref.Title)]; ok {
			found[orig] = ref
		}
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (b *Backend) FindSeriesByID(ctx context.Context, ids []int64) (map[int64]domain.SeriesRef, error) {
	want := idSet(ids)
	found := make(map[int64]domain.SeriesRef, len(ids))

	err := b.scanTable(ctx, TableSeries, func(row Row) {
		ref, ok := seriesFromRow(row)
		if ok && want[ref.ID] {
			found[ref.ID] = ref
		}
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (b *Backend) FindChildSeries(ctx context.Context, parentIDs []int64) (map[int64][]domain.SeriesRef, error) {
	want := idSet(parentIDs)
	children := make(map[int64][]domain.SeriesRef)

	err := b.scanTable(ctx, TableSeries, func(row Row) {
		ref, ok := seriesFromRow(row)
		if !ok || ref.ParentID == nil {
			return
		}
		if want[*ref.ParentID] {
			children[*ref.ParentID] = append(children[*ref.ParentID], ref)
		}
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (b *Backend) FindTitles(ctx context.Context, seriesIDs []int64) (map[int64][]domain.TitleRef, error) {
	want := idSet(seriesIDs)
	titles := make(map[int64][]domain.TitleRef)

	err := b.scanTable(ctx, TableTitles, func(row Row) {
		if len(row) < ColumnCounts[TableTitles] {
			return
		}
		sid, ok := row.Int(titleColSeriesID)
		if !ok || !want[sid] {
			return
		}
		ttype, _ := row.String(titleColType)
		if !catalog.TitleEligible(ttype, row.IntPtr(titleColParent), row.IntPtr(titleColLanguage)) {
			return
		}
		title, _ := row.String(titleColTitle)
		if !catalog.IncludeTitle(title) {
			return
		}
		id, ok := row.Int(titleColID)
		if !ok {
			return
		}
		titles[sid] = append(titles[sid], domain.TitleRef{
			ID:        id,
			Title:     title,
			SeriesID:  sid,
			SeriesNum: row.StringPtr(titleColSeriesNum),
			Copyright: row.StringPtr(titleColCopyright),
			Type:      ttype,
		})
	})
	if err != nil {
		return nil, err
	}
	return titles, nil
}

func (b *Backend) FindTitleAuthors(ctx context.Context, titleIDs []int64) (map[int64]int64, error) {
	want := idSet(titleIDs)
	authors := make(map[int64]int64, len(titleIDs))

	err := b.scanTable(ctx, TableCanonicalAuthor, func(row Row) {
		if len(row) < ColumnCounts[TableCanonicalAuthor] {
			return
		}
		titleID, ok := row.Int(caColTitleID)
		if !ok || !want[titleID] {
			return
		}
		if authorID, ok := row.Int(caColAuthorID); ok {
			authors[titleID] = authorID
		}
	})
	if err != nil {
		return nil, err
	}
	return authors, nil
}

func (b *Backend) FindAuthorNames(ctx context.Context, authorIDs []int64) (map[int64]string, error) {
	want := idSet(authorIDs)
	names := make(map[int64]string, len(authorIDs))

	err := b.scanTable(ctx, TableAuthors, func(row Row) {
		if len(row) < 2 {
			return
		}
		id, ok := row.Int(authorColID)
		if !ok || !want[id] {
			return
		}
		if name, ok := row.String(authorColName); ok {
			names[id] = name
		}
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (b *Backend) FindEditions(ctx context.Context, titleIDs []int64) (map[int64]domain.EditionRef, error) {
	want := idSet(titleIDs)

	// Pass 1: edition links for our titles.
	titleToPubs := make(map[int64][]int64)
	pubWanted := make(map[int64]bool)
	err := b.scanTable(ctx, TablePubContent, func(row Row) {
		if len(row) < 3 {
			return
		}
		titleID, ok := row.Int(pcColTitleID)
		if !ok || !want[titleID] {
			return
		}
		pubID, ok := row.Int(pcColPubID)
		if !ok {
			return
		}
		titleToPubs[titleID] = append(titleToPubs[titleID], pubID)
		pubWanted[pubID] = true
	})
	if err != nil {
		return nil, err
	}

	// Pass 2: the editions themselves.
	editions := make(map[int64]domain.EditionRef, len(pubWanted))
	err = b.scanTable(ctx, TablePubs, func(row Row) {
		if len(row) < ColumnCounts[TablePubs] {
			return
		}
		id, ok := row.Int(pubColID)
		if !ok || !pubWanted[id] {
			return
		}
		editions[id] = domain.EditionRef{
			ID:       id,
			Format:   row.StringPtr(pubColFormat),
			ISBN:     row.StringPtr(pubColISBN),
			CoverURL: row.StringPtr(pubColFrontImage),
			Pages:    row.StringPtr(pubColPages),
			Price:    row.StringPtr(pubColPrice),
		}
	})
	if err != nil {
		return nil, err
	}

	return catalog.BuildEditionIndex(titleToPubs, editions), nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
