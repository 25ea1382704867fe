// Package resolver turns target series names into fully assembled
// ResolvedSeriesEntry values: catalog identifiers, parent and sub-series
// discovery, per-book author and edition resolution, and optional merging of
// direct sub-series into their parent.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/shelfmark/seriesdb/internal/catalog"
	"github.com/shelfmark/seriesdb/internal/domain"
)

// Position and year sort sentinels: absent values sort last.
const (
	positionSentinel = 999
	yearSentinel     = 9999
)

// Options control resolution behavior.
type Options struct {
	// MergeSubseries folds each target's direct children into the target's
	// own book list instead of emitting them as independent entries.
	MergeSubseries bool
}

// Result is the outcome of one resolution run. Unmatched names are reported,
// not fatal; the caller decides whether an empty Entries set aborts the run.
type Result struct {
	Entries   []domain.ResolvedSeriesEntry
	Unmatched []string
}

// Resolver resolves series names against a source catalog backend.
type Resolver struct {
	backend catalog.Backend
	log     *slog.Logger
}

func New(backend catalog.Backend, log *slog.Logger) *Resolver {
	return &Resolver{backend: backend, log: log}
}

// Resolve assembles full entries (books, authors, editions) for the given
// target names.
func (r *Resolver) Resolve(ctx context.Context, names []string, opts Options) (*Result, error) {
	found, unmatched, parents, err := r.resolveSeries(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return &Result{Unmatched: unmatched}, nil
	}

	// Targets in input order, then parents in ascending id order, so entry
	// output order is stable run to run.
	targetIDs := make(map[int64]bool, len(found))
	searchIDs := make([]int64, 0, len(found)+len(parents))
	for _, name := range names {
		if ref, ok := found[name]; ok && !targetIDs[ref.ID] {
			targetIDs[ref.ID] = true
			searchIDs = append(searchIDs, ref.ID)
		}
	}
	parentIDs := make([]int64, 0, len(parents))
	for id := range parents {
		if !targetIDs[id] {
			parentIDs = append(parentIDs, id)
		}
	}
	slices.Sort(parentIDs)
	searchIDs = append(searchIDs, parentIDs...)

	// Children of targets surface sub-series; children of parents surface
	// siblings reachable through a shared parent.
	children, err := r.backend.FindChildSeries(ctx, searchIDs)
	if err != nil {
		return nil, fmt.Errorf("find child series: %w", err)
	}

	allSeriesIDs := slices.Clone(searchIDs)
	for _, refs := range children {
		for _, ref := range refs {
			if !targetIDs[ref.ID] {
				allSeriesIDs = append(allSeriesIDs, ref.ID)
			}
		}
	}

	titles, err := r.backend.FindTitles(ctx, allSeriesIDs)
	if err != nil {
		return nil, fmt.Errorf("find titles: %w", err)
	}
	var titleIDs []int64
	for _, refs := range titles {
		for _, t := range refs {
			titleIDs = append(titleIDs, t.ID)
		}
	}

	titleAuthors, err := r.backend.FindTitleAuthors(ctx, titleIDs)
	if err != nil {
		return nil, fmt.Errorf("find title authors: %w", err)
	}
	authorIDSet := make(map[int64]bool, len(titleAuthors))
	var authorIDs []int64
	for _, id := range titleAuthors {
		if !authorIDSet[id] {
			authorIDSet[id] = true
			authorIDs = append(authorIDs, id)
		}
	}
	authorNames, err := r.backend.FindAuthorNames(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("find author names: %w", err)
	}

	editions, err := r.backend.FindEditions(ctx, titleIDs)
	if err != nil {
		return nil, fmt.Errorf("find editions: %w", err)
	}

	assemble := func(seriesID int64) []domain.ResolvedBook {
		refs := titles[seriesID]
		books := make([]domain.ResolvedBook, 0, len(refs))
		for _, t := range refs {
			book := domain.ResolvedBook{
				Title:         t.Title,
				Position:      parsePosition(t.SeriesNum),
				Author:        domain.UnknownAuthor,
				Year:          yearFromDate(t.Copyright),
				SourceTitleID: t.ID,
			}
			if authorID, ok := titleAuthors[t.ID]; ok {
				if name, ok := authorNames[authorID]; ok {
					book.Author = name
				}
			}
			if e, ok := editions[t.ID]; ok {
				book.ISBN = e.ISBN
				book.CoverURL = e.CoverURL
				book.Pages = e.Pages
			}
			books = append(books, book)
		}
		sortBooks(books)
		return books
	}

	merged := make(map[int64]bool)
	var entries []domain.ResolvedSeriesEntry

	for _, name := range names {
		ref, ok := found[name]
		if !ok {
			continue
		}
		entry := domain.ResolvedSeriesEntry{
			SeriesID: ref.ID,
			Title:    ref.Title,
			Books:    assemble(ref.ID),
		}
		if ref.ParentID != nil {
			if p, ok := parents[*ref.ParentID]; ok {
				entry.Parent = &domain.ParentInfo{SeriesID: p.ID, Title: p.Title}
			}
		}

		if opts.MergeSubseries {
			for _, child := range children[ref.ID] {
				if targetIDs[child.ID] {
					continue
				}
				merged[child.ID] = true
				entry.Books = mergeBooks(entry.Books, assemble(child.ID))
				r.log.Info("merged sub-series into parent",
					"parent", ref.Title, "child", child.Title)
			}
		}
		entries = append(entries, entry)
	}

	// Non-merged discovered children become entries of their own, annotated
	// with the parent that surfaced them.
	for _, parentID := range searchIDs {
		for _, child := range children[parentID] {
			if targetIDs[child.ID] || merged[child.ID] {
				continue
			}
			entry := domain.ResolvedSeriesEntry{
				SeriesID: child.ID,
				Title:    child.Title,
				Books:    assemble(child.ID),
			}
			if name, ok := seriesTitleByID(parentID, found, parents); ok {
				entry.Parent = &domain.ParentInfo{SeriesID: parentID, Title: name}
			}
			entries = append(entries, entry)
		}
	}

	return &Result{Entries: entries, Unmatched: unmatched}, nil
}

// ResolveIdentifiers resolves names to series and parent identifiers only,
// skipping the title/author/edition graph. Used by bulk backfill, where
// fetching full book lists for thousands of names would be prohibitive.
func (r *Resolver) ResolveIdentifiers(ctx context.Context, names []string) (*Result, error) {
	found, unmatched, parents, err := r.resolveSeries(ctx, names)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ResolvedSeriesEntry, 0, len(found))
	for _, name := range names {
		ref, ok := found[name]
		if !ok {
			continue
		}
		entry := domain.ResolvedSeriesEntry{SeriesID: ref.ID, Title: ref.Title}
		if ref.ParentID != nil {
			if p, ok := parents[*ref.ParentID]; ok {
				entry.Parent = &domain.ParentInfo{SeriesID: p.ID, Title: p.Title}
			}
		}
		entries = append(entries, entry)
	}
	return &Result{Entries: entries, Unmatched: unmatched}, nil
}

// resolveSeries is the shared first phase: name matching plus parent lookup.
func (r *Resolver) resolveSeries(ctx context.Context, names []string) (map[string]domain.SeriesRef, []string, map[int64]domain.SeriesRef, error) {
	found, err := r.backend.FindSeriesByName(ctx, names)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find series by name: %w", err)
	}

	var unmatched []string
	for _, name := range names {
		if _, ok := found[name]; !ok {
			unmatched = append(unmatched, name)
			r.log.Warn("series not found in catalog", "name", name)
		}
	}

	parentIDSet := make(map[int64]bool)
	var parentIDs []int64
	for _, ref := range found {
		if ref.ParentID != nil && !parentIDSet[*ref.ParentID] {
			parentIDSet[*ref.ParentID] = true
			parentIDs = append(parentIDs, *ref.ParentID)
		}
	}

	parents := map[int64]domain.SeriesRef{}
	if len(parentIDs) > 0 {
		parents, err = r.backend.FindSeriesByID(ctx, parentIDs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("find parent series: %w", err)
		}
	}
	return found, unmatched, parents, nil
}

func seriesTitleByID(id int64, found map[string]domain.SeriesRef, parents map[int64]domain.SeriesRef) (string, bool) {
	for _, ref := range found {
		if ref.ID == id {
			return ref.Title, true
		}
	}
	if p, ok := parents[id]; ok {
		return p.Title, true
	}
	return "", false
}

// parsePosition reads a series-number field as a float. Free-text values
// ("1|2", "omnibus") have no single numeric position and resolve to nil.
func parsePosition(seriesNum *string) *float64 {
	if seriesNum == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*seriesNum, 64)
	if err != nil {
		return nil
	}
	return &f
}

// yearFromDate extracts the year from a date string shaped YYYY-MM-DD (the
// source uses 00 placeholders for unknown month/day). Zero years are unknown.
func yearFromDate(date *string) *int {
	if date == nil {
		return nil
	}
	s := *date
	if len(s) > 4 {
		s = s[:4]
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

func sortKey(b domain.ResolvedBook) (float64, int) {
	pos := float64(positionSentinel)
	if b.Position != nil {
		pos = *b.Position
	}
	year := yearSentinel
	if b.Year != nil && *b.Year != 0 {
		year = *b.Year
	}
	return pos, year
}

func sortBooks(books []domain.ResolvedBook) {
	slices.SortStableFunc(books, func(a, b domain.ResolvedBook) int {
		aPos, aYear := sortKey(a)
		bPos, bYear := sortKey(b)
		switch {
		case aPos != bPos:
			if aPos < bPos {
				return -1
			}
			return 1
		case aYear != bYear:
			return aYear - bYear
		default:
			return 0
		}
	})
}

// mergeBooks appends child books to the parent's list, offsetting every
// numeric child position by the parent's maximum numeric position so the
// combined list numbers continuously, then re-sorts.
func mergeBooks(parent, child []domain.ResolvedBook) []domain.ResolvedBook {
	var offset float64
	for _, b := range parent {
		if b.Position != nil && *b.Position > offset {
			offset = *b.Position
		}
	}
	for _, b := range child {
		if b.Position != nil {
			shifted := *b.Position + offset
			b.Position = &shifted
		}
		parent = append(parent, b)
	}
	sortBooks(parent)
	return parent
}
