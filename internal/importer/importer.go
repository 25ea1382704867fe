// Package importer reconciles resolved series entries into the destination
// store: idempotent inserts for new series, gap-filling updates for known
// ones, and on-demand parent stubs.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/seriesdb/internal/domain"
)

// Config controls one engine instance.
type Config struct {
	// Source tags provenance records, e.g. "catalog-dump".
	Source string
	// Genre, when set, is stamped onto every inserted series.
	Genre *string
	// DryRun performs every lookup and logs every intended change but
	// issues no writes and no commit.
	DryRun bool
}

// Summary is the run's outcome counters, reported whether or not the run
// was a dry run.
type Summary struct {
	SeriesInserted  int
	SeriesUpdated   int
	SeriesUnchanged int
	SeriesSkipped   int
	BooksInserted   int
	SourceRecords   int
	ParentStubs     int
}

// Engine performs full imports and bulk backfills.
type Engine struct {
	store SeriesStore
	tx    TxManager
	log   *slog.Logger
	cfg   Config
}

func NewEngine(store SeriesStore, tx TxManager, log *slog.Logger, cfg Config) *Engine {
	return &Engine{store: store, tx: tx, log: log, cfg: cfg}
}

// run is the per-run mutable state: the parent stub cache maps source-catalog
// parent identifiers to destination ids so one run never creates the same
// stub twice.
type run struct {
	summary     Summary
	parentStubs map[string]uuid.UUID
	now         time.Time
}

func newRun() *run {
	return &run{
		parentStubs: make(map[string]uuid.UUID),
		now:         time.Now().UTC(),
	}
}

// Import reconciles full entries (series with book lists). All writes happen
// in a single transaction; a dry run performs the same walk without opening
// one.
func (e *Engine) Import(ctx context.Context, entries []domain.ResolvedSeriesEntry) (*Summary, error) {
	if len(entries) == 0 {
		return nil, domain.ErrNoSeriesMatched
	}

	r := newRun()
	walk := func(ctx context.Context) error {
		for _, entry := range entries {
			if err := e.importEntry(ctx, r, entry); err != nil {
				return fmt.Errorf("import %q: %w", entry.Title, err)
			}
		}
		return nil
	}

	var err error
	if e.cfg.DryRun {
		e.log.Info("dry run: no changes will be written")
		err = walk(ctx)
	} else {
		err = e.tx.RunInTx(ctx, walk)
	}
	if err != nil {
		return nil, err
	}
	return &r.summary, nil
}

// Backfill reconciles identifier-only entries against existing destination
// series: it fills missing external identifiers and parent links, creating
// parent stubs when needed, and never inserts a new non-parent series.
func (e *Engine) Backfill(ctx context.Context, entries []domain.ResolvedSeriesEntry) (*Summary, error) {
	r := newRun()
	walk := func(ctx context.Context) error {
		for _, entry := range entries {
			if err := e.backfillEntry(ctx, r, entry); err != nil {
				return fmt.Errorf("backfill %q: %w", entry.Title, err)
			}
		}
		return nil
	}

	var err error
	if e.cfg.DryRun {
		e.log.Info("dry run: no changes will be written")
		err = walk(ctx)
	} else {
		err = e.tx.RunInTx(ctx, walk)
	}
	if err != nil {
		return nil, err
	}
	return &r.summary, nil
}

// findExisting looks a series up by external identifier first, then by
// normalized name. The two lookups stay sequential: a single OR query could
// let an older name-matching row that carries a different external id shadow
// the row actually linked to this catalog id.
func (e *Engine) findExisting(ctx context.Context, externalID, nameNormalized string) (*domain.Series, error) {
	existing, err := e.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrNotFound) {
		return e.store.FindByNormalizedName(ctx, nameNormalized)
	}
	return existing, err
}

func (e *Engine) importEntry(ctx context.Context, r *run, entry domain.ResolvedSeriesEntry) error {
	externalID := strconv.FormatInt(entry.SeriesID, 10)
	primaryAuthor := primaryAuthor(entry.Books)

	existing, err := e.findExisting(ctx, externalID, domain.Normalize(entry.Title))
	switch {
	case err == nil:
		return e.updateExisting(ctx, r, entry, existing, externalID, primaryAuthor)
	case errors.Is(err, domain.ErrNotFound):
		return e.insertNew(ctx, r, entry, externalID, primaryAuthor)
	default:
		return err
	}
}

// updateExisting fills gaps on a known series: external identifier and parent
// link only, never the book list and never a populated field.
func (e *Engine) updateExisting(ctx context.Context, r *run, entry domain.ResolvedSeriesEntry, existing *domain.Series, externalID string, primaryAuthor *string) error {
	updated := false

	if existing.ExternalID == nil || *existing.ExternalID == "" {
		if !e.cfg.DryRun {
			if err := e.store.SetExternalID(ctx, existing.ID, externalID); err != nil {
				return err
			}
		}
		e.log.Info("backfilled external id", "series", entry.Title, "external_id", externalID)
		updated = true
	}

	if existing.ParentSeriesID == nil && entry.Parent != nil {
		parentID, err := e.resolveParent(ctx, r, entry.Parent, primaryAuthor)
		if err != nil {
			return err
		}
		if !e.cfg.DryRun {
			if err := e.store.SetParentSeries(ctx, existing.ID, parentID); err != nil {
				return err
			}
		}
		e.log.Info("backfilled parent link", "series", entry.Title, "parent", entry.Parent.Title)
		updated = true
	}

	if updated {
		r.summary.SeriesUpdated++
	} else {
		e.log.Info("series already up to date", "series", entry.Title)
		r.summary.SeriesUnchanged++
	}
	return nil
}

func (e *Engine) insertNew(ctx context.Context, r *run, entry domain.ResolvedSeriesEntry, externalID string, primaryAuthor *string) error {
	var parentID *uuid.UUID
	if entry.Parent != nil {
		id, err := e.resolveParent(ctx, r, entry.Parent, primaryAuthor)
		if err != nil {
			return err
		}
		parentID = &id
	}

	yearStart, yearEnd := yearRange(entry.Books)
	series := domain.Series{
		ID:               uuid.New(),
		Name:             entry.Title,
		NameNormalized:   domain.Normalize(entry.Title),
		Author:           primaryAuthor,
		AuthorNormalized: domain.NormalizePtr(primaryAuthor),
		TotalBooks:       len(entry.Books),
		YearStart:        yearStart,
		YearEnd:          yearEnd,
		Confidence:       domain.ImportConfidence,
		ExternalID:       &externalID,
		Genre:            e.cfg.Genre,
		ParentSeriesID:   parentID,
		CreatedAt:        r.now,
		UpdatedAt:        r.now,
	}

	books := make([]domain.SeriesBook, 0, len(entry.Books))
	for _, b := range entry.Books {
		book := domain.SeriesBook{
			ID:              uuid.New(),
			SeriesID:        series.ID,
			Position:        b.Position,
			Title:           b.Title,
			TitleNormalized: domain.Normalize(b.Title),
			YearPublished:   b.Year,
			ISBN:            b.ISBN,
			Confidence:      domain.ImportConfidence,
			CreatedAt:       r.now,
			UpdatedAt:       r.now,
		}
		if b.Author != "" {
			author := b.Author
			book.Author = &author
		}
		books = append(books, book)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal provenance payload: %w", err)
	}
	record := domain.SourceRecord{
		ID:        uuid.New(),
		SeriesID:  series.ID,
		Source:    e.cfg.Source,
		RawData:   payload,
		BookCount: len(entry.Books),
		FetchedAt: r.now,
	}

	if !e.cfg.DryRun {
		if err := e.store.InsertSeries(ctx, series); err != nil {
			return err
		}
		if err := e.store.InsertBooks(ctx, books); err != nil {
			return err
		}
		if err := e.store.InsertSourceRecord(ctx, record); err != nil {
			return err
		}
	}

	e.log.Info("inserted series",
		"series", entry.Title, "external_id", externalID, "books", len(books))
	r.summary.SeriesInserted++
	r.summary.BooksInserted += len(books)
	r.summary.SourceRecords++
	return nil
}

func (e *Engine) backfillEntry(ctx context.Context, r *run, entry domain.ResolvedSeriesEntry) error {
	externalID := strconv.FormatInt(entry.SeriesID, 10)

	existing, err := e.findExisting(ctx, externalID, domain.Normalize(entry.Title))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Backfill never creates non-parent series.
		e.log.Info("no destination series to backfill", "series", entry.Title)
		r.summary.SeriesSkipped++
		return nil
	case err != nil:
		return err
	}
	return e.updateExisting(ctx, r, entry, existing, externalID, nil)
}

// resolveParent maps a source-catalog parent reference to a destination id:
// the run cache first, then lookup by external identifier, then by normalized
// name (backfilling its external identifier), and finally a new stub record.
func (e *Engine) resolveParent(ctx context.Context, r *run, parent *domain.ParentInfo, primaryAuthor *string) (uuid.UUID, error) {
	externalID := strconv.FormatInt(parent.SeriesID, 10)

	if id, ok := r.parentStubs[externalID]; ok {
		return id, nil
	}

	existing, err := e.store.FindByExternalID(ctx, externalID)
	if err == nil {
		r.parentStubs[externalID] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, err
	}

	nameNormalized := domain.Normalize(parent.Title)
	existing, err = e.store.FindByNormalizedName(ctx, nameNormalized)
	if err == nil {
		r.parentStubs[externalID] = existing.ID
		if existing.ExternalID == nil || *existing.ExternalID == "" {
			if !e.cfg.DryRun {
				if err := e.store.SetExternalID(ctx, existing.ID, externalID); err != nil {
					return uuid.Nil, err
				}
			}
			e.log.Info("backfilled parent external id", "parent", parent.Title, "external_id", externalID)
		}
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, err
	}

	stub := domain.Series{
		ID:               uuid.New(),
		Name:             parent.Title,
		NameNormalized:   nameNormalized,
		Author:           primaryAuthor,
		AuthorNormalized: domain.NormalizePtr(primaryAuthor),
		Confidence:       domain.ParentStubConfidence,
		ExternalID:       &externalID,
		Genre:            e.cfg.Genre,
		CreatedAt:        r.now,
		UpdatedAt:        r.now,
	}
	if !e.cfg.DryRun {
		if err := e.store.InsertSeries(ctx, stub); err != nil {
			return uuid.Nil, err
		}
	}
	e.log.Info("created parent stub", "parent", parent.Title, "external_id", externalID)
	r.parentStubs[externalID] = stub.ID
	r.summary.ParentStubs++
	return stub.ID, nil
}

// primaryAuthor is the most frequent author across the books, first-seen
// winning ties. The Unknown sentinel counts like any other value.
func primaryAuthor(books []domain.ResolvedBook) *string {
	counts := make(map[string]int)
	var order []string
	for _, b := range books {
		if b.Author == "" {
			continue
		}
		if counts[b.Author] == 0 {
			order = append(order, b.Author)
		}
		counts[b.Author]++
	}
	if len(order) == 0 {
		return nil
	}
	best := order[0]
	for _, a := range order[1:] {
		if counts[a] > counts[best] {
			best = a
		}
	}
	return &best
}

func yearRange(books []domain.ResolvedBook) (start, end *int) {
	for _, b := range books {
		if b.Year == nil || *b.Year == 0 {
			continue
		}
		y := *b.Year
		if start == nil || y < *start {
			yv := y
			start = &yv
		}
		if end == nil || y > *end {
			yv := y
			end = &yv
		}
	}
	return start, end
}
