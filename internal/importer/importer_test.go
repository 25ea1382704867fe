package importer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/seriesdb/internal/domain"
)

// fakeStore is an in-memory SeriesStore.
type fakeStore struct {
	series  map[uuid.UUID]*domain.Series
	books   map[uuid.UUID][]domain.SeriesBook
	records []domain.SourceRecord
}

var _ SeriesStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		series: make(map[uuid.UUID]*domain.Series),
		books:  make(map[uuid.UUID][]domain.SeriesBook),
	}
}

func (f *fakeStore) FindByExternalID(_ context.Context, externalID string) (*domain.Series, error) {
	for _, s := range f.series {
		if s.ExternalID != nil && *s.ExternalID == externalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) FindByNormalizedName(_ context.Context, nameNormalized string) (*domain.Series, error) {
	for _, s := range f.series {
		if s.NameNormalized == nameNormalized {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) InsertSeries(_ context.Context, s domain.Series) error {
	cp := s
	f.series[s.ID] = &cp
	return nil
}

func (f *fakeStore) InsertBooks(_ context.Context, books []domain.SeriesBook) error {
	for _, b := range books {
		f.books[b.SeriesID] = append(f.books[b.SeriesID], b)
	}
	return nil
}

func (f *fakeStore) InsertSourceRecord(_ context.Context, rec domain.SourceRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) SetExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	f.series[id].ExternalID = &externalID
	return nil
}

func (f *fakeStore) SetParentSeries(_ context.Context, id, parentID uuid.UUID) error {
	f.series[id].ParentSeriesID = &parentID
	return nil
}

func (f *fakeStore) bookCount() int {
	n := 0
	for _, bs := range f.books {
		n += len(bs)
	}
	return n
}

func (f *fakeStore) byName(name string) *domain.Series {
	s, _ := f.FindByNormalizedName(context.Background(), domain.Normalize(name))
	return s
}

// fakeTx runs the callback directly and counts transactions.
type fakeTx struct{ runs int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.runs++
	return fn(ctx)
}

func newTestEngine(store SeriesStore, cfg Config) (*Engine, *fakeTx) {
	if cfg.Source == "" {
		cfg.Source = "catalog-dump"
	}
	tx := &fakeTx{}
	return NewEngine(store, tx, slog.New(slog.DiscardHandler), cfg), tx
}

func intPtr(n int) *int       { return &n }
func fPtr(f float64) *float64 { return &f }
func sPtr(s string) *string   { return &s }

func mistbornEntry() domain.ResolvedSeriesEntry {
	return domain.ResolvedSeriesEntry{
		SeriesID: 2,
		Title:    "Mistborn",
		Parent:   &domain.ParentInfo{SeriesID: 1, Title: "The Cosmere"},
		Books: []domain.ResolvedBook{
			{Title: "The Final Empire", Position: fPtr(1), Author: "Brandon Sanderson", Year: intPtr(2006), ISBN: sPtr("9780765311788"), SourceTitleID: 10},
			{Title: "The Well of Ascension", Position: fPtr(2), Author: "Brandon Sanderson", Year: intPtr(2007), SourceTitleID: 11},
			{Title: "The Hero of Ages", Position: fPtr(3), Author: "Brandon Sanderson", Year: intPtr(2008), SourceTitleID: 12},
		},
	}
}

func TestImportInsertsNewSeries(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine, tx := newTestEngine(store, Config{Genre: sPtr("fantasy")})

	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SeriesInserted)
	assert.Equal(t, 3, summary.BooksInserted)
	assert.Equal(t, 1, summary.SourceRecords)
	assert.Equal(t, 1, summary.ParentStubs)
	assert.Equal(t, 1, tx.runs, "one transaction per run")

	s := store.byName("Mistborn")
	require.NotNil(t, s)
	assert.Equal(t, domain.ImportConfidence, s.Confidence)
	assert.False(t, s.Verified)
	assert.Equal(t, 3, s.TotalBooks)
	require.NotNil(t, s.ExternalID)
	assert.Equal(t, "2", *s.ExternalID)
	require.NotNil(t, s.Author)
	assert.Equal(t, "Brandon Sanderson", *s.Author)
	require.NotNil(t, s.YearStart)
	assert.Equal(t, 2006, *s.YearStart)
	require.NotNil(t, s.YearEnd)
	assert.Equal(t, 2008, *s.YearEnd)
	require.NotNil(t, s.Genre)
	assert.Equal(t, "fantasy", *s.Genre)

	books := store.books[s.ID]
	require.Len(t, books, 3)
	assert.Equal(t, "the final empire", books[0].TitleNormalized)
	assert.Equal(t, domain.ImportConfidence, books[0].Confidence)

	// Parent stub: zero books, lower confidence, external id set.
	parent := store.byName("The Cosmere")
	require.NotNil(t, parent)
	assert.Equal(t, domain.ParentStubConfidence, parent.Confidence)
	assert.Equal(t, 0, parent.TotalBooks)
	require.NotNil(t, parent.ExternalID)
	assert.Equal(t, "1", *parent.ExternalID)
	require.NotNil(t, s.ParentSeriesID)
	assert.Equal(t, parent.ID, *s.ParentSeriesID)

	require.Len(t, store.records, 1)
	assert.Equal(t, "catalog-dump", store.records[0].Source)
	assert.Equal(t, 3, store.records[0].BookCount)
	assert.Contains(t, string(store.records[0].RawData), "The Final Empire")
}

func TestImportIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine, _ := newTestEngine(store, Config{})
	entries := []domain.ResolvedSeriesEntry{mistbornEntry()}

	_, err := engine.Import(context.Background(), entries)
	require.NoError(t, err)
	seriesCount, bookCount := len(store.series), store.bookCount()

	summary, err := engine.Import(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SeriesInserted)
	assert.Equal(t, 0, summary.BooksInserted)
	assert.Equal(t, 1, summary.SeriesUnchanged)
	assert.Equal(t, len(store.series), seriesCount, "no new series rows")
	assert.Equal(t, store.bookCount(), bookCount, "no new book rows")
	assert.Len(t, store.records, 1, "no duplicate provenance")
}

func TestImportDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine, tx := newTestEngine(store, Config{DryRun: true})

	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	// Counters report what a real run would do.
	assert.Equal(t, 1, summary.SeriesInserted)
	assert.Equal(t, 3, summary.BooksInserted)
	assert.Equal(t, 1, summary.ParentStubs)

	assert.Empty(t, store.series)
	assert.Empty(t, store.books)
	assert.Empty(t, store.records)
	assert.Equal(t, 0, tx.runs, "dry run opens no transaction")
}

func TestImportZeroEntriesIsFatal(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(newFakeStore(), Config{})
	_, err := engine.Import(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoSeriesMatched)
}

func TestImportReusesParentStubWithinRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine, _ := newTestEngine(store, Config{})

	second := mistbornEntry()
	second.SeriesID = 3
	second.Title = "Wax and Wayne"
	second.Books = second.Books[:1]

	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry(), second})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SeriesInserted)
	assert.Equal(t, 1, summary.ParentStubs, "shared parent created once")

	a := store.byName("Mistborn")
	b := store.byName("Wax and Wayne")
	require.NotNil(t, a.ParentSeriesID)
	require.NotNil(t, b.ParentSeriesID)
	assert.Equal(t, *a.ParentSeriesID, *b.ParentSeriesID)
}

func TestImportBackfillsExistingSeries(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// Pre-existing record with no external id and no parent link.
	existing := domain.Series{
		ID:             uuid.New(),
		Name:           "Mistborn",
		NameNormalized: domain.Normalize("Mistborn"),
		TotalBooks:     3,
		Confidence:     0.8,
	}
	require.NoError(t, store.InsertSeries(context.Background(), existing))

	engine, _ := newTestEngine(store, Config{})
	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SeriesInserted)
	assert.Equal(t, 1, summary.SeriesUpdated)

	s := store.series[existing.ID]
	require.NotNil(t, s.ExternalID)
	assert.Equal(t, "2", *s.ExternalID)
	require.NotNil(t, s.ParentSeriesID)
	assert.Empty(t, store.books[existing.ID], "existing book lists are never touched")
}

func TestImportMatchesExternalIDBeforeName(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// Linked to catalog id 2 but renamed in the destination store.
	linked := domain.Series{
		ID:             uuid.New(),
		Name:           "Mistborn Era One",
		NameNormalized: domain.Normalize("Mistborn Era One"),
		ExternalID:     sPtr("2"),
	}
	// Same display name as the incoming entry, but linked elsewhere.
	nameTwin := domain.Series{
		ID:             uuid.New(),
		Name:           "Mistborn",
		NameNormalized: domain.Normalize("Mistborn"),
		ExternalID:     sPtr("999"),
	}
	require.NoError(t, store.InsertSeries(context.Background(), linked))
	require.NoError(t, store.InsertSeries(context.Background(), nameTwin))

	engine, _ := newTestEngine(store, Config{})
	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SeriesInserted)
	assert.Equal(t, 1, summary.SeriesUpdated, "the linked row takes the parent backfill")

	require.NotNil(t, store.series[linked.ID].ParentSeriesID)
	// The name twin keeps its own link and picks up nothing.
	assert.Nil(t, store.series[nameTwin.ID].ParentSeriesID)
	assert.Equal(t, "999", *store.series[nameTwin.ID].ExternalID)
}

func TestImportNeverOverwritesParentLink(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	otherParent := uuid.New()
	existing := domain.Series{
		ID:             uuid.New(),
		Name:           "Mistborn",
		NameNormalized: domain.Normalize("Mistborn"),
		ExternalID:     sPtr("2"),
		ParentSeriesID: &otherParent,
	}
	require.NoError(t, store.InsertSeries(context.Background(), existing))

	engine, _ := newTestEngine(store, Config{})
	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SeriesUnchanged)
	assert.Equal(t, 0, summary.ParentStubs, "no stub when the link is already populated")
	assert.Equal(t, otherParent, *store.series[existing.ID].ParentSeriesID)
}

func TestResolveParentByNormalizedNameBackfillsID(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// The parent exists under its name but has no external id yet.
	parent := domain.Series{
		ID:             uuid.New(),
		Name:           "The Cosmere",
		NameNormalized: domain.Normalize("The Cosmere"),
	}
	require.NoError(t, store.InsertSeries(context.Background(), parent))

	engine, _ := newTestEngine(store, Config{})
	summary, err := engine.Import(context.Background(), []domain.ResolvedSeriesEntry{mistbornEntry()})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ParentStubs)
	require.NotNil(t, store.series[parent.ID].ExternalID)
	assert.Equal(t, "1", *store.series[parent.ID].ExternalID)

	s := store.byName("Mistborn")
	require.NotNil(t, s.ParentSeriesID)
	assert.Equal(t, parent.ID, *s.ParentSeriesID)
}

func TestBackfillFillsGapsOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	existing := domain.Series{
		ID:             uuid.New(),
		Name:           "Wax and Wayne",
		NameNormalized: domain.Normalize("Wax and Wayne"),
	}
	require.NoError(t, store.InsertSeries(context.Background(), existing))

	engine, _ := newTestEngine(store, Config{})
	entries := []domain.ResolvedSeriesEntry{
		{SeriesID: 3, Title: "Wax and Wayne", Parent: &domain.ParentInfo{SeriesID: 2, Title: "Mistborn"}},
		{SeriesID: 99, Title: "Not In Destination"},
	}
	summary, err := engine.Backfill(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SeriesUpdated)
	assert.Equal(t, 1, summary.SeriesSkipped, "unknown series are skipped, not created")
	assert.Equal(t, 1, summary.ParentStubs, "parent stubs may still be created")

	s := store.series[existing.ID]
	require.NotNil(t, s.ExternalID)
	assert.Equal(t, "3", *s.ExternalID)
	require.NotNil(t, s.ParentSeriesID)

	// Only the pre-existing series and the parent stub exist.
	assert.Len(t, store.series, 2)
	assert.Empty(t, store.books)
}

func TestPrimaryAuthorFirstSeenWinsTies(t *testing.T) {
	t.Parallel()

	books := []domain.ResolvedBook{
		{Title: "a", Author: "First Author"},
		{Title: "b", Author: "Second Author"},
		{Title: "c", Author: "Second Author"},
		{Title: "d", Author: "First Author"},
	}
	got := primaryAuthor(books)
	require.NotNil(t, got)
	assert.Equal(t, "First Author", *got)
}

func TestPrimaryAuthorEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, primaryAuthor(nil))
}
