// Package seriesstore implements the destination-store repository over
// PostgreSQL: series, series_book, and source_data provenance rows.
package seriesstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/shelfmark/seriesdb/internal/adapter/postgres"
	"github.com/shelfmark/seriesdb/internal/domain"
	"github.com/shelfmark/seriesdb/internal/importer"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var seriesColumns = []string{
	"id", "name", "name_normalized", "author", "author_normalized",
	"total_books", "year_start", "year_end", "confidence", "verified",
	"external_id", "genre", "parent_series_id", "created_at", "updated_at",
}

// Repo provides destination-store persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

var _ importer.SeriesStore = (*Repo)(nil)

// New creates a new destination-store repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*domain.Series, error) {
	return r.findSeries(ctx, sq.Eq{"external_id": externalID})
}

func (r *Repo) FindByNormalizedName(ctx context.Context, nameNormalized string) (*domain.Series, error) {
	return r.findSeries(ctx, sq.Eq{"name_normalized": nameNormalized})
}

func (r *Repo) findSeries(ctx context.Context, where sq.Sqlizer) (*domain.Series, error) {
	query, args, err := psql.
		Select(seriesColumns...).
		From("series").
		Where(where).
		OrderBy("created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build series lookup: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	row := q.QueryRow(ctx, query, args...)

	var s domain.Series
	err = row.Scan(
		&s.ID, &s.Name, &s.NameNormalized, &s.Author, &s.AuthorNormalized,
		&s.TotalBooks, &s.YearStart, &s.YearEnd, &s.Confidence, &s.Verified,
		&s.ExternalID, &s.Genre, &s.ParentSeriesID, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	return &s, nil
}

func (r *Repo) InsertSeries(ctx context.Context, s domain.Series) error {
	query, args, err := psql.
		Insert("series").
		Columns(seriesColumns...).
		Values(
			s.ID, s.Name, s.NameNormalized, s.Author, s.AuthorNormalized,
			s.TotalBooks, s.YearStart, s.YearEnd, s.Confidence, s.Verified,
			s.ExternalID, s.Genre, s.ParentSeriesID, s.CreatedAt, s.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build series insert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert series %q: %w", s.Name, err)
	}
	return nil
}

// InsertBooks inserts book rows using pgx.Batch, one round trip for the
// whole list.
func (r *Repo) InsertBooks(ctx context.Context, books []domain.SeriesBook) error {
	if len(books) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range books {
		batch.Queue(
			`INSERT INTO series_book (id, series_id, position, title, title_normalized,
			     author, year_published, isbn, confidence, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			b.ID, b.SeriesID, b.Position, b.Title, b.TitleNormalized,
			b.Author, b.YearPublished, b.ISBN, b.Confidence, b.CreatedAt, b.UpdatedAt,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for range books {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert series_book batch: %w", err)
		}
	}
	return nil
}

func (r *Repo) InsertSourceRecord(ctx context.Context, rec domain.SourceRecord) error {
	query, args, err := psql.
		Insert("source_data").
		Columns("id", "series_id", "source", "raw_data", "book_count", "fetched_at").
		Values(rec.ID, rec.SeriesID, rec.Source, rec.RawData, rec.BookCount, rec.FetchedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build source_data insert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert source_data: %w", err)
	}
	return nil
}

func (r *Repo) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	return r.updateSeries(ctx, id, sq.Eq{"external_id": externalID})
}

func (r *Repo) SetParentSeries(ctx context.Context, id, parentID uuid.UUID) error {
	return r.updateSeries(ctx, id, sq.Eq{"parent_series_id": parentID})
}

func (r *Repo) updateSeries(ctx context.Context, id uuid.UUID, set map[string]any) error {
	query, args, err := psql.
		Update("series").
		SetMap(set).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build series update: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update series %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update series %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
