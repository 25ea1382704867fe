package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/shelfmark/seriesdb/internal/domain"
)

// SeriesStore is the destination-store surface the engine writes through.
// Lookups return domain.ErrNotFound when nothing matches. Implementations
// must route all calls through the transaction carried in ctx when one is
// active, so a run's mutations commit or roll back together.
type SeriesStore interface {
	// FindByExternalID matches a series by its source-catalog identifier.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Series, error)

	// FindByNormalizedName matches a series by normalized name.
	FindByNormalizedName(ctx context.Context, nameNormalized string) (*domain.Series, error)

	InsertSeries(ctx context.Context, s domain.Series) error
	InsertBooks(ctx context.Context, books []domain.SeriesBook) error
	InsertSourceRecord(ctx context.Context, rec domain.SourceRecord) error

	// SetExternalID backfills a missing external identifier.
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error

	// SetParentSeries backfills a missing parent link.
	SetParentSeries(ctx context.Context, id, parentID uuid.UUID) error
}

// TxManager runs a function inside one destination-store transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
