package align

import (
	"context"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Store is the series store a run reads from and persists into.
type Store interface {
	// LoadMetadata returns the bounds of a series. Unknown series fail with
	// ErrMetadataUnavailable.
	LoadMetadata(ctx context.Context, key string) (types.Metadata, error)

	// ReadRange returns every row of key inside [start, end].
	ReadRange(ctx context.Context, key string, start, end int64) ([]types.Row, error)

	// ChunkIterator opens a lazy iterator over the chunks of key
	// overlapping [start, end].
	ChunkIterator(ctx context.Context, key string, start, end int64) (types.ChunkIterator, error)

	// SaveSeries replaces the series name with rows partitioned by period.
	SaveSeries(ctx context.Context, name string, rows []types.Row, period types.Period) error

	// RemoveSeries deletes a series. Removing an unknown series succeeds.
	RemoveSeries(ctx context.Context, name string) error
}

// Processor computes one property value per interval.
//
// Process receives only the keys listed by Requires and the interval end.
// Processors may keep state between calls; calls arrive in strictly
// increasing end order.
type Processor interface {
	Name() string
	Requires() []string
	Process(w types.Window, end int64) (float64, error)
}
