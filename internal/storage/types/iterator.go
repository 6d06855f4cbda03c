package types

import "context"

// ChunkIterator yields the chunks of one series in period order.
// Next returns io.EOF once no chunk remains. Iterators are not restartable.
type ChunkIterator interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}
