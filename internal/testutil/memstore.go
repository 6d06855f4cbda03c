package testutil

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// MemoryStore is an in-memory series store that keeps chunk boundaries
// explicit, so tests can control exactly how a series splits across
// fetches.
type MemoryStore struct {
	mu     sync.Mutex
	series map[string]*memSeries

	fetchDelay time.Duration
	saveErrs   map[string]error
	metaErrs   map[string]error
	fetches    map[string]int
	openIters  int
	saves      map[string]int
}

type memSeries struct {
	meta   types.Metadata
	chunks []types.Chunk
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series:   make(map[string]*memSeries),
		saveErrs: make(map[string]error),
		metaErrs: make(map[string]error),
		fetches:  make(map[string]int),
		saves:    make(map[string]int),
	}
}

// Put stores rows under name, partitioned by period.
func (s *MemoryStore) Put(name string, period types.Period, rows ...types.Row) {
	chunks := period.Partition(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(name, period, chunks)
}

// PutChunks stores name as exactly the given chunks.
func (s *MemoryStore) PutChunks(name string, chunks ...types.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(name, types.PeriodDay, chunks)
}

func (s *MemoryStore) putLocked(name string, period types.Period, chunks []types.Chunk) {
	meta := types.Metadata{Name: name, Period: period, Chunks: len(chunks), UpdatedAt: time.Now()}

	first := true
	for _, ch := range chunks {
		for _, r := range ch.Rows {
			if first {
				meta.Start = r.TimestampMs
				first = false
			}
			meta.End = r.TimestampMs
			meta.Rows++
		}
	}

	s.series[name] = &memSeries{meta: meta, chunks: chunks}
}

// SetMetadata overrides the metadata reported for an existing series.
func (s *MemoryStore) SetMetadata(name string, start, end int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok := s.series[name]; ok {
		ser.meta.Start = start
		ser.meta.End = end
	}
}

// FailSave makes every save of name fail with err.
func (s *MemoryStore) FailSave(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErrs[name] = err
}

// FailMetadata makes every metadata lookup of name fail with err.
func (s *MemoryStore) FailMetadata(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaErrs[name] = err
}

// SetFetchDelay delays every chunk fetch by d, honouring cancellation.
func (s *MemoryStore) SetFetchDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchDelay = d
}

// Fetches returns how many chunks of name were fetched.
func (s *MemoryStore) Fetches(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[name]
}

// Saves returns how many successful saves name received.
func (s *MemoryStore) Saves(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[name]
}

// OpenIterators returns the number of iterators not yet closed.
func (s *MemoryStore) OpenIterators() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openIters
}

// Has reports whether name is stored.
func (s *MemoryStore) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.series[name]
	return ok
}

// Rows returns every row of name in order.
func (s *MemoryStore) Rows(name string) []types.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[name]
	if !ok {
		return nil
	}
	var rows []types.Row
	for _, ch := range ser.chunks {
		rows = append(rows, ch.Rows...)
	}
	return rows
}

// LoadMetadata returns the metadata of key.
func (s *MemoryStore) LoadMetadata(ctx context.Context, key string) (types.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.metaErrs[key]; err != nil {
		return types.Metadata{}, errors.NewMetadataUnavailable(key, err)
	}
	ser, ok := s.series[key]
	if !ok {
		return types.Metadata{}, errors.NewMetadataUnavailable(key, errors.ErrSeriesNotFound)
	}
	return ser.meta, nil
}

// ReadRange returns every row of key inside [start, end].
func (s *MemoryStore) ReadRange(ctx context.Context, key string, start, end int64) ([]types.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[key]
	if !ok {
		return nil, errors.NewNotFound(key)
	}

	var rows []types.Row
	for _, ch := range ser.chunks {
		for _, r := range ch.Rows {
			if r.TimestampMs >= start && r.TimestampMs <= end {
				rows = append(rows, r)
			}
		}
	}
	return rows, nil
}

// ChunkIterator iterates the chunks of key overlapping [start, end],
// with rows clipped to the range.
func (s *MemoryStore) ChunkIterator(ctx context.Context, key string, start, end int64) (types.ChunkIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[key]
	if !ok {
		return nil, errors.NewNotFound(key)
	}

	want := types.Bounds{Start: start, End: end}
	var chunks []types.Chunk
	for _, ch := range ser.chunks {
		if !want.Overlaps(types.Bounds{Start: ch.Start, End: ch.End}) {
			continue
		}
		clipped := types.Chunk{Start: ch.Start, End: ch.End}
		for _, r := range ch.Rows {
			if want.Contains(r.TimestampMs) {
				clipped.Rows = append(clipped.Rows, r)
			}
		}
		chunks = append(chunks, clipped)
	}

	s.openIters++
	return &memIterator{store: s, key: key, chunks: chunks}, nil
}

// SaveSeries replaces name with rows. Saving no rows removes the series.
func (s *MemoryStore) SaveSeries(ctx context.Context, name string, rows []types.Row, period types.Period) error {
	if err := types.ValidateOrder(name, rows, math.MinInt64); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveErrs[name]; err != nil {
		return err
	}
	if len(rows) == 0 {
		delete(s.series, name)
		return nil
	}

	s.putLocked(name, period, period.Partition(append([]types.Row(nil), rows...)))
	s.saves[name]++
	return nil
}

// RemoveSeries deletes name. Removing an unknown series succeeds.
func (s *MemoryStore) RemoveSeries(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, name)
	return nil
}

type memIterator struct {
	store  *MemoryStore
	key    string
	chunks []types.Chunk
	pos    int
	closed bool
}

func (it *memIterator) Next(ctx context.Context) (types.Chunk, error) {
	it.store.mu.Lock()
	delay := it.store.fetchDelay
	it.store.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Chunk{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return types.Chunk{}, err
	}

	if it.pos >= len(it.chunks) {
		return types.Chunk{}, io.EOF
	}
	ch := it.chunks[it.pos]
	it.pos++

	it.store.mu.Lock()
	it.store.fetches[it.key]++
	it.store.mu.Unlock()

	return ch, nil
}

func (it *memIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	it.store.mu.Lock()
	it.store.openIters--
	it.store.mu.Unlock()
	return nil
}
