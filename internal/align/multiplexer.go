package align

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/metrics"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

var log = logging.Component("align")

// Options configures a run.
type Options struct {
	// ParallelFetch fills the buffers of different series concurrently.
	ParallelFetch bool

	// FetchTimeout bounds a single chunk fetch. Zero disables the deadline.
	FetchTimeout time.Duration

	// Period partitions persisted property series.
	Period types.Period

	// Metrics receives run metrics. Nil disables recording.
	Metrics *metrics.Recorder
}

// KeyStats describes how one series was consumed.
type KeyStats struct {
	Fetches    int
	Rows       int64
	PeakBuffer int
}

// Stats describes a multiplexer run.
type Stats struct {
	Windows     int
	DrivingRows int
	Skipped     int
	Keys        map[string]KeyStats
}

// stream is the per-key read state.
type stream struct {
	key string
	it  types.ChunkIterator

	// buf holds fetched rows not yet released, ordered by date.
	buf []types.Row

	// through is the date up to which every row of the key is buffered
	// or already released. Once the iterator is exhausted it also covers
	// the series metadata end.
	through int64

	// lastTs is the date of the last fetched row, for order checks.
	lastTs int64

	exhausted bool
	stats     KeyStats
}

// Multiplexer produces one complete Window per driving interval.
type Multiplexer struct {
	store   Store
	driving string
	bounds  types.Bounds
	opts    Options

	streams []*stream
	stats   Stats
}

// NewMultiplexer creates a multiplexer over keys within bounds, driven by
// the rows of driving. Only keys get chunk iterators; driving is read
// once with ReadRange and is iterated again only when keys lists it.
func NewMultiplexer(store Store, driving string, keys []string, bounds types.Bounds, opts Options) *Multiplexer {
	m := &Multiplexer{
		store:   store,
		driving: driving,
		bounds:  bounds,
		opts:    opts,
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		m.streams = append(m.streams, &stream{
			key:     k,
			through: math.MinInt64,
			lastTs:  math.MinInt64,
		})
	}

	return m
}

// Run reads the driving series and calls fn once per interval, in
// increasing end order. It stops at the first error returned by fn or
// raised while fetching.
func (m *Multiplexer) Run(ctx context.Context, fn func(types.Window, types.Interval) error) error {
	defer m.close()

	rows, err := m.store.ReadRange(ctx, m.driving, m.bounds.Start, m.bounds.End)
	if err != nil {
		return fmt.Errorf("read driving series %s: %w", m.driving, err)
	}
	m.stats.DrivingRows = len(rows)

	var (
		lastEnd int64
		started bool
	)

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		ts := r.TimestampMs
		if !m.bounds.Contains(ts) {
			m.stats.Skipped++
			continue
		}
		if !started {
			lastEnd = ts
			started = true
			continue
		}
		if ts == lastEnd {
			m.stats.Skipped++
			continue
		}
		if ts < lastEnd {
			return errors.NewOutOfOrder(m.driving, lastEnd, ts)
		}

		iv := types.Interval{Start: lastEnd, End: ts}

		w, err := m.window(ctx, iv)
		if err != nil {
			return err
		}

		if err := fn(w, iv); err != nil {
			return err
		}

		m.stats.Windows++
		lastEnd = ts
	}

	return nil
}

// window fills every stream up to iv.End and cuts the interval subsets.
func (m *Multiplexer) window(ctx context.Context, iv types.Interval) (types.Window, error) {
	if err := m.fill(ctx, iv.End); err != nil {
		return nil, err
	}

	w := make(types.Window, len(m.streams))
	for _, s := range m.streams {
		w[s.key] = s.take(iv)
	}
	return w, nil
}

// fill fetches chunks until every stream covers end.
func (m *Multiplexer) fill(ctx context.Context, end int64) error {
	if !m.opts.ParallelFetch {
		for _, s := range m.streams {
			if err := m.fillStream(ctx, s, end); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.streams {
		if s.through >= end {
			continue
		}
		g.Go(func() error {
			return m.fillStream(gctx, s, end)
		})
	}
	return g.Wait()
}

// fillStream fetches chunks of one stream until it covers end.
func (m *Multiplexer) fillStream(ctx context.Context, s *stream, end int64) error {
	for s.through < end {
		if s.exhausted {
			return errors.NewStreamExhausted(s.key, s.through, end)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.it == nil {
			it, err := m.store.ChunkIterator(ctx, s.key, m.bounds.Start, m.bounds.End)
			if err != nil {
				return fmt.Errorf("open chunk iterator of %s: %w", s.key, err)
			}
			s.it = it
		}

		chunk, err := m.fetch(ctx, s)
		if errors.Is(err, io.EOF) {
			if err := m.exhaust(ctx, s); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch chunk of %s: %w", s.key, err)
		}

		if err := types.ValidateOrder(s.key, chunk.Rows, s.lastTs); err != nil {
			return err
		}

		s.buf = append(s.buf, chunk.Rows...)
		if last, ok := chunk.Last(); ok {
			s.lastTs = last.TimestampMs
		}
		if t := chunk.Through(); t > s.through {
			s.through = t
		}

		s.stats.Fetches++
		s.stats.Rows += int64(chunk.Len())
		if len(s.buf) > s.stats.PeakBuffer {
			s.stats.PeakBuffer = len(s.buf)
		}
		m.opts.Metrics.ChunkFetched(s.key, chunk.Len())

		log.Debug("chunk fetched",
			"series", s.key,
			"chunk", types.Bounds{Start: chunk.Start, End: chunk.End},
			"rows", chunk.Len(),
			"buffered", len(s.buf),
		)
	}
	return nil
}

// exhaust marks the iterator of s as drained. The series holds no row past
// its metadata end, so coverage extends to that end.
func (m *Multiplexer) exhaust(ctx context.Context, s *stream) error {
	s.exhausted = true

	meta, err := m.store.LoadMetadata(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load metadata of exhausted series %s: %w", s.key, err)
	}
	if meta.End > s.through {
		s.through = meta.End
	}

	log.Debug("chunk iterator exhausted",
		"series", s.key,
		"metadata_end", meta.End,
		"fetches", s.stats.Fetches,
	)
	return nil
}

func (m *Multiplexer) fetch(ctx context.Context, s *stream) (types.Chunk, error) {
	if m.opts.FetchTimeout <= 0 {
		return s.it.Next(ctx)
	}

	fctx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()
	return s.it.Next(fctx)
}

// take returns the buffered rows inside iv and releases every row dated at
// or before iv.End. The returned slice has no spare capacity.
func (s *stream) take(iv types.Interval) []types.Row {
	lo := sort.Search(len(s.buf), func(i int) bool { return s.buf[i].TimestampMs > iv.Start })
	hi := sort.Search(len(s.buf), func(i int) bool { return s.buf[i].TimestampMs > iv.End })

	var subset []types.Row
	if lo < hi {
		subset = s.buf[lo:hi:hi]
	}

	if hi == len(s.buf) {
		s.buf = nil
	} else {
		s.buf = s.buf[hi:]
	}

	return subset
}

// close releases every iterator and publishes buffer peaks.
func (m *Multiplexer) close() {
	for _, s := range m.streams {
		if s.it != nil {
			if err := s.it.Close(); err != nil {
				log.Warn("close chunk iterator failed", "series", s.key, "error", err)
			}
			s.it = nil
		}
		s.buf = nil
		m.opts.Metrics.BufferPeak(s.key, s.stats.PeakBuffer)
	}
}

// Stats returns the statistics of the last run.
func (m *Multiplexer) Stats() Stats {
	st := m.stats
	st.Keys = make(map[string]KeyStats, len(m.streams))
	for _, s := range m.streams {
		st.Keys[s.key] = s.stats
	}
	return st
}
