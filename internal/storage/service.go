package storage

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/catalog"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/config"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/parquet"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/query"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/retention"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

var log = logging.Component("storage")

// Store is the chunked series store. It keeps chunk files in Parquet, the
// chunk index in a SQLite catalog and answers inspection queries with DuckDB.
// A Store is safe for concurrent use.
type Store struct {
	config *config.Config

	// Components
	catalog   *catalog.Catalog
	query     *query.Service
	retention *retention.Manager

	parquetOpts   parquet.Options
	defaultPeriod types.Period

	// writeMu serializes saves and removals.
	writeMu sync.Mutex

	// Statistics
	chunksRead   atomic.Int64
	rowsRead     atomic.Int64
	seriesSaved  atomic.Int64
	bytesWritten atomic.Int64
}

// New opens a store rooted at cfg.DataDir, creating directories and the
// catalog as needed.
func New(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	period, _ := types.ParsePeriod(cfg.DefaultPeriod)

	cat, err := catalog.New(cfg.CatalogFile(), catalog.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	qry, err := query.New(cfg)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("create query: %w", err)
	}

	opts := parquet.DefaultOptions()
	opts.Compression = parquet.ParseCompressionType(cfg.Compression.Algorithm)
	opts.CompressionLevel = cfg.Compression.Level

	return &Store{
		config:        cfg,
		catalog:       cat,
		query:         qry,
		retention:     retention.New(cfg),
		parquetOpts:   opts,
		defaultPeriod: period,
	}, nil
}

// Close releases the catalog and the query engine.
func (s *Store) Close() error {
	var errs []error

	if err := s.query.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close query: %w", err))
	}

	if err := s.catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close catalog: %w", err))
	}

	return errors.Join(errs...)
}

// Config returns the current configuration.
func (s *Store) Config() *config.Config {
	return s.config
}

// DefaultPeriod returns the configured chunk period.
func (s *Store) DefaultPeriod() types.Period {
	return s.defaultPeriod
}

// LoadMetadata returns the bounds and shape of a stored series.
func (s *Store) LoadMetadata(ctx context.Context, key string) (types.Metadata, error) {
	e, err := s.catalog.Series(ctx, key)
	if err != nil {
		return types.Metadata{}, errors.NewMetadataUnavailable(key, err)
	}
	return e.Metadata, nil
}

// List returns every catalogued series.
func (s *Store) List(ctx context.Context) ([]catalog.Entry, error) {
	return s.catalog.List(ctx)
}

// ChunkIterator opens a lazy iterator over the chunks of key overlapping
// [start, end]. Returned rows are clipped to the range.
func (s *Store) ChunkIterator(ctx context.Context, key string, start, end int64) (types.ChunkIterator, error) {
	chunks, err := s.catalog.Chunks(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", key, err)
	}

	return &chunkIterator{
		store:  s,
		key:    key,
		bounds: types.Bounds{Start: start, End: end},
		chunks: chunks,
	}, nil
}

// ReadRange reads every row of key inside [start, end].
func (s *Store) ReadRange(ctx context.Context, key string, start, end int64) ([]types.Row, error) {
	it, err := s.ChunkIterator(ctx, key, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []types.Row
	for {
		chunk, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunk.Rows...)
	}
}

// SaveSeries replaces the stored series name with rows, partitioned by period.
// Rows must be ordered by timestamp. Saving no rows removes the series.
func (s *Store) SaveSeries(ctx context.Context, name string, rows []types.Row, period types.Period) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(rows) == 0 {
		return s.RemoveSeries(ctx, name)
	}
	if err := types.ValidateOrder(name, rows, math.MinInt64); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prevGen := int64(0)
	if e, err := s.catalog.Series(ctx, name); err == nil {
		prevGen = e.Generation
	} else if !errors.IsNotFound(err) {
		return fmt.Errorf("read catalog: %w", err)
	}

	gen := time.Now().UnixNano()
	if gen <= prevGen {
		gen = prevGen + 1
	}

	dir := filepath.Join(s.config.SeriesDir(name), strconv.FormatInt(gen, 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create generation dir: %w", err)
	}

	entries, size, err := s.writeChunks(ctx, dir, name, gen, period.Partition(rows))
	if err != nil {
		os.RemoveAll(dir)
		return err
	}

	entry := catalog.Entry{
		Metadata: types.Metadata{
			Name:      name,
			Start:     rows[0].TimestampMs,
			End:       rows[len(rows)-1].TimestampMs,
			Period:    period,
			Rows:      int64(len(rows)),
			Chunks:    len(entries),
			UpdatedAt: time.Now(),
		},
		Generation: gen,
	}

	replaced, err := s.catalog.PutSeries(ctx, entry, entries)
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("update catalog: %w", err)
	}

	if replaced != 0 && replaced != gen {
		old := filepath.Join(s.config.SeriesDir(name), strconv.FormatInt(replaced, 10))
		if err := os.RemoveAll(old); err != nil {
			// Left for the next prune
			log.Warn("remove previous generation failed", "series", name, "path", old, "error", err)
		}
	}

	s.seriesSaved.Add(1)
	s.bytesWritten.Add(size)

	log.Debug("series saved",
		"series", name,
		"rows", humanize.Comma(int64(len(rows))),
		"chunks", len(entries),
		"size", humanize.IBytes(uint64(size)),
		"period", period.String(),
	)

	return nil
}

func (s *Store) writeChunks(ctx context.Context, dir, name string, gen int64, chunks []types.Chunk) ([]catalog.ChunkEntry, int64, error) {
	entries := make([]catalog.ChunkEntry, 0, len(chunks))
	var total int64

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		path := filepath.Join(dir, chunkFileName(chunk.Start))
		n, err := parquet.WriteChunk(path, name, chunk, s.parquetOpts)
		if err != nil {
			return nil, 0, fmt.Errorf("write chunk %s: %w", path, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, 0, fmt.Errorf("stat chunk %s: %w", path, err)
		}

		entries = append(entries, catalog.ChunkEntry{
			Series:     name,
			Generation: gen,
			Start:      chunk.Start,
			End:        chunk.End,
			Rows:       n,
			Size:       info.Size(),
			Path:       path,
		})
		total += info.Size()
	}

	return entries, total, nil
}

// Import stores rows under name after sorting them by timestamp.
// Unlike SaveSeries it accepts unordered input, as produced by external files.
func (s *Store) Import(ctx context.Context, name string, rows []types.Row, period types.Period) error {
	sorted := make([]types.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	if err := s.SaveSeries(ctx, name, sorted, period); err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	return nil
}

// RemoveSeries deletes a series and its files. Removing an unknown series
// is not an error.
func (s *Store) RemoveSeries(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, existed, err := s.catalog.DeleteSeries(ctx, name)
	if err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}

	if err := os.RemoveAll(s.config.SeriesDir(name)); err != nil {
		return fmt.Errorf("remove series files: %w", err)
	}

	if existed {
		log.Debug("series removed", "series", name)
	}
	return nil
}

// SeriesInfo describes one stored series for inspection.
type SeriesInfo struct {
	Entry   catalog.Entry
	Chunks  []catalog.ChunkEntry
	Summary *query.Summary
	Size    int64
}

// Inspect returns the catalog entry, chunk list and a DuckDB summary of name.
func (s *Store) Inspect(ctx context.Context, name string) (*SeriesInfo, error) {
	e, err := s.catalog.Series(ctx, name)
	if err != nil {
		return nil, err
	}

	chunks, err := s.catalog.Chunks(ctx, name, math.MinInt64, math.MaxInt64)
	if err != nil {
		return nil, err
	}

	files := make([]string, len(chunks))
	var size int64
	for i, ch := range chunks {
		files[i] = ch.Path
		size += ch.Size
	}

	summary, err := s.query.Summarize(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", name, err)
	}

	return &SeriesInfo{
		Entry:   e,
		Chunks:  chunks,
		Summary: summary,
		Size:    size,
	}, nil
}

// ExecuteSQL runs an ad-hoc DuckDB query. The second result reports
// whether rows were dropped to honor the configured row limit.
func (s *Store) ExecuteSQL(ctx context.Context, sql string) ([]map[string]interface{}, bool, error) {
	return s.query.ExecuteSQL(ctx, sql)
}

// Prune removes generation directories the catalog does not reference.
func (s *Store) Prune(ctx context.Context, dryRun bool) (retention.CleanupResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.catalog.List(ctx)
	if err != nil {
		return retention.CleanupResult{}, err
	}

	live := make(map[string]int64, len(entries))
	for _, e := range entries {
		live[e.Name] = e.Generation
	}

	return s.retention.Prune(live, dryRun), nil
}

// DiskUsage returns on-disk usage per series directory.
func (s *Store) DiskUsage() map[string]retention.DiskUsage {
	return s.retention.GetDiskUsage()
}

// Stats returns store statistics.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		ChunksRead:   s.chunksRead.Load(),
		RowsRead:     s.rowsRead.Load(),
		SeriesSaved:  s.seriesSaved.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Query:        s.query.Stats(),
		Retention:    s.retention.Stats(),
	}
}

// StoreStats holds combined statistics.
type StoreStats struct {
	ChunksRead   int64
	RowsRead     int64
	SeriesSaved  int64
	BytesWritten int64
	Query        query.ServiceStats
	Retention    retention.ManagerStats
}

// chunkIterator reads the chunk files of one series in period order.
type chunkIterator struct {
	store  *Store
	key    string
	bounds types.Bounds
	chunks []catalog.ChunkEntry
	next   int
	closed bool
}

func (it *chunkIterator) Next(ctx context.Context) (types.Chunk, error) {
	if it.closed || it.next >= len(it.chunks) {
		return types.Chunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return types.Chunk{}, err
	}

	entry := it.chunks[it.next]
	it.next++

	cfg := it.store.config
	rows, err := parquet.ReadChunk(entry.Path, cfg.Read.BufferSize, cfg.Read.BatchRows)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("read chunk of %s at %s: %w", it.key, entry.Bounds(), err)
	}

	it.store.chunksRead.Add(1)
	it.store.rowsRead.Add(int64(len(rows)))

	return types.Chunk{
		Start: entry.Start,
		End:   entry.End,
		Rows:  clip(rows, it.bounds),
	}, nil
}

func (it *chunkIterator) Close() error {
	it.closed = true
	it.chunks = nil
	return nil
}

// clip returns the rows of an ordered slice that lie inside b.
func clip(rows []types.Row, b types.Bounds) []types.Row {
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].TimestampMs >= b.Start })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].TimestampMs > b.End })
	if lo >= hi {
		return nil
	}
	return rows[lo:hi:hi]
}

// chunkFileName names a chunk file after the UTC start of its period.
func chunkFileName(startMs int64) string {
	return time.UnixMilli(startMs).UTC().Format("2006-01-02") + ".parquet"
}

// validateName rejects series names that cannot be used as a directory name.
func validateName(name string) error {
	switch {
	case name == "":
		return errors.NewMissingField("series name")
	case name == "." || name == "..":
		return errors.NewValidation("series name", "reserved name "+name)
	case strings.ContainsAny(name, `/\`):
		return errors.NewValidation("series name", "must not contain path separators")
	}
	return nil
}
