package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// File metadata keys.
const (
	MetaSeries     = "propgen.series"
	MetaChunkStart = "propgen.chunk_start"
	MetaChunkEnd   = "propgen.chunk_end"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int

	// PageBufferSize is the target page buffer size in bytes
	PageBufferSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
		PageBufferSize:   1024 * 1024, // 1MB
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// RowRecord represents a series row in Parquet format.
type RowRecord struct {
	TimestampMs int64         `parquet:"timestamp_ms"`
	Fields      []FieldRecord `parquet:"fields,list"`
}

// FieldRecord is one named payload value of a row.
type FieldRecord struct {
	Name  string  `parquet:"name,zstd"`
	Value float64 `parquet:"value"`
}

// RowToRecord converts a Row to a RowRecord. Fields are written in name order.
func RowToRecord(r *types.Row) RowRecord {
	rec := RowRecord{TimestampMs: r.TimestampMs}
	if len(r.Fields) == 0 {
		return rec
	}

	rec.Fields = make([]FieldRecord, 0, len(r.Fields))
	for _, name := range r.FieldNames() {
		rec.Fields = append(rec.Fields, FieldRecord{Name: name, Value: r.Fields[name]})
	}
	return rec
}

// RecordToRow converts a RowRecord to a Row.
func RecordToRow(rec *RowRecord) types.Row {
	r := types.Row{TimestampMs: rec.TimestampMs}
	if len(rec.Fields) == 0 {
		return r
	}

	r.Fields = make(map[string]float64, len(rec.Fields))
	for _, f := range rec.Fields {
		r.Fields[f.Name] = f.Value
	}
	return r
}

// ChunkWriter writes the rows of one chunk to a Parquet file.
type ChunkWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[RowRecord]
	rowCount int64
	closed   bool
}

// NewChunkWriter creates a new chunk Parquet writer.
// The series name and chunk bounds are stored as file metadata.
func NewChunkWriter(path, series string, bounds types.Bounds, opts Options) (*ChunkWriter, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
		parquet.KeyValueMetadata(MetaSeries, series),
		parquet.KeyValueMetadata(MetaChunkStart, strconv.FormatInt(bounds.Start, 10)),
		parquet.KeyValueMetadata(MetaChunkEnd, strconv.FormatInt(bounds.End, 10)),
	}
	if opts.PageBufferSize > 0 {
		writerOpts = append(writerOpts, parquet.PageBufferSize(opts.PageBufferSize))
	}

	writer := parquet.NewGenericWriter[RowRecord](f, writerOpts...)

	return &ChunkWriter{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write writes rows to the Parquet file.
func (w *ChunkWriter) Write(rows []types.Row) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	records := make([]RowRecord, len(rows))
	for i := range rows {
		records[i] = RowToRecord(&rows[i])
	}

	n, err := w.writer.Write(records)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes and closes the writer.
func (w *ChunkWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync file: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *ChunkWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *ChunkWriter) Path() string {
	return w.path
}

// WriteChunk writes a whole chunk to path in one call.
func WriteChunk(path, series string, chunk types.Chunk, opts Options) (int64, error) {
	w, err := NewChunkWriter(path, series, types.Bounds{Start: chunk.Start, End: chunk.End}, opts)
	if err != nil {
		return 0, err
	}

	if err := w.Write(chunk.Rows); err != nil {
		w.Close()
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}

	return w.RowCount(), nil
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
