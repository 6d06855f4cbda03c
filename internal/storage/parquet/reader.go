package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// ChunkReader reads the rows of one chunk from a Parquet file.
type ChunkReader struct {
	file   *os.File
	reader *parquet.GenericReader[RowRecord]
	path   string
	batch  []RowRecord
}

// NewChunkReader creates a new chunk Parquet reader.
// bufferSize and batchRows fall back to defaults when non-positive.
func NewChunkReader(path string, bufferSize, batchRows int) (*ChunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 1024 * 1024
	}
	if batchRows <= 0 {
		batchRows = 4096
	}

	reader := parquet.NewGenericReader[RowRecord](f, parquet.ReadBufferSize(bufferSize))

	return &ChunkReader{
		file:   f,
		reader: reader,
		path:   path,
		batch:  make([]RowRecord, batchRows),
	}, nil
}

// Read reads the next batch of rows. It returns io.EOF once every row has
// been returned; a final partial batch is returned with a nil error.
func (r *ChunkReader) Read() ([]types.Row, error) {
	clear(r.batch)

	n, err := r.reader.Read(r.batch)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	rows := make([]types.Row, n)
	for i := 0; i < n; i++ {
		rows[i] = RecordToRow(&r.batch[i])
	}

	return rows, nil
}

// ReadAll reads all remaining rows from the file.
func (r *ChunkReader) ReadAll() ([]types.Row, error) {
	rows := make([]types.Row, 0, r.reader.NumRows())

	for {
		batch, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
}

// NumRows returns the total number of rows in the file.
func (r *ChunkReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *ChunkReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *ChunkReader) Path() string {
	return r.path
}

// ReadChunk reads every row of the chunk file at path.
func ReadChunk(path string, bufferSize, batchRows int) ([]types.Row, error) {
	r, err := NewChunkReader(path, bufferSize, batchRows)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadAll()
}

// FileInfo holds information about a chunk Parquet file.
type FileInfo struct {
	Path    string
	Size    int64
	NumRows int64
	Series  string
	Bounds  types.Bounds
}

// GetFileInfo returns information about a chunk Parquet file.
func GetFileInfo(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	info := &FileInfo{
		Path:    path,
		Size:    stat.Size(),
		NumRows: pf.NumRows(),
	}

	info.Series, _ = pf.Lookup(MetaSeries)
	if v, ok := pf.Lookup(MetaChunkStart); ok {
		info.Bounds.Start, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := pf.Lookup(MetaChunkEnd); ok {
		info.Bounds.End, _ = strconv.ParseInt(v, 10, 64)
	}

	return info, nil
}
