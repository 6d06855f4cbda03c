package parquet

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

func TestChunkWriterBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.parquet")

	w, err := NewChunkWriter(path, "ticks", types.Bounds{Start: 0, End: 999}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewChunkWriter: %v", err)
	}

	rows := []types.Row{
		types.NewRow(100, "open", 10.5, "close", 11.0),
		types.NewRow(200, "open", 11.0, "close", 10.0),
	}

	if err := w.Write(rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Verify file exists
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("file should not be empty")
	}
}

func TestChunkWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.parquet")

	rows := []types.Row{
		types.NewRow(1000, "gas_price", 20e9, "gas_used", 21000),
		{TimestampMs: 2000}, // row without payload
		types.NewRow(3000, "gas_price", 25e9),
	}

	n, err := WriteChunk(path, "blocks", types.Chunk{Start: 0, End: 9999, Rows: rows}, DefaultOptions())
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows written, got %d", n)
	}

	got, err := ReadChunk(path, 0, 0)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}

	if got[0].TimestampMs != 1000 {
		t.Errorf("expected timestamp 1000, got %d", got[0].TimestampMs)
	}
	if v, _ := got[0].Value("gas_used"); v != 21000 {
		t.Errorf("expected gas_used=21000, got %f", v)
	}
	if len(got[1].Fields) != 0 {
		t.Errorf("expected no fields on second row, got %v", got[1].Fields)
	}
	if v, _ := got[2].Value("gas_price"); v != 25e9 {
		t.Errorf("expected gas_price=25e9, got %f", v)
	}
}

func TestChunkReaderBatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.parquet")

	rows := make([]types.Row, 10000)
	for i := range rows {
		rows[i] = types.NewRow(int64(i), "v", float64(i%100))
	}

	if _, err := WriteChunk(path, "large", types.Chunk{Start: 0, End: 10000, Rows: rows}, DefaultOptions()); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	r, err := NewChunkReader(path, 0, 3000)
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 10000 {
		t.Errorf("expected 10000 rows, got %d", r.NumRows())
	}

	total := 0
	last := int64(-1)
	for {
		batch, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(batch) > 3000 {
			t.Errorf("batch larger than requested: %d", len(batch))
		}
		for _, row := range batch {
			if row.TimestampMs <= last {
				t.Fatalf("rows out of order: %d after %d", row.TimestampMs, last)
			}
			last = row.TimestampMs
		}
		total += len(batch)
	}

	if total != 10000 {
		t.Errorf("expected 10000 rows read, got %d", total)
	}
}

func TestCompressionTypes(t *testing.T) {
	compressions := []struct {
		name string
		ct   CompressionType
	}{
		{"none", CompressionNone},
		{"snappy", CompressionSnappy},
		{"zstd", CompressionZstd},
		{"lz4", CompressionLZ4},
		{"gzip", CompressionGzip},
	}

	for _, tc := range compressions {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "test.parquet")

			opts := DefaultOptions()
			opts.Compression = tc.ct

			chunk := types.Chunk{Start: 0, End: 10, Rows: []types.Row{types.NewRow(1, "v", 50.0)}}
			if _, err := WriteChunk(path, "s", chunk, opts); err != nil {
				t.Fatalf("WriteChunk: %v", err)
			}

			got, err := ReadChunk(path, 0, 0)
			if err != nil {
				t.Fatalf("ReadChunk: %v", err)
			}

			if len(got) != 1 {
				t.Errorf("expected 1 row, got %d", len(got))
			}
		})
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		input    string
		expected CompressionType
	}{
		{"snappy", CompressionSnappy},
		{"zstd", CompressionZstd},
		{"lz4", CompressionLZ4},
		{"gzip", CompressionGzip},
		{"none", CompressionNone},
		{"", CompressionNone},
		{"invalid", CompressionZstd}, // Default
	}

	for _, tt := range tests {
		result := ParseCompressionType(tt.input)
		if result != tt.expected {
			t.Errorf("ParseCompressionType(%s): expected %d, got %d", tt.input, tt.expected, result)
		}
	}
}

func TestRecordConversion(t *testing.T) {
	row := types.NewRow(42, "b", 2.0, "a", 1.0)

	rec := RowToRecord(&row)
	if len(rec.Fields) != 2 || rec.Fields[0].Name != "a" {
		t.Errorf("fields should be sorted by name: %+v", rec.Fields)
	}

	back := RecordToRow(&rec)
	if back.TimestampMs != 42 || back.Fields["a"] != 1 || back.Fields["b"] != 2 {
		t.Errorf("conversion roundtrip failed: %+v", back)
	}
}

func TestEmptyWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.parquet")

	w, err := NewChunkWriter(path, "s", types.Bounds{}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewChunkWriter: %v", err)
	}

	// Empty write should be no-op
	if err := w.Write(nil); err != nil {
		t.Errorf("nil write should succeed: %v", err)
	}

	if w.RowCount() != 0 {
		t.Errorf("expected 0 rows, got %d", w.RowCount())
	}

	w.Close()
}

func TestWriteToClosedWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.parquet")

	w, err := NewChunkWriter(path, "s", types.Bounds{}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewChunkWriter: %v", err)
	}

	w.Close()

	err = w.Write([]types.Row{{TimestampMs: 1}})
	if err != ErrWriterClosed {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
}

func TestGetFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.parquet")

	rows := make([]types.Row, 100)
	for i := range rows {
		rows[i] = types.NewRow(int64(1000+i), "v", float64(i))
	}

	chunk := types.Chunk{Start: 1000, End: 1999, Rows: rows}
	if _, err := WriteChunk(path, "ticks", chunk, DefaultOptions()); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}

	if info.NumRows != 100 {
		t.Errorf("expected 100 rows, got %d", info.NumRows)
	}
	if info.Size <= 0 {
		t.Error("expected positive size")
	}
	if info.Series != "ticks" {
		t.Errorf("expected series=ticks, got %q", info.Series)
	}
	if info.Bounds.Start != 1000 || info.Bounds.End != 1999 {
		t.Errorf("unexpected bounds %+v", info.Bounds)
	}
}

func BenchmarkChunkWrite1000(b *testing.B) {
	dir := b.TempDir()

	rows := make([]types.Row, 1000)
	for i := range rows {
		rows[i] = types.NewRow(int64(i), "open", float64(i), "close", float64(i+1))
	}
	chunk := types.Chunk{Start: 0, End: 1000, Rows: rows}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		WriteChunk(filepath.Join(dir, "bench.parquet"), "bench", chunk, DefaultOptions())
	}
}
