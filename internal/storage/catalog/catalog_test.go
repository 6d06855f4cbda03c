package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "catalog.db"), DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testEntry(name string, gen int64) Entry {
	return Entry{
		Metadata: types.Metadata{
			Name:   name,
			Start:  100,
			End:    2500,
			Period: types.PeriodMonth,
			Rows:   3,
		},
		Generation: gen,
	}
}

func testChunks(gen int64) []ChunkEntry {
	return []ChunkEntry{
		{Start: 0, End: 999, Rows: 1, Size: 10, Path: "a.parquet", Generation: gen},
		{Start: 1000, End: 1999, Rows: 1, Size: 10, Path: "b.parquet", Generation: gen},
		{Start: 2000, End: 2999, Rows: 1, Size: 10, Path: "c.parquet", Generation: gen},
	}
}

func TestNewCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := New(path, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("catalog file was not created")
	}
	if c.Path() != path {
		t.Errorf("Path() = %s, want %s", c.Path(), path)
	}
}

func TestPutAndGetSeries(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	prev, err := c.PutSeries(ctx, testEntry("ticks", 1), testChunks(1))
	if err != nil {
		t.Fatalf("PutSeries: %v", err)
	}
	if prev != 0 {
		t.Errorf("expected no previous generation, got %d", prev)
	}

	e, err := c.Series(ctx, "ticks")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	if e.Start != 100 || e.End != 2500 {
		t.Errorf("unexpected bounds %d..%d", e.Start, e.End)
	}
	if e.Period != types.PeriodMonth {
		t.Errorf("expected period M, got %s", e.Period)
	}
	if e.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", e.Chunks)
	}
	if e.Generation != 1 {
		t.Errorf("expected generation 1, got %d", e.Generation)
	}
	if e.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestSeriesNotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Series(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPutSeriesReplaces(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if _, err := c.PutSeries(ctx, testEntry("ticks", 1), testChunks(1)); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}

	next := testEntry("ticks", 2)
	next.End = 900
	prev, err := c.PutSeries(ctx, next, testChunks(2)[:1])
	if err != nil {
		t.Fatalf("PutSeries: %v", err)
	}
	if prev != 1 {
		t.Errorf("expected previous generation 1, got %d", prev)
	}

	chunks, err := c.Chunks(ctx, "ticks", 0, 10000)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk after replace, got %d", len(chunks))
	}
	if chunks[0].Generation != 2 {
		t.Errorf("expected generation 2, got %d", chunks[0].Generation)
	}
}

func TestChunksOverlap(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if _, err := c.PutSeries(ctx, testEntry("ticks", 1), testChunks(1)); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}

	tests := []struct {
		name       string
		start, end int64
		want       []string
	}{
		{"all", 0, 5000, []string{"a.parquet", "b.parquet", "c.parquet"}},
		{"inside one", 1200, 1300, []string{"b.parquet"}},
		{"boundary", 999, 1000, []string{"a.parquet", "b.parquet"}},
		{"after", 3000, 4000, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := c.Chunks(ctx, "ticks", tt.start, tt.end)
			if err != nil {
				t.Fatalf("Chunks: %v", err)
			}
			if len(chunks) != len(tt.want) {
				t.Fatalf("expected %d chunks, got %d", len(tt.want), len(chunks))
			}
			for i, ch := range chunks {
				if ch.Path != tt.want[i] {
					t.Errorf("chunk %d: expected %s, got %s", i, tt.want[i], ch.Path)
				}
			}
		})
	}
}

func TestListSeries(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"ticks", "blocks", "openPrice"} {
		if _, err := c.PutSeries(ctx, testEntry(name, 1), nil); err != nil {
			t.Fatalf("PutSeries(%s): %v", name, err)
		}
	}

	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{"blocks", "openPrice", "ticks"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Name)
		}
	}
}

func TestDeleteSeries(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if _, err := c.PutSeries(ctx, testEntry("ticks", 3), testChunks(3)); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}

	gen, ok, err := c.DeleteSeries(ctx, "ticks")
	if err != nil {
		t.Fatalf("DeleteSeries: %v", err)
	}
	if !ok || gen != 3 {
		t.Errorf("expected deleted generation 3, got %d (ok=%v)", gen, ok)
	}

	if _, err := c.Series(ctx, "ticks"); !errors.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}

	chunks, err := c.Chunks(ctx, "ticks", 0, 10000)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected chunk records removed, got %d", len(chunks))
	}

	// Second delete is a no-op
	_, ok, err = c.DeleteSeries(ctx, "ticks")
	if err != nil {
		t.Fatalf("DeleteSeries again: %v", err)
	}
	if ok {
		t.Error("second delete should report nothing removed")
	}
}

func TestClosedCatalog(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "catalog.db"), DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}

	if _, err := c.Series(context.Background(), "ticks"); !errors.Is(err, errors.ErrCatalogClosed) {
		t.Errorf("expected ErrCatalogClosed, got %v", err)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	c, err := New(path, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.PutSeries(ctx, testEntry("blocks", 7), testChunks(7)); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}
	c.Close()

	c, err = New(path, DefaultOptions())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()

	e, err := c.Series(ctx, "blocks")
	if err != nil {
		t.Fatalf("Series after reopen: %v", err)
	}
	if e.Generation != 7 || e.Rows != 3 {
		t.Errorf("unexpected entry after reopen: %+v", e)
	}
}
