package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

func TestMemoryStoreChunks(t *testing.T) {
	s := NewMemoryStore()
	s.Put("ticks", types.PeriodDay,
		types.NewRow(Date(2024, 1, 1)+Hour, "open", 1),
		types.NewRow(Date(2024, 1, 1)+2*Hour, "open", 2),
		types.NewRow(Date(2024, 1, 3)+Hour, "open", 3),
	)

	meta, err := s.LoadMetadata(context.Background(), "ticks")
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if meta.Start != Date(2024, 1, 1)+Hour || meta.End != Date(2024, 1, 3)+Hour {
		t.Errorf("bounds = [%d, %d]", meta.Start, meta.End)
	}
	if meta.Rows != 3 || meta.Chunks != 2 {
		t.Errorf("rows = %d, chunks = %d, want 3, 2", meta.Rows, meta.Chunks)
	}

	it, err := s.ChunkIterator(context.Background(), "ticks", meta.Start, meta.End)
	if err != nil {
		t.Fatalf("ChunkIterator: %v", err)
	}
	if s.OpenIterators() != 1 {
		t.Errorf("OpenIterators = %d, want 1", s.OpenIterators())
	}

	var sizes []int
	for {
		ch, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, ch.Len())
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("chunk sizes = %v, want [2 1]", sizes)
	}
	if s.Fetches("ticks") != 2 {
		t.Errorf("Fetches = %d, want 2", s.Fetches("ticks"))
	}

	it.Close()
	it.Close()
	if s.OpenIterators() != 0 {
		t.Errorf("OpenIterators after close = %d, want 0", s.OpenIterators())
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.LoadMetadata(context.Background(), "nope")
	if !errors.Is(err, errors.ErrMetadataUnavailable) {
		t.Errorf("LoadMetadata error = %v, want ErrMetadataUnavailable", err)
	}
	if _, err := s.ChunkIterator(context.Background(), "nope", 0, 1); !errors.IsNotFound(err) {
		t.Errorf("ChunkIterator error = %v, want not found", err)
	}
	if err := s.RemoveSeries(context.Background(), "nope"); err != nil {
		t.Errorf("RemoveSeries: %v", err)
	}
}

func TestMemoryStoreFailMetadata(t *testing.T) {
	s := NewMemoryStore()
	s.Put("ticks", types.PeriodDay, types.NewRow(Date(2024, 1, 1), "open", 1))
	s.FailMetadata("ticks", errors.New("catalog offline"))

	_, err := s.LoadMetadata(context.Background(), "ticks")
	if !errors.Is(err, errors.ErrMetadataUnavailable) {
		t.Errorf("LoadMetadata error = %v, want ErrMetadataUnavailable", err)
	}
	if _, err := s.ReadRange(context.Background(), "ticks", 0, Date(2025, 1, 1)); err != nil {
		t.Errorf("ReadRange: %v", err)
	}
}

func TestMemoryStoreSave(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rows := []types.Row{types.NewRow(1, "v", 1), types.NewRow(2, "v", 2)}
	if err := s.SaveSeries(ctx, "p", rows, types.PeriodMonth); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if got := s.Rows("p"); len(got) != 2 {
		t.Errorf("Rows = %d, want 2", len(got))
	}

	bad := []types.Row{types.NewRow(2, "v", 1), types.NewRow(1, "v", 2)}
	if err := s.SaveSeries(ctx, "p", bad, types.PeriodMonth); !errors.Is(err, errors.ErrOutOfOrder) {
		t.Errorf("unordered save error = %v, want ErrOutOfOrder", err)
	}

	s.FailSave("p", errors.New("disk full"))
	if err := s.SaveSeries(ctx, "p", rows, types.PeriodMonth); err == nil {
		t.Error("expected injected save failure")
	}
	if s.Saves("p") != 1 {
		t.Errorf("Saves = %d, want 1", s.Saves("p"))
	}
}

func TestMemoryStoreFetchDelay(t *testing.T) {
	s := NewMemoryStore()
	s.Put("slow", types.PeriodDay, types.NewRow(Date(2024, 1, 1), "v", 1))
	s.SetFetchDelay(time.Second)

	it, err := s.ChunkIterator(context.Background(), "slow", 0, Date(2025, 1, 1))
	if err != nil {
		t.Fatalf("ChunkIterator: %v", err)
	}
	defer it.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := it.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next error = %v, want DeadlineExceeded", err)
	}
}

func TestGoroutineTest(t *testing.T) {
	gt := NewGoroutineTest(t, 5*time.Second)
	for i := 0; i < 4; i++ {
		gt.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
				return nil
			}
		})
	}
	gt.Wait()
}

func TestWithTimeout(t *testing.T) {
	if err := WithTimeout(time.Second, func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := WithTimeout(10*time.Millisecond, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if err == nil {
		t.Error("expected timeout error")
	}
}
