package align

import (
	"context"
	"sync"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
	"github.com/comrade-coop/blockchain-predictor/internal/testutil"
)

const minute = int64(60_000)

// at returns hh:mm on 2024-01-01 UTC.
func at(h, m int) int64 {
	return testutil.Date(2024, 1, 1) + int64(h)*testutil.Hour + int64(m)*minute
}

// funcProc is a processor backed by a function.
type funcProc struct {
	name     string
	requires []string
	fn       func(w types.Window, end int64) (float64, error)
}

func (p *funcProc) Name() string       { return p.name }
func (p *funcProc) Requires() []string { return p.requires }
func (p *funcProc) Process(w types.Window, end int64) (float64, error) {
	return p.fn(w, end)
}

// countProc emits the number of rows of key in each window.
func countProc(name, key string) *funcProc {
	return &funcProc{
		name:     name,
		requires: []string{key},
		fn: func(w types.Window, _ int64) (float64, error) {
			return float64(len(w.Rows(key))), nil
		},
	}
}

// captured is one window seen by a multiplexer callback.
type captured struct {
	iv   types.Interval
	rows map[string][]int64
}

// capture collects the timestamps of every window.
type capture struct {
	mu      sync.Mutex
	windows []captured
}

func (c *capture) fn(w types.Window, iv types.Interval) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cw := captured{iv: iv, rows: make(map[string][]int64, len(w))}
	for k, rows := range w {
		ts := make([]int64, len(rows))
		for i, r := range rows {
			ts[i] = r.TimestampMs
		}
		cw.rows[k] = ts
	}
	c.windows = append(c.windows, cw)
	return nil
}

// rowsEvery returns rows from start every step while before end.
func rowsEvery(start, end, step int64, field string) []types.Row {
	var rows []types.Row
	for ts := start; ts < end; ts += step {
		rows = append(rows, types.NewRow(ts, field, float64(ts/minute)))
	}
	return rows
}

// chunkBy groups ordered rows into chunks aligned to size.
func chunkBy(rows []types.Row, size int64) []types.Chunk {
	var chunks []types.Chunk
	for _, r := range rows {
		start := r.TimestampMs - r.TimestampMs%size
		if n := len(chunks); n > 0 && chunks[n-1].Start == start {
			chunks[n-1].Rows = append(chunks[n-1].Rows, r)
			continue
		}
		chunks = append(chunks, types.Chunk{Start: start, End: start + size - 1, Rows: []types.Row{r}})
	}
	return chunks
}

// singleRowChunks puts every row in its own chunk whose period is the row
// instant.
func singleRowChunks(rows []types.Row) []types.Chunk {
	chunks := make([]types.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = types.Chunk{Start: r.TimestampMs, End: r.TimestampMs, Rows: []types.Row{r}}
	}
	return chunks
}

func runMux(store Store, driving string, keys []string, opts Options) (*capture, *Multiplexer, error) {
	ctx := context.Background()
	bounds, err := Schedule(ctx, store, keys)
	if err != nil {
		return nil, nil, err
	}

	c := &capture{}
	m := NewMultiplexer(store, driving, keys, bounds, opts)
	err = m.Run(ctx, c.fn)
	return c, m, err
}
