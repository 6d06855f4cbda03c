package types

import (
	"sort"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
)

// Row is a single record of a series.
// TimestampMs is the row's date; Fields carries the series-specific payload.
type Row struct {
	// TimestampMs is the Unix timestamp in milliseconds.
	TimestampMs int64

	// Fields maps payload column names to values (e.g. "open", "gas_price").
	Fields map[string]float64
}

// NewRow creates a row from alternating field names and values.
// It panics on an odd argument count, which is a programming error.
func NewRow(timestampMs int64, kv ...any) Row {
	if len(kv)%2 != 0 {
		panic("types.NewRow: odd number of field arguments")
	}
	r := Row{TimestampMs: timestampMs}
	if len(kv) > 0 {
		r.Fields = make(map[string]float64, len(kv)/2)
	}
	for i := 0; i < len(kv); i += 2 {
		name := kv[i].(string)
		switch v := kv[i+1].(type) {
		case float64:
			r.Fields[name] = v
		case int:
			r.Fields[name] = float64(v)
		case int64:
			r.Fields[name] = float64(v)
		default:
			panic("types.NewRow: unsupported value type for field " + name)
		}
	}
	return r
}

// Time returns the row timestamp as a time.Time in UTC.
func (r Row) Time() time.Time {
	return time.UnixMilli(r.TimestampMs).UTC()
}

// Value returns the named field and whether it is present.
func (r Row) Value(field string) (float64, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// FieldNames returns the row's field names in sorted order.
func (r Row) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateOrder checks that rows are non-decreasing in TimestampMs and that
// the first row does not precede after (pass math.MinInt64 to skip that check).
func ValidateOrder(key string, rows []Row, after int64) error {
	prev := after
	for _, r := range rows {
		if r.TimestampMs < prev {
			return errors.NewOutOfOrder(key, prev, r.TimestampMs)
		}
		prev = r.TimestampMs
	}
	return nil
}

// Chunk is one physically retrievable block of a series.
// Start and End are the inclusive bounds of the chunk's period; every row
// lies inside them.
type Chunk struct {
	Start int64
	End   int64
	Rows  []Row
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return len(c.Rows)
}

// Last returns the last row of the chunk.
func (c Chunk) Last() (Row, bool) {
	if len(c.Rows) == 0 {
		return Row{}, false
	}
	return c.Rows[len(c.Rows)-1], true
}

// Through returns the timestamp up to which the chunk is known to be complete:
// the later of its period end and its last row.
func (c Chunk) Through() int64 {
	through := c.End
	if last, ok := c.Last(); ok && last.TimestampMs > through {
		through = last.TimestampMs
	}
	return through
}
