// Package aggregate maintains running statistics over the values of one
// field within an interval window.
package aggregate

import (
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// DefaultAccuracy is the relative accuracy of quantile estimates.
const DefaultAccuracy = 0.01

// Result is a snapshot of an aggregate.
type Result struct {
	Count   int64
	Sum     float64
	Min     float64
	Max     float64
	Mean    float64
	First   float64
	Last    float64
	FirstTs int64
	LastTs  int64
}

// StreamingAggregate maintains running statistics for a single window.
// It supports optional quantile calculation using DDSketch.
type StreamingAggregate struct {
	mu sync.Mutex

	// Running statistics
	count   int64
	skipped int64
	sum     float64
	min     float64
	max     float64
	first   float64
	last    float64
	firstTs int64
	lastTs  int64

	// DDSketch for quantiles (nil if disabled)
	sketch   *ddsketch.DDSketch
	accuracy float64
}

// New creates a new StreamingAggregate.
func New(enableQuantiles bool) *StreamingAggregate {
	if !enableQuantiles {
		return newAggregate(0)
	}
	return newAggregate(DefaultAccuracy)
}

// NewWithAccuracy creates a new StreamingAggregate with custom quantile accuracy.
func NewWithAccuracy(accuracy float64) *StreamingAggregate {
	return newAggregate(accuracy)
}

func newAggregate(accuracy float64) *StreamingAggregate {
	agg := &StreamingAggregate{
		min:      math.MaxFloat64,
		max:      -math.MaxFloat64,
		accuracy: accuracy,
	}
	agg.sketch = newSketch(accuracy)
	return agg
}

func newSketch(accuracy float64) *ddsketch.DDSketch {
	if accuracy <= 0 {
		return nil
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil
	}
	return sketch
}

// Add adds a value observed at timestampMs. Non-finite values are skipped.
func (a *StreamingAggregate) Add(value float64, timestampMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.add(value, timestampMs)
}

func (a *StreamingAggregate) add(value float64, timestampMs int64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		a.skipped++
		return
	}

	if a.count == 0 || timestampMs < a.firstTs {
		a.first = value
		a.firstTs = timestampMs
	}
	if a.count == 0 || timestampMs >= a.lastTs {
		a.last = value
		a.lastTs = timestampMs
	}

	a.count++
	a.sum += value

	if value < a.min {
		a.min = value
	}
	if value > a.max {
		a.max = value
	}

	if a.sketch != nil {
		a.sketch.Add(value)
	}
}

// AddRows adds the named field of every row that carries it and returns
// how many values were added.
func (a *StreamingAggregate) AddRows(rows []types.Row, field string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.count
	for _, r := range rows {
		if v, ok := r.Value(field); ok {
			a.add(v, r.TimestampMs)
		}
	}
	return int(a.count - before)
}

// Count returns the number of values added.
func (a *StreamingAggregate) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Skipped returns the number of non-finite values ignored.
func (a *StreamingAggregate) Skipped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.skipped
}

// IsEmpty returns true if no values have been added.
func (a *StreamingAggregate) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count == 0
}

// Result returns the aggregation result.
func (a *StreamingAggregate) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := Result{
		Count:   a.count,
		Sum:     a.sum,
		FirstTs: a.firstTs,
		LastTs:  a.lastTs,
	}

	if a.count > 0 {
		result.Mean = a.sum / float64(a.count)
		result.Min = a.min
		result.Max = a.max
		result.First = a.first
		result.Last = a.last
	}

	return result
}

// Quantile returns the estimated value at quantile q in [0, 1].
// It reports false when quantiles are disabled or no value was added.
func (a *StreamingAggregate) Quantile(q float64) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sketch == nil || a.count == 0 {
		return 0, false
	}

	v, err := a.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Reset clears the aggregate for the next window.
func (a *StreamingAggregate) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count = 0
	a.skipped = 0
	a.sum = 0
	a.min = math.MaxFloat64
	a.max = -math.MaxFloat64
	a.first = 0
	a.last = 0
	a.firstTs = 0
	a.lastTs = 0

	if a.sketch != nil {
		// DDSketch doesn't have a Clear method in every version
		a.sketch = newSketch(a.accuracy)
	}
}

// Merge combines another aggregate into this one.
func (a *StreamingAggregate) Merge(other *StreamingAggregate) {
	if other == nil || a == other {
		return
	}

	a.mu.Lock()
	other.mu.Lock()
	defer a.mu.Unlock()
	defer other.mu.Unlock()

	if other.count == 0 {
		a.skipped += other.skipped
		return
	}

	if a.count == 0 || other.firstTs < a.firstTs {
		a.first = other.first
		a.firstTs = other.firstTs
	}
	if a.count == 0 || other.lastTs >= a.lastTs {
		a.last = other.last
		a.lastTs = other.lastTs
	}

	a.count += other.count
	a.skipped += other.skipped
	a.sum += other.sum

	if other.min < a.min {
		a.min = other.min
	}
	if other.max > a.max {
		a.max = other.max
	}

	// Merge sketches
	if a.sketch != nil && other.sketch != nil {
		a.sketch.MergeWith(other.sketch)
	}
}
