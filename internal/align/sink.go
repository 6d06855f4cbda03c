package align

import (
	"context"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/metrics"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

var sinkLog = logging.Component("sink")

// Point is one property value at an interval end.
type Point struct {
	Date  int64
	Value float64
}

// PropertySeries is the ordered output of one processor.
type PropertySeries struct {
	Name   string
	Points []Point
}

// Rows converts the points to store rows carrying a single field named
// after the series.
func (s *PropertySeries) Rows() []types.Row {
	rows := make([]types.Row, len(s.Points))
	for i, p := range s.Points {
		rows[i] = types.Row{
			TimestampMs: p.Date,
			Fields:      map[string]float64{s.Name: p.Value},
		}
	}
	return rows
}

// SaveResult is the outcome of persisting one property series.
type SaveResult struct {
	Name    string
	Points  int
	Skipped bool
	Err     error
}

// Sink accumulates property series in processor registration order.
type Sink struct {
	order   []string
	series  map[string]*PropertySeries
	metrics *metrics.Recorder
}

// NewSink creates a sink with one empty series per name.
func NewSink(names []string, rec *metrics.Recorder) (*Sink, error) {
	s := &Sink{
		series:  make(map[string]*PropertySeries, len(names)),
		metrics: rec,
	}
	for _, name := range names {
		if err := s.Register(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds an empty series for name.
func (s *Sink) Register(name string) error {
	if _, ok := s.series[name]; ok {
		return errors.Wrapf(errors.ErrDuplicateProcessor, "property %s", name)
	}
	s.series[name] = &PropertySeries{Name: name}
	s.order = append(s.order, name)
	return nil
}

// Append adds a point to the series of name, registering it on first use.
func (s *Sink) Append(name string, date int64, value float64) {
	ps, ok := s.series[name]
	if !ok {
		ps = &PropertySeries{Name: name}
		s.series[name] = ps
		s.order = append(s.order, name)
	}
	ps.Points = append(ps.Points, Point{Date: date, Value: value})
}

// Series returns the accumulated series of name.
func (s *Sink) Series(name string) (*PropertySeries, bool) {
	ps, ok := s.series[name]
	return ps, ok
}

// Names returns the series names in registration order.
func (s *Sink) Names() []string {
	return append([]string(nil), s.order...)
}

// Persist saves every series independently. A failed save is logged and
// reported in its SaveResult; the others proceed. Series without points
// are skipped so that an empty run does not erase stored results.
// Accumulated points are released afterwards.
func (s *Sink) Persist(ctx context.Context, store Store, period types.Period) []SaveResult {
	results := make([]SaveResult, 0, len(s.order))

	for _, name := range s.order {
		ps := s.series[name]
		res := SaveResult{Name: name, Points: len(ps.Points)}

		if len(ps.Points) == 0 {
			res.Skipped = true
			sinkLog.WarnContext(ctx, "property series empty, not saved", "property", name)
			results = append(results, res)
			continue
		}

		if err := store.SaveSeries(ctx, name, ps.Rows(), period); err != nil {
			res.Err = errors.NewPersistence(name, err)
			sinkLog.ErrorContext(ctx, "property series save failed",
				"property", name,
				"points", len(ps.Points),
				"error", err,
			)
		} else {
			sinkLog.InfoContext(ctx, "property series saved",
				"property", name,
				"points", len(ps.Points),
				"period", period.String(),
			)
		}
		s.metrics.SaveCompleted(name, res.Err)

		ps.Points = nil
		results = append(results, res)
	}

	return results
}
