package align

import (
	"fmt"
	"math"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/metrics"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Dispatcher feeds each window to every processor in registration order.
type Dispatcher struct {
	procs   []Processor
	sink    *Sink
	metrics *metrics.Recorder
}

// NewDispatcher creates a dispatcher writing into sink.
func NewDispatcher(procs []Processor, sink *Sink, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		procs:   procs,
		sink:    sink,
		metrics: rec,
	}
}

// Dispatch runs every processor on its restriction of w and appends the
// results at iv.End. The first processor error aborts the dispatch.
func (d *Dispatcher) Dispatch(w types.Window, iv types.Interval) error {
	for _, p := range d.procs {
		v, err := p.Process(w.Restrict(p.Requires()), iv.End)
		if err != nil {
			return fmt.Errorf("processor %s at %d: %w", p.Name(), iv.End, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("processor %s at %d: value %v: %w", p.Name(), iv.End, v, errors.ErrInvalidValue)
		}

		d.sink.Append(p.Name(), iv.End, v)
		d.metrics.ValueEmitted(p.Name())
	}

	d.metrics.WindowDispatched()
	return nil
}
