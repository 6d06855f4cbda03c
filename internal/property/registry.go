package property

import (
	"github.com/comrade-coop/blockchain-predictor/internal/align"
	"github.com/comrade-coop/blockchain-predictor/internal/errors"
)

// Registry holds processors in registration order with unique names.
type Registry struct {
	procs []align.Processor
	names map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register adds p. Names must be unique and p must require a series.
func (r *Registry) Register(p align.Processor) error {
	name := p.Name()
	if name == "" {
		return errors.NewMissingField("property name")
	}
	if r.names[name] {
		return errors.Wrapf(errors.ErrDuplicateProcessor, "property %s", name)
	}
	if len(p.Requires()) == 0 {
		return errors.NewValidation("property "+name, "requires no series")
	}

	r.names[name] = true
	r.procs = append(r.procs, p)
	return nil
}

// Processors returns the registered processors in order.
func (r *Registry) Processors() []align.Processor {
	return append([]align.Processor(nil), r.procs...)
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.procs))
	for i, p := range r.procs {
		names[i] = p.Name()
	}
	return names
}

// Len returns the number of registered processors.
func (r *Registry) Len() int {
	return len(r.procs)
}

// FromSpecs builds a registry of field processors.
func FromSpecs(specs []Spec) (*Registry, error) {
	r := NewRegistry()
	for _, s := range specs {
		p, err := NewFieldProcessor(s)
		if err != nil {
			return nil, err
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultSpecs returns the built-in properties: the opening price of each
// interval and the mean gas price of the blocks mined in it.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "openPrice", Kind: string(KindFirst), Series: "ticks", Field: "open"},
		{Name: "gasPrice", Kind: string(KindMean), Series: "blocks", Field: "gas_price"},
	}
}
