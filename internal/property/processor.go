package property

import (
	"fmt"
	"strings"

	"github.com/comrade-coop/blockchain-predictor/internal/aggregate"
	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Kind selects the reduction a FieldProcessor applies.
type Kind string

const (
	KindFirst    Kind = "first"
	KindLast     Kind = "last"
	KindMean     Kind = "mean"
	KindSum      Kind = "sum"
	KindMin      Kind = "min"
	KindMax      Kind = "max"
	KindCount    Kind = "count"
	KindQuantile Kind = "quantile"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{KindFirst, KindLast, KindMean, KindSum, KindMin, KindMax, KindCount, KindQuantile}
}

// ParseKind parses a kind name, ignoring case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.NewInvalidValue("kind", s, "unknown property kind")
}

// Spec describes one field property.
type Spec struct {
	Name     string  `mapstructure:"name" yaml:"name"`
	Kind     string  `mapstructure:"kind" yaml:"kind"`
	Series   string  `mapstructure:"series" yaml:"series"`
	Field    string  `mapstructure:"field" yaml:"field"`
	Quantile float64 `mapstructure:"quantile" yaml:"quantile,omitempty"`
	Initial  float64 `mapstructure:"initial" yaml:"initial,omitempty"`
}

// Validate checks the spec.
func (s Spec) Validate() error {
	errs := errors.NewValidationErrors()

	if s.Name == "" {
		errs.AddMissing("name")
	}
	if s.Series == "" {
		errs.AddMissing("series")
	}
	if s.Field == "" {
		errs.AddMissing("field")
	}

	kind, err := ParseKind(s.Kind)
	if err != nil {
		errs.Add(err)
	}
	if kind == KindQuantile && (s.Quantile < 0 || s.Quantile > 1) {
		errs.AddField("quantile", fmt.Sprintf("%v is outside [0, 1]", s.Quantile))
	}

	if errs.HasErrors() && s.Name != "" {
		return fmt.Errorf("property %s: %w", s.Name, errs.Err())
	}
	return errs.Err()
}

// FieldProcessor reduces one field of one series per window.
type FieldProcessor struct {
	spec Spec
	kind Kind
	agg  *aggregate.StreamingAggregate

	prev float64
}

// NewFieldProcessor creates a processor from a validated spec.
func NewFieldProcessor(spec Spec) (*FieldProcessor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	kind, _ := ParseKind(spec.Kind)

	return &FieldProcessor{
		spec: spec,
		kind: kind,
		agg:  aggregate.New(kind == KindQuantile),
		prev: spec.Initial,
	}, nil
}

// Name returns the property name.
func (p *FieldProcessor) Name() string {
	return p.spec.Name
}

// Requires returns the single series the processor reads.
func (p *FieldProcessor) Requires() []string {
	return []string{p.spec.Series}
}

// Process reduces the field values in w. A window without values yields 0
// for count and sum, and the previous value (or the initial value) for
// every other kind.
func (p *FieldProcessor) Process(w types.Window, end int64) (float64, error) {
	p.agg.Reset()
	p.agg.AddRows(w.Rows(p.spec.Series), p.spec.Field)

	if p.agg.IsEmpty() {
		switch p.kind {
		case KindCount, KindSum:
			return 0, nil
		default:
			return p.prev, nil
		}
	}

	r := p.agg.Result()

	var v float64
	switch p.kind {
	case KindFirst:
		v = r.First
	case KindLast:
		v = r.Last
	case KindMean:
		v = r.Mean
	case KindSum:
		v = r.Sum
	case KindMin:
		v = r.Min
	case KindMax:
		v = r.Max
	case KindCount:
		v = float64(r.Count)
	case KindQuantile:
		q, ok := p.agg.Quantile(p.spec.Quantile)
		if !ok {
			return 0, fmt.Errorf("quantile %v of %s.%s at %d", p.spec.Quantile, p.spec.Series, p.spec.Field, end)
		}
		v = q
	}

	p.prev = v
	return v, nil
}
