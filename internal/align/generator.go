package align

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Generator runs the full pipeline for one driving series and a fixed set
// of processors.
type Generator struct {
	store   Store
	driving string
	procs   []Processor
	opts    Options
}

// NewGenerator validates the processor set and creates a generator.
func NewGenerator(store Store, driving string, procs []Processor, opts Options) (*Generator, error) {
	if store == nil {
		return nil, errors.NewMissingField("store")
	}
	if driving == "" {
		return nil, errors.NewMissingField("driving series")
	}

	seen := make(map[string]bool, len(procs))
	for _, p := range procs {
		if seen[p.Name()] {
			return nil, errors.Wrapf(errors.ErrDuplicateProcessor, "property %s", p.Name())
		}
		seen[p.Name()] = true

		if len(p.Requires()) == 0 {
			return nil, errors.NewValidation("property "+p.Name(), "requires no series")
		}
	}

	return &Generator{
		store:   store,
		driving: driving,
		procs:   procs,
		opts:    opts,
	}, nil
}

// Names returns the property names in registration order.
func (g *Generator) Names() []string {
	names := make([]string, len(g.procs))
	for i, p := range g.procs {
		names[i] = p.Name()
	}
	return names
}

// Report summarizes a run.
type Report struct {
	RunID     string
	Driving   string
	Keys      []string
	Bounds    types.Bounds
	Stats     Stats
	Saves     []SaveResult
	StartedAt time.Time
	Duration  time.Duration
}

// Failed returns the saves that did not succeed.
func (r *Report) Failed() []SaveResult {
	var failed []SaveResult
	for _, s := range r.Saves {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

type reportDoc struct {
	RunID    string               `yaml:"run_id"`
	Driving  string               `yaml:"driving_series"`
	Keys     []string             `yaml:"series"`
	Start    string               `yaml:"start"`
	End      string               `yaml:"end"`
	Windows  int                  `yaml:"windows"`
	Skipped  int                  `yaml:"driving_rows_skipped"`
	Streams  map[string]streamDoc `yaml:"streams"`
	Saves    []saveDoc            `yaml:"saves"`
	Duration string               `yaml:"duration"`
}

type streamDoc struct {
	Fetches    int   `yaml:"fetches"`
	Rows       int64 `yaml:"rows"`
	PeakBuffer int   `yaml:"peak_buffer"`
}

type saveDoc struct {
	Property string `yaml:"property"`
	Points   int    `yaml:"points"`
	Status   string `yaml:"status"`
	Error    string `yaml:"error,omitempty"`
}

// WriteYAML writes the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	doc := reportDoc{
		RunID:    r.RunID,
		Driving:  r.Driving,
		Keys:     r.Keys,
		Start:    time.UnixMilli(r.Bounds.Start).UTC().Format(time.RFC3339),
		End:      time.UnixMilli(r.Bounds.End).UTC().Format(time.RFC3339),
		Windows:  r.Stats.Windows,
		Skipped:  r.Stats.Skipped,
		Streams:  make(map[string]streamDoc, len(r.Stats.Keys)),
		Duration: r.Duration.Round(time.Millisecond).String(),
	}

	for k, st := range r.Stats.Keys {
		doc.Streams[k] = streamDoc{Fetches: st.Fetches, Rows: st.Rows, PeakBuffer: st.PeakBuffer}
	}

	for _, s := range r.Saves {
		sd := saveDoc{Property: s.Name, Points: s.Points, Status: "saved"}
		switch {
		case s.Err != nil:
			sd.Status = "failed"
			sd.Error = s.Err.Error()
		case s.Skipped:
			sd.Status = "skipped"
		}
		doc.Saves = append(doc.Saves, sd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Run schedules, multiplexes, dispatches and persists. A non-nil error
// means nothing was persisted; per-series save failures are reported in
// the returned Report instead.
func (g *Generator) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{
		RunID:     strconv.FormatInt(time.Now().UnixNano(), 36),
		Driving:   g.driving,
		Keys:      Keys(g.driving, g.procs),
		StartedAt: time.Now(),
	}
	ctx = logging.ContextWithRunID(ctx, report.RunID)

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		g.opts.Metrics.RunCompleted(report.Duration, err)
	}()

	bounds, err := Schedule(ctx, g.store, report.Keys)
	if err != nil {
		return report, fmt.Errorf("schedule: %w", err)
	}
	report.Bounds = bounds

	log.InfoContext(ctx, "generation started",
		"driving", g.driving,
		"series", report.Keys,
		"bounds", bounds.String(),
		"properties", len(g.procs),
	)

	sink, err := NewSink(g.Names(), g.opts.Metrics)
	if err != nil {
		return report, err
	}
	dispatcher := NewDispatcher(g.procs, sink, g.opts.Metrics)

	mux := NewMultiplexer(g.store, g.driving, Requirements(g.procs), bounds, g.opts)
	err = mux.Run(ctx, dispatcher.Dispatch)
	report.Stats = mux.Stats()
	if err != nil {
		return report, err
	}

	report.Saves = sink.Persist(ctx, g.store, g.opts.Period)

	log.InfoContext(ctx, "generation finished",
		"windows", report.Stats.Windows,
		"failed_saves", len(report.Failed()),
		"duration", time.Since(report.StartedAt).Round(time.Millisecond).String(),
	)

	return report, nil
}

// Remove deletes every property series of the generator. It attempts all
// removals and returns their joined errors.
func (g *Generator) Remove(ctx context.Context) error {
	var errs []error
	for _, name := range g.Names() {
		if err := g.store.RemoveSeries(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		log.InfoContext(ctx, "property series removed", "property", name)
	}
	return errors.Join(errs...)
}
