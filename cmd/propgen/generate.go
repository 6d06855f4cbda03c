package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/comrade-coop/blockchain-predictor/internal/align"
	"github.com/comrade-coop/blockchain-predictor/internal/config"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/metrics"
	"github.com/comrade-coop/blockchain-predictor/internal/property"
)

var log = logging.Component("cli")

func newGenerateCmd(a *app) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compute and store every configured property series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reportPath != "" {
				a.cfg.Generator.Report = reportPath
			}
			return runGenerate(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "write the YAML run report to this file (- for stdout)")
	return cmd
}

// newGenerator builds the generator for the configured properties.
func newGenerator(a *app, store align.Store, rec *metrics.Recorder) (*align.Generator, error) {
	reg, err := property.FromSpecs(a.cfg.PropertySpecs())
	if err != nil {
		return nil, err
	}

	period, err := a.cfg.Period()
	if err != nil {
		return nil, err
	}

	return align.NewGenerator(store, a.cfg.Generator.DrivingSeries, reg.Processors(), align.Options{
		ParallelFetch: a.cfg.Generator.ParallelFetch,
		FetchTimeout:  a.cfg.Generator.FetchTimeout,
		Period:        period,
		Metrics:       rec,
	})
}

func runGenerate(ctx context.Context, a *app, out io.Writer) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec := metrics.New()
	g, err := newGenerator(a, store, rec)
	if err != nil {
		return err
	}

	report, runErr := g.Run(ctx)
	pushMetrics(ctx, a.cfg.Metrics, rec)
	if runErr != nil {
		return fmt.Errorf("generate: %w", runErr)
	}

	fmt.Fprintf(out, "Generated %s windows over %s (driving series %s)\n",
		humanize.Comma(int64(report.Stats.Windows)), report.Bounds, report.Driving)
	for _, s := range report.Saves {
		switch {
		case s.Err != nil:
			fmt.Fprintf(out, "  %-20s FAILED: %v\n", s.Name, s.Err)
		case s.Skipped:
			fmt.Fprintf(out, "  %-20s skipped (no values)\n", s.Name)
		default:
			fmt.Fprintf(out, "  %-20s %s points\n", s.Name, humanize.Comma(int64(s.Points)))
		}
	}

	if path := a.cfg.Generator.Report; path != "" {
		if err := writeReport(report, path, out); err != nil {
			log.Warn("write run report failed", "path", path, "error", err)
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		log.Warn("some property series were not saved", "failed", len(failed), "total", len(report.Saves))
	}
	return nil
}

func writeReport(report *align.Report, path string, stdout io.Writer) error {
	if path == "-" {
		return report.WriteYAML(stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pushMetrics pushes the run metrics when a Pushgateway is configured.
// Failures are logged; they never fail the run.
func pushMetrics(ctx context.Context, cfg config.MetricsConfig, rec *metrics.Recorder) {
	if cfg.Pushgateway == "" {
		return
	}

	if cfg.PushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), cfg.PushTimeout)
		defer cancel()
	}

	if err := rec.Push(ctx, cfg.Pushgateway, cfg.Job); err != nil {
		log.Warn("push metrics failed", "url", cfg.Pushgateway, "error", err)
		return
	}
	log.Debug("metrics pushed", "url", cfg.Pushgateway, "job", cfg.Job)
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete every configured property series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			g, err := newGenerator(a, store, nil)
			if err != nil {
				return err
			}
			if err := g.Remove(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d property series\n", len(g.Names()))
			return nil
		},
	}
}
