// propgen computes derived property series from stored market and chain
// series and persists them back into the store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comrade-coop/blockchain-predictor/internal/config"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

// app holds the state shared by every command.
type app struct {
	cfgPath  string
	logLevel string
	logJSON  bool

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "propgen",
		Short: "Generate aligned property series from stored series",
		Long: `propgen walks a driving series interval by interval, aligns every
other required series to those intervals and stores one value per
interval for each configured property.

Commands:
  generate  compute and store every configured property
  remove    delete every configured property series
  import    load a raw series from CSV
  inspect   show stored series
  query     run SQL over stored chunk files
  prune     reclaim space held by stale generations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.HasParent() || cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default: ./propgen.yaml or ~/propgen.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(
		newGenerateCmd(a),
		newRemoveCmd(a),
		newImportCmd(a),
		newInspectCmd(a),
		newQueryCmd(a),
		newPruneCmd(a),
		newVersionCmd(),
	)

	return root
}

// load reads the configuration, applies flag overrides and initializes
// logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}

	logging.Init(cfg.LogLevel(), cfg.Log.JSON)
	a.cfg = cfg
	return nil
}

// openStore opens the series store described by the configuration.
func (a *app) openStore() (*storage.Store, error) {
	store, err := storage.New(&a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "propgen %s\n", Version)
		},
	}
}
