// Package config loads the propgen application configuration.
//
// Values come from, in decreasing priority: PROPGEN_* environment
// variables, a YAML config file, and the defaults in the top-level config
// package. Field tags use mapstructure for viper unmarshalling.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	"github.com/comrade-coop/blockchain-predictor/internal/logging"
	"github.com/comrade-coop/blockchain-predictor/internal/property"
	storageconfig "github.com/comrade-coop/blockchain-predictor/internal/storage/config"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

// Config is the top-level configuration.
type Config struct {
	Log       LogConfig            `mapstructure:"log"`
	Storage   storageconfig.Config `mapstructure:"storage"`
	Generator GeneratorConfig      `mapstructure:"generator"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// GeneratorConfig configures generation runs.
type GeneratorConfig struct {
	// DrivingSeries is the series whose timestamps define intervals.
	DrivingSeries string `mapstructure:"driving_series"`

	// ChunkPeriod partitions saved property series. Empty means
	// storage.default_period.
	ChunkPeriod string `mapstructure:"chunk_period"`

	ParallelFetch bool          `mapstructure:"parallel_fetch"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`

	// Report is an optional path the YAML run report is written to.
	Report string `mapstructure:"report"`

	// Properties lists the computed properties. Empty means the built-in set.
	Properties []property.Spec `mapstructure:"properties"`
}

// MetricsConfig configures the end-of-run metrics push.
type MetricsConfig struct {
	// Pushgateway is the Pushgateway URL. Empty disables pushing.
	Pushgateway string        `mapstructure:"pushgateway"`
	Job         string        `mapstructure:"job"`
	PushTimeout time.Duration `mapstructure:"push_timeout"`
}

// Validate checks every section and returns all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	if err := c.Generator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("generator: %w", err))
	}

	if c.Metrics.Pushgateway != "" && c.Metrics.Job == "" {
		errs = append(errs, fmt.Errorf("metrics: %w", errors.NewMissingField("job")))
	}
	if c.Metrics.PushTimeout < 0 {
		errs = append(errs, fmt.Errorf("metrics: %w", errors.NewInvalidValue("push_timeout", c.Metrics.PushTimeout, "must not be negative")))
	}

	return errors.Join(errs...)
}

// Validate checks the generator section.
func (g *GeneratorConfig) Validate() error {
	var errs []error

	if g.DrivingSeries == "" {
		errs = append(errs, errors.NewMissingField("driving_series"))
	}
	if g.ChunkPeriod != "" {
		if _, err := types.ParsePeriod(g.ChunkPeriod); err != nil {
			errs = append(errs, fmt.Errorf("chunk_period: %w", err))
		}
	}
	if g.FetchTimeout < 0 {
		errs = append(errs, errors.NewInvalidValue("fetch_timeout", g.FetchTimeout, "must not be negative"))
	}

	seen := make(map[string]bool, len(g.Properties))
	for i, p := range g.Properties {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("properties[%d]: %w", i, err))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, errors.Wrapf(errors.ErrDuplicateProcessor, "properties[%d] %s", i, p.Name))
		}
		seen[p.Name] = true
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Period returns the chunk period of property series.
func (c *Config) Period() (types.Period, error) {
	if c.Generator.ChunkPeriod != "" {
		return types.ParsePeriod(c.Generator.ChunkPeriod)
	}
	return types.ParsePeriod(c.Storage.DefaultPeriod)
}

// PropertySpecs returns the configured properties, or the built-in set
// when none are configured.
func (c *Config) PropertySpecs() []property.Spec {
	if len(c.Generator.Properties) == 0 {
		return property.DefaultSpecs()
	}
	return c.Generator.Properties
}
