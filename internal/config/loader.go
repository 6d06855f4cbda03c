package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	defaults "github.com/comrade-coop/blockchain-predictor/config"
	"github.com/comrade-coop/blockchain-predictor/internal/errors"
	storageconfig "github.com/comrade-coop/blockchain-predictor/internal/storage/config"
)

// configName is the config file name without extension.
const configName = "propgen"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for propgen settings.
const envPrefix = "PROPGEN"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load loads configuration from file, env vars, and defaults.
// If path is non-empty, it is used as the explicit config file path.
// Otherwise, propgen.yaml is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("log.level", defaults.DefaultLogLevel)
	v.SetDefault("log.json", defaults.DefaultLogJSON)

	st := storageconfig.DefaultConfig()
	v.SetDefault("storage.data_dir", st.DataDir)
	v.SetDefault("storage.catalog_path", st.CatalogPath)
	v.SetDefault("storage.default_period", st.DefaultPeriod)
	v.SetDefault("storage.compression.algorithm", st.Compression.Algorithm)
	v.SetDefault("storage.compression.level", st.Compression.Level)
	v.SetDefault("storage.read.buffer_size", st.Read.BufferSize)
	v.SetDefault("storage.read.batch_rows", st.Read.BatchRows)
	v.SetDefault("storage.query.memory_limit", st.Query.MemoryLimit)
	v.SetDefault("storage.query.timeout", st.Query.Timeout)
	v.SetDefault("storage.query.max_rows", st.Query.MaxRows)

	v.SetDefault("generator.driving_series", defaults.DefaultDrivingSeries)
	v.SetDefault("generator.chunk_period", "")
	v.SetDefault("generator.parallel_fetch", defaults.DefaultParallelFetch)
	v.SetDefault("generator.fetch_timeout", defaults.DefaultFetchTimeout)
	v.SetDefault("generator.report", "")

	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", defaults.DefaultMetricsJob)
	v.SetDefault("metrics.push_timeout", defaults.DefaultMetricsPushTimeout)
}
