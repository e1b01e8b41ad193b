// Package config loads covidstats settings from defaults, an optional YAML
// file, COVIDSTATS_* environment variables and explicitly set flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultSource               = "Casos_positivos_de_COVID-19_en_Colombia.csv"
	DefaultCacheDir             = "datos_procesados"
	DefaultChunkSize            = 100_000
	DefaultCategoricalThreshold = 100
	DefaultSampleSize           = 10_000
	DefaultSampleSeed           = 42
	DefaultTopN                 = 10
	DefaultLogFormat            = "text"
)

// DefaultConfigFile is looked up in the working directory when no file is
// given explicitly.
const DefaultConfigFile = "covidstats.yaml"

const envPrefix = "COVIDSTATS_"

// Config is the resolved configuration.
type Config struct {
	Source               string `koanf:"source"`
	CacheDir             string `koanf:"cache_dir"`
	ChunkSize            int    `koanf:"chunk_size"`
	CategoricalThreshold int    `koanf:"categorical_threshold"`
	SampleSize           int    `koanf:"sample_size"`
	SampleSeed           uint64 `koanf:"sample_seed"`
	TopN                 int    `koanf:"top_n"`
	Verbose              bool   `koanf:"verbose"`
	LogFormat            string `koanf:"log_format"`
	MetricsFile          string `koanf:"metrics_file"`
	PostgresURL          string `koanf:"postgres_url"`

	// ConfigFile is the file that was read, "" when none was.
	ConfigFile string `koanf:"-"`
}

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"size": "sample_size",
	"seed": "sample_seed",
}

// Load resolves the configuration. Precedence (highest to lowest):
// flags > env vars > config file > defaults. Only flags the user actually
// set take part. cfgFile may be empty.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"source":                DefaultSource,
		"cache_dir":             DefaultCacheDir,
		"chunk_size":            DefaultChunkSize,
		"categorical_threshold": DefaultCategoricalThreshold,
		"sample_size":           DefaultSampleSize,
		"sample_seed":           DefaultSampleSeed,
		"top_n":                 DefaultTopN,
		"verbose":               false,
		"log_format":            DefaultLogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// COVIDSTATS_CACHE_DIR -> cache_dir
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the explicit path, or covidstats.yaml when it
// exists in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.CategoricalThreshold <= 0 {
		return fmt.Errorf("categorical_threshold must be positive, got %d", c.CategoricalThreshold)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", c.SampleSize)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", c.TopN)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
