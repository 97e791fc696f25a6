// Package config loads compile-run configuration from environment
// variables and an optional config file, layered under sane defaults,
// using github.com/spf13/viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings one compiler run is parameterized by: which
// FHIR release to validate and export against, where cached package
// definitions live, where to write Package artifacts, which dependency
// packages to load, and the IG template/canonical used by the IG Config
// Emitter.
type Config struct {
	FHIRVersion   string   `mapstructure:"FHIR_VERSION"`
	CacheDir      string   `mapstructure:"CACHE_DIR"`
	OutputDir     string   `mapstructure:"OUTPUT_DIR"`
	Dependencies  []string `mapstructure:"DEPENDENCIES"`
	Offline       bool     `mapstructure:"OFFLINE"`
	CanonicalBase string   `mapstructure:"CANONICAL_BASE"`
	Template      string   `mapstructure:"TEMPLATE"`
	SnapshotOnly  bool     `mapstructure:"SNAPSHOT_ONLY"`
	LogLevel      string   `mapstructure:"LOG_LEVEL"`
}

// Load reads FSH_-prefixed environment variables and an optional
// "fsh-config" file (yaml/json/ini/toml, wherever viper finds it on its
// search path) into a Config, falling back to defaults when unset.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("FHIR_VERSION", "4.0.1")
	v.SetDefault("CACHE_DIR", ".fhir-cache")
	v.SetDefault("OUTPUT_DIR", "fsh-generated")
	v.SetDefault("OFFLINE", false)
	v.SetDefault("CANONICAL_BASE", "")
	v.SetDefault("SNAPSHOT_ONLY", false)
	v.SetDefault("LOG_LEVEL", "info")

	for _, key := range []string{
		"FHIR_VERSION", "CACHE_DIR", "OUTPUT_DIR", "DEPENDENCIES",
		"OFFLINE", "CANONICAL_BASE", "TEMPLATE", "SNAPSHOT_ONLY", "LOG_LEVEL",
	} {
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fsh-config")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Dependencies == nil {
		if deps := v.GetString("DEPENDENCIES"); deps != "" {
			cfg.Dependencies = strings.Split(deps, ",")
		}
	}

	if cfg.CanonicalBase == "" {
		return nil, fmt.Errorf("CANONICAL_BASE is required")
	}

	return cfg, nil
}

// IsSnapshotOnly reports the SnapshotOnly setting. The build does not
// consult it: differentials are computed and written either way.
func (c *Config) IsSnapshotOnly() bool {
	return c.SnapshotOnly
}
