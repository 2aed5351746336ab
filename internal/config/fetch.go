package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// SinkConfig names where snapshots are persisted. Empty fields are skipped.
type SinkConfig struct {
	PGDSN string
	JSONL string
}

func sinkFromViper(v *viper.Viper) SinkConfig {
	return SinkConfig{
		PGDSN: v.GetString("pg-dsn"),
		JSONL: v.GetString("jsonl"),
	}
}

// FetchConfig holds configuration for one-shot aggregation.
type FetchConfig struct {
	Config
	SinkConfig
	Out    string
	Format string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return FetchConfig{}, err
	}
	v.SetDefault("format", FormatJSON)

	cfg := FetchConfig{
		Config:     fromViper(v),
		SinkConfig: sinkFromViper(v),
		Out:        v.GetString("out"),
		Format:     v.GetString("format"),
	}
	if err := cfg.Validate(); err != nil {
		return FetchConfig{}, err
	}
	if cfg.Format != FormatJSON && cfg.Format != FormatYAML {
		return FetchConfig{}, fmt.Errorf("format must be %q or %q, got %q", FormatJSON, FormatYAML, cfg.Format)
	}
	return cfg, nil
}
