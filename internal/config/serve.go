package config

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Config
	SinkConfig
	Listen          string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v.SetDefault("listen", ":8080")
	v.SetDefault("shutdown-timeout-ms", 5000)

	cfg := ServeConfig{
		Config:          fromViper(v),
		SinkConfig:      sinkFromViper(v),
		Listen:          v.GetString("listen"),
		ShutdownTimeout: millis(v, "shutdown-timeout-ms"),
		CORSOrigins:     getStringSlice(v, "cors-origin"),
	}
	if err := cfg.Validate(); err != nil {
		return ServeConfig{}, err
	}
	if cfg.Listen == "" {
		return ServeConfig{}, errors.New("listen address is required")
	}
	return cfg, nil
}
