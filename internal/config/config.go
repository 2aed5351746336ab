package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "POSITIONS"

// DefaultRPCURL is the public mainnet endpoint.
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// Config holds the settings shared by every command.
type Config struct {
	RPCURL            string
	Commitment        string
	MaxBatchSize      int
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxRetryElapsed   time.Duration
	PriceURL          string
	TokenURL          string
	PriceRPS          float64
	PriceBurst        int
	RequestTimeout    time.Duration
	LogLevel          string
	LogFile           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RPCURL) == "" {
		errs = append(errs, errors.New("rpc url is required"))
	}
	if c.MaxBatchSize < 1 {
		errs = append(errs, fmt.Errorf("max-batch-size must be >= 1, got %d", c.MaxBatchSize))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.InitialRetryDelay <= 0 {
		errs = append(errs, errors.New("initial-retry-delay-ms must be > 0"))
	}
	if c.MaxRetryDelay < 0 || c.MaxRetryElapsed < 0 {
		errs = append(errs, errors.New("retry caps must be >= 0"))
	}
	if c.MaxRetryElapsed > 0 && c.MaxRetryElapsed < c.InitialRetryDelay {
		errs = append(errs, fmt.Errorf("max-retry-elapsed-ms %d is below initial-retry-delay-ms %d, no retry could run",
			c.MaxRetryElapsed.Milliseconds(), c.InitialRetryDelay.Milliseconds()))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request-timeout-ms must be > 0"))
	}
	return errors.Join(errs...)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// unprefixed names kept for existing deployments
	aliases := map[string]string{
		"rpc":                    "RPC_ENDPOINT",
		"max-batch-size":         "MAX_BATCH_SIZE",
		"max-retries":            "MAX_RETRIES",
		"initial-retry-delay-ms": "INITIAL_RETRY_DELAY",
	}
	for key, alias := range aliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("commitment", "confirmed")
	v.SetDefault("max-batch-size", 10)
	v.SetDefault("max-retries", 15)
	v.SetDefault("initial-retry-delay-ms", 1000)
	v.SetDefault("max-retry-delay-ms", 30000)
	v.SetDefault("max-retry-elapsed-ms", 600000)
	v.SetDefault("price-url", "https://api.jup.ag/price/v2")
	v.SetDefault("token-url", "https://tokens.jup.ag/token")
	v.SetDefault("price-rps", 10.0)
	v.SetDefault("price-burst", 10)
	v.SetDefault("request-timeout-ms", 10000)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		RPCURL:            v.GetString("rpc"),
		Commitment:        v.GetString("commitment"),
		MaxBatchSize:      v.GetInt("max-batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		InitialRetryDelay: millis(v, "initial-retry-delay-ms"),
		MaxRetryDelay:     millis(v, "max-retry-delay-ms"),
		MaxRetryElapsed:   millis(v, "max-retry-elapsed-ms"),
		PriceURL:          v.GetString("price-url"),
		TokenURL:          v.GetString("token-url"),
		PriceRPS:          v.GetFloat64("price-rps"),
		PriceBurst:        v.GetInt("price-burst"),
		RequestTimeout:    millis(v, "request-timeout-ms"),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
	}
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}
