package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "positions",
		Short:        "Meteora DLMM wallet position aggregator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch <wallet>",
		Short: "Aggregate one wallet and print the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}
	addPipelineFlags(fetchCmd.Flags())
	fetchCmd.Flags().String("out", "", "output file (stdout when empty)")
	fetchCmd.Flags().String("format", "json", "output format (json, yaml)")
	addSinkFlags(fetchCmd.Flags())
	root.AddCommand(fetchCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve wallet positions over HTTP",
		RunE:  runServe,
	}
	addPipelineFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Int("shutdown-timeout-ms", 5000, "graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origins (all when empty)")
	addSinkFlags(serveCmd.Flags())
	root.AddCommand(serveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Read wallets from stdin; each line supersedes the previous one",
		RunE:  runWatch,
	}
	addPipelineFlags(watchCmd.Flags())
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPipelineFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "Solana RPC URL")
	flags.String("commitment", "confirmed", "RPC commitment")
	flags.Int("max-batch-size", 10, "pools aggregated concurrently")
	flags.Int("max-retries", 15, "retries after the first attempt")
	flags.Int("initial-retry-delay-ms", 1000, "first retry delay")
	flags.Int("max-retry-delay-ms", 30000, "retry delay cap")
	flags.Int("max-retry-elapsed-ms", 600000, "total retry wait cap (0 disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this rotated file")
}

func addSinkFlags(flags *pflag.FlagSet) {
	flags.String("pg-dsn", "", "Postgres DSN; snapshots are upserted when set")
	flags.String("jsonl", "", "append pool rows to this JSONL file")
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotated, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
