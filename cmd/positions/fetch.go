package main

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"positionScope/internal/config"
	"positionScope/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func runFetch(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sink, closeSink, err := openSinks(ctx, cfg.SinkConfig)
	if err != nil {
		return err
	}
	defer closeSink()

	wallet := args[0]
	logger.Info("fetch start",
		zap.String("wallet", wallet),
		zap.String("rpc", cfg.RPCURL),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	snap, err := rt.pipeline.Snapshot(ctx, wallet)
	if err != nil {
		return err
	}
	if snap.Status == model.StatusPartial {
		for _, failure := range snap.Failures {
			logger.Warn("pool failed", zap.String("pool", failure.PoolKey), zap.String("error", failure.Error))
		}
	}

	if sink != nil {
		if err := sink.PutSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}
	return writeSnapshot(cfg.Out, cfg.Format, snap)
}

func writeSnapshot(path, format string, snap model.Snapshot) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return encodeSnapshot(out, format, snap)
}

func encodeSnapshot(w io.Writer, format string, snap model.Snapshot) error {
	switch format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		// jsoniter leaves nested MarshalJSON output unindented
		var buf bytes.Buffer
		if err := stdjson.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("indent json: %w", err)
		}
		buf.WriteByte('\n')
		_, err = buf.WriteTo(w)
		return err
	}
}
