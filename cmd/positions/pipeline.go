package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"positionScope/internal/aggregate"
	"positionScope/internal/config"
	"positionScope/internal/dlmm"
	"positionScope/internal/metrics"
	"positionScope/internal/price"
	"positionScope/internal/solana"
)

type runtime struct {
	pipeline *aggregate.Pipeline
	registry *prometheus.Registry
	closeFn  func()
}

func (r *runtime) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

func newRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	rpcClient, err := solana.NewClient(ctx, cfg.RPCURL,
		solana.WithCommitment(cfg.Commitment),
		solana.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	source := dlmm.NewSource(rpcClient, dlmm.NewMintDecimalsCache(), logger)
	prices := price.NewJupiterClient(price.Options{
		PriceURL:  cfg.PriceURL,
		TokenURL:  cfg.TokenURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.PriceRPS,
		RateBurst: cfg.PriceBurst,
	}, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks := metrics.New(registry)

	pipeline := aggregate.NewPipeline(aggregate.Config{
		MaxBatchSize:      cfg.MaxBatchSize,
		MaxRetries:        cfg.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay,
		MaxRetryDelay:     cfg.MaxRetryDelay,
		MaxRetryElapsed:   cfg.MaxRetryElapsed,
	}, source, prices, solana.AddressParser{}, logger, aggregate.WithHooks(hooks))

	return &runtime{
		pipeline: pipeline,
		registry: registry,
		closeFn:  rpcClient.Close,
	}, nil
}
