package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/model"
	"positionScope/internal/retry"
	"positionScope/internal/solana"
)

const (
	opListPositions = "list_positions"
	opGetPrice      = "get_price"
)

// PositionSource lists a wallet's positions grouped by pool key.
type PositionSource interface {
	ListPositions(ctx context.Context, owner solana.Pubkey) (map[string]model.PositionGroup, error)
}

// PriceSource prices token X in token Y.
type PriceSource interface {
	GetPrice(ctx context.Context, tokenXMint, tokenYMint string) (model.TokenPrice, error)
}

// AddressParser validates a wallet address.
type AddressParser interface {
	ParseAddress(address string) (solana.Pubkey, error)
}

// Hooks observe pipeline progress. Metrics implements it.
type Hooks interface {
	retry.Observer
	PoolUnitStarted()
	PoolUnitFinished()
	PoolFailed(poolKey string)
	AggregateFinished(status string, elapsed time.Duration)
}

type nopHooks struct{}

func (nopHooks) OnRetry(string, int, time.Duration, error) {}
func (nopHooks) OnExhausted(string, int, error)            {}
func (nopHooks) PoolUnitStarted()                          {}
func (nopHooks) PoolUnitFinished()                         {}
func (nopHooks) PoolFailed(string)                         {}
func (nopHooks) AggregateFinished(string, time.Duration)   {}

// Config controls fan-out width and retry policy.
type Config struct {
	MaxBatchSize      int
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxRetryElapsed   time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithHooks(hooks Hooks) Option {
	return func(p *Pipeline) {
		if hooks != nil {
			p.hooks = hooks
		}
	}
}

// WithInvocationIDs replaces the uuid generator.
func WithInvocationIDs(next func() string) Option {
	return func(p *Pipeline) {
		if next != nil {
			p.newID = next
		}
	}
}

// Pipeline aggregates a wallet's positions into one record per pool.
type Pipeline struct {
	cfg       Config
	positions PositionSource
	prices    PriceSource
	addresses AddressParser
	caller    *retry.Caller
	hooks     Hooks
	logger    *zap.Logger
	newID     func() string
}

func NewPipeline(cfg Config, positions PositionSource, prices PriceSource, addresses AddressParser, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	p := &Pipeline{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		addresses: addresses,
		hooks:     nopHooks{},
		logger:    logger,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.caller = retry.New(
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithInitialDelay(cfg.InitialRetryDelay),
		retry.WithMaxDelay(cfg.MaxRetryDelay),
		retry.WithMaxElapsed(cfg.MaxRetryElapsed),
		retry.WithLogger(logger),
		retry.WithObserver(p.hooks),
	)
	return p
}

// Aggregate returns the wallet's pools. When some pools fail the
// returned error is a *PartialAggregationFailure and the result holds
// the pools that succeeded.
func (p *Pipeline) Aggregate(ctx context.Context, wallet string) (model.Result, error) {
	result, _, err := p.aggregate(ctx, p.newID(), wallet)
	return result, err
}

// Snapshot runs one aggregation and wraps it in a model.Snapshot.
// Partial failures are reported through the snapshot status, not the error.
func (p *Pipeline) Snapshot(ctx context.Context, wallet string) (model.Snapshot, error) {
	snap := model.Snapshot{
		InvocationID: p.newID(),
		Wallet:       wallet,
		FetchedAt:    time.Now().UTC(),
	}

	result, failures, err := p.aggregate(ctx, snap.InvocationID, wallet)
	var partial *PartialAggregationFailure
	if err != nil && !errors.As(err, &partial) {
		return model.Snapshot{}, err
	}

	snap.Pools = result
	snap.Failures = failures
	snap.Status = model.SnapshotStatus(result, failures)
	return snap, nil
}

func (p *Pipeline) aggregate(ctx context.Context, invocationID, wallet string) (model.Result, []model.PoolFailure, error) {
	start := time.Now()
	logger := p.logger.With(zap.String("invocation_id", invocationID), zap.String("wallet", wallet))

	result, failures, err := p.run(ctx, logger, wallet)

	status := model.SnapshotStatus(result, failures)
	if err != nil && len(failures) == 0 {
		status = "error"
	}
	elapsed := time.Since(start)
	p.hooks.AggregateFinished(status, elapsed)
	logger.Info("aggregate done",
		zap.String("status", status),
		zap.Int("pools", len(result)),
		zap.Int("failures", len(failures)),
		zap.Duration("elapsed", elapsed),
	)
	return result, failures, err
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, wallet string) (model.Result, []model.PoolFailure, error) {
	if p.addresses == nil {
		return nil, nil, errors.New("address parser is nil")
	}
	if p.positions == nil {
		return nil, nil, errors.New("position source is nil")
	}
	if p.prices == nil {
		return nil, nil, errors.New("price source is nil")
	}

	owner, err := p.addresses.ParseAddress(wallet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w %q: %w", ErrInvalidAddress, wallet, err)
	}

	groups, err := retry.Do(ctx, p.caller, opListPositions, func(ctx context.Context) (map[string]model.PositionGroup, error) {
		return p.positions.ListPositions(ctx, owner)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list positions: %w", err)
	}

	result := make(model.Result, len(groups))
	if len(groups) == 0 {
		logger.Info("no positions found")
		return result, nil, nil
	}

	var (
		mu       sync.Mutex
		failures []model.PoolFailure
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.MaxBatchSize)

	for _, poolKey := range sortedKeys(groups) {
		poolKey := poolKey // per-iteration copy; go directive is below 1.22
		group := groups[poolKey]
		eg.Go(func() error {
			p.hooks.PoolUnitStarted()
			defer p.hooks.PoolUnitFinished()

			record, err := p.buildPoolRecord(egCtx, poolKey, group)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.hooks.PoolFailed(poolKey)
				logger.Warn("pool aggregation failed", zap.String("pool", poolKey), zap.Error(err))
				mu.Lock()
				failures = append(failures, model.PoolFailure{PoolKey: poolKey, Error: err.Error(), Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result[poolKey] = record
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].PoolKey < failures[j].PoolKey })
		return result, failures, &PartialAggregationFailure{Result: result, Failures: failures}
	}
	return result, nil, nil
}

func (p *Pipeline) buildPoolRecord(ctx context.Context, poolKey string, group model.PositionGroup) (model.PoolRecord, error) {
	pool := group.Pool
	price, err := retry.Do(ctx, p.caller, opGetPrice, func(ctx context.Context) (model.TokenPrice, error) {
		return p.prices.GetPrice(ctx, pool.TokenXMint, pool.TokenYMint)
	})
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("get price %s/%s: %w", pool.TokenXMint, pool.TokenYMint, err)
	}

	positions, err := TransformPositions(group.Positions, pool.TokenXDecimals, pool.TokenYDecimals)
	if err != nil {
		return model.PoolRecord{}, err
	}

	return model.PoolRecord{
		PoolKey:        poolKey,
		Positions:      positions,
		NameX:          price.NameX,
		NameY:          price.NameY,
		Price:          price.Price,
		ActiveBin:      pool.ActiveBinID,
		TokenXDecimals: pool.TokenXDecimals,
		TokenYDecimals: pool.TokenYDecimals,
		TokenXMint:     pool.TokenXMint,
		TokenYMint:     pool.TokenYMint,
		BinStep:        pool.BinStep,
	}, nil
}

func sortedKeys(groups map[string]model.PositionGroup) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
