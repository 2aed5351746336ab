package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/amount"
	"positionScope/internal/model"
	"positionScope/internal/retry"
	"positionScope/internal/solana"
)

const testWallet = "11111111111111111111111111111111"

type fakePositions struct {
	mu       sync.Mutex
	groups   map[string]model.PositionGroup
	failures int
	calls    int
}

func (f *fakePositions) ListPositions(_ context.Context, _ solana.Pubkey) (map[string]model.PositionGroup, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call <= f.failures {
		return nil, errors.New("rpc unavailable")
	}
	return f.groups, nil
}

type fakePrices struct {
	failMint string
	delay    time.Duration
	calls    int32
	inFlight int32
	maxSeen  int32
}

func (f *fakePrices) GetPrice(ctx context.Context, tokenX, tokenY string) (model.TokenPrice, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.TokenPrice{}, ctx.Err()
		}
	}
	if tokenX == f.failMint {
		return model.TokenPrice{}, errors.New("price api unavailable")
	}
	return model.TokenPrice{NameX: "X-" + tokenX, NameY: "Y-" + tokenY, Price: decimal.RequireFromString("2.5")}, nil
}

type recordingHooks struct {
	mu        sync.Mutex
	retries   int
	exhausted int
	started   int
	finished  int
	failed    []string
	statuses  []string
}

func (h *recordingHooks) OnRetry(string, int, time.Duration, error) {
	h.mu.Lock()
	h.retries++
	h.mu.Unlock()
}

func (h *recordingHooks) OnExhausted(string, int, error) {
	h.mu.Lock()
	h.exhausted++
	h.mu.Unlock()
}

func (h *recordingHooks) PoolUnitStarted() {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
}

func (h *recordingHooks) PoolUnitFinished() {
	h.mu.Lock()
	h.finished++
	h.mu.Unlock()
}

func (h *recordingHooks) PoolFailed(poolKey string) {
	h.mu.Lock()
	h.failed = append(h.failed, poolKey)
	h.mu.Unlock()
}

func (h *recordingHooks) AggregateFinished(status string, _ time.Duration) {
	h.mu.Lock()
	h.statuses = append(h.statuses, status)
	h.mu.Unlock()
}

func testConfig(batch int) Config {
	return Config{
		MaxBatchSize:      batch,
		MaxRetries:        2,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     2 * time.Millisecond,
		MaxRetryElapsed:   time.Second,
	}
}

func rawPosition(key, totalX string) model.RawPosition {
	return model.RawPosition{
		PublicKey:              key,
		LowerBinID:             -5,
		UpperBinID:             5,
		LastUpdatedAt:          1_700_000_000,
		TotalXAmount:           totalX,
		TotalYAmount:           "0",
		FeeX:                   "10",
		FeeY:                   "20",
		TotalClaimedFeeXAmount: "1000000",
		TotalClaimedFeeYAmount: "0",
	}
}

func poolGroup(mintX string, decX, decY uint8, positions ...model.RawPosition) model.PositionGroup {
	return model.PositionGroup{
		Pool: model.PoolContext{
			TokenXMint:     mintX,
			TokenYMint:     "USDC",
			TokenXDecimals: decX,
			TokenYDecimals: decY,
			ActiveBinID:    42,
			BinStep:        10,
		},
		Positions: positions,
	}
}

func TestAggregateTwoPools(t *testing.T) {
	source := &fakePositions{groups: map[string]model.PositionGroup{
		"poolA": poolGroup("MINTA", 6, 9, rawPosition("pos1", "1500000"), rawPosition("pos2", "1")),
		"poolB": poolGroup("MINTB", 9, 6),
	}}
	prices := &fakePrices{}
	p := NewPipeline(testConfig(10), source, prices, solana.AddressParser{}, nil)

	result, err := p.Aggregate(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, []string{"poolA", "poolB"}, result.Keys())

	a := result["poolA"]
	require.Len(t, a.Positions, 2)
	assert.Equal(t, "pos1", a.Positions[0].PublicKey)
	assert.Equal(t, "pos2", a.Positions[1].PublicKey)
	assert.True(t, a.Positions[0].TotalXAmount.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, a.Positions[1].TotalXAmount.Equal(decimal.RequireFromString("0.000001")))
	assert.True(t, a.Positions[0].ClaimedFeeX.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, "1000000", a.Positions[0].ClaimedFeeXAmount)
	assert.True(t, a.Positions[0].FeeY.Equal(decimal.RequireFromString("0.00000002")))
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), a.Positions[0].LastUpdatedAt)
	assert.Equal(t, "X-MINTA", a.NameX)
	assert.Equal(t, "Y-USDC", a.NameY)
	assert.True(t, a.Price.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, int32(42), a.ActiveBin)
	assert.Equal(t, uint8(6), a.TokenXDecimals)
	assert.Equal(t, uint8(9), a.TokenYDecimals)

	b := result["poolB"]
	assert.Empty(t, b.Positions)
	assert.NotNil(t, b.Positions)
	assert.Equal(t, int32(2), atomic.LoadInt32(&prices.calls))
}

func TestAggregateEmptyWallet(t *testing.T) {
	source := &fakePositions{groups: map[string]model.PositionGroup{}}
	prices := &fakePrices{}
	p := NewPipeline(testConfig(10), source, prices, solana.AddressParser{}, nil)

	result, err := p.Aggregate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
	assert.Zero(t, atomic.LoadInt32(&prices.calls))
}

func TestAggregateInvalidAddress(t *testing.T) {
	source := &fakePositions{}
	p := NewPipeline(testConfig(10), source, &fakePrices{}, solana.AddressParser{}, nil)

	for _, wallet := range []string{"", "not-a-wallet"} {
		result, err := p.Aggregate(context.Background(), wallet)
		assert.ErrorIs(t, err, ErrInvalidAddress)
		assert.Nil(t, result)
	}
	assert.Zero(t, source.calls)
}

func TestAggregateRetriesPositionDiscovery(t *testing.T) {
	source := &fakePositions{
		failures: 2,
		groups:   map[string]model.PositionGroup{"poolA": poolGroup("MINTA", 6, 6, rawPosition("pos1", "5"))},
	}
	hooks := &recordingHooks{}
	p := NewPipeline(testConfig(10), source, &fakePrices{}, solana.AddressParser{}, nil, WithHooks(hooks))

	result, err := p.Aggregate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, 2, hooks.retries)
	assert.Zero(t, hooks.exhausted)
}

func TestAggregatePositionDiscoveryExhausted(t *testing.T) {
	source := &fakePositions{failures: 100}
	p := NewPipeline(testConfig(10), source, &fakePrices{}, solana.AddressParser{}, nil)

	result, err := p.Aggregate(context.Background(), testWallet)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)
	assert.Nil(t, result)
	assert.Equal(t, 3, source.calls)
}

func TestAggregateIsolatesPoolFailure(t *testing.T) {
	source := &fakePositions{groups: map[string]model.PositionGroup{
		"poolA": poolGroup("MINTA", 6, 6, rawPosition("a1", "1")),
		"poolB": poolGroup("BAD", 6, 6, rawPosition("b1", "1")),
		"poolC": poolGroup("MINTC", 6, 6, rawPosition("c1", "1")),
	}}
	prices := &fakePrices{failMint: "BAD"}
	hooks := &recordingHooks{}
	p := NewPipeline(testConfig(2), source, prices, solana.AddressParser{}, nil, WithHooks(hooks))

	result, err := p.Aggregate(context.Background(), testWallet)
	require.Error(t, err)

	var partial *PartialAggregationFailure
	require.True(t, errors.As(err, &partial))
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)
	assert.Equal(t, []string{"poolA", "poolC"}, result.Keys())
	assert.Equal(t, result, partial.Result)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, "poolB", partial.Failures[0].PoolKey)
	assert.Equal(t, []string{"poolB"}, hooks.failed)
	assert.Equal(t, 3, hooks.started)
	assert.Equal(t, 3, hooks.finished)
	// 2 healthy calls plus 1 + MaxRetries attempts for the failing pool
	assert.Equal(t, int32(5), atomic.LoadInt32(&prices.calls))
}

func TestAggregateInvalidAmountFailsPool(t *testing.T) {
	source := &fakePositions{groups: map[string]model.PositionGroup{
		"poolA": poolGroup("MINTA", 6, 6, rawPosition("a1", "1")),
		"poolB": poolGroup("MINTB", 6, 6, rawPosition("b1", "12.5")),
	}}
	p := NewPipeline(testConfig(4), source, &fakePrices{}, solana.AddressParser{}, nil)

	result, err := p.Aggregate(context.Background(), testWallet)
	var partial *PartialAggregationFailure
	require.True(t, errors.As(err, &partial))
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
	assert.Equal(t, []string{"poolA"}, result.Keys())
}

func TestAggregateBoundsConcurrency(t *testing.T) {
	groups := make(map[string]model.PositionGroup)
	for i := 0; i < 25; i++ {
		groups[fmt.Sprintf("pool%02d", i)] = poolGroup(fmt.Sprintf("MINT%02d", i), 6, 6, rawPosition("p", "1"))
	}
	prices := &fakePrices{delay: 5 * time.Millisecond}
	p := NewPipeline(testConfig(3), &fakePositions{groups: groups}, prices, solana.AddressParser{}, nil)

	result, err := p.Aggregate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, result, 25)
	assert.LessOrEqual(t, atomic.LoadInt32(&prices.maxSeen), int32(3))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&prices.maxSeen), int32(1))
}

func TestAggregateCancelled(t *testing.T) {
	groups := make(map[string]model.PositionGroup)
	for i := 0; i < 10; i++ {
		groups[fmt.Sprintf("pool%02d", i)] = poolGroup(fmt.Sprintf("MINT%02d", i), 6, 6)
	}
	prices := &fakePrices{delay: time.Second}
	p := NewPipeline(testConfig(2), &fakePositions{groups: groups}, prices, solana.AddressParser{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	result, err := p.Aggregate(ctx, testWallet)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestSnapshotStatus(t *testing.T) {
	ids := 0
	nextID := func() string {
		ids++
		return fmt.Sprintf("inv-%d", ids)
	}

	empty := NewPipeline(testConfig(2), &fakePositions{groups: map[string]model.PositionGroup{}}, &fakePrices{}, solana.AddressParser{}, nil, WithInvocationIDs(nextID))
	snap, err := empty.Snapshot(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEmpty, snap.Status)
	assert.Equal(t, "inv-1", snap.InvocationID)
	assert.Equal(t, testWallet, snap.Wallet)

	partial := NewPipeline(testConfig(2), &fakePositions{groups: map[string]model.PositionGroup{
		"poolA": poolGroup("MINTA", 6, 6),
		"poolB": poolGroup("BAD", 6, 6),
	}}, &fakePrices{failMint: "BAD"}, solana.AddressParser{}, nil)
	snap, err = partial.Snapshot(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, snap.Status)
	require.Len(t, snap.Failures, 1)
	assert.Contains(t, snap.Failures[0].Error, "retry exhausted")
	assert.Len(t, snap.Pools, 1)

	_, err = empty.Snapshot(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAggregateNilCollaborators(t *testing.T) {
	cases := []struct {
		name      string
		positions PositionSource
		prices    PriceSource
		addresses AddressParser
		want      string
	}{
		{"addresses", &fakePositions{}, &fakePrices{}, nil, "address parser is nil"},
		{"positions", nil, &fakePrices{}, solana.AddressParser{}, "position source is nil"},
		{"prices", &fakePositions{}, nil, solana.AddressParser{}, "price source is nil"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// no WithHooks: the nop hooks must absorb every callback
			p := NewPipeline(testConfig(1), tc.positions, tc.prices, tc.addresses, nil)
			_, err := p.Aggregate(context.Background(), testWallet)
			require.Error(t, err)
			assert.EqualError(t, err, tc.want)
		})
	}
}
