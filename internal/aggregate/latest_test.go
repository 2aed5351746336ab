package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
)

type blockingSnapshotter struct {
	started chan string
}

func (b *blockingSnapshotter) Snapshot(ctx context.Context, wallet string) (model.Snapshot, error) {
	b.started <- wallet
	if wallet == "slow" {
		<-ctx.Done()
		return model.Snapshot{Wallet: wallet, Status: model.StatusOK}, nil
	}
	return model.Snapshot{Wallet: wallet, Status: model.StatusOK}, nil
}

func TestLatestSupersedesInFlight(t *testing.T) {
	next := &blockingSnapshotter{started: make(chan string, 2)}
	latest := NewLatest(next)

	slowDone := make(chan error, 1)
	go func() {
		_, err := latest.Snapshot(context.Background(), "slow")
		slowDone <- err
	}()
	require.Equal(t, "slow", <-next.started)

	snap, err := latest.Snapshot(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", snap.Wallet)
	assert.Equal(t, "fast", <-next.started)

	select {
	case err := <-slowDone:
		// the stale run finished without error but its result is dropped
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded invocation did not return")
	}
}

func TestLatestCancel(t *testing.T) {
	next := &blockingSnapshotter{started: make(chan string, 1)}
	latest := NewLatest(next)

	done := make(chan error, 1)
	go func() {
		_, err := latest.Snapshot(context.Background(), "slow")
		done <- err
	}()
	<-next.started
	latest.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled invocation did not return")
	}
}

func TestLatestStartClaimsSlotInCallOrder(t *testing.T) {
	next := &blockingSnapshotter{started: make(chan string, 2)}
	latest := NewLatest(next)

	first := latest.Start(context.Background(), "slow")
	second := latest.Start(context.Background(), "fast")

	out := <-second
	require.NoError(t, out.Err)
	assert.Equal(t, "fast", out.Snapshot.Wallet)
	assert.ErrorIs(t, (<-first).Err, ErrSuperseded)
}
