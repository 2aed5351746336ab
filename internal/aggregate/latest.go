package aggregate

import (
	"context"
	"sync"

	"positionScope/internal/model"
)

// Snapshotter produces wallet snapshots. *Pipeline implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context, wallet string) (model.Snapshot, error)
}

// Latest lets only the most recent invocation deliver a result. Starting
// a new Snapshot cancels the one in flight, which then returns ErrSuperseded.
type Latest struct {
	next Snapshotter

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewLatest(next Snapshotter) *Latest {
	return &Latest{next: next}
}

// Outcome is the result of one Start.
type Outcome struct {
	Snapshot model.Snapshot
	Err      error
}

func (l *Latest) Snapshot(ctx context.Context, wallet string) (model.Snapshot, error) {
	out := <-l.Start(ctx, wallet)
	return out.Snapshot, out.Err
}

// Start claims the latest slot before returning and runs the snapshot in
// the background. The channel receives exactly one Outcome.
func (l *Latest) Start(ctx context.Context, wallet string) <-chan Outcome {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		defer cancel()
		snap, err := l.next.Snapshot(ctx, wallet)

		l.mu.Lock()
		current := l.gen == gen
		if current {
			l.cancel = nil
		}
		l.mu.Unlock()

		if !current {
			done <- Outcome{Err: ErrSuperseded}
			return
		}
		done <- Outcome{Snapshot: snap, Err: err}
	}()
	return done
}

// Cancel stops the invocation in flight, if any.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
