package storage

import (
	"context"
	"errors"

	"positionScope/internal/model"
)

// Sink persists wallet snapshots.
type Sink interface {
	PutSnapshot(ctx context.Context, snap model.Snapshot) error
}

type multiSink []Sink

// Multi writes each snapshot to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	return out
}

func (m multiSink) PutSnapshot(ctx context.Context, snap model.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
