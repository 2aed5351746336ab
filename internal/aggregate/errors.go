package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"positionScope/internal/model"
)

var (
	// ErrInvalidAddress is returned before any collaborator call when the
	// wallet address does not parse.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrSuperseded is returned to an invocation that was replaced by a newer one.
	ErrSuperseded = errors.New("aggregation superseded")
)

// PartialAggregationFailure carries the pools that did aggregate along
// with the ones that did not.
type PartialAggregationFailure struct {
	Result   model.Result
	Failures []model.PoolFailure
}

func (e *PartialAggregationFailure) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		keys = append(keys, failure.PoolKey)
	}
	return fmt.Sprintf("partial aggregation: %d of %d pools failed (%s)",
		len(e.Failures), len(e.Failures)+len(e.Result), strings.Join(keys, ", "))
}

// Unwrap exposes the per-pool causes to errors.Is and errors.As.
func (e *PartialAggregationFailure) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		if failure.Err != nil {
			out = append(out, failure.Err)
		}
	}
	return out
}
