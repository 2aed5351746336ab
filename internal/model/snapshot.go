package model

import "time"

const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusEmpty   = "empty"
)

// PoolFailure records a pool that could not be aggregated.
type PoolFailure struct {
	PoolKey string `json:"pool_key" yaml:"pool_key"`
	Error   string `json:"error" yaml:"error"`
	Err     error  `json:"-" yaml:"-"`
}

// Snapshot is one aggregation of a wallet.
type Snapshot struct {
	InvocationID string        `json:"invocation_id" yaml:"invocation_id"`
	Wallet       string        `json:"wallet" yaml:"wallet"`
	FetchedAt    time.Time     `json:"fetched_at" yaml:"fetched_at"`
	Status       string        `json:"status" yaml:"status"`
	Pools        Result        `json:"pools" yaml:"pools"`
	Failures     []PoolFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// SnapshotStatus classifies an aggregation outcome.
func SnapshotStatus(pools Result, failures []PoolFailure) string {
	switch {
	case len(failures) > 0:
		return StatusPartial
	case len(pools) == 0:
		return StatusEmpty
	default:
		return StatusOK
	}
}
