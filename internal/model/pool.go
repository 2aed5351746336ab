package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PoolContext describes the pool a group of positions belongs to.
type PoolContext struct {
	TokenXMint     string `json:"token_x_mint"`
	TokenYMint     string `json:"token_y_mint"`
	TokenXDecimals uint8  `json:"token_x_decimals"`
	TokenYDecimals uint8  `json:"token_y_decimals"`
	ActiveBinID    int32  `json:"active_bin_id"`
	BinStep        uint16 `json:"bin_step"`
}

// PositionGroup is every position a wallet holds in one pool, in source order.
type PositionGroup struct {
	Pool      PoolContext   `json:"pool"`
	Positions []RawPosition `json:"positions"`
}

// PoolRecord is the normalized view of one pool for a wallet.
type PoolRecord struct {
	PoolKey        string               `json:"pool_key" yaml:"pool_key"`
	Positions      []NormalizedPosition `json:"positions" yaml:"positions"`
	NameX          string               `json:"name_x" yaml:"name_x"`
	NameY          string               `json:"name_y" yaml:"name_y"`
	Price          decimal.Decimal      `json:"price" yaml:"price"`
	ActiveBin      int32                `json:"active_bin" yaml:"active_bin"`
	TokenXDecimals uint8                `json:"token_x_decimals" yaml:"token_x_decimals"`
	TokenYDecimals uint8                `json:"token_y_decimals" yaml:"token_y_decimals"`
	TokenXMint     string               `json:"token_x_mint" yaml:"token_x_mint"`
	TokenYMint     string               `json:"token_y_mint" yaml:"token_y_mint"`
	BinStep        uint16               `json:"bin_step" yaml:"bin_step"`
}

// Result maps pool key to its record.
type Result map[string]PoolRecord

// Keys returns the pool keys in sorted order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PositionCount returns the number of positions across all pools.
func (r Result) PositionCount() int {
	total := 0
	for _, record := range r {
		total += len(record.Positions)
	}
	return total
}
