package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawPosition holds base-unit integer amounts as decimal strings.
type RawPosition struct {
	PublicKey              string `json:"public_key"`
	LowerBinID             int32  `json:"lower_bin_id"`
	UpperBinID             int32  `json:"upper_bin_id"`
	LastUpdatedAt          int64  `json:"last_updated_at"`
	TotalXAmount           string `json:"total_x_amount"`
	TotalYAmount           string `json:"total_y_amount"`
	FeeX                   string `json:"fee_x"`
	FeeY                   string `json:"fee_y"`
	TotalClaimedFeeXAmount string `json:"total_claimed_fee_x_amount"`
	TotalClaimedFeeYAmount string `json:"total_claimed_fee_y_amount"`
}

// NormalizedPosition is a RawPosition scaled by its pool's token decimals.
// The raw claimed fee strings are kept next to their scaled values.
type NormalizedPosition struct {
	PublicKey         string          `json:"public_key" yaml:"public_key"`
	LastUpdatedAt     time.Time       `json:"last_updated_at" yaml:"last_updated_at"`
	LowerBinID        int32           `json:"lower_bin_id" yaml:"lower_bin_id"`
	UpperBinID        int32           `json:"upper_bin_id" yaml:"upper_bin_id"`
	TotalXAmount      decimal.Decimal `json:"total_x_amount" yaml:"total_x_amount"`
	TotalYAmount      decimal.Decimal `json:"total_y_amount" yaml:"total_y_amount"`
	FeeX              decimal.Decimal `json:"fee_x" yaml:"fee_x"`
	FeeY              decimal.Decimal `json:"fee_y" yaml:"fee_y"`
	ClaimedFeeX       decimal.Decimal `json:"claimed_fee_x" yaml:"claimed_fee_x"`
	ClaimedFeeY       decimal.Decimal `json:"claimed_fee_y" yaml:"claimed_fee_y"`
	ClaimedFeeXAmount string          `json:"claimed_fee_x_amount" yaml:"claimed_fee_x_amount"`
	ClaimedFeeYAmount string          `json:"claimed_fee_y_amount" yaml:"claimed_fee_y_amount"`
}
