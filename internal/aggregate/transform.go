package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"positionScope/internal/amount"
	"positionScope/internal/model"
)

// TransformPosition scales every amount of raw by its token's decimals.
// The first unparsable amount fails the whole position.
func TransformPosition(raw model.RawPosition, decimalsX, decimalsY uint8) (model.NormalizedPosition, error) {
	out := model.NormalizedPosition{
		PublicKey:         raw.PublicKey,
		LastUpdatedAt:     time.Unix(raw.LastUpdatedAt, 0).UTC(),
		LowerBinID:        raw.LowerBinID,
		UpperBinID:        raw.UpperBinID,
		ClaimedFeeXAmount: raw.TotalClaimedFeeXAmount,
		ClaimedFeeYAmount: raw.TotalClaimedFeeYAmount,
	}

	fields := []struct {
		name     string
		raw      string
		decimals uint8
		dst      *decimal.Decimal
	}{
		{"total_x_amount", raw.TotalXAmount, decimalsX, &out.TotalXAmount},
		{"total_y_amount", raw.TotalYAmount, decimalsY, &out.TotalYAmount},
		{"fee_x", raw.FeeX, decimalsX, &out.FeeX},
		{"fee_y", raw.FeeY, decimalsY, &out.FeeY},
		{"total_claimed_fee_x_amount", raw.TotalClaimedFeeXAmount, decimalsX, &out.ClaimedFeeX},
		{"total_claimed_fee_y_amount", raw.TotalClaimedFeeYAmount, decimalsY, &out.ClaimedFeeY},
	}
	for _, field := range fields {
		value, err := amount.Scale(field.raw, field.decimals)
		if err != nil {
			return model.NormalizedPosition{}, fmt.Errorf("position %s %s: %w", raw.PublicKey, field.name, err)
		}
		*field.dst = value
	}
	return out, nil
}

// TransformPositions transforms raws in order.
func TransformPositions(raws []model.RawPosition, decimalsX, decimalsY uint8) ([]model.NormalizedPosition, error) {
	out := make([]model.NormalizedPosition, 0, len(raws))
	for _, raw := range raws {
		position, err := TransformPosition(raw, decimalsX, decimalsY)
		if err != nil {
			return nil, err
		}
		out = append(out, position)
	}
	return out, nil
}
