package amount

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a raw amount is not a non-negative base-10 integer.
var ErrInvalidAmount = errors.New("invalid amount")

// Parse parses a raw base-unit amount. Only ASCII digits are accepted.
func Parse(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return value, nil
}

// Scale converts a raw base-unit amount into its exact decimal value,
// i.e. raw / 10^decimals.
func Scale(raw string, decimals uint8) (decimal.Decimal, error) {
	value, err := Parse(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(value, -int32(decimals)), nil
}

// ScaleInt is Scale for callers that already hold the integer.
func ScaleInt(value *big.Int, decimals uint8) (decimal.Decimal, error) {
	if value == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	if value.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, value.String())
	}
	return decimal.NewFromBigInt(value, -int32(decimals)), nil
}

// Unscale multiplies a decimal back into base units, truncating any
// digits below the smallest unit.
func Unscale(value decimal.Decimal, decimals uint8) *big.Int {
	return value.Shift(int32(decimals)).BigInt()
}

// Format renders value with exactly decimals fractional digits.
func Format(value decimal.Decimal, decimals uint8) string {
	return value.StringFixed(int32(decimals))
}
