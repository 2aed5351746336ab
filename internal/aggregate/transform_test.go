package aggregate

import (
	"errors"
	"strings"
	"testing"

	"positionScope/internal/amount"
	"positionScope/internal/model"
)

func TestTransformPosition(t *testing.T) {
	raw := model.RawPosition{
		PublicKey:              "pos",
		LowerBinID:             -10,
		UpperBinID:             20,
		LastUpdatedAt:          1_717_171_717,
		TotalXAmount:           "1500000",
		TotalYAmount:           "2000000000",
		FeeX:                   "7",
		FeeY:                   "0",
		TotalClaimedFeeXAmount: "123456",
		TotalClaimedFeeYAmount: "987654321",
	}

	got, err := TransformPosition(raw, 6, 9)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	checks := map[string]string{
		"total_x":   got.TotalXAmount.String(),
		"total_y":   got.TotalYAmount.String(),
		"fee_x":     got.FeeX.String(),
		"fee_y":     got.FeeY.String(),
		"claimed_x": got.ClaimedFeeX.String(),
		"claimed_y": got.ClaimedFeeY.String(),
	}
	want := map[string]string{
		"total_x":   "1.5",
		"total_y":   "2",
		"fee_x":     "0.000007",
		"fee_y":     "0",
		"claimed_x": "0.123456",
		"claimed_y": "0.987654321",
	}
	for field, value := range want {
		if checks[field] != value {
			t.Fatalf("%s: expected %s, got %s", field, value, checks[field])
		}
	}
	if got.ClaimedFeeXAmount != "123456" || got.ClaimedFeeYAmount != "987654321" {
		t.Fatalf("raw claimed fees not kept: %+v", got)
	}
	if got.LastUpdatedAt.Unix() != 1_717_171_717 || got.LastUpdatedAt.Location().String() != "UTC" {
		t.Fatalf("unexpected timestamp %v", got.LastUpdatedAt)
	}
	if got.LowerBinID != -10 || got.UpperBinID != 20 || got.PublicKey != "pos" {
		t.Fatalf("identity fields not copied: %+v", got)
	}
}

func TestTransformPositionRejectsBadAmount(t *testing.T) {
	raw := model.RawPosition{
		PublicKey:              "pos",
		TotalXAmount:           "1",
		TotalYAmount:           "1",
		FeeX:                   "-3",
		FeeY:                   "1",
		TotalClaimedFeeXAmount: "1",
		TotalClaimedFeeYAmount: "1",
	}
	_, err := TransformPosition(raw, 6, 6)
	if !errors.Is(err, amount.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if !strings.Contains(err.Error(), "fee_x") {
		t.Fatalf("expected field name in error, got %v", err)
	}
}

func TestTransformPositionsKeepsOrder(t *testing.T) {
	raws := make([]model.RawPosition, 0, 5)
	for _, key := range []string{"e", "a", "d", "b", "c"} {
		raws = append(raws, model.RawPosition{
			PublicKey:              key,
			TotalXAmount:           "1",
			TotalYAmount:           "1",
			FeeX:                   "1",
			FeeY:                   "1",
			TotalClaimedFeeXAmount: "1",
			TotalClaimedFeeYAmount: "1",
		})
	}
	got, err := TransformPositions(raws, 0, 0)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i := range raws {
		if got[i].PublicKey != raws[i].PublicKey {
			t.Fatalf("position %d: expected %s, got %s", i, raws[i].PublicKey, got[i].PublicKey)
		}
	}

	empty, err := TransformPositions(nil, 6, 6)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v, %v", empty, err)
	}
}
