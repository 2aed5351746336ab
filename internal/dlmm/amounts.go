package dlmm

import (
	"fmt"
	"math/big"
)

// scaleOffset is the Q64.64 shift applied to legacy shares on migration.
const scaleOffset = 64

// BinLookup resolves a bin by id. ok is false when the bin array holding
// it was never initialized.
type BinLookup func(binID int32) (bin *Bin, ok bool)

// Amounts are a position's token holdings and unclaimed fees in base units.
type Amounts struct {
	TotalX *big.Int
	TotalY *big.Int
	FeeX   *big.Int
	FeeY   *big.Int
}

// PositionAmounts sums the position's share of every bin it covers.
// Amounts round down, matching on-chain withdrawal.
func PositionAmounts(pos *Position, lookup BinLookup) (Amounts, error) {
	out := Amounts{
		TotalX: new(big.Int),
		TotalY: new(big.Int),
		FeeX:   new(big.Int),
		FeeY:   new(big.Int),
	}
	if len(pos.LiquidityShares) != pos.Width() || len(pos.FeeInfos) != pos.Width() {
		return out, fmt.Errorf("position %s: share count does not match bin range", pos.Address)
	}

	for i := 0; i < pos.Width(); i++ {
		binID := pos.LowerBinID + int32(i)
		share := pos.LiquidityShares[i]
		fee := pos.FeeInfos[i]

		bin, ok := lookup(binID)
		if !ok {
			out.FeeX.Add(out.FeeX, new(big.Int).SetUint64(fee.FeeXPending))
			out.FeeY.Add(out.FeeY, new(big.Int).SetUint64(fee.FeeYPending))
			continue
		}

		out.TotalX.Add(out.TotalX, shareOf(share, bin.AmountX, bin.LiquiditySupply))
		out.TotalY.Add(out.TotalY, shareOf(share, bin.AmountY, bin.LiquiditySupply))
		out.FeeX.Add(out.FeeX, claimableFee(share, bin.FeeAmountXPerTokenStored, fee.FeeXPerTokenComplete, fee.FeeXPending))
		out.FeeY.Add(out.FeeY, claimableFee(share, bin.FeeAmountYPerTokenStored, fee.FeeYPerTokenComplete, fee.FeeYPending))
	}
	return out, nil
}

// shareOf returns floor(share * amount / supply).
func shareOf(share *big.Int, amount uint64, supply *big.Int) *big.Int {
	if share == nil || supply == nil || supply.Sign() == 0 || share.Sign() == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(share, new(big.Int).SetUint64(amount))
	return v.Quo(v, supply)
}

// claimableFee returns pending + ((share >> 64) * (stored - complete)) >> 64.
func claimableFee(share, stored, complete *big.Int, pending uint64) *big.Int {
	fee := new(big.Int).SetUint64(pending)
	if share == nil || stored == nil || complete == nil {
		return fee
	}
	delta := new(big.Int).Sub(stored, complete)
	if delta.Sign() <= 0 {
		return fee
	}
	fresh := new(big.Int).Rsh(share, scaleOffset)
	fresh.Mul(fresh, delta)
	fresh.Rsh(fresh, scaleOffset)
	return fee.Add(fee, fresh)
}
