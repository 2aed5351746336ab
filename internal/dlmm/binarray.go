package dlmm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"

	"positionScope/internal/solana"
)

const (
	binSize      = 8 + 8 + u128Size*8
	binArraySize = discriminatorSize + 8 + 1 + 7 + 32 + MaxBinPerArray*binSize
)

var binArraySeed = []byte("bin_array")

type binLayout struct {
	AmountX                  uint64
	AmountY                  uint64
	Price                    [u128Size]uint8
	LiquiditySupply          [u128Size]uint8
	RewardPerTokenStored     [2][u128Size]uint8
	FeeAmountXPerTokenStored [u128Size]uint8
	FeeAmountYPerTokenStored [u128Size]uint8
	AmountXIn                [u128Size]uint8
	AmountYIn                [u128Size]uint8
}

type binArrayLayout struct {
	Discriminator [discriminatorSize]uint8
	Index         int64
	Version       uint8
	Padding       [7]uint8
	LbPair        [32]uint8
	Bins          [MaxBinPerArray]binLayout
}

// Bin holds the reserves and fee accumulators of one price bin.
type Bin struct {
	AmountX                  uint64
	AmountY                  uint64
	LiquiditySupply          *big.Int
	FeeAmountXPerTokenStored *big.Int
	FeeAmountYPerTokenStored *big.Int
}

// BinArray is a decoded BinArray account covering MaxBinPerArray bins.
type BinArray struct {
	Address solana.Pubkey
	Index   int64
	LbPair  solana.Pubkey
	Bins    []Bin
}

// DecodeBinArray decodes a BinArray account.
func DecodeBinArray(address solana.Pubkey, data []byte) (*BinArray, error) {
	if len(data) < binArraySize {
		return nil, fmt.Errorf("bin array %s: account too small: %d bytes", address, len(data))
	}
	if !bytes.Equal(data[:discriminatorSize], BinArrayDiscriminator[:]) {
		return nil, fmt.Errorf("bin array %s: unexpected discriminator %x", address, data[:discriminatorSize])
	}

	var layout binArrayLayout
	if err := borsh.Deserialize(&layout, data[:binArraySize]); err != nil {
		return nil, fmt.Errorf("bin array %s: decode: %w", address, err)
	}

	out := &BinArray{
		Address: address,
		Index:   layout.Index,
		LbPair:  solana.Pubkey(layout.LbPair),
		Bins:    make([]Bin, MaxBinPerArray),
	}
	for i, bin := range layout.Bins {
		out.Bins[i] = Bin{
			AmountX:                  bin.AmountX,
			AmountY:                  bin.AmountY,
			LiquiditySupply:          u128FromBytes(bin.LiquiditySupply),
			FeeAmountXPerTokenStored: u128FromBytes(bin.FeeAmountXPerTokenStored),
			FeeAmountYPerTokenStored: u128FromBytes(bin.FeeAmountYPerTokenStored),
		}
	}
	return out, nil
}

// Bin returns the bin for binID if this array covers it.
func (a *BinArray) Bin(binID int32) (*Bin, bool) {
	lower, upper := BinArrayBounds(a.Index)
	id := int64(binID)
	if id < lower || id > upper {
		return nil, false
	}
	return &a.Bins[id-lower], true
}

// BinIDToBinArrayIndex returns the index of the bin array holding binID.
func BinIDToBinArrayIndex(binID int32) int64 {
	id := int64(binID)
	idx := id / MaxBinPerArray
	if id < 0 && id%MaxBinPerArray != 0 {
		idx--
	}
	return idx
}

// BinArrayBounds returns the inclusive bin id range of a bin array.
func BinArrayBounds(index int64) (lower, upper int64) {
	lower = index * MaxBinPerArray
	return lower, lower + MaxBinPerArray - 1
}

// DeriveBinArrayAddress derives the bin array PDA of lbPair at index.
func DeriveBinArrayAddress(lbPair solana.Pubkey, index int64) (solana.Pubkey, error) {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(index))
	addr, _, err := common.FindProgramAddress(
		[][]byte{binArraySeed, lbPair[:], idx[:]},
		common.PublicKey(ProgramID),
	)
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("derive bin array %s/%d: %w", lbPair, index, err)
	}
	return solana.Pubkey(addr), nil
}

// BinArrayIndexes returns the bin array indexes a position touches, in order.
func BinArrayIndexes(lowerBinID, upperBinID int32) []int64 {
	lower := BinIDToBinArrayIndex(lowerBinID)
	upper := BinIDToBinArrayIndex(upperBinID)
	out := make([]int64, 0, upper-lower+1)
	for idx := lower; idx <= upper; idx++ {
		out = append(out, idx)
	}
	return out
}
