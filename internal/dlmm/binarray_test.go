package dlmm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinIDToBinArrayIndex(t *testing.T) {
	cases := map[int32]int64{
		0:    0,
		1:    0,
		69:   0,
		70:   1,
		139:  1,
		140:  2,
		-1:   -1,
		-69:  -1,
		-70:  -1,
		-71:  -2,
		-140: -2,
		-141: -3,
	}
	for binID, want := range cases {
		assert.Equal(t, want, BinIDToBinArrayIndex(binID), "bin %d", binID)
	}
}

func TestBinArrayIndexes(t *testing.T) {
	assert.Equal(t, []int64{0}, BinArrayIndexes(3, 60))
	assert.Equal(t, []int64{-1, 0}, BinArrayIndexes(-10, 59))
	assert.Equal(t, []int64{1, 2}, BinArrayIndexes(120, 189))
}

func TestDeriveBinArrayAddress(t *testing.T) {
	a, err := DeriveBinArrayAddress(key(1), 0)
	require.NoError(t, err)
	b, err := DeriveBinArrayAddress(key(1), 0)
	require.NoError(t, err)
	c, err := DeriveBinArrayAddress(key(1), -1)
	require.NoError(t, err)
	d, err := DeriveBinArrayAddress(key(2), 0)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.False(t, a.IsZero())
}

func TestDecodeBinArray(t *testing.T) {
	data := encodeBinArray(-1, key(5), map[int]testBin{
		0:  {amountX: 100, amountY: 200, supply: big.NewInt(1000), feeX: big.NewInt(3), feeY: big.NewInt(4)},
		69: {amountX: 7, supply: big.NewInt(1)},
	})

	arr, err := DecodeBinArray(key(6), data)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), arr.Index)
	assert.Equal(t, key(5), arr.LbPair)
	require.Len(t, arr.Bins, MaxBinPerArray)

	bin, ok := arr.Bin(-70)
	require.True(t, ok)
	assert.Equal(t, uint64(100), bin.AmountX)
	assert.Equal(t, uint64(200), bin.AmountY)
	assert.Equal(t, "1000", bin.LiquiditySupply.String())
	assert.Equal(t, "3", bin.FeeAmountXPerTokenStored.String())
	assert.Equal(t, "4", bin.FeeAmountYPerTokenStored.String())

	bin, ok = arr.Bin(-1)
	require.True(t, ok)
	assert.Equal(t, uint64(7), bin.AmountX)

	_, ok = arr.Bin(0)
	assert.False(t, ok)
	_, ok = arr.Bin(-71)
	assert.False(t, ok)
}

func TestDecodeBinArrayRejectsWrongAccount(t *testing.T) {
	_, err := DecodeBinArray(key(6), encodeLbPair(0, 1, key(1), key(2)))
	assert.Error(t, err)

	data := encodeBinArray(0, key(5), nil)
	copy(data, LbPairDiscriminator[:])
	_, err = DecodeBinArray(key(6), data)
	assert.Error(t, err)
}

func TestDecodeBinArrayOnChainSize(t *testing.T) {
	data := make([]byte, 10136)
	copy(data, BinArrayDiscriminator[:])

	arr, err := DecodeBinArray(key(6), data)
	require.NoError(t, err)
	require.Len(t, arr.Bins, MaxBinPerArray)
	assert.Zero(t, arr.Bins[MaxBinPerArray-1].AmountX)

	_, err = DecodeBinArray(key(6), data[:10135])
	assert.Error(t, err)
}

func TestDecodeBinArrayLastBinStride(t *testing.T) {
	data := encodeBinArray(0, key(5), map[int]testBin{
		MaxBinPerArray - 1: {amountX: 11, amountY: 12, supply: big.NewInt(13), feeX: big.NewInt(14), feeY: big.NewInt(15)},
	})
	require.Len(t, data, 10136)

	arr, err := DecodeBinArray(key(6), data)
	require.NoError(t, err)
	bin := arr.Bins[MaxBinPerArray-1]
	assert.Equal(t, uint64(11), bin.AmountX)
	assert.Equal(t, uint64(12), bin.AmountY)
	assert.Equal(t, "13", bin.LiquiditySupply.String())
	assert.Equal(t, "14", bin.FeeAmountXPerTokenStored.String())
	assert.Equal(t, "15", bin.FeeAmountYPerTokenStored.String())
}
