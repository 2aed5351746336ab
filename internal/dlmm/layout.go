package dlmm

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/near/borsh-go"

	"positionScope/internal/solana"
)

// ProgramIDStr is the Meteora DLMM program.
const ProgramIDStr = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"

var ProgramID = solana.MustPubkey(ProgramIDStr)

const (
	MaxBinPerArray    = 70
	MaxBinPerPosition = 70

	discriminatorSize = 8
	u128Size          = 16
)

// PositionV2 field offsets.
const (
	positionLbPairOffset      = discriminatorSize
	PositionOwnerOffset       = positionLbPairOffset + 32
	positionSharesOffset      = PositionOwnerOffset + 32
	userRewardInfoSize        = 2*u128Size + 2*8
	positionRewardInfosOffset = positionSharesOffset + MaxBinPerPosition*u128Size
	feeInfoSize               = 2*u128Size + 2*8
	positionFeeInfosOffset    = positionRewardInfosOffset + MaxBinPerPosition*userRewardInfoSize
	positionLowerBinOffset    = positionFeeInfosOffset + MaxBinPerPosition*feeInfoSize
	positionUpperBinOffset    = positionLowerBinOffset + 4
	positionLastUpdatedOffset = positionUpperBinOffset + 4
	positionClaimedFeeXOffset = positionLastUpdatedOffset + 8
	positionClaimedFeeYOffset = positionClaimedFeeXOffset + 8
	positionMinSize           = positionClaimedFeeYOffset + 8
)

// Legacy Position offsets. Liquidity shares are u64; everything after
// them keeps the PositionV2 shape.
const (
	positionV1ShareSize         = 8
	positionV1RewardInfosOffset = positionSharesOffset + MaxBinPerPosition*positionV1ShareSize
	positionV1FeeInfosOffset    = positionV1RewardInfosOffset + MaxBinPerPosition*userRewardInfoSize
	positionV1LowerBinOffset    = positionV1FeeInfosOffset + MaxBinPerPosition*feeInfoSize
	positionV1MinSize           = positionV1LowerBinOffset + positionMinSize - positionLowerBinOffset
)

// LbPair field offsets.
const (
	lbPairActiveIDOffset = 76
	lbPairBinStepOffset  = 80
	lbPairTokenXOffset   = 88
	lbPairTokenYOffset   = 120
	lbPairMinSize        = lbPairTokenYOffset + 32
)

const mintSize = 82

var (
	PositionDiscriminator   = accountDiscriminator("Position")
	PositionV2Discriminator = accountDiscriminator("PositionV2")
	LbPairDiscriminator     = accountDiscriminator("LbPair")
	BinArrayDiscriminator   = accountDiscriminator("BinArray")
)

// accountDiscriminator is the anchor account tag: sha256("account:<Name>")[:8].
func accountDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

// FeeInfo is the per-bin fee checkpoint of a position.
type FeeInfo struct {
	FeeXPerTokenComplete *big.Int
	FeeYPerTokenComplete *big.Int
	FeeXPending          uint64
	FeeYPending          uint64
}

// Position is a decoded Position or PositionV2 account. Liquidity
// shares are always Q64.64.
type Position struct {
	Address          solana.Pubkey
	LbPair           solana.Pubkey
	Owner            solana.Pubkey
	LiquidityShares  []*big.Int
	FeeInfos         []FeeInfo
	LowerBinID       int32
	UpperBinID       int32
	LastUpdatedAt    int64
	TotalClaimedFeeX uint64
	TotalClaimedFeeY uint64
}

// Width is the number of bins the position covers.
func (p *Position) Width() int {
	return int(p.UpperBinID) - int(p.LowerBinID) + 1
}

type positionFormat struct {
	discriminator  [discriminatorSize]byte
	shareSize      int
	feeInfosOffset int
	lowerBinOffset int
	minSize        int
}

var (
	positionV2Format = positionFormat{
		discriminator:  PositionV2Discriminator,
		shareSize:      u128Size,
		feeInfosOffset: positionFeeInfosOffset,
		lowerBinOffset: positionLowerBinOffset,
		minSize:        positionMinSize,
	}
	positionV1Format = positionFormat{
		discriminator:  PositionDiscriminator,
		shareSize:      positionV1ShareSize,
		feeInfosOffset: positionV1FeeInfosOffset,
		lowerBinOffset: positionV1LowerBinOffset,
		minSize:        positionV1MinSize,
	}
)

func (f positionFormat) share(data []byte, i int) *big.Int {
	raw := data[positionSharesOffset+i*f.shareSize:]
	if f.shareSize == u128Size {
		return readU128(raw)
	}
	v := new(big.Int).SetUint64(binary.LittleEndian.Uint64(raw))
	return v.Lsh(v, scaleOffset)
}

// DecodePosition decodes a PositionV2 or legacy Position account,
// picking the layout from the discriminator.
func DecodePosition(address solana.Pubkey, data []byte) (*Position, error) {
	format := positionV2Format
	if len(data) >= discriminatorSize && bytes.Equal(data[:discriminatorSize], PositionDiscriminator[:]) {
		format = positionV1Format
	}
	if err := checkAccount(data, format.discriminator, format.minSize); err != nil {
		return nil, fmt.Errorf("position %s: %w", address, err)
	}

	lower := format.lowerBinOffset
	pos := &Position{
		Address:          address,
		LbPair:           solana.PubkeyFromBytes(data[positionLbPairOffset:]),
		Owner:            solana.PubkeyFromBytes(data[PositionOwnerOffset:]),
		LowerBinID:       int32(binary.LittleEndian.Uint32(data[lower:])),
		UpperBinID:       int32(binary.LittleEndian.Uint32(data[lower+4:])),
		LastUpdatedAt:    int64(binary.LittleEndian.Uint64(data[lower+8:])),
		TotalClaimedFeeX: binary.LittleEndian.Uint64(data[lower+16:]),
		TotalClaimedFeeY: binary.LittleEndian.Uint64(data[lower+24:]),
	}
	width := pos.Width()
	if width < 1 || width > MaxBinPerPosition {
		return nil, fmt.Errorf("position %s: invalid bin range [%d, %d]", address, pos.LowerBinID, pos.UpperBinID)
	}

	pos.LiquidityShares = make([]*big.Int, width)
	pos.FeeInfos = make([]FeeInfo, width)
	for i := 0; i < width; i++ {
		pos.LiquidityShares[i] = format.share(data, i)

		fee := data[format.feeInfosOffset+i*feeInfoSize:]
		pos.FeeInfos[i] = FeeInfo{
			FeeXPerTokenComplete: readU128(fee),
			FeeYPerTokenComplete: readU128(fee[u128Size:]),
			FeeXPending:          binary.LittleEndian.Uint64(fee[2*u128Size:]),
			FeeYPending:          binary.LittleEndian.Uint64(fee[2*u128Size+8:]),
		}
	}
	return pos, nil
}

// LbPair is the subset of pool state the aggregator needs.
type LbPair struct {
	Address    solana.Pubkey
	ActiveID   int32
	BinStep    uint16
	TokenXMint solana.Pubkey
	TokenYMint solana.Pubkey
}

// DecodeLbPair decodes an LbPair account.
func DecodeLbPair(address solana.Pubkey, data []byte) (*LbPair, error) {
	if err := checkAccount(data, LbPairDiscriminator, lbPairMinSize); err != nil {
		return nil, fmt.Errorf("lb pair %s: %w", address, err)
	}
	return &LbPair{
		Address:    address,
		ActiveID:   int32(binary.LittleEndian.Uint32(data[lbPairActiveIDOffset:])),
		BinStep:    binary.LittleEndian.Uint16(data[lbPairBinStepOffset:]),
		TokenXMint: solana.PubkeyFromBytes(data[lbPairTokenXOffset:]),
		TokenYMint: solana.PubkeyFromBytes(data[lbPairTokenYOffset:]),
	}, nil
}

type mintLayout struct {
	MintAuthorityOption   uint32
	MintAuthority         [32]uint8
	Supply                uint64
	Decimals              uint8
	IsInitialized         bool
	FreezeAuthorityOption uint32
	FreezeAuthority       [32]uint8
}

// DecodeMintDecimals reads the decimals of an SPL token mint. Token-2022
// mints share the same base layout followed by extensions.
func DecodeMintDecimals(address solana.Pubkey, data []byte) (uint8, error) {
	if len(data) < mintSize {
		return 0, fmt.Errorf("mint %s: account too small: %d bytes", address, len(data))
	}
	var mint mintLayout
	if err := borsh.Deserialize(&mint, data[:mintSize]); err != nil {
		return 0, fmt.Errorf("mint %s: decode: %w", address, err)
	}
	if !mint.IsInitialized {
		return 0, fmt.Errorf("mint %s: not initialized", address)
	}
	return mint.Decimals, nil
}

func checkAccount(data []byte, discriminator [discriminatorSize]byte, minSize int) error {
	if len(data) < minSize {
		return fmt.Errorf("account too small: %d bytes, want at least %d", len(data), minSize)
	}
	if !bytes.Equal(data[:discriminatorSize], discriminator[:]) {
		return fmt.Errorf("unexpected discriminator %x", data[:discriminatorSize])
	}
	return nil
}

// readU128 reads a little-endian u128.
func readU128(b []byte) *big.Int {
	lo := binary.LittleEndian.Uint64(b[:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}

func u128FromBytes(b [u128Size]uint8) *big.Int {
	return readU128(b[:])
}
