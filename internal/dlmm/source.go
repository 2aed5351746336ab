package dlmm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/retry"
	"positionScope/internal/solana"
)

// RPC is the subset of the Solana client used to read DLMM state.
type RPC interface {
	GetProgramAccounts(ctx context.Context, program solana.Pubkey, filters solana.Filters) ([]solana.Account, error)
	GetMultipleAccounts(ctx context.Context, keys []solana.Pubkey) ([]*solana.Account, error)
}

// Source lists a wallet's DLMM positions grouped by pool.
type Source struct {
	rpc      RPC
	decimals *MintDecimalsCache
	logger   *zap.Logger
}

func NewSource(rpc RPC, decimals *MintDecimalsCache, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decimals == nil {
		decimals = NewMintDecimalsCache()
	}
	return &Source{
		rpc:      rpc,
		decimals: decimals,
		logger:   logger.Named("dlmm"),
	}
}

type binArrayKey struct {
	pair  solana.Pubkey
	index int64
}

// ListPositions returns owner's positions keyed by pool address. Decode
// failures of pool or mint accounts are permanent.
func (s *Source) ListPositions(ctx context.Context, owner solana.Pubkey) (map[string]model.PositionGroup, error) {
	if s.rpc == nil {
		return nil, retry.Permanent(errors.New("rpc client is nil"))
	}

	positions, err := s.fetchPositions(ctx, owner)
	if err != nil {
		return nil, err
	}
	groups := make(map[string]model.PositionGroup)
	if len(positions) == 0 {
		return groups, nil
	}

	byPair := make(map[solana.Pubkey][]*Position)
	pairKeys := make([]solana.Pubkey, 0)
	for _, pos := range positions {
		if _, ok := byPair[pos.LbPair]; !ok {
			pairKeys = append(pairKeys, pos.LbPair)
		}
		byPair[pos.LbPair] = append(byPair[pos.LbPair], pos)
	}

	pairs, err := s.fetchPairs(ctx, pairKeys)
	if err != nil {
		return nil, err
	}
	if err := s.loadDecimals(ctx, pairs); err != nil {
		return nil, err
	}
	binArrays, err := s.fetchBinArrays(ctx, byPair)
	if err != nil {
		return nil, err
	}

	for _, pairKey := range pairKeys {
		pair := pairs[pairKey]
		decX, _ := s.decimals.Get(pair.TokenXMint)
		decY, _ := s.decimals.Get(pair.TokenYMint)

		pairPositions := byPair[pairKey]
		sort.Slice(pairPositions, func(i, j int) bool {
			return pairPositions[i].Address.String() < pairPositions[j].Address.String()
		})

		raws := make([]model.RawPosition, 0, len(pairPositions))
		for _, pos := range pairPositions {
			raw, err := toRawPosition(pos, binArrays)
			if err != nil {
				return nil, retry.Permanent(err)
			}
			raws = append(raws, raw)
		}

		groups[pairKey.String()] = model.PositionGroup{
			Pool: model.PoolContext{
				TokenXMint:     pair.TokenXMint.String(),
				TokenYMint:     pair.TokenYMint.String(),
				TokenXDecimals: decX,
				TokenYDecimals: decY,
				ActiveBinID:    pair.ActiveID,
				BinStep:        pair.BinStep,
			},
			Positions: raws,
		}
	}

	s.logger.Debug("positions listed",
		zap.String("owner", owner.String()),
		zap.Int("positions", len(positions)),
		zap.Int("pools", len(groups)),
	)
	return groups, nil
}

func (s *Source) fetchPositions(ctx context.Context, owner solana.Pubkey) ([]*Position, error) {
	var out []*Position
	for _, disc := range [][discriminatorSize]byte{PositionV2Discriminator, PositionDiscriminator} {
		accounts, err := s.rpc.GetProgramAccounts(ctx, ProgramID, solana.Filters{
			Memcmp: []solana.MemcmpFilter{
				{Offset: 0, Bytes: disc[:]},
				{Offset: PositionOwnerOffset, Bytes: owner[:]},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("list position accounts: %w", err)
		}

		for _, account := range accounts {
			pos, err := DecodePosition(account.Pubkey, account.Data)
			if err != nil {
				s.logger.Warn("skip undecodable position", zap.String("position", account.Pubkey.String()), zap.Error(err))
				continue
			}
			out = append(out, pos)
		}
	}
	return out, nil
}

func (s *Source) fetchPairs(ctx context.Context, keys []solana.Pubkey) (map[solana.Pubkey]*LbPair, error) {
	accounts, err := s.rpc.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch lb pairs: %w", err)
	}
	out := make(map[solana.Pubkey]*LbPair, len(keys))
	for i, key := range keys {
		if accounts[i] == nil {
			return nil, retry.Permanent(fmt.Errorf("lb pair %s not found", key))
		}
		pair, err := DecodeLbPair(key, accounts[i].Data)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		out[key] = pair
	}
	return out, nil
}

func (s *Source) loadDecimals(ctx context.Context, pairs map[solana.Pubkey]*LbPair) error {
	mints := make([]solana.Pubkey, 0, 2*len(pairs))
	for _, pair := range pairs {
		mints = append(mints, pair.TokenXMint, pair.TokenYMint)
	}
	missing := s.decimals.Missing(mints)
	if len(missing) == 0 {
		return nil
	}

	accounts, err := s.rpc.GetMultipleAccounts(ctx, missing)
	if err != nil {
		return fmt.Errorf("fetch mints: %w", err)
	}
	for i, mint := range missing {
		if accounts[i] == nil {
			return retry.Permanent(fmt.Errorf("mint %s not found", mint))
		}
		decimals, err := DecodeMintDecimals(mint, accounts[i].Data)
		if err != nil {
			return retry.Permanent(err)
		}
		s.decimals.Set(mint, decimals)
	}
	return nil
}

func (s *Source) fetchBinArrays(ctx context.Context, byPair map[solana.Pubkey][]*Position) (map[binArrayKey]*BinArray, error) {
	keys := make([]binArrayKey, 0)
	seen := make(map[binArrayKey]struct{})
	for pair, positions := range byPair {
		for _, pos := range positions {
			for _, idx := range BinArrayIndexes(pos.LowerBinID, pos.UpperBinID) {
				key := binArrayKey{pair: pair, index: idx}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}

	addresses := make([]solana.Pubkey, len(keys))
	for i, key := range keys {
		addr, err := DeriveBinArrayAddress(key.pair, key.index)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		addresses[i] = addr
	}

	accounts, err := s.rpc.GetMultipleAccounts(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("fetch bin arrays: %w", err)
	}

	out := make(map[binArrayKey]*BinArray, len(keys))
	for i, key := range keys {
		if accounts[i] == nil {
			continue
		}
		binArray, err := DecodeBinArray(addresses[i], accounts[i].Data)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		out[key] = binArray
	}
	return out, nil
}

func toRawPosition(pos *Position, binArrays map[binArrayKey]*BinArray) (model.RawPosition, error) {
	lookup := func(binID int32) (*Bin, bool) {
		binArray, ok := binArrays[binArrayKey{pair: pos.LbPair, index: BinIDToBinArrayIndex(binID)}]
		if !ok {
			return nil, false
		}
		return binArray.Bin(binID)
	}

	amounts, err := PositionAmounts(pos, lookup)
	if err != nil {
		return model.RawPosition{}, err
	}
	return model.RawPosition{
		PublicKey:              pos.Address.String(),
		LowerBinID:             pos.LowerBinID,
		UpperBinID:             pos.UpperBinID,
		LastUpdatedAt:          pos.LastUpdatedAt,
		TotalXAmount:           amounts.TotalX.String(),
		TotalYAmount:           amounts.TotalY.String(),
		FeeX:                   amounts.FeeX.String(),
		FeeY:                   amounts.FeeY.String(),
		TotalClaimedFeeXAmount: strconv.FormatUint(pos.TotalClaimedFeeX, 10),
		TotalClaimedFeeYAmount: strconv.FormatUint(pos.TotalClaimedFeeY, 10),
	}, nil
}
