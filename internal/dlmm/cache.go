package dlmm

import (
	"sync"

	"positionScope/internal/solana"
)

// MintDecimalsCache caches token decimals by mint. Decimals never change
// once a mint is initialized.
type MintDecimalsCache struct {
	mu   sync.RWMutex
	data map[solana.Pubkey]uint8
}

func NewMintDecimalsCache() *MintDecimalsCache {
	return &MintDecimalsCache{data: make(map[solana.Pubkey]uint8)}
}

func (c *MintDecimalsCache) Get(mint solana.Pubkey) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[mint]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *MintDecimalsCache) Set(mint solana.Pubkey, decimals uint8) {
	c.mu.Lock()
	c.data[mint] = decimals
	c.mu.Unlock()
}

// Missing returns the mints without a cached value, deduplicated, in input order.
func (c *MintDecimalsCache) Missing(mints []solana.Pubkey) []solana.Pubkey {
	seen := make(map[solana.Pubkey]struct{}, len(mints))
	out := make([]solana.Pubkey, 0, len(mints))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, mint := range mints {
		if _, ok := seen[mint]; ok {
			continue
		}
		seen[mint] = struct{}{}
		if _, ok := c.data[mint]; !ok {
			out = append(out, mint)
		}
	}
	return out
}
