package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"positionScope/internal/model"
)

// Runs only against a disposable database named by POSITIONS_TEST_PG_DSN.
func TestStorePutSnapshot(t *testing.T) {
	dsn := os.Getenv("POSITIONS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POSITIONS_TEST_PG_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	snap := model.Snapshot{
		InvocationID: "inv-test",
		Wallet:       "wallet-test",
		FetchedAt:    time.Now().UTC(),
		Pools: model.Result{
			"pool-test": {
				PoolKey: "pool-test",
				Price:   decimal.RequireFromString("123.456789012345678901"),
				Positions: []model.NormalizedPosition{{
					PublicKey:     "position-test",
					LastUpdatedAt: time.Unix(1_700_000_000, 0).UTC(),
					TotalXAmount:  decimal.RequireFromString("1.5"),
				}},
			},
		},
	}
	// twice: the second write must hit the upsert path
	for i := 0; i < 2; i++ {
		if err := store.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("put snapshot: %v", err)
		}
	}

	var price string
	if err := store.pool.QueryRow(ctx, `SELECT price::text FROM dlmm_pools WHERE wallet = $1 AND pool_key = $2`, "wallet-test", "pool-test").Scan(&price); err != nil {
		t.Fatalf("query pool: %v", err)
	}
	if price != "123.456789012345678901" {
		t.Fatalf("unexpected price %s", price)
	}

	if _, err := NewStore(ctx, ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
