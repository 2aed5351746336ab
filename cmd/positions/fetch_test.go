package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/config"
	"positionScope/internal/model"
)

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		InvocationID: "inv",
		Wallet:       "w",
		FetchedAt:    time.Unix(1_700_000_000, 0).UTC(),
		Status:       model.StatusOK,
		Pools: model.Result{
			"pool-a": {
				PoolKey: "pool-a",
				Price:   decimal.RequireFromString("1.25"),
				Positions: []model.NormalizedPosition{{
					PublicKey:    "pos-1",
					TotalXAmount: decimal.RequireFromString("1.5"),
				}},
			},
		},
	}
}

func TestEncodeSnapshotIndentsNestedRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeSnapshot(&buf, config.FormatJSON, testSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "\n  \"pools\": {\n    \"pool-a\": {\n      \"pool_key\": \"pool-a\",\n")
	assert.Contains(t, out, "\n      \"positions\": [\n        {\n")
	assert.True(t, strings.HasSuffix(out, "}\n"))

	var back model.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.True(t, back.Pools["pool-a"].Price.Equal(decimal.RequireFromString("1.25")))
}

func TestOpenSinks(t *testing.T) {
	ctx := context.Background()

	sink, closeFn, err := openSinks(ctx, config.SinkConfig{})
	require.NoError(t, err)
	assert.Nil(t, sink)
	closeFn()

	path := filepath.Join(t.TempDir(), "rows", "pools.jsonl")
	sink, closeFn, err = openSinks(ctx, config.SinkConfig{JSONL: path})
	require.NoError(t, err)
	defer closeFn()
	require.NotNil(t, sink)

	require.NoError(t, sink.PutSnapshot(ctx, testSnapshot()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"invocation_id":"inv"`)
}
