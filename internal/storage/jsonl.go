package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"positionScope/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PoolRow is one JSONL line: a pool record tagged with its snapshot.
type PoolRow struct {
	InvocationID string           `json:"invocation_id"`
	Wallet       string           `json:"wallet"`
	FetchedAt    time.Time        `json:"fetched_at"`
	Pool         model.PoolRecord `json:"pool"`
}

// JsonlStorage appends pool rows to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutSnapshot appends one line per pool, in pool key order.
func (s *JsonlStorage) PutSnapshot(_ context.Context, snap model.Snapshot) error {
	if len(snap.Pools) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, key := range snap.Pools.Keys() {
		line, err := json.Marshal(PoolRow{
			InvocationID: snap.InvocationID,
			Wallet:       snap.Wallet,
			FetchedAt:    snap.FetchedAt,
			Pool:         snap.Pools[key],
		})
		if err != nil {
			return fmt.Errorf("marshal pool row: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
