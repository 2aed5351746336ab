package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
)

// MaxMultipleAccounts is the node limit for one getMultipleAccounts call.
const MaxMultipleAccounts = 100

// Account is a decoded account as returned by the node.
type Account struct {
	Pubkey   Pubkey
	Owner    string
	Lamports uint64
	Data     []byte
}

// MemcmpFilter matches accounts whose data at Offset equals Bytes.
type MemcmpFilter struct {
	Offset int
	Bytes  []byte
}

// DataSizeFilter matches accounts whose data has exactly Size bytes.
type DataSizeFilter struct {
	Size int
}

// Filters groups the getProgramAccounts filters of one query.
type Filters struct {
	Memcmp   []MemcmpFilter
	DataSize *DataSizeFilter
}

// Client talks JSON-RPC 2.0 to a Solana node.
type Client struct {
	rpcClient  *rpc.Client
	commitment string
	timeout    time.Duration
}

type ClientOption func(*Client)

func WithCommitment(commitment string) ClientOption {
	return func(c *Client) {
		if commitment != "" {
			c.commitment = commitment
		}
	}
}

// WithRequestTimeout bounds every RPC request. Zero means no bound.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a client for the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts ...ClientOption) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpc url is required")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, opts...), nil
}

func newClient(rpcClient *rpc.Client, opts ...ClientOption) *Client {
	c := &Client{
		rpcClient:  rpcClient,
		commitment: "confirmed",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type rpcAccount struct {
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Lamports   uint64   `json:"lamports"`
	Executable bool     `json:"executable"`
}

type rpcKeyedAccount struct {
	Pubkey  string     `json:"pubkey"`
	Account rpcAccount `json:"account"`
}

type rpcMultipleAccounts struct {
	Value []*rpcAccount `json:"value"`
}

// GetProgramAccounts returns every account owned by program that matches filters.
func (c *Client) GetProgramAccounts(ctx context.Context, program Pubkey, filters Filters) ([]Account, error) {
	rpcFilters := make([]map[string]interface{}, 0, len(filters.Memcmp)+1)
	if filters.DataSize != nil {
		rpcFilters = append(rpcFilters, map[string]interface{}{"dataSize": filters.DataSize.Size})
	}
	for _, f := range filters.Memcmp {
		rpcFilters = append(rpcFilters, map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": f.Offset,
				"bytes":  base58.Encode(f.Bytes),
			},
		})
	}
	params := map[string]interface{}{
		"encoding":   "base64",
		"commitment": c.commitment,
		"filters":    rpcFilters,
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	var raw []rpcKeyedAccount
	if err := c.rpcClient.CallContext(ctx, &raw, "getProgramAccounts", program.String(), params); err != nil {
		return nil, fmt.Errorf("get program accounts: %w", err)
	}

	accounts := make([]Account, 0, len(raw))
	for _, item := range raw {
		key, err := ParsePubkey(item.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("program account key: %w", err)
		}
		account, err := decodeAccount(key, &item.Account)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// GetMultipleAccounts fetches keys in order. Missing accounts are nil.
// Requests are split into chunks of MaxMultipleAccounts keys.
func (c *Client) GetMultipleAccounts(ctx context.Context, keys []Pubkey) ([]*Account, error) {
	out := make([]*Account, 0, len(keys))
	for start := 0; start < len(keys); start += MaxMultipleAccounts {
		end := start + MaxMultipleAccounts
		if end > len(keys) {
			end = len(keys)
		}
		chunk, err := c.getMultipleAccounts(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) getMultipleAccounts(ctx context.Context, keys []Pubkey) ([]*Account, error) {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		encoded[i] = key.String()
	}
	params := map[string]interface{}{
		"encoding":   "base64",
		"commitment": c.commitment,
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	var raw rpcMultipleAccounts
	if err := c.rpcClient.CallContext(ctx, &raw, "getMultipleAccounts", encoded, params); err != nil {
		return nil, fmt.Errorf("get multiple accounts: %w", err)
	}
	if len(raw.Value) != len(keys) {
		return nil, fmt.Errorf("get multiple accounts: expected %d accounts, got %d", len(keys), len(raw.Value))
	}

	out := make([]*Account, len(keys))
	for i, item := range raw.Value {
		if item == nil {
			continue
		}
		account, err := decodeAccount(keys[i], item)
		if err != nil {
			return nil, err
		}
		out[i] = &account
	}
	return out, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func decodeAccount(key Pubkey, raw *rpcAccount) (Account, error) {
	if len(raw.Data) != 2 || raw.Data[1] != "base64" {
		return Account{}, fmt.Errorf("account %s: unexpected data encoding", key)
	}
	data, err := base64.StdEncoding.DecodeString(raw.Data[0])
	if err != nil {
		return Account{}, fmt.Errorf("account %s: decode data: %w", key, err)
	}
	return Account{
		Pubkey:   key,
		Owner:    raw.Owner,
		Lamports: raw.Lamports,
		Data:     data,
	}, nil
}
