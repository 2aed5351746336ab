package price

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"positionScope/internal/model"
	"positionScope/internal/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultPriceURL = "https://api.jup.ag/price/v2"
	DefaultTokenURL = "https://tokens.jup.ag/token"

	defaultTimeout  = 10 * time.Second
	defaultPriceTTL = 30 * time.Second
	fallbackNameTTL = 10 * time.Minute
)

// Options configures a JupiterClient.
type Options struct {
	PriceURL  string
	TokenURL  string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	PriceTTL  time.Duration
	// HTTPClient overrides the default fasthttp client.
	HTTPClient *fasthttp.Client
}

// StatusError is a non-200 response from the price API.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == fasthttp.StatusTooManyRequests || e.StatusCode >= 500
}

type priceEntry struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Price string `json:"price"`
}

type priceResponse struct {
	Data map[string]*priceEntry `json:"data"`
}

type tokenResponse struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// JupiterClient resolves pool prices and token symbols from the Jupiter APIs.
type JupiterClient struct {
	client   *fasthttp.Client
	priceURL string
	tokenURL string
	timeout  time.Duration
	limiter  *rate.Limiter
	prices   *cache.Cache
	names    *cache.Cache
	logger   *zap.Logger
}

func NewJupiterClient(opts Options, logger *zap.Logger) *JupiterClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PriceURL == "" {
		opts.PriceURL = DefaultPriceURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = defaultPriceTTL
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &fasthttp.Client{}
	}

	return &JupiterClient{
		client:   client,
		priceURL: strings.TrimRight(opts.PriceURL, "/"),
		tokenURL: strings.TrimRight(opts.TokenURL, "/"),
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(limit, opts.RateBurst),
		prices:   cache.New(opts.PriceTTL, 2*opts.PriceTTL),
		names:    cache.New(cache.NoExpiration, 10*time.Minute),
		logger:   logger.Named("jupiter"),
	}
}

// GetPrice returns the price of tokenX in tokenY and both token names.
// A pair Jupiter cannot price yields a zero price.
func (c *JupiterClient) GetPrice(ctx context.Context, tokenXMint, tokenYMint string) (model.TokenPrice, error) {
	var out model.TokenPrice

	value, err := c.price(ctx, tokenXMint, tokenYMint)
	if err != nil {
		return out, err
	}
	out.Price = value
	out.NameX = c.Name(ctx, tokenXMint)
	out.NameY = c.Name(ctx, tokenYMint)
	return out, nil
}

func (c *JupiterClient) price(ctx context.Context, tokenXMint, tokenYMint string) (decimal.Decimal, error) {
	cacheKey := tokenXMint + "/" + tokenYMint
	if cached, ok := c.prices.Get(cacheKey); ok {
		return cached.(decimal.Decimal), nil
	}

	query := url.Values{}
	query.Set("ids", tokenXMint)
	query.Set("vsToken", tokenYMint)

	var resp priceResponse
	if err := c.getJSON(ctx, c.priceURL+"?"+query.Encode(), &resp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch price %s/%s: %w", tokenXMint, tokenYMint, err)
	}

	entry := resp.Data[tokenXMint]
	if entry == nil || entry.Price == "" {
		c.logger.Warn("no price for pair, using zero",
			zap.String("token_x", tokenXMint),
			zap.String("token_y", tokenYMint),
		)
		c.prices.SetDefault(cacheKey, decimal.Zero)
		return decimal.Zero, nil
	}

	value, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Decimal{}, retry.Permanent(fmt.Errorf("parse price %q: %w", entry.Price, err))
	}
	c.prices.SetDefault(cacheKey, value)
	return value, nil
}

// Name returns the token symbol, falling back to a shortened mint when
// the token list has no entry or cannot be reached.
func (c *JupiterClient) Name(ctx context.Context, mint string) string {
	if cached, ok := c.names.Get(mint); ok {
		return cached.(string)
	}

	var resp tokenResponse
	err := c.getJSON(ctx, c.tokenURL+"/"+url.PathEscape(mint), &resp)
	if err == nil && resp.Symbol != "" {
		c.names.Set(mint, resp.Symbol, cache.NoExpiration)
		return resp.Symbol
	}

	if err != nil {
		c.logger.Debug("token lookup failed", zap.String("mint", mint), zap.Error(err))
	}
	name := ShortMint(mint)
	if ctx.Err() == nil {
		c.names.Set(mint, name, fallbackNameTTL)
	}
	return name
}

func (c *JupiterClient) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > c.timeout {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("execute request %s: %w", requestURL, err)
	}

	body := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		statusErr := &StatusError{URL: requestURL, StatusCode: resp.StatusCode(), Body: truncate(string(body), 256)}
		if statusErr.Retryable() {
			return statusErr
		}
		return retry.Permanent(statusErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response %s: %w", requestURL, err))
	}
	return nil
}

// ShortMint abbreviates a mint address for display.
func ShortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + "…" + mint[len(mint)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
