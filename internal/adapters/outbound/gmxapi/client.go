// Package gmxapi implements the PriceProvider interface using the GMX signed
// price API. It provides current oracle ticker prices with:
//   - Automatic retry with exponential backoff for transient failures
//   - Rate limiting on outbound requests
//   - Configurable timeouts
package gmxapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/archon-research/gmx-tracker/internal/pkg/retry"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.PriceProvider.
var _ outbound.PriceProvider = (*Client)(nil)

// ClientConfig holds configuration for the GMX price API client.
type ClientConfig struct {
	// BaseURL is the GMX API base URL.
	// Defaults to https://arbitrum-api.gmxinfra.io
	BaseURL string

	// Timeout is the maximum time to wait for a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// RateLimitPerMin is the rate limit in requests per minute.
	RateLimitPerMin int

	// Logger is the structured logger for the client.
	Logger *slog.Logger

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		BaseURL:         "https://arbitrum-api.gmxinfra.io",
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialBackoff:  250 * time.Millisecond,
		MaxBackoff:      5 * time.Second,
		BackoffFactor:   2.0,
		RateLimitPerMin: 300,
		Logger:          slog.Default(),
	}
}

// Client implements PriceProvider using the GMX signed price API.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *rate.Limiter
	retryConfig retry.Config
}

// NewClient creates a new GMX price API client.
func NewClient(config ClientConfig) (*Client, error) {
	defaults := ClientConfigDefaults()
	applyDefaults(&config, defaults)

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	rps := float64(config.RateLimitPerMin) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("component", "gmxapi-client"),
		limiter:    limiter,
		retryConfig: retry.Config{
			MaxRetries:     config.MaxRetries,
			InitialBackoff: config.InitialBackoff,
			MaxBackoff:     config.MaxBackoff,
			BackoffFactor:  config.BackoffFactor,
			Jitter:         false, // keep deterministic for API rate limiting
		},
	}, nil
}

func applyDefaults(config *ClientConfig, defaults ClientConfig) {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.RateLimitPerMin == 0 {
		config.RateLimitPerMin = defaults.RateLimitPerMin
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// tickerEntry is one element of the /prices/tickers response.
type tickerEntry struct {
	TokenAddress string `json:"tokenAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	MinPrice     string `json:"minPrice"`
	MaxPrice     string `json:"maxPrice"`
}

// TickerPrices fetches the current signed oracle prices for all tokens,
// keyed by token address.
func (c *Client) TickerPrices(ctx context.Context) (map[common.Address]outbound.TickerPrice, error) {
	endpoint := fmt.Sprintf("%s/prices/tickers", c.config.BaseURL)

	isRetryable := func(err error) bool {
		var nonRetryable *nonRetryableError
		return !errors.As(err, &nonRetryable)
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("ticker request failed, retrying",
			"attempt", attempt,
			"maxRetries", c.retryConfig.MaxRetries,
			"backoff", backoff,
			"error", err,
		)
	}

	entries, err := retry.Do(ctx, c.retryConfig, isRetryable, onRetry, func() ([]tickerEntry, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &nonRetryableError{err: fmt.Errorf("rate limiter: %w", err)}
		}
		return c.fetchTickers(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	prices := make(map[common.Address]outbound.TickerPrice, len(entries))
	for _, entry := range entries {
		minPrice, ok := new(big.Int).SetString(entry.MinPrice, 10)
		if !ok {
			return nil, fmt.Errorf("malformed min price %q for %s", entry.MinPrice, entry.TokenSymbol)
		}
		maxPrice, ok := new(big.Int).SetString(entry.MaxPrice, 10)
		if !ok {
			return nil, fmt.Errorf("malformed max price %q for %s", entry.MaxPrice, entry.TokenSymbol)
		}

		token := common.HexToAddress(entry.TokenAddress)
		prices[token] = outbound.TickerPrice{
			TokenSymbol: entry.TokenSymbol,
			Token:       token,
			Min:         minPrice,
			Max:         maxPrice,
		}
	}

	return prices, nil
}

func (c *Client) fetchTickers(ctx context.Context, endpoint string) ([]tickerEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &nonRetryableError{err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (HTTP 429)")
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &nonRetryableError{err: fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(body))}
	}

	var entries []tickerEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &nonRetryableError{err: fmt.Errorf("parsing response: %w", err)}
	}

	return entries, nil
}

// nonRetryableError wraps errors that should not be retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return e.err.Error()
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}
