// Package gmxtracker is a read client for GMX v2 on Arbitrum: open leveraged
// positions, collateral balances and a diffing position watcher, all over
// standard Ethereum JSON-RPC plus the GMX price API.
package gmxtracker

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Token is one entry of the collateral token table.
type Token struct {
	Symbol  string
	Address common.Address
}

// Config holds construction configuration for the client. The zero value plus
// RPCURL is usable; everything else defaults to the GMX v2 Arbitrum
// deployment.
type Config struct {
	// RPCURL is the Ethereum JSON-RPC endpoint. Required.
	RPCURL string

	// Address is the wallet the "My" read variants operate on.
	Address common.Address

	// PrivateKey is an optional hex-encoded private key belonging to Address.
	// It is validated at construction and held for signing parity with other
	// GMX clients; no read path uses it.
	PrivateKey string

	// ChainID is the expected chain id of the endpoint. Construction fails
	// when the endpoint reports a different chain. Defaults to Arbitrum One.
	ChainID uint64

	// Tokens overrides the collateral token table checked by balance reads.
	// Defaults to WBTC, USDC and USDC.e.
	Tokens []Token

	// AllowPartialBalances drops tokens whose balance reads fail instead of
	// failing the whole aggregation.
	AllowPartialBalances bool

	// ReaderAddress and DataStoreAddress override the GMX v2 contract
	// addresses, for forks and test deployments.
	ReaderAddress    common.Address
	DataStoreAddress common.Address

	// TickerBaseURL overrides the GMX price API endpoint. An empty string
	// uses the production Arbitrum API; set DisableTickers to skip mark
	// prices entirely.
	TickerBaseURL  string
	DisableTickers bool

	// PollInterval is the default watcher interval when PollPositions is
	// called with a zero interval.
	PollInterval time.Duration

	// MaxConsecutiveFailures terminates a watcher after that many failed
	// reads in a row. Zero keeps retrying forever.
	MaxConsecutiveFailures int

	// HeadsWSURL, when set, gives watchers a WebSocket endpoint for
	// eth_newHeads so they re-read on new blocks in addition to the interval.
	HeadsWSURL string

	Logger *slog.Logger
}

// ConfigDefaults returns a config for GMX v2 on Arbitrum One.
func ConfigDefaults() Config {
	return Config{
		ChainID:      blockchain.ArbitrumChainID,
		PollInterval: 10 * time.Second,
	}
}

func applyDefaults(config *Config) {
	defaults := ConfigDefaults()
	if config.ChainID == 0 {
		config.ChainID = defaults.ChainID
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
}

// collateralTokens maps the configured table onto the port type, falling back
// to the Arbitrum defaults.
func (c Config) collateralTokens() []outbound.ERC20Token {
	if len(c.Tokens) == 0 {
		return blockchain.DefaultCollateralTokens
	}
	tokens := make([]outbound.ERC20Token, len(c.Tokens))
	for i, t := range c.Tokens {
		tokens[i] = outbound.ERC20Token{Symbol: t.Symbol, Address: t.Address}
	}
	return tokens
}
