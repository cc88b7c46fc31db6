package gmxtracker

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/adapters/outbound/gmxapi"
	"github.com/archon-research/gmx-tracker/internal/adapters/outbound/gmxchain"
	"github.com/archon-research/gmx-tracker/internal/adapters/outbound/headsub"
	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain"
	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain/multicall"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
	"github.com/archon-research/gmx-tracker/internal/services/collateral"
	"github.com/archon-research/gmx-tracker/internal/services/positions"
	"github.com/archon-research/gmx-tracker/internal/services/watcher"
)

// Client reads GMX v2 positions and collateral balances for one chain.
type Client struct {
	config Config
	eth    *ethclient.Client
	key    *ecdsa.PrivateKey

	positions outbound.PositionSource
	balances  outbound.BalanceSource

	logger *slog.Logger
}

// New dials the RPC endpoint and performs one liveness round trip. An
// unreachable endpoint, a non-JSON-RPC endpoint or a chain id mismatch fails
// construction with a *gmx.ConnectionError. There is no retry; callers decide
// whether to rebuild.
func New(ctx context.Context, config Config) (*Client, error) {
	if config.RPCURL == "" {
		return nil, &gmx.ConnectionError{Endpoint: "", Err: fmt.Errorf("rpc url is required")}
	}
	applyDefaults(&config)

	var key *ecdsa.PrivateKey
	if config.PrivateKey != "" {
		parsed, err := crypto.HexToECDSA(strings.TrimPrefix(config.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		key = parsed
	}

	eth, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		return nil, &gmx.ConnectionError{Endpoint: config.RPCURL, Err: err}
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, &gmx.ConnectionError{Endpoint: config.RPCURL, Err: fmt.Errorf("chain id probe: %w", err)}
	}
	if chainID.Uint64() != config.ChainID {
		eth.Close()
		return nil, &gmx.ConnectionError{
			Endpoint: config.RPCURL,
			Err:      fmt.Errorf("endpoint is chain %d, expected %d", chainID.Uint64(), config.ChainID),
		}
	}

	mc, err := multicall.NewClient(eth, blockchain.Multicall3)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("building multicall client: %w", err)
	}

	chain, err := gmxchain.NewClient(eth, mc, gmxchain.Config{
		Reader:    config.ReaderAddress,
		DataStore: config.DataStoreAddress,
		Logger:    config.Logger,
	})
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("building chain reader: %w", err)
	}

	var prices outbound.PriceProvider
	if !config.DisableTickers {
		api, err := gmxapi.NewClient(gmxapi.ClientConfig{
			BaseURL: config.TickerBaseURL,
			Logger:  config.Logger,
		})
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("building price client: %w", err)
		}
		prices = api
	}

	positionSource, err := positions.NewService(chain, prices, positions.Config{Logger: config.Logger})
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("building position service: %w", err)
	}

	balanceSource, err := collateral.NewService(chain, collateral.Config{
		Tokens:       config.collateralTokens(),
		AllowPartial: config.AllowPartialBalances,
		Logger:       config.Logger,
	})
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("building balance service: %w", err)
	}

	logger := config.Logger.With("component", "gmxtracker")
	logger.Info("client connected", "endpoint", config.RPCURL, "chainId", config.ChainID)

	return &Client{
		config:    config,
		eth:       eth,
		key:       key,
		positions: positionSource,
		balances:  balanceSource,
		logger:    logger,
	}, nil
}

// GetPositions returns all open positions owned by addr.
func (c *Client) GetPositions(ctx context.Context, addr common.Address) ([]gmx.Position, error) {
	return c.positions.AccountPositions(ctx, addr)
}

// GetMyPositions returns all open positions owned by the configured address.
func (c *Client) GetMyPositions(ctx context.Context) ([]gmx.Position, error) {
	addr, err := c.myAddress()
	if err != nil {
		return nil, err
	}
	return c.positions.AccountPositions(ctx, addr)
}

// GetCollateralBalances returns the configured token balances plus the native
// balance for addr, native entry last.
func (c *Client) GetCollateralBalances(ctx context.Context, addr common.Address) ([]gmx.TokenBalance, error) {
	return c.balances.CollateralBalances(ctx, addr)
}

// GetMyCollateralBalances returns collateral balances for the configured
// address.
func (c *Client) GetMyCollateralBalances(ctx context.Context) ([]gmx.TokenBalance, error) {
	addr, err := c.myAddress()
	if err != nil {
		return nil, err
	}
	return c.balances.CollateralBalances(ctx, addr)
}

// PollPositions starts a watcher for addr that emits a change event whenever
// consecutive snapshots differ. A zero interval uses the configured default.
// The watcher must be stopped independently of the client.
func (c *Client) PollPositions(ctx context.Context, addr common.Address, interval time.Duration) (*Watcher, error) {
	if interval == 0 {
		interval = c.config.PollInterval
	}

	var heads outbound.HeadSubscriber
	if c.config.HeadsWSURL != "" {
		subscriber, err := headsub.NewSubscriber(headsub.Config{
			WebSocketURL: c.config.HeadsWSURL,
			Logger:       c.config.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("building head subscriber: %w", err)
		}
		heads = subscriber
	}

	service, err := watcher.NewService(c.positions, addr, watcher.Config{
		PollInterval:           interval,
		MaxConsecutiveFailures: c.config.MaxConsecutiveFailures,
		Heads:                  heads,
		Logger:                 c.config.Logger,
	})
	if err != nil {
		if heads != nil {
			heads.Close()
		}
		return nil, err
	}

	if err := service.Start(ctx); err != nil {
		if heads != nil {
			heads.Close()
		}
		return nil, err
	}

	return &Watcher{service: service, heads: heads}, nil
}

// Close releases the underlying RPC connection. Watchers started from this
// client must be stopped first.
func (c *Client) Close() {
	c.eth.Close()
	c.logger.Info("client closed")
}

func (c *Client) myAddress() (common.Address, error) {
	if c.config.Address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no address configured")
	}
	return c.config.Address, nil
}
