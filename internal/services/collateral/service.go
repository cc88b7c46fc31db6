// Package collateral aggregates wallet balances across a configured ERC20
// token table plus the native currency.
package collateral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that Service implements outbound.BalanceSource.
var _ outbound.BalanceSource = (*Service)(nil)

// Config holds configuration for the balance service.
type Config struct {
	// Tokens is the ERC20 collateral table to read. Defaults to the GMX
	// Arbitrum collateral set.
	Tokens []outbound.ERC20Token

	// NativeSymbol labels the native currency entry.
	NativeSymbol string

	// AllowPartial drops tokens whose individual reads fail instead of
	// failing the whole aggregation. The native read must always succeed.
	AllowPartial bool

	Logger *slog.Logger
}

// ConfigDefaults returns a config for the GMX Arbitrum deployment.
func ConfigDefaults() Config {
	return Config{
		Tokens:       blockchain.DefaultCollateralTokens,
		NativeSymbol: blockchain.NativeCurrencySymbol,
	}
}

func applyDefaults(config *Config) {
	defaults := ConfigDefaults()
	if config.Tokens == nil {
		config.Tokens = defaults.Tokens
	}
	if config.NativeSymbol == "" {
		config.NativeSymbol = defaults.NativeSymbol
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
}

type Service struct {
	reader outbound.BalanceReader
	config Config
	logger *slog.Logger
}

func NewService(reader outbound.BalanceReader, config Config) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("balance reader is required")
	}
	applyDefaults(&config)
	return &Service{
		reader: reader,
		config: config,
		logger: config.Logger.With("component", "collateral"),
	}, nil
}

// CollateralBalances reads every configured token balance plus the native
// currency for account. Entries come back in table order with the native
// entry last. By default any failed token read fails the whole call with a
// *gmx.FetchError; with AllowPartial the failed entries are dropped instead.
func (s *Service) CollateralBalances(ctx context.Context, account common.Address) ([]gmx.TokenBalance, error) {
	results, err := s.reader.TokenBalances(ctx, account, s.config.Tokens)
	if err != nil {
		return nil, &gmx.FetchError{Op: "tokenBalances", Err: err}
	}

	balances := make([]gmx.TokenBalance, 0, len(results)+1)
	for _, result := range results {
		if result.Err != nil {
			if !s.config.AllowPartial {
				return nil, &gmx.FetchError{
					Op:  "tokenBalances",
					Err: fmt.Errorf("token %s (%s): %w", result.Token.Symbol, result.Token.Address.Hex(), result.Err),
				}
			}
			s.logger.Warn("dropping failed token balance",
				"symbol", result.Token.Symbol,
				"token", result.Token.Address.Hex(),
				"error", result.Err)
			continue
		}
		balances = append(balances, gmx.NewTokenBalance(
			result.Token.Symbol, result.Token.Address, result.Amount, result.Decimals))
	}

	native, err := s.reader.NativeBalance(ctx, account)
	if err != nil {
		return nil, &gmx.FetchError{Op: "nativeBalance", Err: err}
	}
	balances = append(balances, gmx.NewNativeBalance(s.config.NativeSymbol, native))

	return balances, nil
}
