// Package gmxchain reads GMX v2 state over Ethereum JSON-RPC: open position
// records from the Reader contract, market composition, ERC20 metadata and
// balances (batched through Multicall3), and native currency balances.
package gmxchain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain/abis"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time checks that Client implements the chain-read ports.
var (
	_ outbound.PositionReader = (*Client)(nil)
	_ outbound.BalanceReader  = (*Client)(nil)
)

type Client struct {
	config Config
	caller outbound.ContractCaller
	mc     outbound.Multicaller
	logger *slog.Logger

	readerABI *abi.ABI
	erc20ABI  *abi.ABI

	marketCache   map[common.Address]outbound.MarketInfo
	marketMu      sync.RWMutex
	metadataCache map[common.Address]outbound.TokenMetadata
	metadataMu    sync.RWMutex
}

// NewClient creates a chain-reading adapter on top of a contract caller and a
// multicaller.
func NewClient(caller outbound.ContractCaller, mc outbound.Multicaller, config Config) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if mc == nil {
		return nil, fmt.Errorf("multicaller is required")
	}
	applyDefaults(&config)

	readerABI, err := abis.GetGMXReaderABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load GMX reader ABI: %w", err)
	}
	erc20ABI, err := abis.GetERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load ERC20 ABI: %w", err)
	}

	return &Client{
		config:        config,
		caller:        caller,
		mc:            mc,
		logger:        config.Logger.With("component", "gmxchain"),
		readerABI:     readerABI,
		erc20ABI:      erc20ABI,
		marketCache:   make(map[common.Address]outbound.MarketInfo),
		metadataCache: make(map[common.Address]outbound.TokenMetadata),
	}, nil
}

// RawAccountPositions returns all open Position.Props records owned by
// account, in reader return order.
func (c *Client) RawAccountPositions(ctx context.Context, account common.Address) ([]outbound.RawPosition, error) {
	data, err := c.readerABI.Pack("getAccountPositions",
		c.config.DataStore, account, big.NewInt(0), new(big.Int).SetUint64(c.config.MaxPositions))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAccountPositions: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &c.config.Reader,
		Data: data,
	}

	result, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call reader contract at %s: %w", c.config.Reader.Hex(), err)
	}

	if len(result) == 0 {
		return []outbound.RawPosition{}, nil
	}

	unpacked, err := c.readerABI.Unpack("getAccountPositions", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getAccountPositions result: %w", err)
	}
	if len(unpacked) == 0 {
		return []outbound.RawPosition{}, nil
	}

	propsSlice, ok := unpacked[0].([]struct {
		Addresses struct {
			Account         common.Address `json:"account"`
			Market          common.Address `json:"market"`
			CollateralToken common.Address `json:"collateralToken"`
		} `json:"addresses"`
		Numbers struct {
			SizeInUsd                               *big.Int `json:"sizeInUsd"`
			SizeInTokens                            *big.Int `json:"sizeInTokens"`
			CollateralAmount                        *big.Int `json:"collateralAmount"`
			BorrowingFactor                         *big.Int `json:"borrowingFactor"`
			FundingFeeAmountPerSize                 *big.Int `json:"fundingFeeAmountPerSize"`
			LongTokenClaimableFundingAmountPerSize  *big.Int `json:"longTokenClaimableFundingAmountPerSize"`
			ShortTokenClaimableFundingAmountPerSize *big.Int `json:"shortTokenClaimableFundingAmountPerSize"`
			IncreasedAtTime                         *big.Int `json:"increasedAtTime"`
			DecreasedAtTime                         *big.Int `json:"decreasedAtTime"`
		} `json:"numbers"`
		Flags struct {
			IsLong bool `json:"isLong"`
		} `json:"flags"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected getAccountPositions payload shape %T", unpacked[0])
	}

	positions := make([]outbound.RawPosition, 0, len(propsSlice))
	for _, p := range propsSlice {
		if p.Addresses.Market == (common.Address{}) {
			continue
		}
		positions = append(positions, outbound.RawPosition{
			Account:                                 p.Addresses.Account,
			Market:                                  p.Addresses.Market,
			CollateralToken:                         p.Addresses.CollateralToken,
			SizeInUSD:                               p.Numbers.SizeInUsd,
			SizeInTokens:                            p.Numbers.SizeInTokens,
			CollateralAmount:                        p.Numbers.CollateralAmount,
			BorrowingFactor:                         p.Numbers.BorrowingFactor,
			FundingFeeAmountPerSize:                 p.Numbers.FundingFeeAmountPerSize,
			LongTokenClaimableFundingAmountPerSize:  p.Numbers.LongTokenClaimableFundingAmountPerSize,
			ShortTokenClaimableFundingAmountPerSize: p.Numbers.ShortTokenClaimableFundingAmountPerSize,
			IncreasedAt:                             bigToInt64(p.Numbers.IncreasedAtTime),
			DecreasedAt:                             bigToInt64(p.Numbers.DecreasedAtTime),
			IsLong:                                  p.Flags.IsLong,
		})
	}

	return positions, nil
}

// Market resolves a market address to its token composition, caching results
// for the adapter's lifetime (market composition is immutable on-chain).
func (c *Client) Market(ctx context.Context, market common.Address) (outbound.MarketInfo, error) {
	c.marketMu.RLock()
	if info, ok := c.marketCache[market]; ok {
		c.marketMu.RUnlock()
		return info, nil
	}
	c.marketMu.RUnlock()

	data, err := c.readerABI.Pack("getMarket", c.config.DataStore, market)
	if err != nil {
		return outbound.MarketInfo{}, fmt.Errorf("failed to pack getMarket: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &c.config.Reader,
		Data: data,
	}

	result, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return outbound.MarketInfo{}, fmt.Errorf("failed to call getMarket for %s: %w", market.Hex(), err)
	}

	unpacked, err := c.readerABI.Unpack("getMarket", result)
	if err != nil {
		return outbound.MarketInfo{}, fmt.Errorf("failed to unpack getMarket result: %w", err)
	}
	if len(unpacked) == 0 {
		return outbound.MarketInfo{}, fmt.Errorf("empty getMarket result for %s", market.Hex())
	}

	props, ok := unpacked[0].(struct {
		MarketToken common.Address `json:"marketToken"`
		IndexToken  common.Address `json:"indexToken"`
		LongToken   common.Address `json:"longToken"`
		ShortToken  common.Address `json:"shortToken"`
	})
	if !ok {
		return outbound.MarketInfo{}, fmt.Errorf("unexpected getMarket payload shape %T", unpacked[0])
	}

	info := outbound.MarketInfo{
		Market:     market,
		IndexToken: props.IndexToken,
		LongToken:  props.LongToken,
		ShortToken: props.ShortToken,
	}

	c.marketMu.Lock()
	c.marketCache[market] = info
	c.marketMu.Unlock()

	return info, nil
}

// TokenMetadata resolves symbol and decimals for the given tokens in one
// multicall round. Tokens whose reads fail are omitted from the result map.
func (c *Client) TokenMetadata(ctx context.Context, tokens []common.Address) (map[common.Address]outbound.TokenMetadata, error) {
	result := make(map[common.Address]outbound.TokenMetadata, len(tokens))

	var toFetch []common.Address
	c.metadataMu.RLock()
	for _, token := range tokens {
		if meta, ok := c.metadataCache[token]; ok {
			result[token] = meta
		} else {
			toFetch = append(toFetch, token)
		}
	}
	c.metadataMu.RUnlock()

	if len(toFetch) == 0 {
		return result, nil
	}

	decimalsData, err := c.erc20ABI.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("failed to pack decimals: %w", err)
	}
	symbolData, err := c.erc20ABI.Pack("symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to pack symbol: %w", err)
	}

	calls := make([]outbound.Call, 0, len(toFetch)*2)
	for _, token := range toFetch {
		calls = append(calls,
			outbound.Call{Target: token, AllowFailure: true, CallData: decimalsData},
			outbound.Call{Target: token, AllowFailure: true, CallData: symbolData},
		)
	}

	results, err := c.mc.Execute(ctx, calls, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata multicall failed: %w", err)
	}

	c.metadataMu.Lock()
	defer c.metadataMu.Unlock()

	for i, token := range toFetch {
		idx := i * 2
		if idx+1 >= len(results) {
			break
		}

		var decimals uint8
		if !results[idx].Success || len(results[idx].ReturnData) == 0 {
			c.logger.Warn("decimals read failed", "token", token.Hex())
			continue
		}
		if err := c.erc20ABI.UnpackIntoInterface(&decimals, "decimals", results[idx].ReturnData); err != nil {
			c.logger.Warn("decimals unpack failed", "token", token.Hex(), "error", err)
			continue
		}

		var symbol string
		if results[idx+1].Success && len(results[idx+1].ReturnData) > 0 {
			if err := c.erc20ABI.UnpackIntoInterface(&symbol, "symbol", results[idx+1].ReturnData); err != nil {
				c.logger.Warn("symbol unpack failed", "token", token.Hex(), "error", err)
			}
		}

		meta := outbound.TokenMetadata{Symbol: symbol, Decimals: decimals}
		result[token] = meta
		c.metadataCache[token] = meta
	}

	return result, nil
}

// TokenBalances reads balanceOf and decimals for each token in one multicall
// round. Per-token failures are reported in the result entries; input order
// is preserved.
func (c *Client) TokenBalances(ctx context.Context, account common.Address, tokens []outbound.ERC20Token) ([]outbound.TokenBalanceResult, error) {
	if len(tokens) == 0 {
		return []outbound.TokenBalanceResult{}, nil
	}

	balanceOfData, err := c.erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	decimalsData, err := c.erc20ABI.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("failed to pack decimals: %w", err)
	}

	calls := make([]outbound.Call, 0, len(tokens)*2)
	for _, token := range tokens {
		calls = append(calls,
			outbound.Call{Target: token.Address, AllowFailure: true, CallData: balanceOfData},
			outbound.Call{Target: token.Address, AllowFailure: true, CallData: decimalsData},
		)
	}

	mcResults, err := c.mc.Execute(ctx, calls, nil)
	if err != nil {
		return nil, fmt.Errorf("balance multicall failed: %w", err)
	}

	results := make([]outbound.TokenBalanceResult, len(tokens))
	for i, token := range tokens {
		results[i].Token = token

		idx := i * 2
		if idx+1 >= len(mcResults) {
			results[i].Err = fmt.Errorf("missing multicall result for %s", token.Symbol)
			continue
		}

		if !mcResults[idx].Success || len(mcResults[idx].ReturnData) == 0 {
			results[i].Err = fmt.Errorf("balanceOf reverted for %s", token.Symbol)
			continue
		}
		var balance *big.Int
		if err := c.erc20ABI.UnpackIntoInterface(&balance, "balanceOf", mcResults[idx].ReturnData); err != nil {
			results[i].Err = fmt.Errorf("balanceOf unpack failed for %s: %w", token.Symbol, err)
			continue
		}

		if !mcResults[idx+1].Success || len(mcResults[idx+1].ReturnData) == 0 {
			results[i].Err = fmt.Errorf("decimals reverted for %s", token.Symbol)
			continue
		}
		var decimals uint8
		if err := c.erc20ABI.UnpackIntoInterface(&decimals, "decimals", mcResults[idx+1].ReturnData); err != nil {
			results[i].Err = fmt.Errorf("decimals unpack failed for %s: %w", token.Symbol, err)
			continue
		}

		results[i].Amount = balance
		results[i].Decimals = decimals
	}

	return results, nil
}

// NativeBalance reads the native currency balance at the latest block.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.caller.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read native balance for %s: %w", account.Hex(), err)
	}
	return balance, nil
}

func bigToInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}
