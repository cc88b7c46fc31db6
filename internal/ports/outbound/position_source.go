// Package outbound defines the interfaces this library consumes: chain reads
// via RPC, oracle ticker prices, multicall batching, and block header
// subscriptions. Adapters implement them; services and the client facade
// depend only on these.
package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
)

// RawPosition is one Position.Props record as returned by the GMX Reader
// contract, before market and token enrichment.
type RawPosition struct {
	Account         common.Address
	Market          common.Address
	CollateralToken common.Address

	SizeInUSD                               *big.Int
	SizeInTokens                            *big.Int
	CollateralAmount                        *big.Int
	BorrowingFactor                         *big.Int
	FundingFeeAmountPerSize                 *big.Int
	LongTokenClaimableFundingAmountPerSize  *big.Int
	ShortTokenClaimableFundingAmountPerSize *big.Int

	IncreasedAt int64
	DecreasedAt int64
	IsLong      bool
}

// MarketInfo describes a GMX market's token composition.
type MarketInfo struct {
	Market     common.Address
	IndexToken common.Address
	LongToken  common.Address
	ShortToken common.Address
}

// TokenMetadata holds the ERC20 metadata needed for decimal adjustment.
type TokenMetadata struct {
	Symbol   string
	Decimals uint8
}

// PositionReader provides the raw chain reads behind position fetching.
type PositionReader interface {
	// RawAccountPositions returns all open Position.Props records owned by
	// account, in reader return order.
	RawAccountPositions(ctx context.Context, account common.Address) ([]RawPosition, error)

	// Market resolves a market address to its token composition.
	Market(ctx context.Context, market common.Address) (MarketInfo, error)

	// TokenMetadata resolves symbol and decimals for the given tokens.
	TokenMetadata(ctx context.Context, tokens []common.Address) (map[common.Address]TokenMetadata, error)
}

// PositionSource is the normalized position read consumed by the watcher and
// the client facade.
type PositionSource interface {
	AccountPositions(ctx context.Context, account common.Address) ([]gmx.Position, error)
}
