// Package gmx holds the domain value types returned by the tracker: open
// perpetual positions, collateral balances, and the diffing helpers used by
// the poll loop. Values are snapshots; nothing in this package is mutated
// after construction.
package gmx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Epsilon used when comparing derived float fields. Raw on-chain amounts are
// compared exactly.
const floatTolerance = 1e-6

// Position is a snapshot of one open GMX position.
//
// Raw fields carry the on-chain integer representation: SizeUSD is scaled by
// 1e30, SizeInTokens by the index token's decimals, CollateralAmount by the
// collateral token's decimals. Derived fields are human-unit values computed
// at read time from the raw fields and the current oracle tickers.
type Position struct {
	Account          common.Address
	Market           common.Address
	MarketSymbol     string
	CollateralToken  common.Address
	CollateralSymbol string
	IsLong           bool

	SizeUSD                                 *big.Int
	SizeInTokens                            *big.Int
	CollateralAmount                        *big.Int
	BorrowingFactor                         *big.Int
	FundingFeeAmountPerSize                 *big.Int
	LongTokenClaimableFundingAmountPerSize  *big.Int
	ShortTokenClaimableFundingAmountPerSize *big.Int

	// ModifiedAt is the unix timestamp of the last increase or decrease.
	ModifiedAt int64

	EntryPrice                 float64
	MarkPrice                  float64
	Leverage                   float64
	InitialCollateralAmount    float64
	InitialCollateralAmountUSD float64
	PercentProfit              float64
}

// Key identifies a position by market and direction, e.g. "ETH_long".
// Two reads of the same open position share a Key even when the underlying
// amounts have moved; use Equal to detect such moves.
func (p Position) Key() string {
	return fmt.Sprintf("%s_%s", p.MarketSymbol, p.Side())
}

// Side returns "long" or "short".
func (p Position) Side() string {
	if p.IsLong {
		return "long"
	}
	return "short"
}

// Equal reports whether two position snapshots describe the same position
// state. Identity fields and raw amounts are compared exactly, derived floats
// within a tolerance. MarkPrice and PercentProfit are deliberately excluded:
// they move with the oracle on every tick and would make every comparison a
// change.
func (p Position) Equal(other Position) bool {
	return p.Account == other.Account &&
		p.Market == other.Market &&
		p.MarketSymbol == other.MarketSymbol &&
		p.CollateralToken == other.CollateralToken &&
		p.IsLong == other.IsLong &&
		bigEqual(p.SizeUSD, other.SizeUSD) &&
		bigEqual(p.SizeInTokens, other.SizeInTokens) &&
		bigEqual(p.CollateralAmount, other.CollateralAmount) &&
		bigEqual(p.BorrowingFactor, other.BorrowingFactor) &&
		bigEqual(p.FundingFeeAmountPerSize, other.FundingFeeAmountPerSize) &&
		bigEqual(p.LongTokenClaimableFundingAmountPerSize, other.LongTokenClaimableFundingAmountPerSize) &&
		bigEqual(p.ShortTokenClaimableFundingAmountPerSize, other.ShortTokenClaimableFundingAmountPerSize) &&
		p.ModifiedAt == other.ModifiedAt &&
		floatEqual(p.EntryPrice, other.EntryPrice) &&
		floatEqual(p.Leverage, other.Leverage) &&
		floatEqual(p.InitialCollateralAmount, other.InitialCollateralAmount) &&
		floatEqual(p.InitialCollateralAmountUSD, other.InitialCollateralAmountUSD)
}

func (p Position) String() string {
	return fmt.Sprintf("Position(key=%s, market=%s, entry=%.4f, sizeUSD=%s, collateral=%s %s)",
		p.Key(), p.Market.Hex(), p.EntryPrice, p.SizeUSD, p.CollateralAmount, p.CollateralSymbol)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func floatEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < floatTolerance
}
