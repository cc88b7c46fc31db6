package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
)

// TickerPrice is one signed oracle price from the GMX price API. Min and Max
// are scaled by 10^(30 - token decimals), the GMX price factor.
type TickerPrice struct {
	TokenSymbol string
	Token       common.Address
	Min         *big.Int
	Max         *big.Int
}

// Mid returns the human-unit midpoint of Min and Max for a token with the
// given decimals.
func (p TickerPrice) Mid(decimals uint8) float64 {
	if p.Min == nil || p.Max == nil {
		return 0
	}
	sum := new(big.Int).Add(p.Min, p.Max)
	mid := new(big.Int).Rsh(sum, 1)
	// Prices carry 30-decimals USD scaling minus the token's own decimals.
	return gmx.DisplayAmount(mid, 30-decimals)
}

// PriceProvider serves current oracle ticker prices keyed by token address.
type PriceProvider interface {
	TickerPrices(ctx context.Context) (map[common.Address]TickerPrice, error)
}
