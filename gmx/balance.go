package gmx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBalance is one entry of a collateral balance read. The native currency
// entry uses the zero address as Token.
type TokenBalance struct {
	Symbol   string
	Token    common.Address
	Amount   *big.Int
	Decimals uint8
	// Display is Amount adjusted by Decimals into human units.
	Display float64
}

// IsNative reports whether the entry is the native currency balance.
func (b TokenBalance) IsNative() bool {
	return b.Token == (common.Address{})
}

func (b TokenBalance) String() string {
	if b.IsNative() {
		return fmt.Sprintf("TokenBalance(%s, native, %f)", b.Symbol, b.Display)
	}
	return fmt.Sprintf("TokenBalance(%s, %s, %f)", b.Symbol, b.Token.Hex(), b.Display)
}

// NewTokenBalance builds a balance entry, deriving the display amount.
func NewTokenBalance(symbol string, token common.Address, amount *big.Int, decimals uint8) TokenBalance {
	return TokenBalance{
		Symbol:   symbol,
		Token:    token,
		Amount:   amount,
		Decimals: decimals,
		Display:  DisplayAmount(amount, decimals),
	}
}

// NewNativeBalance builds the native currency entry (18 decimals, zero
// token address).
func NewNativeBalance(symbol string, amount *big.Int) TokenBalance {
	return NewTokenBalance(symbol, common.Address{}, amount, 18)
}

// DisplayAmount converts a raw integer token amount into human units.
// A nil amount converts to zero.
func DisplayAmount(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
