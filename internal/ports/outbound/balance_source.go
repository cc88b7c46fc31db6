package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
)

// ERC20Token identifies one token of the collateral table.
type ERC20Token struct {
	Symbol  string
	Address common.Address
}

// TokenBalanceResult is one per-token outcome of a batched balance read.
// Err is set when that token's calls reverted or returned garbage while the
// batch itself succeeded.
type TokenBalanceResult struct {
	Token    ERC20Token
	Amount   *big.Int
	Decimals uint8
	Err      error
}

// BalanceReader provides the raw chain reads behind balance aggregation.
type BalanceReader interface {
	// TokenBalances reads balanceOf plus metadata for each token in one
	// batch, preserving input order. A non-nil error means the batch itself
	// failed and no per-token results are available.
	TokenBalances(ctx context.Context, account common.Address, tokens []ERC20Token) ([]TokenBalanceResult, error)

	// NativeBalance reads the native currency balance.
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// BalanceSource is the normalized balance read consumed by the client facade.
type BalanceSource interface {
	CollateralBalances(ctx context.Context, account common.Address) ([]gmx.TokenBalance, error)
}
