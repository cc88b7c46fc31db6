package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that BalanceReader implements outbound.BalanceReader.
var _ outbound.BalanceReader = (*BalanceReader)(nil)

// BalanceReader serves configured token and native balances.
type BalanceReader struct {
	mu sync.RWMutex

	// balances maps token address to raw amount.
	balances map[common.Address]*big.Int
	// decimals maps token address to decimals.
	decimals map[common.Address]uint8
	// tokenErrs marks tokens whose reads fail individually.
	tokenErrs map[common.Address]error

	native    *big.Int
	nativeErr error
	batchErr  error
}

func NewBalanceReader() *BalanceReader {
	return &BalanceReader{
		balances:  make(map[common.Address]*big.Int),
		decimals:  make(map[common.Address]uint8),
		tokenErrs: make(map[common.Address]error),
	}
}

// SetTokenBalance configures the raw amount and decimals served for a token.
func (r *BalanceReader) SetTokenBalance(token common.Address, amount *big.Int, decimals uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[token] = amount
	r.decimals[token] = decimals
}

// SetTokenError makes reads of one token fail individually.
func (r *BalanceReader) SetTokenError(token common.Address, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenErrs[token] = err
}

// SetNativeBalance configures the native currency amount.
func (r *BalanceReader) SetNativeBalance(amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.native = amount
}

// SetNativeError makes native balance reads fail.
func (r *BalanceReader) SetNativeError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nativeErr = err
}

// SetBatchError makes the whole TokenBalances batch fail.
func (r *BalanceReader) SetBatchError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchErr = err
}

func (r *BalanceReader) TokenBalances(_ context.Context, _ common.Address, tokens []outbound.ERC20Token) ([]outbound.TokenBalanceResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.batchErr != nil {
		return nil, r.batchErr
	}

	results := make([]outbound.TokenBalanceResult, len(tokens))
	for i, token := range tokens {
		results[i].Token = token
		if err, ok := r.tokenErrs[token.Address]; ok {
			results[i].Err = err
			continue
		}
		results[i].Amount = r.balances[token.Address]
		results[i].Decimals = r.decimals[token.Address]
	}
	return results, nil
}

func (r *BalanceReader) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.nativeErr != nil {
		return nil, r.nativeErr
	}
	return r.native, nil
}
