package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that PriceProvider implements outbound.PriceProvider.
var _ outbound.PriceProvider = (*PriceProvider)(nil)

// PriceProvider serves a fixed ticker table.
type PriceProvider struct {
	mu     sync.RWMutex
	prices map[common.Address]outbound.TickerPrice
	err    error
}

func NewPriceProvider() *PriceProvider {
	return &PriceProvider{prices: make(map[common.Address]outbound.TickerPrice)}
}

// SetPrice configures the ticker for one token. min and max carry the GMX
// price factor 10^(30 - decimals).
func (p *PriceProvider) SetPrice(token common.Address, symbol string, min, max *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[token] = outbound.TickerPrice{
		TokenSymbol: symbol,
		Token:       token,
		Min:         min,
		Max:         max,
	}
}

// SetError makes ticker reads fail.
func (p *PriceProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *PriceProvider) TickerPrices(_ context.Context) (map[common.Address]outbound.TickerPrice, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.err != nil {
		return nil, p.err
	}

	out := make(map[common.Address]outbound.TickerPrice, len(p.prices))
	for k, v := range p.prices {
		out[k] = v
	}
	return out, nil
}
