package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that PositionReader implements outbound.PositionReader.
var _ outbound.PositionReader = (*PositionReader)(nil)

// PositionReader serves configured raw position records, market composition
// and token metadata.
type PositionReader struct {
	mu sync.RWMutex

	positions map[common.Address][]outbound.RawPosition
	markets   map[common.Address]outbound.MarketInfo
	metadata  map[common.Address]outbound.TokenMetadata

	positionsErr error
	marketErr    error
	metadataErr  error
}

func NewPositionReader() *PositionReader {
	return &PositionReader{
		positions: make(map[common.Address][]outbound.RawPosition),
		markets:   make(map[common.Address]outbound.MarketInfo),
		metadata:  make(map[common.Address]outbound.TokenMetadata),
	}
}

// SetPositions configures the raw records served for an account.
func (r *PositionReader) SetPositions(account common.Address, positions []outbound.RawPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[account] = positions
}

// SetMarket configures the composition of one market.
func (r *PositionReader) SetMarket(info outbound.MarketInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[info.Market] = info
}

// SetTokenMetadata configures symbol and decimals for one token.
func (r *PositionReader) SetTokenMetadata(token common.Address, symbol string, decimals uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[token] = outbound.TokenMetadata{Symbol: symbol, Decimals: decimals}
}

// SetPositionsError makes raw position reads fail.
func (r *PositionReader) SetPositionsError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positionsErr = err
}

// SetMarketError makes market resolution fail.
func (r *PositionReader) SetMarketError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marketErr = err
}

func (r *PositionReader) RawAccountPositions(_ context.Context, account common.Address) ([]outbound.RawPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.positionsErr != nil {
		return nil, r.positionsErr
	}
	return append([]outbound.RawPosition(nil), r.positions[account]...), nil
}

func (r *PositionReader) Market(_ context.Context, market common.Address) (outbound.MarketInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.marketErr != nil {
		return outbound.MarketInfo{}, r.marketErr
	}
	info, ok := r.markets[market]
	if !ok {
		return outbound.MarketInfo{}, fmt.Errorf("unknown market %s", market.Hex())
	}
	return info, nil
}

func (r *PositionReader) TokenMetadata(_ context.Context, tokens []common.Address) (map[common.Address]outbound.TokenMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.metadataErr != nil {
		return nil, r.metadataErr
	}

	out := make(map[common.Address]outbound.TokenMetadata, len(tokens))
	for _, token := range tokens {
		if meta, ok := r.metadata[token]; ok {
			out[token] = meta
		}
	}
	return out, nil
}
