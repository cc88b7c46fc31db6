// Package memory provides in-memory implementations of the outbound ports
// for tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that PositionSource implements outbound.PositionSource.
var _ outbound.PositionSource = (*PositionSource)(nil)

// positionRead is one scripted outcome of AccountPositions.
type positionRead struct {
	positions []gmx.Position
	err       error
}

// PositionSource serves scripted position snapshots in FIFO order. When the
// script is exhausted the last outcome repeats, which mirrors a chain whose
// state stopped changing.
type PositionSource struct {
	mu       sync.Mutex
	script   []positionRead
	calls    int
	accounts []common.Address
}

func NewPositionSource() *PositionSource {
	return &PositionSource{}
}

// EnqueueSnapshot appends a successful read outcome.
func (s *PositionSource) EnqueueSnapshot(positions []gmx.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, positionRead{positions: positions})
}

// EnqueueError appends a failing read outcome.
func (s *PositionSource) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, positionRead{err: err})
}

// Calls returns how many reads have been served.
func (s *PositionSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Accounts returns the account of every read served so far.
func (s *PositionSource) Accounts() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Address(nil), s.accounts...)
}

func (s *PositionSource) AccountPositions(_ context.Context, account common.Address) ([]gmx.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = append(s.accounts, account)

	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++

	if idx < 0 {
		return []gmx.Position{}, nil
	}

	read := s.script[idx]
	if read.err != nil {
		return nil, read.err
	}
	return append([]gmx.Position(nil), read.positions...), nil
}
