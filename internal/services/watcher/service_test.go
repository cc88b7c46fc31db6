package watcher

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/adapters/outbound/memory"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000ABCD0")

func position(symbol string, isLong bool, collateral int64) gmx.Position {
	return gmx.Position{
		Account:          account,
		MarketSymbol:     symbol,
		IsLong:           isLong,
		SizeUSD:          big.NewInt(1000),
		SizeInTokens:     big.NewInt(1),
		CollateralAmount: big.NewInt(collateral),
	}
}

func newTestWatcher(t *testing.T, source *memory.PositionSource, config Config) *Service {
	t.Helper()

	if config.PollInterval == 0 {
		config.PollInterval = time.Millisecond
	}
	service, err := NewService(source, account, config)
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	return service
}

func collectChanges(t *testing.T, service *Service, want int) []gmx.Change {
	t.Helper()

	var changes []gmx.Change
	timeout := time.After(2 * time.Second)
	for len(changes) < want {
		select {
		case change, ok := <-service.Changes():
			if !ok {
				t.Fatalf("channel closed after %d changes, want %d (err: %v)", len(changes), want, service.Err())
			}
			changes = append(changes, change)
		case <-timeout:
			t.Fatalf("timed out after %d changes, want %d", len(changes), want)
		}
	}
	return changes
}

func TestService_EmitsOnEachDistinctSnapshot(t *testing.T) {
	s0 := []gmx.Position{position("ETH", true, 100)}
	s1 := []gmx.Position{position("ETH", true, 200)}
	s2 := []gmx.Position{position("ETH", true, 200), position("BTC", false, 50)}

	source := memory.NewPositionSource()
	source.EnqueueSnapshot(s0) // seed
	source.EnqueueSnapshot(s1)
	source.EnqueueSnapshot(s1) // unchanged, must not emit
	source.EnqueueSnapshot(s2)

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer service.Stop()

	changes := collectChanges(t, service, 2)

	if !gmx.SamePositions(changes[0].Before, s0) || !gmx.SamePositions(changes[0].After, s1) {
		t.Errorf("first change = (%d,%d) positions, want (s0,s1)", len(changes[0].Before), len(changes[0].After))
	}
	if !gmx.SamePositions(changes[1].Before, s1) || !gmx.SamePositions(changes[1].After, s2) {
		t.Errorf("second change = (%d,%d) positions, want (s1,s2)", len(changes[1].Before), len(changes[1].After))
	}
}

func TestService_NoChangeNoEmit(t *testing.T) {
	snapshot := []gmx.Position{position("ETH", true, 100)}

	source := memory.NewPositionSource()
	source.EnqueueSnapshot(snapshot)

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer service.Stop()

	select {
	case change := <-service.Changes():
		t.Fatalf("unexpected change: %v", change)
	case <-time.After(20 * time.Millisecond):
	}

	if source.Calls() < 2 {
		t.Errorf("calls = %d, want polling to continue past the seed", source.Calls())
	}
}

func TestService_OrderInsensitiveComparison(t *testing.T) {
	a := position("ETH", true, 100)
	b := position("BTC", false, 50)

	source := memory.NewPositionSource()
	source.EnqueueSnapshot([]gmx.Position{a, b})
	source.EnqueueSnapshot([]gmx.Position{b, a})

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer service.Stop()

	select {
	case change := <-service.Changes():
		t.Fatalf("reordered snapshot must not emit, got %v", change)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestService_SeedFailureFailsStart(t *testing.T) {
	source := memory.NewPositionSource()
	source.EnqueueError(errors.New("rpc down"))

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded with failed seed read")
	}

	if _, ok := <-service.Changes(); ok {
		t.Error("change channel must be closed after failed start")
	}
}

func TestService_TransientFailureKeepsPolling(t *testing.T) {
	s0 := []gmx.Position{position("ETH", true, 100)}
	s1 := []gmx.Position{position("ETH", true, 200)}

	source := memory.NewPositionSource()
	source.EnqueueSnapshot(s0)
	source.EnqueueError(errors.New("rpc down"))
	source.EnqueueSnapshot(s1)

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer service.Stop()

	changes := collectChanges(t, service, 1)
	if !gmx.SamePositions(changes[0].Before, s0) || !gmx.SamePositions(changes[0].After, s1) {
		t.Error("change after transient failure must compare against the last good snapshot")
	}
	if service.Err() != nil {
		t.Errorf("Err() = %v, want nil for transient failure", service.Err())
	}
}

func TestService_FailureCapTerminates(t *testing.T) {
	source := memory.NewPositionSource()
	source.EnqueueSnapshot([]gmx.Position{position("ETH", true, 100)})
	source.EnqueueError(errors.New("rpc down"))

	service := newTestWatcher(t, source, Config{MaxConsecutiveFailures: 2})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	select {
	case _, ok := <-service.Changes():
		if ok {
			t.Fatal("unexpected change before termination")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not terminate at the failure cap")
	}

	if service.Err() == nil {
		t.Error("Err() must report the terminal error")
	}
	service.Stop()
}

func TestService_StopClosesChannel(t *testing.T) {
	source := memory.NewPositionSource()
	source.EnqueueSnapshot([]gmx.Position{position("ETH", true, 100)})

	service := newTestWatcher(t, source, Config{})
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := service.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	select {
	case _, ok := <-service.Changes():
		if ok {
			return // buffered change drained before close is fine
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Stop")
	}

	if service.Err() != nil {
		t.Errorf("Err() = %v, want nil after clean stop", service.Err())
	}
}
