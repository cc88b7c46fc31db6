// Package watcher polls an account's positions on an interval and emits a
// change event whenever consecutive snapshots differ.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Config holds configuration for the position watcher.
type Config struct {
	// PollInterval is the time between snapshot reads.
	PollInterval time.Duration

	// MaxConsecutiveFailures terminates the watcher after that many failed
	// reads in a row. Zero retries forever.
	MaxConsecutiveFailures int

	// BufferSize is the capacity of the change channel. A full buffer blocks
	// the poll loop until the consumer catches up.
	BufferSize int

	// Heads, when set, triggers an extra snapshot read on each new chain
	// head in addition to the interval ticks.
	Heads outbound.HeadSubscriber

	Logger *slog.Logger
}

func configDefaults() Config {
	return Config{
		PollInterval: 10 * time.Second,
		BufferSize:   16,
		Logger:       slog.Default(),
	}
}

func applyDefaults(config *Config) {
	defaults := configDefaults()
	if config.PollInterval == 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BufferSize == 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// Service watches one account. Changes are delivered on Changes until Stop is
// called or the failure cap is hit; the channel is closed when the loop exits.
type Service struct {
	source  outbound.PositionSource
	account common.Address
	config  Config

	changes chan gmx.Change
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	err      error
	last     []gmx.Position
	seeded   bool
	failures int

	logger *slog.Logger
}

// NewService creates a position watcher for account.
func NewService(source outbound.PositionSource, account common.Address, config Config) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("position source is required")
	}
	applyDefaults(&config)
	return &Service{
		source:  source,
		account: account,
		config:  config,
		changes: make(chan gmx.Change, config.BufferSize),
		done:    make(chan struct{}),
		logger:  config.Logger.With("component", "watcher", "account", account.Hex()),
	}, nil
}

// Start takes the seed snapshot and begins polling. A failed seed read fails
// Start instead of feeding the failure cap.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	seed, err := s.source.AccountPositions(s.ctx, s.account)
	if err != nil {
		s.cancel()
		close(s.done)
		close(s.changes)
		return fmt.Errorf("seed snapshot: %w", err)
	}
	s.mu.Lock()
	s.last = seed
	s.seeded = true
	s.mu.Unlock()

	go s.processLoop()

	s.logger.Info("position watcher started",
		"positions", len(seed),
		"pollInterval", s.config.PollInterval)
	return nil
}

// Stop terminates the poll loop and waits for it to exit.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.logger.Info("position watcher stopped")
	return nil
}

// Changes returns the channel change events are delivered on. It is closed
// when the watcher terminates.
func (s *Service) Changes() <-chan gmx.Change {
	return s.changes
}

// Err returns the terminal error after the change channel closes, or nil for
// a clean stop.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Service) processLoop() {
	defer close(s.done)
	defer close(s.changes)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var heads <-chan outbound.BlockHead
	if s.config.Heads != nil {
		ch, err := s.config.Heads.Subscribe(s.ctx)
		if err != nil {
			s.logger.Warn("head subscription unavailable, polling on interval only", "error", err)
		} else {
			heads = ch
		}
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.poll() {
				return
			}
		case head, ok := <-heads:
			if !ok {
				heads = nil
				continue
			}
			s.logger.Debug("new head", "block", head.Number)
			if !s.poll() {
				return
			}
		}
	}
}

// poll reads one snapshot and emits a change if it differs from the previous
// one. It reports false when the watcher must terminate.
func (s *Service) poll() bool {
	current, err := s.source.AccountPositions(s.ctx, s.account)
	if err != nil {
		return s.recordFailure(err)
	}

	s.mu.Lock()
	s.failures = 0
	previous := s.last
	changed := !gmx.SamePositions(previous, current)
	if changed {
		s.last = current
	}
	s.mu.Unlock()

	if !changed {
		return true
	}

	select {
	case s.changes <- gmx.Change{Before: previous, After: current}:
	case <-s.ctx.Done():
		return false
	}

	s.logger.Info("positions changed",
		"before", len(previous),
		"after", len(current))
	return true
}

func (s *Service) recordFailure(err error) bool {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	terminal := s.config.MaxConsecutiveFailures > 0 && failures >= s.config.MaxConsecutiveFailures
	if terminal {
		s.err = fmt.Errorf("%d consecutive failed reads: %w", failures, err)
	}
	s.mu.Unlock()

	if terminal {
		s.logger.Error("failure cap reached, terminating", "failures", failures, "error", err)
		return false
	}

	s.logger.Warn("snapshot read failed, keeping previous state", "failures", failures, "error", err)
	return true
}
