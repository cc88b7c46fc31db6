// Package headsub provides a WebSocket eth_newHeads subscriber with
// automatic reconnection.
package headsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// Compile-time check that Subscriber implements outbound.HeadSubscriber.
var _ outbound.HeadSubscriber = (*Subscriber)(nil)

// Config holds configuration for the head subscriber.
type Config struct {
	// WebSocketURL is the wss endpoint of the node.
	WebSocketURL string

	// ChannelBufferSize caps undelivered heads. Heads past the cap are
	// dropped, the consumer only needs a recent one.
	ChannelBufferSize int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	ReadTimeout  time.Duration
	PingInterval time.Duration

	Logger *slog.Logger
}

func configDefaults() Config {
	return Config{
		ChannelBufferSize: 16,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		ReadTimeout:       60 * time.Second,
		PingInterval:      15 * time.Second,
		Logger:            slog.Default(),
	}
}

func (c *Config) applyDefaults() {
	defaults := configDefaults()
	if c.ChannelBufferSize == 0 {
		c.ChannelBufferSize = defaults.ChannelBufferSize
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = defaults.BackoffFactor
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaults.PingInterval
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
}

// Subscriber subscribes to eth_newHeads over a WebSocket connection and
// reconnects with exponential backoff when the connection drops.
type Subscriber struct {
	config Config
	logger *slog.Logger

	heads chan outbound.BlockHead
	done  chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSubscriber(config Config) (*Subscriber, error) {
	if config.WebSocketURL == "" {
		return nil, fmt.Errorf("websocket url is required")
	}
	config.applyDefaults()
	return &Subscriber{
		config: config,
		logger: config.Logger.With("component", "headsub"),
		heads:  make(chan outbound.BlockHead, config.ChannelBufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Subscribe starts the connection manager and returns the head channel.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan outbound.BlockHead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("subscriber is closed")
	}

	if s.started {
		return nil, errors.New("already subscribed")
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.connectionManager()

	return s.heads, nil
}

// Close terminates the subscription. The head channel is closed by the
// connection manager once its forwarding loop has exited, never while a send
// may still be in flight.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if !s.started {
		close(s.heads)
	}
	return nil
}

func (s *Subscriber) connectionManager() {
	defer close(s.heads)

	backoff := s.config.InitialBackoff

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connectAndSubscribe(); err != nil {
			s.logger.Warn("failed to connect", "error", err, "backoff", backoff)

			select {
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * s.config.BackoffFactor)
			if backoff > s.config.MaxBackoff {
				backoff = s.config.MaxBackoff
			}
			continue
		}

		backoff = s.config.InitialBackoff
		s.logger.Info("subscribed to new heads", "url", s.config.WebSocketURL)

		s.readLoop()

		s.logger.Warn("connection lost, reconnecting")
	}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonRPCResponse struct {
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type subscriptionParams struct {
	Result headPayload `json:"result"`
}

type headPayload struct {
	Number    string `json:"number"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

func (s *Subscriber) connectAndSubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.config.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.config.WebSocketURL, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("setting read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	req := jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("sending subscription request: %w", err)
	}

	var response jsonRPCResponse
	if err := conn.ReadJSON(&response); err != nil {
		conn.Close()
		return fmt.Errorf("reading subscription response: %w", err)
	}
	if response.Error != nil {
		conn.Close()
		return fmt.Errorf("subscription rejected: %s", response.Error.Message)
	}

	s.conn = conn
	return nil
}

func (s *Subscriber) readLoop() {
	pingTicker := time.NewTicker(s.config.PingInterval)
	defer pingTicker.Stop()

	readErr := make(chan error, 1)
	incoming := make(chan outbound.BlockHead, 1)

	go func() {
		for {
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()

			if conn == nil {
				readErr <- errors.New("connection is nil")
				return
			}

			if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
				readErr <- err
				return
			}

			var response jsonRPCResponse
			if err := conn.ReadJSON(&response); err != nil {
				readErr <- err
				return
			}

			if response.Method != "eth_subscription" || response.Params == nil {
				continue
			}

			var params subscriptionParams
			if err := json.Unmarshal(response.Params, &params); err != nil {
				s.logger.Warn("malformed head notification", "error", err)
				continue
			}

			head, err := parseHead(params.Result)
			if err != nil {
				s.logger.Warn("malformed head payload", "error", err)
				continue
			}

			select {
			case incoming <- head:
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-s.done:
			s.closeConnection()
			return
		case <-s.ctx.Done():
			s.closeConnection()
			return
		case err := <-readErr:
			s.logger.Warn("read error", "error", err)
			s.closeConnection()
			return
		case head := <-incoming:
			select {
			case s.heads <- head:
				s.logger.Debug("head forwarded", "block", head.Number)
			default:
				s.logger.Warn("head channel full, dropping", "block", head.Number)
			}
		case <-pingTicker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()

			if conn != nil {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					s.logger.Warn("ping failed", "error", err)
					s.closeConnection()
					return
				}
			}
		}
	}
}

func (s *Subscriber) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func parseHead(payload headPayload) (outbound.BlockHead, error) {
	number, err := parseHexUint(payload.Number)
	if err != nil {
		return outbound.BlockHead{}, fmt.Errorf("parsing block number %q: %w", payload.Number, err)
	}
	timestamp, err := parseHexUint(payload.Timestamp)
	if err != nil {
		return outbound.BlockHead{}, fmt.Errorf("parsing timestamp %q: %w", payload.Timestamp, err)
	}
	return outbound.BlockHead{
		Number: number,
		Hash:   common.HexToHash(payload.Hash),
		Time:   timestamp,
	}, nil
}

func parseHexUint(hexNum string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(hexNum, "0x"), 16, 64)
}
