// Package main watches a wallet's GMX v2 positions and prints every change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	gmxtracker "github.com/archon-research/gmx-tracker"
	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/pkg/env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	rpcURL   string
	wsURL    string
	address  common.Address
	interval time.Duration
	failCap  int
}

func parseConfig(args []string) (cliConfig, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("position-watcher", flag.ContinueOnError)
	rpcURL := fs.String("rpc", "", "Ethereum JSON-RPC URL (Arbitrum)")
	wsURL := fs.String("ws", "", "optional WebSocket URL for new-head ticks")
	address := fs.String("address", "", "wallet address to watch")
	interval := fs.Duration("interval", 10*time.Second, "poll interval")
	failCap := fs.Int("max-failures", 0, "stop after N consecutive failed reads (0 = never)")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		rpcURL:   *rpcURL,
		wsURL:    *wsURL,
		interval: *interval,
		failCap:  *failCap,
	}

	if cfg.rpcURL == "" {
		cfg.rpcURL = env.Get("RPC_URL", "")
	}
	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("RPC URL not provided (use -rpc flag or RPC_URL env var)")
	}
	if cfg.wsURL == "" {
		cfg.wsURL = env.Get("WS_URL", "")
	}

	addr := *address
	if addr == "" {
		addr = env.Get("WALLET_ADDRESS", "")
	}
	if !common.IsHexAddress(addr) {
		return cliConfig{}, fmt.Errorf("wallet address not provided or malformed (use -address flag or WALLET_ADDRESS env var)")
	}
	cfg.address = common.HexToAddress(addr)

	return cfg, nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	client, err := gmxtracker.New(ctx, gmxtracker.Config{
		RPCURL:                 cfg.rpcURL,
		Address:                cfg.address,
		HeadsWSURL:             cfg.wsURL,
		MaxConsecutiveFailures: cfg.failCap,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}
	defer client.Close()

	seed, err := client.GetMyPositions(ctx)
	if err != nil {
		return fmt.Errorf("reading positions: %w", err)
	}
	logger.Info("watching", "address", cfg.address.Hex(), "positions", len(seed))
	for _, p := range seed {
		printPosition(logger, p)
	}

	watcher, err := client.PollPositions(ctx, cfg.address, cfg.interval)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-watcher.Changes():
			if !ok {
				return watcher.Err()
			}
			added, removed := gmx.DiffPositions(change.Before, change.After)
			logger.Info("positions changed",
				"before", len(change.Before),
				"after", len(change.After),
				"added", len(added),
				"removed", len(removed))
			for _, p := range change.After {
				printPosition(logger, p)
			}
		}
	}
}

func printPosition(logger *slog.Logger, p gmx.Position) {
	logger.Info("position",
		"key", p.Key(),
		"market", p.MarketSymbol,
		"side", p.Side(),
		"entryPrice", p.EntryPrice,
		"markPrice", p.MarkPrice,
		"leverage", p.Leverage,
		"collateral", p.InitialCollateralAmount,
		"collateralSymbol", p.CollateralSymbol,
		"profitPct", p.PercentProfit)
}
