// Package main prints a wallet's collateral token and native balances.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	gmxtracker "github.com/archon-research/gmx-tracker"
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
	rpcURL       string
	address      common.Address
	allowPartial bool
}

func parseConfig(args []string) (cliConfig, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("collateral-balances", flag.ContinueOnError)
	rpcURL := fs.String("rpc", "", "Ethereum JSON-RPC URL (Arbitrum)")
	address := fs.String("address", "", "wallet address to read")
	allowPartial := fs.Bool("allow-partial", false, "drop tokens whose reads fail instead of failing")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		rpcURL:       *rpcURL,
		allowPartial: *allowPartial,
	}

	if cfg.rpcURL == "" {
		cfg.rpcURL = env.Get("RPC_URL", "")
	}
	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("RPC URL not provided (use -rpc flag or RPC_URL env var)")
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
		RPCURL:               cfg.rpcURL,
		Address:              cfg.address,
		AllowPartialBalances: cfg.allowPartial,
		DisableTickers:       true,
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}
	defer client.Close()

	balances, err := client.GetMyCollateralBalances(ctx)
	if err != nil {
		return fmt.Errorf("reading balances: %w", err)
	}

	for _, balance := range balances {
		fmt.Println(balance.String())
	}
	return nil
}
