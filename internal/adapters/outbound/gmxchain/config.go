package gmxchain

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain"
)

// Config holds configuration for the chain-reading adapter.
type Config struct {
	// Reader is the GMX v2 Reader contract address.
	Reader common.Address

	// DataStore is the GMX v2 DataStore contract address.
	DataStore common.Address

	// MaxPositions is the end index passed to getAccountPositions. Accounts
	// holding more open positions than this are out of practical range.
	MaxPositions uint64

	// Logger is the structured logger for the adapter.
	Logger *slog.Logger
}

// ConfigDefaults returns a config wired for GMX v2 on Arbitrum.
func ConfigDefaults() Config {
	return Config{
		Reader:       blockchain.GMXReader,
		DataStore:    blockchain.GMXDataStore,
		MaxPositions: 1000,
		Logger:       slog.Default(),
	}
}

func applyDefaults(config *Config) {
	defaults := ConfigDefaults()
	if config.Reader == (common.Address{}) {
		config.Reader = defaults.Reader
	}
	if config.DataStore == (common.Address{}) {
		config.DataStore = defaults.DataStore
	}
	if config.MaxPositions == 0 {
		config.MaxPositions = defaults.MaxPositions
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}
