package blockchain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

const (
	// ArbitrumChainID is the chain this library reads GMX v2 state from.
	ArbitrumChainID = 42161

	Multicall3Address    = "0xcA11bde05977b3631167028862bE2a173976CA11"
	GMXReaderAddress     = "0xf60becbba223EEA9495Da3f606753867eC10d139"
	GMXDataStoreAddress  = "0xFD70de6b91282D8017aA4E741e9Ae325CAb992d8"
	NativeCurrencySymbol = "ETH"
)

var (
	Multicall3   = common.HexToAddress(Multicall3Address)
	GMXReader    = common.HexToAddress(GMXReaderAddress)
	GMXDataStore = common.HexToAddress(GMXDataStoreAddress)
)

// DefaultCollateralTokens is the collateral table checked by balance
// aggregation when the caller does not configure its own.
var DefaultCollateralTokens = []outbound.ERC20Token{
	{Symbol: "WBTC", Address: common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f")},
	{Symbol: "USDC", Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")},
	{Symbol: "USDC.e", Address: common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8")},
}
