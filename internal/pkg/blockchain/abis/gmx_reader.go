package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetGMXReaderABI returns the subset of the GMX v2 Reader contract used by
// this library: open position enumeration and market resolution.
func GetGMXReaderABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "dataStore", "type": "address"},
				{"name": "account", "type": "address"},
				{"name": "start", "type": "uint256"},
				{"name": "end", "type": "uint256"}
			],
			"name": "getAccountPositions",
			"outputs": [
				{
					"components": [
						{
							"components": [
								{"name": "account", "type": "address"},
								{"name": "market", "type": "address"},
								{"name": "collateralToken", "type": "address"}
							],
							"name": "addresses",
							"type": "tuple"
						},
						{
							"components": [
								{"name": "sizeInUsd", "type": "uint256"},
								{"name": "sizeInTokens", "type": "uint256"},
								{"name": "collateralAmount", "type": "uint256"},
								{"name": "borrowingFactor", "type": "uint256"},
								{"name": "fundingFeeAmountPerSize", "type": "uint256"},
								{"name": "longTokenClaimableFundingAmountPerSize", "type": "uint256"},
								{"name": "shortTokenClaimableFundingAmountPerSize", "type": "uint256"},
								{"name": "increasedAtTime", "type": "uint256"},
								{"name": "decreasedAtTime", "type": "uint256"}
							],
							"name": "numbers",
							"type": "tuple"
						},
						{
							"components": [
								{"name": "isLong", "type": "bool"}
							],
							"name": "flags",
							"type": "tuple"
						}
					],
					"name": "",
					"type": "tuple[]"
				}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "dataStore", "type": "address"},
				{"name": "key", "type": "address"}
			],
			"name": "getMarket",
			"outputs": [
				{
					"components": [
						{"name": "marketToken", "type": "address"},
						{"name": "indexToken", "type": "address"},
						{"name": "longToken", "type": "address"},
						{"name": "shortToken", "type": "address"}
					],
					"name": "",
					"type": "tuple"
				}
			],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
