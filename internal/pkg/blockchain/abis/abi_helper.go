// Package abis holds the contract ABI fragments this library calls: the GMX
// v2 Reader views, Multicall3 aggregate3 and the ERC20 metadata/balance
// surface. Each fragment carries only the methods actually used.
package abis

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseABI parses an ABI JSON fragment into go-ethereum's representation.
func ParseABI(abiJSON string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
