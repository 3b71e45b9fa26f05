package staking

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Allocation events of the Graph Protocol Staking contract. Only topic0 and the
// indexed subgraphDeploymentID (topic 2) are read.
const stakingABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "indexer", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "subgraphDeploymentID", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "epoch", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokens", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "allocationID", "type": "address"},
      {"indexed": false, "internalType": "bytes32", "name": "metadata", "type": "bytes32"}
    ],
    "name": "AllocationCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "indexer", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "subgraphDeploymentID", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "epoch", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokens", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "allocationID", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "effectiveAllocation", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "bytes32", "name": "poi", "type": "bytes32"},
      {"indexed": false, "internalType": "bool", "name": "isPublic", "type": "bool"}
    ],
    "name": "AllocationClosed",
    "type": "event"
  }
]`

var (
	stakingABI     abi.ABI
	stakingABIOnce sync.Once
	stakingABIErr  error
)

// StakingABI returns the parsed allocation event ABI.
func StakingABI() (abi.ABI, error) {
	stakingABIOnce.Do(func() {
		stakingABI, stakingABIErr = abi.JSON(strings.NewReader(stakingABIJSON))
	})
	return stakingABI, stakingABIErr
}
