// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"github.com/luxfi/geth/common"
)

// ChainConfig is the per-chain deployment configuration.
type ChainConfig struct {
	// ID is the EIP-155 chain id.
	ID uint64
	// SmartWallet is the shielded pool contract address on this chain.
	SmartWallet common.Address
	// DeploymentBlock is the block the contract was deployed at.
	DeploymentBlock uint64
	// PoiStartBlock is the block proof-of-innocence went live on this chain.
	PoiStartBlock uint64
	// SubsquidEndpoint is the GraphQL endpoint for fast syncing.
	SubsquidEndpoint string
	// PoiEndpoint is the POI aggregator endpoint for this chain.
	PoiEndpoint string
}

// MainnetConfig is the Ethereum mainnet deployment.
var MainnetConfig = ChainConfig{
	ID:               1,
	SmartWallet:      common.HexToAddress("0xFA7093CDD9EE6932B4eb2c9e1cde7CE00B1FA4b9"),
	DeploymentBlock:  14693013,
	PoiStartBlock:    18514200,
	SubsquidEndpoint: "https://rail-squid.squids.live/squid-railgun-ethereum-v2/v/v1/graphql",
	PoiEndpoint:      "https://ppoi-agg.horsewithsixlegs.xyz/",
}

// SepoliaConfig is the Sepolia testnet deployment.
var SepoliaConfig = ChainConfig{
	ID:               11155111,
	SmartWallet:      common.HexToAddress("0xeCFCf3b4eC647c4Ca6D49108b311b7a7C9543fea"),
	DeploymentBlock:  5784774,
	PoiStartBlock:    5944700,
	SubsquidEndpoint: "https://rail-squid.squids.live/squid-railgun-eth-sepolia-v2/v/v1/graphql",
	PoiEndpoint:      "https://ppoi-agg.horsewithsixlegs.xyz/",
}

var chainConfigs = []ChainConfig{MainnetConfig, SepoliaConfig}

// GetChainConfig returns the configuration for a chain id, if known.
func GetChainConfig(chainID uint64) (ChainConfig, bool) {
	for _, cfg := range chainConfigs {
		if cfg.ID == chainID {
			return cfg, true
		}
	}
	return ChainConfig{}, false
}
