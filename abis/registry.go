// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abis

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// RelayerRegisteredEvent mirrors the relayer registry's registration log.
type RelayerRegisteredEvent struct {
	Relayer        [32]byte
	EnsName        string
	RelayerAddress common.Address
	StakedAmount   *big.Int
}

// AggregatorRelayer is one row of the relayer aggregator's bulk query.
type AggregatorRelayer struct {
	Owner        common.Address `abi:"owner"`
	Balance      *big.Int       `abi:"balance"`
	IsRegistered bool           `abi:"isRegistered"`
	Records      [20]string     `abi:"records"`
}

const relayerRegistryABIJSON = `[
  {"type":"event","name":"RelayerRegistered","inputs":[
    {"name":"relayer","type":"bytes32","indexed":false},
    {"name":"ensName","type":"string","indexed":false},
    {"name":"relayerAddress","type":"address","indexed":false},
    {"name":"stakedAmount","type":"uint256","indexed":false}]}]`

const relayerAggregatorABIJSON = `[
  {"type":"function","name":"relayersData","stateMutability":"view","inputs":[
    {"name":"_relayers","type":"bytes32[]"},
    {"name":"_subdomains","type":"string[]"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"owner","type":"address"},
    {"name":"balance","type":"uint256"},
    {"name":"isRegistered","type":"bool"},
    {"name":"records","type":"string[20]"}]}]}]`

// RelayerRegistry is the on-chain relayer registry ABI surface.
var RelayerRegistry = ParseABI(relayerRegistryABIJSON)

// RelayerAggregator is the relayer aggregator ABI surface.
var RelayerAggregator = ParseABI(relayerAggregatorABIJSON)
