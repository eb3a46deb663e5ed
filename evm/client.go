// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package evm defines the narrow chain-client interface the engine consumes:
// block height, log range queries, single-address contract calls, gas
// estimation and transaction submission. RPC-backed implementations live
// outside this module.
package evm

import (
	"context"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// FilterQuery selects a block range of logs for a set of addresses.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

// CallMsg is a read-only contract call.
type CallMsg struct {
	To   common.Address
	Data []byte
}

// TxMsg is a transaction to estimate or submit.
type TxMsg struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Client is the chain access surface.
type Client interface {
	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)
	// FilterLogs returns the logs matching q, in chain order.
	FilterLogs(ctx context.Context, q FilterQuery) ([]types.Log, error)
	// CallContract executes a read-only call at the latest block.
	CallContract(ctx context.Context, msg CallMsg) ([]byte, error)
	// EstimateGas estimates the gas limit for msg.
	EstimateGas(ctx context.Context, msg TxMsg) (uint64, error)
	// SuggestGasPrice returns the current gas price in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// SendTransaction signs and submits msg, returning the transaction hash.
	SendTransaction(ctx context.Context, msg TxMsg) (common.Hash, error)
}
