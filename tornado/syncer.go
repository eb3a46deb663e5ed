// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"context"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
)

// Commitment is one observed deposit.
type Commitment struct {
	BlockNumber uint64
	TxHash      common.Hash
	Commitment  [32]byte
	LeafIndex   uint32
	Timestamp   uint64
}

// Nullifier is one observed withdrawal.
type Nullifier struct {
	BlockNumber uint64
	TxHash      common.Hash
	Nullifier   [32]byte
	To          common.Address
	Fee         *big.Int
	Timestamp   uint64
}

// Syncer fetches pool events from a chain data source.
type Syncer interface {
	LatestBlock(ctx context.Context) (uint64, error)
	SyncCommitments(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]Commitment, error)
	SyncNullifiers(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]Nullifier, error)
}

// RpcSyncer fetches pool events from a chain client in block batches.
type RpcSyncer struct {
	client    evm.Client
	batchSize uint64
	log       log.Logger
}

// NewRpcSyncer builds an RPC-backed syncer.
func NewRpcSyncer(client evm.Client, logger log.Logger) *RpcSyncer {
	return &RpcSyncer{client: client, batchSize: 10000, log: logger}
}

// LatestBlock returns the chain head height.
func (s *RpcSyncer) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

// SyncCommitments fetches Deposit events for the pool contract.
func (s *RpcSyncer) SyncCommitments(ctx context.Context, contract common.Address,
	fromBlock, toBlock uint64) ([]Commitment, error) {

	var out []Commitment
	err := s.walkLogs(ctx, contract, fromBlock, toBlock, abis.Tornado.EventID("Deposit"),
		func(lg *types.Log) {
			var event abis.DepositEvent
			if err := abis.Tornado.UnpackIntoInterface(&event, "Deposit", lg.Data); err != nil {
				s.log.Warn("failed to decode Deposit event", "err", err)
				return
			}
			// The commitment is the indexed topic.
			var commitment [32]byte
			if len(lg.Topics) > 1 {
				commitment = lg.Topics[1]
			}

			out = append(out, Commitment{
				BlockNumber: lg.BlockNumber,
				TxHash:      lg.TxHash,
				Commitment:  commitment,
				LeafIndex:   event.LeafIndex,
				Timestamp:   event.Timestamp.Uint64(),
			})
		})
	return out, err
}

// SyncNullifiers fetches Withdrawal events for the pool contract.
func (s *RpcSyncer) SyncNullifiers(ctx context.Context, contract common.Address,
	fromBlock, toBlock uint64) ([]Nullifier, error) {

	var out []Nullifier
	err := s.walkLogs(ctx, contract, fromBlock, toBlock, abis.Tornado.EventID("Withdrawal"),
		func(lg *types.Log) {
			var event abis.WithdrawalEvent
			if err := abis.Tornado.UnpackIntoInterface(&event, "Withdrawal", lg.Data); err != nil {
				s.log.Warn("failed to decode Withdrawal event", "err", err)
				return
			}

			out = append(out, Nullifier{
				BlockNumber: lg.BlockNumber,
				TxHash:      lg.TxHash,
				Nullifier:   event.NullifierHash,
				To:          event.To,
				Fee:         event.Fee,
				Timestamp:   0,
			})
		})
	return out, err
}

func (s *RpcSyncer) walkLogs(ctx context.Context, contract common.Address,
	fromBlock, toBlock uint64, topic0 common.Hash, handle func(*types.Log)) error {

	for current := fromBlock; current <= toBlock; {
		batchEnd := current + s.batchSize - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}

		logs, err := s.client.FilterLogs(ctx, evm.FilterQuery{
			FromBlock: current,
			ToBlock:   batchEnd,
			Addresses: []common.Address{contract},
			Topics:    [][]common.Hash{{topic0}},
		})
		if err != nil {
			return err
		}

		for i := range logs {
			handle(&logs[i])
		}

		current = batchEnd + 1
	}
	return nil
}

// ChainedSyncer walks a ranked list of syncers, drawing each block segment
// from the first syncer that covers it.
type ChainedSyncer struct {
	syncers []Syncer
	log     log.Logger
}

// NewChainedSyncer builds a chained syncer; members are queried first to
// last.
func NewChainedSyncer(syncers []Syncer, logger log.Logger) *ChainedSyncer {
	return &ChainedSyncer{syncers: syncers, log: logger}
}

// LatestBlock returns the highest block any member knows of.
func (c *ChainedSyncer) LatestBlock(ctx context.Context) (uint64, error) {
	var max uint64
	for _, syncer := range c.syncers {
		block, err := syncer.LatestBlock(ctx)
		if err != nil {
			continue
		}
		if block > max {
			max = block
		}
	}
	return max, nil
}

// SyncCommitments draws each range segment from the first covering member.
func (c *ChainedSyncer) SyncCommitments(ctx context.Context, contract common.Address,
	fromBlock, toBlock uint64) ([]Commitment, error) {

	var all []Commitment
	err := c.segments(ctx, fromBlock, toBlock, func(s Syncer, from, to uint64) error {
		got, err := s.SyncCommitments(ctx, contract, from, to)
		if err != nil {
			return err
		}
		all = append(all, got...)
		return nil
	})
	return all, err
}

// SyncNullifiers draws each range segment from the first covering member.
func (c *ChainedSyncer) SyncNullifiers(ctx context.Context, contract common.Address,
	fromBlock, toBlock uint64) ([]Nullifier, error) {

	var all []Nullifier
	err := c.segments(ctx, fromBlock, toBlock, func(s Syncer, from, to uint64) error {
		got, err := s.SyncNullifiers(ctx, contract, from, to)
		if err != nil {
			return err
		}
		all = append(all, got...)
		return nil
	})
	return all, err
}

func (c *ChainedSyncer) segments(ctx context.Context, fromBlock, toBlock uint64,
	draw func(Syncer, uint64, uint64) error) error {

	currentFrom := fromBlock
	for i, syncer := range c.syncers {
		if currentFrom > toBlock {
			break
		}

		latest, err := syncer.LatestBlock(ctx)
		if err != nil {
			c.log.Warn("syncer latest_block failed", "index", i, "err", err)
			continue
		}
		if latest < currentFrom {
			continue
		}

		rangeEnd := latest
		if rangeEnd > toBlock {
			rangeEnd = toBlock
		}
		if err := draw(syncer, currentFrom, rangeEnd); err != nil {
			c.log.Warn("syncer failed", "index", i, "err", err)
		} else {
			currentFrom = rangeEnd + 1
		}
	}
	return nil
}
