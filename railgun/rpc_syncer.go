// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
)

// RpcSyncer streams smart wallet events from a chain client, fetching logs
// in fixed-size block batches with a minimum spacing between requests.
type RpcSyncer struct {
	client    evm.Client
	chain     ChainConfig
	batchSize uint64
	spacing   time.Duration
	log       log.Logger
}

// NewRpcSyncer builds a syncer over a chain client.
func NewRpcSyncer(client evm.Client, chain ChainConfig, logger log.Logger) *RpcSyncer {
	return &RpcSyncer{
		client:    client,
		chain:     chain,
		batchSize: 10000,
		spacing:   100 * time.Millisecond,
		log:       logger,
	}
}

// WithBatchSize overrides the log query batch size.
func (s *RpcSyncer) WithBatchSize(size uint64) *RpcSyncer {
	s.batchSize = size
	return s
}

// LatestBlock returns the chain head height.
func (s *RpcSyncer) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

// Sync streams events for [fromBlock, toBlock]. A single goroutine walks
// the batches in order, so events arrive in chain order; the channel closes
// when the range is exhausted, the context is cancelled, or a fetch fails.
func (s *RpcSyncer) Sync(ctx context.Context, fromBlock, toBlock uint64) (<-chan SyncEvent, error) {
	s.log.Info("starting rpc sync", "from", fromBlock, "to", toBlock)

	out := make(chan SyncEvent, 64)
	go func() {
		defer close(out)

		for current := fromBlock; current <= toBlock; {
			batchEnd := current + s.batchSize - 1
			if batchEnd > toBlock {
				batchEnd = toBlock
			}

			start := time.Now()
			logs, err := s.client.FilterLogs(ctx, evm.FilterQuery{
				FromBlock: current,
				ToBlock:   batchEnd,
				Addresses: []common.Address{s.chain.SmartWallet},
			})
			if err != nil {
				s.log.Warn("failed to fetch logs", "from", current, "to", batchEnd, "err", err)
				return
			}

			if len(logs) != 0 {
				s.log.Info("fetched logs", "count", len(logs), "from", current, "to", batchEnd)
			}

			for i := range logs {
				event, ok := s.decode(&logs[i])
				if !ok {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}

			// Pace requests so free-tier RPC endpoints are not hammered.
			if wait := s.spacing - time.Since(start); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}

			current = batchEnd + 1
		}
	}()

	return out, nil
}

func (s *RpcSyncer) decode(lg *types.Log) (SyncEvent, bool) {
	if len(lg.Topics) == 0 {
		return SyncEvent{}, false
	}

	event := SyncEvent{Block: lg.BlockNumber}

	switch lg.Topics[0] {
	case abis.Railgun.EventID("Shield"):
		var shield abis.ShieldEvent
		if err := abis.Railgun.DecodeEvent(&shield, "Shield", lg); err != nil {
			s.log.Warn("failed to decode Shield event", "err", err)
			return SyncEvent{}, false
		}
		event.Shield = &shield
	case abis.Railgun.EventID("Transact"):
		var transact abis.TransactEvent
		if err := abis.Railgun.DecodeEvent(&transact, "Transact", lg); err != nil {
			s.log.Warn("failed to decode Transact event", "err", err)
			return SyncEvent{}, false
		}
		event.Transact = &transact
	case abis.Railgun.EventID("Nullified"):
		var nullified abis.NullifiedEvent
		if err := abis.Railgun.DecodeEvent(&nullified, "Nullified", lg); err != nil {
			s.log.Warn("failed to decode Nullified event", "err", err)
			return SyncEvent{}, false
		}
		event.Nullified = &nullified
	case abis.Railgun.EventID("Unshield"):
		// Unshield events are not needed: spent notes are tracked via
		// Nullified events.
		return SyncEvent{}, false
	default:
		s.log.Warn("unknown event", "topic0", lg.Topics[0])
		return SyncEvent{}, false
	}

	return event, true
}
