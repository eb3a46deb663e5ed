// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"

	log "github.com/luxfi/log"
)

// ChainedSyncer walks a ranked list of note syncers, drawing each block
// segment from the first syncer whose highest-known block covers it.
type ChainedSyncer struct {
	syncers []NoteSyncer
	log     log.Logger
}

// NewChainedSyncer builds a chained syncer. Syncers are queried in the
// order provided, first to last.
func NewChainedSyncer(syncers []NoteSyncer, logger log.Logger) *ChainedSyncer {
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

// Sync splits [fromBlock, toBlock] into per-member segments and streams
// them in order: each member covers from the current cursor up to its own
// latest block, and the next member picks up where it stopped.
func (c *ChainedSyncer) Sync(ctx context.Context, fromBlock, toBlock uint64) (<-chan SyncEvent, error) {
	type segment struct {
		syncer NoteSyncer
		from   uint64
		to     uint64
	}

	var segments []segment
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
		segments = append(segments, segment{syncer: syncer, from: currentFrom, to: rangeEnd})
		currentFrom = rangeEnd + 1
	}

	out := make(chan SyncEvent, 64)
	go func() {
		defer close(out)
		for i, seg := range segments {
			stream, err := seg.syncer.Sync(ctx, seg.from, seg.to)
			if err != nil {
				c.log.Warn("syncer failed", "index", i, "err", err)
				continue
			}
			for event := range stream {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
