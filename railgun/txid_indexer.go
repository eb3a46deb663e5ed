// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"math"

	log "github.com/luxfi/log"
)

// TxidIndexer maintains the txid Merkle trees from synced operations,
// validated against the POI aggregator.
type TxidIndexer struct {
	set         *TxidTreeSet
	syncedBlock uint64
	syncer      TransactionSyncer
}

// TxidIndexerState is the serialisable indexer snapshot.
type TxidIndexerState struct {
	TxidTree              TxidTreeSetState `json:"txidTree"`
	SyncedOperationsBlock uint64           `json:"syncedOperationsBlock"`
}

// NewTxidIndexer builds an indexer over a transaction syncer and validator.
func NewTxidIndexer(syncer TransactionSyncer, validator TxidValidator, logger log.Logger) *TxidIndexer {
	return &TxidIndexer{
		set:    NewTxidTreeSet(validator, logger),
		syncer: syncer,
	}
}

// SetState restores a snapshot.
func (x *TxidIndexer) SetState(state TxidIndexerState) error {
	if err := x.set.SetState(state.TxidTree); err != nil {
		return err
	}
	x.syncedBlock = state.SyncedOperationsBlock
	return nil
}

// State snapshots the indexer.
func (x *TxidIndexer) State() TxidIndexerState {
	return TxidIndexerState{
		TxidTree:              x.set.State(),
		SyncedOperationsBlock: x.syncedBlock,
	}
}

// Tree returns a txid tree, if present.
func (x *TxidIndexer) Tree(number uint32) (*TxidTree, bool) {
	return x.set.Tree(number)
}

// TxidPosition returns the txid's position in the txid trees, if validated.
func (x *TxidIndexer) TxidPosition(txid Txid) (TxidPosition, bool) {
	return x.set.TxidPosition(txid)
}

// UtxoPosition returns the txid's first-output UTXO position, if validated.
func (x *TxidIndexer) UtxoPosition(txid Txid) (TxidPosition, bool) {
	return x.set.UtxoPosition(txid)
}

// Sync enqueues operations up to the chain head and advances the tree set.
func (x *TxidIndexer) Sync(ctx context.Context) error {
	return x.SyncTo(ctx, math.MaxUint64)
}

// SyncTo enqueues operations in [synced+1, min(toBlock, head)] and then
// advances the tree set against the aggregator.
func (x *TxidIndexer) SyncTo(ctx context.Context, toBlock uint64) error {
	fromBlock := x.syncedBlock + 1

	latest, err := x.syncer.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if toBlock > latest {
		toBlock = latest
	}

	if fromBlock <= toBlock {
		ops, blocks, err := x.syncer.Sync(ctx, fromBlock, toBlock)
		if err != nil {
			return err
		}
		for i, op := range ops {
			block := uint64(0)
			if i < len(blocks) {
				block = blocks[i]
			}
			x.set.Enqueue(op, block)
		}
		x.syncedBlock = toBlock
	}

	return x.set.Update(ctx)
}

// Reset clears the indexer state.
func (x *TxidIndexer) Reset() {
	x.set.Reset()
	x.syncedBlock = 0
}
