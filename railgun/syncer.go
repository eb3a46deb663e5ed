// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
)

// SyncEvent is one on-chain observation delivered by a note syncer.
// Exactly one of the pointers is set.
type SyncEvent struct {
	Shield    *abis.ShieldEvent
	Transact  *abis.TransactEvent
	Nullified *abis.NullifiedEvent
	Legacy    *LegacyCommitment
	Block     uint64
	Timestamp uint64
}

// LegacyCommitment is a bare commitment from the legacy event era. Legacy
// commitments are inserted as raw leaves and never matched to accounts.
type LegacyCommitment struct {
	Hash       uint256.Int
	TreeNumber uint32
	LeafIndex  uint32
}

// OperationRecord is an operation reconstructed by a transaction syncer,
// with the tree positions needed to build txid leaves.
type OperationRecord struct {
	Nullifiers        []uint256.Int
	CommitmentHashes  []uint256.Int
	BoundParamsHash   uint256.Int
	UtxoTreeIn        uint32
	UtxoTreeOut       uint32
	UtxoOutStartIndex uint32
}

// NoteSyncer streams note-level chain events (Shield, Transact, Nullified,
// Legacy) in chain order. The channel closes when the range is exhausted or
// the source fails; sources log and stop on failure rather than surfacing
// partial-range errors.
type NoteSyncer interface {
	LatestBlock(ctx context.Context) (uint64, error)
	Sync(ctx context.Context, fromBlock, toBlock uint64) (<-chan SyncEvent, error)
}

// TransactionSyncer fetches full operation records for the txid tree.
type TransactionSyncer interface {
	LatestBlock(ctx context.Context) (uint64, error)
	Sync(ctx context.Context, fromBlock, toBlock uint64) ([]OperationRecord, []uint64, error)
}
