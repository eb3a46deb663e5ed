// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/poseidon"
)

// UtxoIndexer reconstructs the commitment trees from chain events and
// tracks registered accounts' notes and balances.
//
// Accounts are not part of the serialised state, but matched events are:
// re-registering an account after a restart replays the retained events to
// rebuild its notebook without a resync.
type UtxoIndexer struct {
	trees       map[uint32]*UtxoTree
	syncedBlock uint64

	syncer   NoteSyncer
	verifier RootVerifier

	accounts        []*IndexedAccount
	matchedEvents   []SyncEvent
	seenCommitments map[uint256.Int]struct{}

	log log.Logger
}

// UtxoIndexerState is the serialisable indexer snapshot. Registered
// accounts are deliberately omitted; they must be re-registered per session.
type UtxoIndexerState struct {
	Trees         map[uint32]merkle.TreeState `json:"utxoTrees"`
	SyncedBlock   uint64                      `json:"syncedBlock"`
	MatchedEvents []SyncEvent                 `json:"matchedEvents"`
}

var (
	// ErrAwaitTimeout reports AwaitCommitments giving up.
	ErrAwaitTimeout = errors.New("railgun: timed out waiting for commitments")
	// ErrNotImplemented reports a deliberately unimplemented operation.
	ErrNotImplemented = errors.New("railgun: not implemented")
)

// NewUtxoIndexer builds an indexer over a syncer and root verifier.
func NewUtxoIndexer(syncer NoteSyncer, verifier RootVerifier, logger log.Logger) *UtxoIndexer {
	return &UtxoIndexer{
		trees:           make(map[uint32]*UtxoTree),
		syncer:          syncer,
		verifier:        verifier,
		seenCommitments: make(map[uint256.Int]struct{}),
		log:             logger,
	}
}

// SetState restores an indexer snapshot.
func (x *UtxoIndexer) SetState(state UtxoIndexerState) {
	x.trees = make(map[uint32]*UtxoTree, len(state.Trees))
	for number, treeState := range state.Trees {
		x.trees[number] = UtxoTreeFromState(treeState).WithVerifier(x.verifier)
	}
	x.syncedBlock = state.SyncedBlock
	x.matchedEvents = state.MatchedEvents
}

// State snapshots the indexer.
func (x *UtxoIndexer) State() UtxoIndexerState {
	trees := make(map[uint32]merkle.TreeState, len(x.trees))
	for number, tree := range x.trees {
		trees[number] = tree.State()
	}
	return UtxoIndexerState{
		Trees:         trees,
		SyncedBlock:   x.syncedBlock,
		MatchedEvents: append([]SyncEvent(nil), x.matchedEvents...),
	}
}

// SyncedBlock returns the height the indexer has processed through.
func (x *UtxoIndexer) SyncedBlock() uint64 {
	return x.syncedBlock
}

// Trees returns the commitment trees by number.
func (x *UtxoIndexer) Trees() map[uint32]*UtxoTree {
	return x.trees
}

// Tree returns one commitment tree, if present.
func (x *UtxoIndexer) Tree(number uint32) (*UtxoTree, bool) {
	tree, ok := x.trees[number]
	return tree, ok
}

// Register adds an account and replays the matched-events log so its state
// is rebuilt without a resync.
func (x *UtxoIndexer) Register(signer Signer) {
	account := NewIndexedAccount(signer, x.log)
	x.accounts = append(x.accounts, account)

	// Replay is safe against the trees: leaf insertion is positional, so
	// re-applying an event overwrites the same leaves with the same values.
	events := append([]SyncEvent(nil), x.matchedEvents...)
	for i := range events {
		if _, err := x.handleEventFull(&events[i]); err != nil {
			x.log.Error("error replaying event for new account", "err", err)
		}
	}
	for _, tree := range x.trees {
		tree.Rebuild()
	}
}

// RegisterResync adds an account and retroactively re-indexes from the
// given block.
func (x *UtxoIndexer) RegisterResync(_ context.Context, _ Signer, _ uint64) error {
	return ErrNotImplemented
}

// Unspent returns the unspent notes for an address.
func (x *UtxoIndexer) Unspent(addr address.Address) []*UtxoNote {
	for _, account := range x.accounts {
		if account.Address() == addr {
			return account.Unspent()
		}
	}
	return nil
}

// AllUnspent returns every account's unspent notes.
func (x *UtxoIndexer) AllUnspent() []*UtxoNote {
	var notes []*UtxoNote
	for _, account := range x.accounts {
		notes = append(notes, account.Unspent()...)
	}
	return notes
}

// Balance sums the unspent values per asset for an address.
func (x *UtxoIndexer) Balance(addr address.Address) map[asset.ID]uint256.Int {
	for _, account := range x.accounts {
		if account.Address() == addr {
			return account.Balance()
		}
	}
	return map[asset.ID]uint256.Int{}
}

// Sync processes events up to the chain head.
func (x *UtxoIndexer) Sync(ctx context.Context) error {
	return x.SyncTo(ctx, math.MaxUint64)
}

// SyncTo processes events from the synced height up to min(toBlock, head):
// consume the stream, rebuild every touched tree, then verify each
// non-empty root. A verification mismatch is fatal for the sync and leaves
// the synced height unchanged.
func (x *UtxoIndexer) SyncTo(ctx context.Context, toBlock uint64) error {
	fromBlock := x.syncedBlock + 1

	latest, err := x.syncer.LatestBlock(ctx)
	if err != nil {
		return err
	}
	if toBlock > latest {
		toBlock = latest
	}
	if fromBlock > toBlock {
		return nil
	}

	stream, err := x.syncer.Sync(ctx, fromBlock, toBlock)
	if err != nil {
		return err
	}

	for event := range stream {
		matched, err := x.handleEventFull(&event)
		if err != nil {
			return err
		}
		if matched {
			x.matchedEvents = append(x.matchedEvents, event)
		}
	}

	for _, tree := range x.trees {
		tree.Rebuild()
	}

	for _, number := range x.sortedTreeNumbers() {
		if err := x.trees[number].Verify(ctx); err != nil {
			return err
		}
	}

	x.syncedBlock = toBlock
	return nil
}

// Reset clears all indexer state.
func (x *UtxoIndexer) Reset() {
	x.trees = make(map[uint32]*UtxoTree)
	x.syncedBlock = 0
	x.accounts = nil
	x.matchedEvents = nil
	x.seenCommitments = make(map[uint256.Int]struct{})
}

// HasCommitments reports whether all the given commitment hashes have been
// observed in Transact events.
func (x *UtxoIndexer) HasCommitments(commitments []uint256.Int) bool {
	for i := range commitments {
		if _, ok := x.seenCommitments[commitments[i]]; !ok {
			return false
		}
	}
	return true
}

// AwaitCommitments polls Sync until every commitment has been observed or
// the timeout elapses.
func (x *UtxoIndexer) AwaitCommitments(ctx context.Context, commitments []uint256.Int,
	pollInterval, timeout time.Duration) error {
	start := time.Now()

	for {
		if err := x.Sync(ctx); err != nil {
			return err
		}

		if x.HasCommitments(commitments) {
			return nil
		}

		if time.Since(start) >= timeout {
			return ErrAwaitTimeout
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleEventFull applies one event to the trees and accounts. Returns
// whether any account matched it.
func (x *UtxoIndexer) handleEventFull(event *SyncEvent) (bool, error) {
	switch {
	case event.Shield != nil:
		leaves := make([]uint256.Int, len(event.Shield.Commitments))
		for i, preimage := range event.Shield.Commitments {
			var npk uint256.Int
			npk.SetBytes(preimage.Npk[:])
			tokenHash := preimage.Token.AssetID().Hash()
			var value uint256.Int
			if preimage.Value != nil {
				value = *uint256.MustFromBig(preimage.Value)
			}
			leaves[i] = poseidon.MustHash(npk, tokenHash, value)
		}
		x.insertLeaves(uint32(event.Shield.TreeNumber.Uint64()),
			int(event.Shield.StartPosition.Uint64()), leaves)

	case event.Transact != nil:
		leaves := make([]uint256.Int, len(event.Transact.Hash))
		for i, h := range event.Transact.Hash {
			leaves[i].SetBytes(h[:])
			x.seenCommitments[leaves[i]] = struct{}{}
		}
		x.insertLeaves(uint32(event.Transact.TreeNumber.Uint64()),
			int(event.Transact.StartPosition.Uint64()), leaves)

	case event.Legacy != nil:
		x.insertLeaves(event.Legacy.TreeNumber, int(event.Legacy.LeafIndex),
			[]uint256.Int{event.Legacy.Hash})
		// Legacy commitments carry no ciphertext; no account matching.
		return false, nil
	}

	return x.matchAccounts(event), nil
}

func (x *UtxoIndexer) matchAccounts(event *SyncEvent) bool {
	matched := false
	for _, account := range x.accounts {
		switch {
		case event.Shield != nil:
			matched = account.HandleShield(event.Shield) || matched
		case event.Transact != nil:
			matched = account.HandleTransact(event.Transact) || matched
		case event.Nullified != nil:
			matched = account.HandleNullified(event.Nullified, event.Timestamp) || matched
		}
	}
	return matched
}

// insertLeaves writes leaves into the tree set, carrying across tree
// boundaries: a batch whose positions run past 2^depth continues at index 0
// of the next tree.
func (x *UtxoIndexer) insertLeaves(treeNumber uint32, startPosition int, leaves []uint256.Int) {
	remaining := leaves
	currentTree := treeNumber + uint32(startPosition/TotalLeaves)
	position := startPosition % TotalLeaves

	for len(remaining) > 0 {
		space := TotalLeaves - position
		count := len(remaining)
		if count > space {
			count = space
		}

		tree, ok := x.trees[currentTree]
		if !ok {
			tree = NewUtxoTree(currentTree).WithVerifier(x.verifier)
			x.trees[currentTree] = tree
		}
		tree.InsertLeaves(remaining[:count], position)

		remaining = remaining[count:]
		currentTree++
		position = 0
	}
}

func (x *UtxoIndexer) sortedTreeNumbers() []uint32 {
	numbers := make([]int, 0, len(x.trees))
	for number := range x.trees {
		numbers = append(numbers, int(number))
	}
	sort.Ints(numbers)

	out := make([]uint32, len(numbers))
	for i, n := range numbers {
		out[i] = uint32(n)
	}
	return out
}
