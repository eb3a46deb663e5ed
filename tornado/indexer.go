// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
	"github.com/luxfi/veil/merkle"
)

// Verifier checks a pool tree root against an external authority.
type Verifier interface {
	Verify(ctx context.Context, contract common.Address, root uint256.Int) error
}

// ErrUnknownRoot reports a locally rebuilt root the pool contract rejects.
type ErrUnknownRoot struct {
	Root uint256.Int
}

func (e ErrUnknownRoot) Error() string {
	return fmt.Sprintf("tornado: root %s is not known on-chain", e.Root.Hex())
}

// ContractVerifier validates roots against the pool's isKnownRoot view.
type ContractVerifier struct {
	client evm.Client
}

// NewContractVerifier builds a verifier over a chain client.
func NewContractVerifier(client evm.Client) *ContractVerifier {
	return &ContractVerifier{client: client}
}

// Verify queries isKnownRoot(root).
func (v *ContractVerifier) Verify(ctx context.Context, contract common.Address, root uint256.Int) error {
	data, err := abis.Tornado.Pack("isKnownRoot", root.Bytes32())
	if err != nil {
		return err
	}

	out, err := v.client.CallContract(ctx, evm.CallMsg{To: contract, Data: data})
	if err != nil {
		return err
	}

	results, err := abis.Tornado.UnpackOutput("isKnownRoot", out)
	if err != nil {
		return err
	}
	known, ok := results[0].(bool)
	if !ok {
		return errors.New("tornado: unexpected isKnownRoot result type")
	}
	if !known {
		return ErrUnknownRoot{Root: root}
	}
	return nil
}

// Indexer reconstructs one pool's commitment tree from deposit events.
type Indexer struct {
	syncer      Syncer
	verifier    Verifier
	syncedBlock uint64
	tree        *merkle.Tree
	pool        Pool
	log         log.Logger
}

// IndexerState is the serialisable indexer snapshot.
type IndexerState struct {
	SyncedBlock uint64           `json:"syncedBlock"`
	TreeState   merkle.TreeState `json:"treeState"`
	Pool        Pool             `json:"pool"`
}

// NewIndexer builds an indexer for a pool.
func NewIndexer(syncer Syncer, verifier Verifier, pool Pool, logger log.Logger) *Indexer {
	return &Indexer{
		syncer:   syncer,
		verifier: verifier,
		tree:     NewTree(),
		pool:     pool,
		log:      logger,
	}
}

// IndexerFromState restores an indexer snapshot.
func IndexerFromState(syncer Syncer, verifier Verifier, state IndexerState, logger log.Logger) *Indexer {
	return &Indexer{
		syncer:      syncer,
		verifier:    verifier,
		syncedBlock: state.SyncedBlock,
		tree:        TreeFromState(state.TreeState),
		pool:        state.Pool,
		log:         logger,
	}
}

// Tree returns the commitment tree.
func (x *Indexer) Tree() *merkle.Tree {
	return x.tree
}

// Pool returns the indexed pool.
func (x *Indexer) Pool() Pool {
	return x.pool
}

// State snapshots the indexer.
func (x *Indexer) State() IndexerState {
	return IndexerState{
		SyncedBlock: x.syncedBlock,
		TreeState:   x.tree.State(),
		Pool:        x.pool,
	}
}

// Verify checks that the current root is known on-chain.
func (x *Indexer) Verify(ctx context.Context) error {
	return x.verifier.Verify(ctx, x.pool.Address, x.tree.Root())
}

// Sync processes deposits up to the chain head.
func (x *Indexer) Sync(ctx context.Context) error {
	latest, err := x.syncer.LatestBlock(ctx)
	if err != nil {
		return err
	}
	return x.SyncTo(ctx, latest)
}

// SyncTo processes deposits from the synced height to toBlock, inserting
// them in leaf order and rebuilding once.
func (x *Indexer) SyncTo(ctx context.Context, toBlock uint64) error {
	fromBlock := x.syncedBlock + 1
	if fromBlock > toBlock {
		x.log.Info("already synced", "block", x.syncedBlock)
		return nil
	}
	x.log.Info("syncing", "from", fromBlock, "to", toBlock)

	commitments, err := x.syncer.SyncCommitments(ctx, x.pool.Address, fromBlock, toBlock)
	if err != nil {
		return err
	}

	sort.Slice(commitments, func(i, j int) bool {
		return commitments[i].LeafIndex < commitments[j].LeafIndex
	})

	if len(commitments) > 0 {
		start := int(commitments[0].LeafIndex)
		leaves := make([]uint256.Int, len(commitments))
		for i, c := range commitments {
			leaves[i].SetBytes(c.Commitment[:])
		}

		x.tree.InsertLeaves(leaves, start)
		x.tree.Rebuild()
	}

	x.syncedBlock = toBlock
	return nil
}
