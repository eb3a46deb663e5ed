// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/merkle"
)

// TxidValidator is the slice of the POI aggregator the txid tree set needs:
// the current validated txid index and root validation against the
// aggregator's canonical tree.
type TxidValidator interface {
	// ValidatedTxid returns the aggregator's packed validated index
	// (tree << 16 | leafIndex).
	ValidatedTxid(ctx context.Context) (uint64, error)
	// ValidateTxidMerkleroot checks a locally computed root against the
	// aggregator's tree snapshot at (tree, index).
	ValidateTxidMerkleroot(ctx context.Context, tree uint32, index uint64, root uint256.Int) (bool, error)
}

// ErrTxidRootMismatch reports a locally rebuilt txid tree the aggregator
// rejects.
type ErrTxidRootMismatch struct {
	TreeNumber uint32
}

func (e ErrTxidRootMismatch) Error() string {
	return fmt.Sprintf("railgun: txid tree root mismatch for tree %d", e.TreeNumber)
}

// TxidPosition is a (tree, index) pair.
type TxidPosition struct {
	Tree  uint32 `json:"tree"`
	Index uint32 `json:"index"`
}

type pendingOperation struct {
	Op    OperationRecord `json:"op"`
	Block uint64          `json:"block"`
}

// TxidTreeSet mirrors the aggregator's txid trees. Synced operations queue
// as pending until the aggregator reports them validated; Update drains the
// queue in FIFO order so leaf positions match the aggregator's canonical
// ordering.
type TxidTreeSet struct {
	trees map[uint32]*TxidTree

	// txidToUtxoPos maps a txid to the position of its first output in the
	// UTXO tree space.
	txidToUtxoPos map[Txid]TxidPosition
	// txidToTxidPos maps a txid to its leaf position in the txid trees.
	txidToTxidPos map[Txid]TxidPosition

	validator TxidValidator
	pending   []pendingOperation

	// validatedIndex is the total validated leaf count after the last
	// successful Update.
	validatedIndex uint64

	log log.Logger
}

// TxidTreeSetState is the serialisable tree-set snapshot.
type TxidTreeSetState struct {
	Trees          map[uint32]merkle.TreeState `json:"trees"`
	Pending        []pendingOperation          `json:"pending"`
	TxidToUtxoPos  map[string]TxidPosition     `json:"txidToUtxoPosition"`
	TxidToTxidPos  map[string]TxidPosition     `json:"txidToTxidPosition"`
	ValidatedIndex uint64                      `json:"validatedIndex"`
}

// NewTxidTreeSet builds an empty tree set over a validator.
func NewTxidTreeSet(validator TxidValidator, logger log.Logger) *TxidTreeSet {
	return &TxidTreeSet{
		trees:         make(map[uint32]*TxidTree),
		txidToUtxoPos: make(map[Txid]TxidPosition),
		txidToTxidPos: make(map[Txid]TxidPosition),
		validator:     validator,
		log:           logger,
	}
}

// SetState restores a snapshot.
func (s *TxidTreeSet) SetState(state TxidTreeSetState) error {
	s.trees = make(map[uint32]*TxidTree, len(state.Trees))
	for number, treeState := range state.Trees {
		s.trees[number] = TxidTreeFromState(treeState)
	}
	s.pending = state.Pending

	var err error
	if s.txidToUtxoPos, err = decodeTxidMap(state.TxidToUtxoPos); err != nil {
		return err
	}
	if s.txidToTxidPos, err = decodeTxidMap(state.TxidToTxidPos); err != nil {
		return err
	}
	s.validatedIndex = state.ValidatedIndex
	return nil
}

// State snapshots the tree set.
func (s *TxidTreeSet) State() TxidTreeSetState {
	trees := make(map[uint32]merkle.TreeState, len(s.trees))
	for number, tree := range s.trees {
		trees[number] = tree.State()
	}
	return TxidTreeSetState{
		Trees:          trees,
		Pending:        append([]pendingOperation(nil), s.pending...),
		TxidToUtxoPos:  encodeTxidMap(s.txidToUtxoPos),
		TxidToTxidPos:  encodeTxidMap(s.txidToTxidPos),
		ValidatedIndex: s.validatedIndex,
	}
}

// Tree returns a txid tree, if present.
func (s *TxidTreeSet) Tree(number uint32) (*TxidTree, bool) {
	tree, ok := s.trees[number]
	return tree, ok
}

// TxidPosition returns the txid's position in the txid trees, if validated.
func (s *TxidTreeSet) TxidPosition(txid Txid) (TxidPosition, bool) {
	pos, ok := s.txidToTxidPos[txid]
	return pos, ok
}

// UtxoPosition returns the txid's first-output position in the UTXO trees,
// if validated.
func (s *TxidTreeSet) UtxoPosition(txid Txid) (TxidPosition, bool) {
	pos, ok := s.txidToUtxoPos[txid]
	return pos, ok
}

// Enqueue appends a synced operation to the pending queue.
func (s *TxidTreeSet) Enqueue(op OperationRecord, block uint64) {
	s.pending = append(s.pending, pendingOperation{Op: op, Block: block})
}

// Update drains pending operations into the trees up to the aggregator's
// validated index, rebuilds, and validates the resulting root. Order is
// preserved so leaf positions match the aggregator's.
func (s *TxidTreeSet) Update(ctx context.Context) error {
	validated, err := s.validator.ValidatedTxid(ctx)
	if err != nil {
		return err
	}
	validatedTree := uint32(validated >> 16)
	validatedLeaf := validated & 0xFFFF
	s.log.Info("latest validated txid index", "tree", validatedTree, "leaf", validatedLeaf)

	currentTotal := 0
	for _, tree := range s.trees {
		currentTotal += tree.LeavesLen()
	}

	targetTotal := int(validatedTree)*TotalLeaves + int(validatedLeaf) + 1
	toDrain := targetTotal - currentTotal
	if toDrain <= 0 {
		return nil
	}
	if toDrain > len(s.pending) {
		toDrain = len(s.pending)
	}

	drained := s.pending[:toDrain]
	s.pending = append([]pendingOperation(nil), s.pending[toDrain:]...)

	total := currentTotal
	for _, entry := range drained {
		op := entry.Op
		txid := NewTxid(op.Nullifiers, op.CommitmentHashes, op.BoundParamsHash)
		included := IncludedIndex(op.UtxoTreeOut, op.UtxoOutStartIndex)
		leaf := NewTxidLeaf(txid, op.UtxoTreeIn, included)

		treeNumber := uint32(total / TotalLeaves)
		position := total % TotalLeaves

		tree, ok := s.trees[treeNumber]
		if !ok {
			tree = NewTxidTree(treeNumber)
			s.trees[treeNumber] = tree
		}
		tree.InsertLeaves([]uint256.Int{leaf}, position)

		s.txidToTxidPos[txid] = TxidPosition{Tree: treeNumber, Index: uint32(position)}
		s.txidToUtxoPos[txid] = TxidPosition{Tree: op.UtxoTreeOut, Index: op.UtxoOutStartIndex}
		total++
	}

	for _, tree := range s.trees {
		tree.Rebuild()
	}

	if lastNumber, lastTree, ok := s.lastTree(); ok {
		index := uint64(lastTree.LeavesLen() - 1)
		root := lastTree.Root()
		valid, err := s.validator.ValidateTxidMerkleroot(ctx, lastNumber, index, root)
		if err != nil {
			return err
		}
		if !valid {
			return ErrTxidRootMismatch{TreeNumber: lastNumber}
		}
		s.log.Info("validated txid tree", "tree", lastNumber, "leaf", index, "total", total)
	}

	s.validatedIndex = uint64(total)
	return nil
}

// Reset clears the tree set.
func (s *TxidTreeSet) Reset() {
	s.trees = make(map[uint32]*TxidTree)
	s.pending = nil
	s.txidToUtxoPos = make(map[Txid]TxidPosition)
	s.txidToTxidPos = make(map[Txid]TxidPosition)
	s.validatedIndex = 0
}

func (s *TxidTreeSet) lastTree() (uint32, *TxidTree, bool) {
	if len(s.trees) == 0 {
		return 0, nil, false
	}

	numbers := make([]int, 0, len(s.trees))
	for number := range s.trees {
		numbers = append(numbers, int(number))
	}
	sort.Ints(numbers)

	last := uint32(numbers[len(numbers)-1])
	return last, s.trees[last], true
}

func encodeTxidMap(m map[Txid]TxidPosition) map[string]TxidPosition {
	out := make(map[string]TxidPosition, len(m))
	for txid, pos := range m {
		out[txid.Hex()] = pos
	}
	return out
}

func decodeTxidMap(m map[string]TxidPosition) (map[Txid]TxidPosition, error) {
	out := make(map[Txid]TxidPosition, len(m))
	for key, pos := range m {
		v, err := uint256.FromHex("0x" + trimLeadingZeros(key))
		if err != nil {
			return nil, fmt.Errorf("railgun: invalid txid %q: %w", key, err)
		}
		out[Txid(*v)] = pos
	}
	return out, nil
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
