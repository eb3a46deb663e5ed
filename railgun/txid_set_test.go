// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// fakeValidator acknowledges a fixed validated index and records the roots
// it is asked to validate.
type fakeValidator struct {
	index     uint64
	valid     bool
	lastTree  uint32
	lastIndex uint64
	lastRoot  uint256.Int
}

func (f *fakeValidator) ValidatedTxid(context.Context) (uint64, error) {
	return f.index, nil
}

func (f *fakeValidator) ValidateTxidMerkleroot(_ context.Context, tree uint32, index uint64, root uint256.Int) (bool, error) {
	f.lastTree, f.lastIndex, f.lastRoot = tree, index, root
	return f.valid, nil
}

func opRecord(n uint64) OperationRecord {
	return OperationRecord{
		Nullifiers:        []uint256.Int{*uint256.NewInt(n)},
		CommitmentHashes:  []uint256.Int{*uint256.NewInt(n + 1000)},
		BoundParamsHash:   *uint256.NewInt(n + 2000),
		UtxoTreeIn:        0,
		UtxoTreeOut:       0,
		UtxoOutStartIndex: uint32(n),
	}
}

func TestTxidTreeSetDrainsFIFO(t *testing.T) {
	validator := &fakeValidator{index: 2, valid: true} // tree 0, leaf 2 => 3 leaves
	set := NewTxidTreeSet(validator, testLogger())

	for i := uint64(0); i < 5; i++ {
		set.Enqueue(opRecord(i), 100+i)
	}

	require.NoError(t, set.Update(context.Background()))

	tree, ok := set.Tree(0)
	require.True(t, ok)
	require.Equal(t, 3, tree.LeavesLen())

	// The first three operations were drained in order.
	for i := uint64(0); i < 3; i++ {
		op := opRecord(i)
		txid := NewTxid(op.Nullifiers, op.CommitmentHashes, op.BoundParamsHash)
		pos, ok := set.TxidPosition(txid)
		require.True(t, ok)
		require.Equal(t, TxidPosition{Tree: 0, Index: uint32(i)}, pos)

		utxoPos, ok := set.UtxoPosition(txid)
		require.True(t, ok)
		require.Equal(t, TxidPosition{Tree: 0, Index: uint32(i)}, utxoPos)
	}

	// The remaining two stay queued in their original relative order.
	state := set.State()
	require.Len(t, state.Pending, 2)
	require.Equal(t, opRecord(3).UtxoOutStartIndex, state.Pending[0].Op.UtxoOutStartIndex)
	require.Equal(t, opRecord(4).UtxoOutStartIndex, state.Pending[1].Op.UtxoOutStartIndex)

	// The root was validated against the aggregator snapshot.
	require.Equal(t, uint32(0), validator.lastTree)
	require.Equal(t, uint64(2), validator.lastIndex)
	root := tree.Root()
	require.True(t, validator.lastRoot.Eq(&root))
}

func TestTxidTreeSetRootMismatchFatal(t *testing.T) {
	validator := &fakeValidator{index: 0, valid: false}
	set := NewTxidTreeSet(validator, testLogger())
	set.Enqueue(opRecord(1), 100)

	err := set.Update(context.Background())
	var mismatch ErrTxidRootMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestTxidTreeSetNoDrainWhenCaughtUp(t *testing.T) {
	validator := &fakeValidator{index: 0, valid: true}
	set := NewTxidTreeSet(validator, testLogger())

	// One leaf already present (target total = 1), nothing more to drain.
	set.Enqueue(opRecord(1), 100)
	require.NoError(t, set.Update(context.Background()))

	set.Enqueue(opRecord(2), 101)
	require.NoError(t, set.Update(context.Background()))

	tree, ok := set.Tree(0)
	require.True(t, ok)
	require.Equal(t, 1, tree.LeavesLen())
	require.Len(t, set.State().Pending, 1)
}

func TestTxidTreeSetStateRoundTrip(t *testing.T) {
	validator := &fakeValidator{index: 1, valid: true}
	set := NewTxidTreeSet(validator, testLogger())
	set.Enqueue(opRecord(1), 100)
	set.Enqueue(opRecord(2), 101)
	set.Enqueue(opRecord(3), 102)
	require.NoError(t, set.Update(context.Background()))

	state := set.State()
	restored := NewTxidTreeSet(validator, testLogger())
	require.NoError(t, restored.SetState(state))

	op := opRecord(1)
	txid := NewTxid(op.Nullifiers, op.CommitmentHashes, op.BoundParamsHash)
	pos, ok := restored.TxidPosition(txid)
	require.True(t, ok)
	require.Equal(t, TxidPosition{Tree: 0, Index: 0}, pos)

	origTree, _ := set.Tree(0)
	restoredTree, ok := restored.Tree(0)
	require.True(t, ok)
	origRoot, restoredRoot := origTree.Root(), restoredTree.Root()
	require.True(t, origRoot.Eq(&restoredRoot))
}
