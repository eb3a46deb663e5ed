// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// xorConfig is a cheap stand-in hash for structural tests.
func xorConfig(depth int) Config {
	return Config{
		Depth: depth,
		Hash: func(left, right *uint256.Int) uint256.Int {
			var out uint256.Int
			out.Xor(left, right)
			return out
		},
		Zero: uint256.Int{},
	}
}

func word(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

func TestZeroLevels(t *testing.T) {
	cfg := xorConfig(4)
	levels := ZeroLevels(cfg)
	require.Len(t, levels, 5)
	for _, level := range levels {
		require.True(t, level.IsZero())
	}
}

func TestInsertAndRebuild(t *testing.T) {
	tree := New(xorConfig(4), 0)

	leaves := []uint256.Int{word(1), word(2), word(3), word(4)}
	tree.InsertLeaves(leaves, 0)
	require.False(t, tree.Clean())

	tree.Rebuild()
	require.True(t, tree.Clean())

	// XOR-folding all leaves gives the root for the XOR hash.
	root := tree.Root()
	require.True(t, root.Eq(uint256.NewInt(1^2^3^4)))
}

func TestInsertAtOffsetFillsZeros(t *testing.T) {
	tree := New(xorConfig(4), 0)

	tree.InsertLeaves([]uint256.Int{word(7)}, 3)
	tree.Rebuild()

	require.Equal(t, 4, tree.LeavesLen())
	root := tree.Root()
	require.True(t, root.Eq(uint256.NewInt(7)))
}

func TestProofRoundTrip(t *testing.T) {
	cfg := xorConfig(4)
	tree := New(cfg, 0)

	leaves := []uint256.Int{word(10), word(20), word(30), word(40), word(50)}
	tree.InsertLeaves(leaves, 0)
	tree.Rebuild()

	for _, leaf := range leaves {
		proof, err := tree.GenerateProof(leaf)
		require.NoError(t, err)
		require.True(t, proof.Verify(cfg.Hash))
		require.Len(t, proof.Siblings, 4)
	}
}

func TestProofNotFound(t *testing.T) {
	tree := New(xorConfig(4), 0)
	tree.InsertLeaves([]uint256.Int{word(1)}, 0)
	tree.Rebuild()

	_, err := tree.GenerateProof(word(99))
	require.ErrorIs(t, err, ErrElementNotFound)
}

func TestRootPanicsWhenDirty(t *testing.T) {
	tree := New(xorConfig(4), 0)
	tree.InsertLeaves([]uint256.Int{word(1)}, 0)

	require.Panics(t, func() { tree.Root() })
}

func TestStateRoundTrip(t *testing.T) {
	cfg := xorConfig(4)
	tree := New(cfg, 3)
	tree.InsertLeaves([]uint256.Int{word(1), word(2)}, 0)
	tree.Rebuild()

	state := tree.State()
	restored := FromState(cfg, state)

	require.Equal(t, tree.Number(), restored.Number())
	origRoot, restoredRoot := tree.Root(), restored.Root()
	require.True(t, origRoot.Eq(&restoredRoot))
	require.Equal(t, tree.LeavesLen(), restored.LeavesLen())
}

func TestPreInclusionProof(t *testing.T) {
	cfg := xorConfig(4)

	proof := PreInclusionProof(cfg, word(42))
	require.True(t, proof.Indices.IsZero())
	require.Len(t, proof.Siblings, 4)
	for _, sibling := range proof.Siblings {
		require.True(t, sibling.IsZero())
	}
	require.True(t, proof.Verify(cfg.Hash))
}

func TestIncrementalInsertMatchesBatch(t *testing.T) {
	cfg := xorConfig(5)

	batch := New(cfg, 0)
	leaves := make([]uint256.Int, 9)
	for i := range leaves {
		leaves[i] = word(uint64(i + 100))
	}
	batch.InsertLeaves(leaves, 0)
	batch.Rebuild()

	incremental := New(cfg, 0)
	for i, leaf := range leaves {
		incremental.InsertLeaf(leaf, i)
	}

	batchRoot, incrementalRoot := batch.Root(), incremental.Root()
	require.True(t, batchRoot.Eq(&incrementalRoot))
}
