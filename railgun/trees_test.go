// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestUtxoMerkleZero(t *testing.T) {
	// keccak256("Railgun") mod Q.
	expected, err := uint256.FromDecimal(
		"2051258411002736885948763699317990061539314419500486054347250703186609807356")
	require.NoError(t, err)

	zero := UtxoMerkleZero()
	require.True(t, zero.Eq(expected))
}

func TestEmptyTreeRoot(t *testing.T) {
	tree := NewUtxoTree(0)

	expected, err := uint256.FromDecimal(
		"9493149700940509817378043077993653487291699154667385859234945399563579865744")
	require.NoError(t, err)

	root := tree.Root()
	require.True(t, root.Eq(expected))
}

func TestTxidTreeSharesConfig(t *testing.T) {
	utxo := NewUtxoTree(0)
	txid := NewTxidTree(0)

	utxoRoot, txidRoot := utxo.Root(), txid.Root()
	require.True(t, utxoRoot.Eq(&txidRoot))
}

func TestGlobalIndexSentinels(t *testing.T) {
	require.Equal(t, uint64(199999)*uint64(TotalLeaves)+199999,
		PreInclusionIndex().GlobalIndex())
	require.Equal(t, uint64(99999)*uint64(TotalLeaves)+99999,
		UnshieldOnlyIndex().GlobalIndex())
	require.Equal(t, uint64(3)*uint64(TotalLeaves)+17,
		IncludedIndex(3, 17).GlobalIndex())
}

func TestTxidPadding(t *testing.T) {
	null := []uint256.Int{*uint256.NewInt(1)}
	comm := []uint256.Int{*uint256.NewInt(2)}
	bound := *uint256.NewInt(3)

	a := NewTxid(null, comm, bound)

	// Explicitly padding with the zero leaf yields the same txid.
	zero := UtxoMerkleZero()
	nullPadded := append([]uint256.Int(nil), null...)
	commPadded := append([]uint256.Int(nil), comm...)
	for len(nullPadded) < 13 {
		nullPadded = append(nullPadded, zero)
		commPadded = append(commPadded, zero)
	}
	b := NewTxid(nullPadded, commPadded, bound)

	require.Equal(t, a, b)
}

func TestPreInclusionTxidProofVerifies(t *testing.T) {
	leaf := NewTxidLeaf(NewTxid(
		[]uint256.Int{*uint256.NewInt(1)},
		[]uint256.Int{*uint256.NewInt(2)},
		*uint256.NewInt(3),
	), 0, PreInclusionIndex())

	proof := PreInclusionTxidProof(leaf)
	require.True(t, proof.Indices.IsZero())
	require.Len(t, proof.Siblings, TreeDepth)
	require.True(t, proof.Verify(TreeConfig().Hash))
}
