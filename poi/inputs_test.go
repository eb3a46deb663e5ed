// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/railgun"
)

func testKey(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func testSigner() *railgun.PrivateKeySigner {
	return railgun.NewEVMSigner(keys.SpendingKey(testKey(1)), keys.ViewingKey(testKey(2)), 1)
}

func testPoiNote(t *testing.T, tree *railgun.UtxoTree, leafIndex uint32, value uint64,
	listKeys []ListKey) *PoiNote {
	t.Helper()

	signer := testSigner()
	note := railgun.NewUtxoNote(0, leafIndex, signer,
		asset.Erc20(common.HexToAddress("0x1234567890123456789012345678901234567890")),
		uint256.NewInt(value), [16]byte{byte(leafIndex + 1)}, "", railgun.KindTransact)

	tree.InsertLeaves([]uint256.Int{note.Hash()}, int(leafIndex))

	proofs := make(map[ListKey]merkle.Proof)
	for _, listKey := range listKeys {
		proofs[listKey] = merkle.PreInclusionProof(railgun.TreeConfig(), note.BlindedCommitment())
	}
	return NewPoiNote(note, proofs)
}

func TestCircuitInputsSizing(t *testing.T) {
	listKey := ListKey("list-a")
	tree := railgun.NewUtxoTree(0)

	note := testPoiNote(t, tree, 0, 100, []ListKey{listKey})
	tree.Rebuild()

	signer := testSigner()
	out := []uint256.Int{*uint256.NewInt(1), *uint256.NewInt(2)}

	inputs, err := NewCircuitInputs(
		signer.SpendingKey().PublicKey(),
		signer.ViewingKey().NullifyingKey().Uint(),
		tree, 0, *uint256.NewInt(99),
		[]*PoiNote{note},
		out, out, out,
		*uint256.NewInt(7), false, listKey)
	require.NoError(t, err)

	// 1 input, 2 outputs: the 3-wide circuit, padded to 3.
	require.Equal(t, "poi_3x3", inputs.CircuitName())
	require.Len(t, inputs.Nullifiers, 3)
	require.Len(t, inputs.Commitments, 3)
	require.Len(t, inputs.ValuesIn, 3)
	require.Len(t, inputs.PoiInMerkleProofPathElements, 3)
	for _, path := range inputs.PoiInMerkleProofPathElements {
		require.Len(t, path, railgun.TreeDepth)
	}

	// Pre-inclusion: the txid proof root folds the leaf through zeros.
	preProof := railgun.PreInclusionTxidProof(inputs.TxidLeafHash)
	require.True(t, inputs.TxidMerklerootAfterTransaction.Eq(&preProof.Root))
	require.True(t, inputs.UtxoBatchGlobalStartPositionOut.Eq(
		uint256.NewInt(railgun.PreInclusionIndex().GlobalIndex())))

	// No unshield: the txid public input is zeroed.
	require.True(t, inputs.RailgunTxidIfHasUnshield.IsZero())
}

func TestCircuitInputsLargeSelectsWideCircuit(t *testing.T) {
	listKey := ListKey("list-a")
	tree := railgun.NewUtxoTree(0)

	var notes []*PoiNote
	for i := uint32(0); i < 4; i++ {
		notes = append(notes, testPoiNote(t, tree, i, 100, []ListKey{listKey}))
	}
	tree.Rebuild()

	signer := testSigner()
	out := []uint256.Int{*uint256.NewInt(1)}

	inputs, err := NewCircuitInputs(
		signer.SpendingKey().PublicKey(),
		signer.ViewingKey().NullifyingKey().Uint(),
		tree, 0, *uint256.NewInt(99),
		notes, out, out, out,
		*uint256.NewInt(7), true, listKey)
	require.NoError(t, err)

	require.Equal(t, "poi_13x13", inputs.CircuitName())
	require.Len(t, inputs.Nullifiers, 13)
	// With an unshield, the txid travels in the public input.
	require.False(t, inputs.RailgunTxidIfHasUnshield.IsZero())
}

func TestCircuitInputsMissingProofFails(t *testing.T) {
	tree := railgun.NewUtxoTree(0)
	note := testPoiNote(t, tree, 0, 100, nil) // no proofs attached
	tree.Rebuild()

	signer := testSigner()
	out := []uint256.Int{*uint256.NewInt(1)}

	_, err := NewCircuitInputs(
		signer.SpendingKey().PublicKey(),
		signer.ViewingKey().NullifyingKey().Uint(),
		tree, 0, *uint256.NewInt(99),
		[]*PoiNote{note}, out, out, out,
		*uint256.NewInt(7), false, "list-a")

	var missing ErrMissingPoiProofs
	require.ErrorAs(t, err, &missing)
	require.Equal(t, ListKey("list-a"), missing.ListKey)
}

func TestCircuitInputsIncludedUsesRealProof(t *testing.T) {
	listKey := ListKey("list-a")
	utxoTree := railgun.NewUtxoTree(0)
	note := testPoiNote(t, utxoTree, 0, 100, []ListKey{listKey})
	utxoTree.Rebuild()

	signer := testSigner()
	out := []uint256.Int{*uint256.NewInt(1)}

	// First compute the txid leaf via the pre-inclusion path.
	pre, err := NewCircuitInputs(
		signer.SpendingKey().PublicKey(),
		signer.ViewingKey().NullifyingKey().Uint(),
		utxoTree, 0, *uint256.NewInt(99),
		[]*PoiNote{note}, out, out, out,
		*uint256.NewInt(7), false, listKey)
	require.NoError(t, err)

	// Insert the included-position leaf into a txid tree and re-prove.
	included := railgun.IncludedIndex(0, 0)
	leaf := railgun.NewTxidLeaf(pre.Txid, 0, included)
	txidTree := railgun.NewTxidTree(0)
	txidTree.InsertLeaves([]uint256.Int{leaf}, 0)
	txidTree.Rebuild()

	inputs, err := NewCircuitInputsIncluded(
		signer.SpendingKey().PublicKey(),
		signer.ViewingKey().NullifyingKey().Uint(),
		utxoTree, 0, *uint256.NewInt(99),
		[]*PoiNote{note}, out, out, out,
		*uint256.NewInt(7), false, listKey,
		included, txidTree)
	require.NoError(t, err)

	root := txidTree.Root()
	require.True(t, inputs.TxidMerklerootAfterTransaction.Eq(&root))
	require.Equal(t, pre.Txid, inputs.Txid)
	require.True(t, inputs.UtxoBatchGlobalStartPositionOut.IsZero())
}
