// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/veil/poseidon"
)

// Txid uniquely identifies an operation: the Poseidon hash of the padded
// nullifier and commitment sets together with the bound-params hash.
type Txid uint256.Int

// NewTxid computes the txid for an operation's nullifiers, commitment
// hashes and bound-params hash. Both sets are padded to 13 entries with the
// commitment tree's zero leaf before hashing.
func NewTxid(nullifiers, commitments []uint256.Int, boundParamsHash uint256.Int) Txid {
	zero := UtxoMerkleZero()

	pad := func(vals []uint256.Int) []uint256.Int {
		padded := make([]uint256.Int, maxOperationNotes)
		for i := range padded {
			padded[i] = zero
		}
		for i := 0; i < len(vals) && i < maxOperationNotes; i++ {
			padded[i] = vals[i]
		}
		return padded
	}

	nullifiersHash, err := poseidon.Hash(pad(nullifiers))
	if err != nil {
		panic(err)
	}
	commitmentsHash, err := poseidon.Hash(pad(commitments))
	if err != nil {
		panic(err)
	}

	return Txid(poseidon.MustHash(nullifiersHash, commitmentsHash, boundParamsHash))
}

// Uint returns the txid as a word.
func (t Txid) Uint() uint256.Int {
	return uint256.Int(t)
}

// Hex returns the 64-char unprefixed hex form used on the aggregator wire.
func (t Txid) Hex() string {
	v := uint256.Int(t)
	b := v.Bytes32()
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, c := range b {
		out[2*i] = hexdigits[c>>4]
		out[2*i+1] = hexdigits[c&0xf]
	}
	return string(out)
}

// UtxoTreeIndex locates an operation's first output in the global UTXO tree
// space, or one of the reserved sentinels.
type UtxoTreeIndex struct {
	kind       utxoTreeIndexKind
	treeNumber uint32
	startIndex uint32
}

type utxoTreeIndexKind uint8

const (
	utxoIndexIncluded utxoTreeIndexKind = iota
	utxoIndexPreInclusion
	utxoIndexUnshieldOnly
)

// Reserved global-position sentinels. These literals are part of the
// protocol and must be preserved bit-exactly.
const (
	unshieldOnlyTree     = 99999
	unshieldOnlyPosition = 99999
	preInclusionTree     = 199999
	preInclusionPosition = 199999
)

// IncludedIndex locates an on-chain output batch.
func IncludedIndex(treeNumber, startIndex uint32) UtxoTreeIndex {
	return UtxoTreeIndex{kind: utxoIndexIncluded, treeNumber: treeNumber, startIndex: startIndex}
}

// PreInclusionIndex marks an operation not yet on-chain.
func PreInclusionIndex() UtxoTreeIndex {
	return UtxoTreeIndex{kind: utxoIndexPreInclusion}
}

// UnshieldOnlyIndex marks an operation with no commitment outputs.
func UnshieldOnlyIndex() UtxoTreeIndex {
	return UtxoTreeIndex{kind: utxoIndexUnshieldOnly}
}

// GlobalIndex packs the position as tree * 2^depth + index.
func (i UtxoTreeIndex) GlobalIndex() uint64 {
	var tree, index uint64
	switch i.kind {
	case utxoIndexIncluded:
		tree, index = uint64(i.treeNumber), uint64(i.startIndex)
	case utxoIndexPreInclusion:
		tree, index = preInclusionTree, preInclusionPosition
	case utxoIndexUnshieldOnly:
		tree, index = unshieldOnlyTree, unshieldOnlyPosition
	}
	return tree*uint64(TotalLeaves) + index
}

// NewTxidLeaf hashes a txid-tree leaf:
// Poseidon(txid, utxoTreeIn, globalPositionOut).
func NewTxidLeaf(txid Txid, utxoTreeIn uint32, out UtxoTreeIndex) uint256.Int {
	return poseidon.MustHash(
		txid.Uint(),
		*uint256.NewInt(uint64(utxoTreeIn)),
		*uint256.NewInt(out.GlobalIndex()),
	)
}
