// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/railgun"
)

// PoiNote is a UTXO note augmented with its POI tree proofs, keyed by list.
// The proofs come from the aggregator via Client.MerkleProofs.
type PoiNote struct {
	inner  *railgun.UtxoNote
	proofs map[ListKey]merkle.Proof
}

// NewPoiNote wraps a note with its proofs.
func NewPoiNote(inner *railgun.UtxoNote, proofs map[ListKey]merkle.Proof) *PoiNote {
	return &PoiNote{inner: inner, proofs: proofs}
}

// Inner returns the wrapped note.
func (n *PoiNote) Inner() *railgun.UtxoNote {
	return n.inner
}

// PoiMerkleProofs returns the per-list POI proofs.
func (n *PoiNote) PoiMerkleProofs() map[ListKey]merkle.Proof {
	return n.proofs
}

// Asset returns the note's asset.
func (n *PoiNote) Asset() asset.ID { return n.inner.Asset() }

// Value returns the note's value.
func (n *PoiNote) Value() *uint256.Int { return n.inner.Value() }

// Memo returns the note's memo.
func (n *PoiNote) Memo() string { return n.inner.Memo() }

// Hash returns the commitment leaf value.
func (n *PoiNote) Hash() uint256.Int { return n.inner.Hash() }

// NotePublicKey returns the NPK.
func (n *PoiNote) NotePublicKey() uint256.Int { return n.inner.NotePublicKey() }

// TreeNumber returns the commitment tree number.
func (n *PoiNote) TreeNumber() uint32 { return n.inner.TreeNumber() }

// LeafIndex returns the leaf position.
func (n *PoiNote) LeafIndex() uint32 { return n.inner.LeafIndex() }

// SpendingPubkey returns the owner's spending public key.
func (n *PoiNote) SpendingPubkey() [2]uint256.Int { return n.inner.SpendingPubkey() }

// ViewingPubkey returns the owner's viewing public key.
func (n *PoiNote) ViewingPubkey() keys.ViewingPublicKey { return n.inner.ViewingPubkey() }

// NullifyingKey returns the owner's nullifying key.
func (n *PoiNote) NullifyingKey() uint256.Int { return n.inner.NullifyingKey() }

// Nullifier derives the spend tag at the given leaf index.
func (n *PoiNote) Nullifier(leafIndex *uint256.Int) uint256.Int {
	return n.inner.Nullifier(leafIndex)
}

// Random returns the note randomness.
func (n *PoiNote) Random() [16]byte { return n.inner.Random() }

// BlindedCommitment returns the blinded commitment.
func (n *PoiNote) BlindedCommitment() uint256.Int { return n.inner.BlindedCommitment() }

// Sign signs a circuit message with the note owner's spending key.
func (n *PoiNote) Sign(inputs []uint256.Int) ([3]uint256.Int, error) {
	return n.inner.Sign(inputs)
}
