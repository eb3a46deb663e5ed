// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"errors"
	"sort"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
)

// Notebook holds the spent and unspent notes of one account on one tree,
// keyed by leaf index.
type Notebook struct {
	unspent map[uint32]*UtxoNote
	spent   map[uint32]*UtxoNote
}

// NewNotebook builds an empty notebook.
func NewNotebook() *Notebook {
	return &Notebook{
		unspent: make(map[uint32]*UtxoNote),
		spent:   make(map[uint32]*UtxoNote),
	}
}

// Add records an unspent note at its leaf position.
func (b *Notebook) Add(position uint32, note *UtxoNote) {
	b.unspent[position] = note
}

// Unspent returns the unspent notes in leaf order.
func (b *Notebook) Unspent() []*UtxoNote {
	indices := make([]int, 0, len(b.unspent))
	for idx := range b.unspent {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	out := make([]*UtxoNote, 0, len(indices))
	for _, idx := range indices {
		out = append(out, b.unspent[uint32(idx)])
	}
	return out
}

// Nullify spends the note matching the given nullifier, if any: each
// unspent note's nullifier is recomputed for its own leaf index and the
// match is moved to the spent map.
func (b *Notebook) Nullify(nullifier uint256.Int, _ uint64) *UtxoNote {
	for leafIndex, note := range b.unspent {
		candidate := note.Nullifier(uint256.NewInt(uint64(leafIndex)))
		if candidate.Eq(&nullifier) {
			delete(b.unspent, leafIndex)
			b.spent[leafIndex] = note
			return note
		}
	}
	return nil
}

// IndexedAccount is an account tracked by the indexer. The contained signer
// decrypts incoming notes and derives nullifiers.
type IndexedAccount struct {
	signer    Signer
	notebooks map[uint32]*Notebook
	log       log.Logger
}

// NewIndexedAccount builds an account over a signer.
func NewIndexedAccount(signer Signer, logger log.Logger) *IndexedAccount {
	return &IndexedAccount{
		signer:    signer,
		notebooks: make(map[uint32]*Notebook),
		log:       logger,
	}
}

// Address returns the account's shielded address.
func (a *IndexedAccount) Address() address.Address {
	return a.signer.Address()
}

// Unspent returns the account's unspent notes across all trees, in tree and
// leaf order.
func (a *IndexedAccount) Unspent() []*UtxoNote {
	trees := make([]int, 0, len(a.notebooks))
	for tree := range a.notebooks {
		trees = append(trees, int(tree))
	}
	sort.Ints(trees)

	var out []*UtxoNote
	for _, tree := range trees {
		out = append(out, a.notebooks[uint32(tree)].Unspent()...)
	}
	return out
}

// Balance sums the unspent note values per asset.
func (a *IndexedAccount) Balance() map[asset.ID]uint256.Int {
	balances := make(map[asset.ID]uint256.Int)
	for _, note := range a.Unspent() {
		total := balances[note.Asset()]
		total.Add(&total, note.Value())
		balances[note.Asset()] = total
	}
	return balances
}

func (a *IndexedAccount) notebook(tree uint32) *Notebook {
	nb, ok := a.notebooks[tree]
	if !ok {
		nb = NewNotebook()
		a.notebooks[tree] = nb
	}
	return nb
}

// HandleShield tries to decrypt every shield ciphertext in the event for
// this account. Returns true if any note was added.
func (a *IndexedAccount) HandleShield(event *abis.ShieldEvent) bool {
	treeNumber := uint32(event.TreeNumber.Uint64())
	startPosition := uint32(event.StartPosition.Uint64())

	added := false
	for i := range event.ShieldCiphertext {
		tree, leaf := carryPosition(treeNumber, startPosition, uint32(i))

		req := abis.ShieldRequest{
			Preimage:   event.Commitments[i],
			Ciphertext: event.ShieldCiphertext[i],
		}

		note, err := DecryptShieldRequest(a.signer, tree, leaf, &req)
		if err != nil {
			if !errors.Is(err, keys.ErrDecryptFailed) {
				a.log.Warn("failed to decrypt shield note", "tree", tree, "leaf", leaf, "err", err)
			}
			continue
		}

		a.log.Info("decrypted shield note", "note", note.String())
		a.notebook(tree).Add(leaf, note)
		added = true
	}

	return added
}

// HandleTransact tries to decrypt every transact ciphertext in the event
// for this account. Returns true if any note was added.
func (a *IndexedAccount) HandleTransact(event *abis.TransactEvent) bool {
	treeNumber := uint32(event.TreeNumber.Uint64())
	startPosition := uint32(event.StartPosition.Uint64())

	added := false
	for i := range event.Ciphertext {
		tree, leaf := carryPosition(treeNumber, startPosition, uint32(i))

		note, err := DecryptNote(a.signer, tree, leaf, &event.Ciphertext[i])
		if err != nil {
			if !errors.Is(err, keys.ErrDecryptFailed) {
				a.log.Warn("failed to decrypt transact note", "tree", tree, "leaf", leaf, "err", err)
			}
			continue
		}

		a.log.Info("decrypted transact note", "note", note.String())
		a.notebook(tree).Add(leaf, note)
		added = true
	}

	return added
}

// HandleNullified spends any owned notes named by the event. Returns true
// if any note was spent.
func (a *IndexedAccount) HandleNullified(event *abis.NullifiedEvent, timestamp uint64) bool {
	tree := uint32(event.TreeNumber)

	matched := false
	for _, nullifier := range event.Nullifier {
		var n uint256.Int
		n.SetBytes(nullifier[:])
		if spent := a.notebook(tree).Nullify(n, timestamp); spent != nil {
			a.log.Info("nullified note", "note", spent.String())
			matched = true
		}
	}
	return matched
}

// carryPosition resolves (tree, start+offset), carrying into the next tree
// when the position crosses the 2^depth boundary.
func carryPosition(tree, start, offset uint32) (uint32, uint32) {
	if uint64(start)+uint64(offset) >= TotalLeaves {
		return tree + 1, start + offset - TotalLeaves
	}
	return tree, start + offset
}
