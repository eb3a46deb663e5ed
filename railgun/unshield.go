// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/poseidon"
)

// UnshieldNote is value exiting the pool to a cleartext address.
type UnshieldNote struct {
	Receiver common.Address
	Token    asset.ID
	Amount   uint256.Int
}

// NewUnshieldNote builds an unshield output note.
func NewUnshieldNote(receiver common.Address, a asset.ID, value *uint256.Int) UnshieldNote {
	return UnshieldNote{Receiver: receiver, Token: a, Amount: *value}
}

// Asset returns the note's asset.
func (n UnshieldNote) Asset() asset.ID { return n.Token }

// Value returns the note's value.
func (n UnshieldNote) Value() *uint256.Int { v := n.Amount; return &v }

// Memo returns the empty memo.
func (n UnshieldNote) Memo() string { return "" }

// Hash returns the commitment Poseidon(npk, assetHash, value).
func (n UnshieldNote) Hash() uint256.Int {
	assetHash := n.Token.Hash()
	return poseidon.MustHash(n.NotePublicKey(), assetHash, n.Amount)
}

// NotePublicKey is the receiver address zero-extended to a field element.
func (n UnshieldNote) NotePublicKey() uint256.Int {
	var out uint256.Int
	out.SetBytes(n.Receiver.Bytes())
	return out
}

// Preimage returns the cleartext commitment preimage for the contract call.
func (n UnshieldNote) Preimage() abis.CommitmentPreimage {
	npk := n.NotePublicKey()
	return abis.CommitmentPreimage{
		Npk:   npk.Bytes32(),
		Token: abis.NewTokenData(n.Token),
		Value: n.Amount.ToBig(),
	}
}

// UnshieldType returns the contract unshield mode for this note.
func (n UnshieldNote) UnshieldType() abis.UnshieldType {
	return abis.UnshieldNormal
}
