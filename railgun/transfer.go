// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"io"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poseidon"
)

// TransferNote is value being sent from one shielded account to another.
type TransferNote struct {
	FromKey keys.ViewingKey
	To      address.Address
	Token   asset.ID
	Amount  uint256.Int
	Rand    [16]byte
	MemoStr string
}

// NewTransferNote builds a transfer output note.
func NewTransferNote(fromKey keys.ViewingKey, to address.Address, a asset.ID,
	value *uint256.Int, random [16]byte, memo string) TransferNote {
	return TransferNote{
		FromKey: fromKey,
		To:      to,
		Token:   a,
		Amount:  *value,
		Rand:    random,
		MemoStr: memo,
	}
}

// Asset returns the note's asset.
func (n TransferNote) Asset() asset.ID { return n.Token }

// Value returns the note's value.
func (n TransferNote) Value() *uint256.Int { v := n.Amount; return &v }

// Memo returns the note's memo text.
func (n TransferNote) Memo() string { return n.MemoStr }

// Hash returns the commitment Poseidon(npk, assetHash, value).
func (n TransferNote) Hash() uint256.Int {
	assetHash := n.Token.Hash()
	return poseidon.MustHash(n.NotePublicKey(), assetHash, n.Amount)
}

// NotePublicKey returns Poseidon(receiverMaster, random).
func (n TransferNote) NotePublicKey() uint256.Int {
	var r uint256.Int
	r.SetBytes(n.Rand[:])
	return poseidon.MustHash(n.To.MasterKey.Uint(), r)
}

// Encrypt produces the commitment ciphertext addressed to the receiver.
func (n TransferNote) Encrypt(rand io.Reader) (abis.CommitmentCiphertext, error) {
	return encryptNote(&n.To, n.Rand, &n.Amount, n.Token, n.MemoStr, n.FromKey, false, rand)
}
