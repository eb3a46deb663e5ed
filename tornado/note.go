// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tornado implements the client engine for the small-denomination
// pool mixer: deposit notes, the MiMC commitment tree, the event indexer
// and withdrawal building.
package tornado

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/pedersen"
)

// Note is a pool deposit note: two 31-byte little-endian secrets plus the
// pool coordinates needed to rebuild the note string.
type Note struct {
	// Nullifier is 248 bits of spend entropy.
	Nullifier [31]byte
	// Secret is 248 bits of blinding entropy.
	Secret [31]byte

	Symbol  string
	Amount  string
	ChainID uint64
}

var (
	// ErrInvalidNoteFormat reports an unparseable note string.
	ErrInvalidNoteFormat = errors.New("tornado: invalid note format")
	// ErrInvalidChainID reports a note string with a bad chain id.
	ErrInvalidChainID = errors.New("tornado: invalid chain id")
)

// NewNote builds a note from its parts.
func NewNote(nullifier, secret [31]byte, symbol, amount string, chainID uint64) Note {
	return Note{
		Nullifier: nullifier,
		Secret:    secret,
		Symbol:    symbol,
		Amount:    amount,
		ChainID:   chainID,
	}
}

// RandomNote generates a fresh note for the given pool.
func RandomNote(rand io.Reader, symbol, amount string, chainID uint64) (Note, error) {
	var note Note
	if _, err := io.ReadFull(rand, note.Nullifier[:]); err != nil {
		return Note{}, err
	}
	if _, err := io.ReadFull(rand, note.Secret[:]); err != nil {
		return Note{}, err
	}
	note.Symbol = symbol
	note.Amount = amount
	note.ChainID = chainID
	return note, nil
}

// Preimage returns nullifier || secret.
func (n *Note) Preimage() [62]byte {
	var out [62]byte
	copy(out[:31], n.Nullifier[:])
	copy(out[31:], n.Secret[:])
	return out
}

// Commitment is Pedersen(nullifier || secret), the deposit leaf.
func (n *Note) Commitment() uint256.Int {
	preimage := n.Preimage()
	return pedersen.Hash(preimage[:])
}

// NullifierHash is Pedersen(nullifier), revealed at withdrawal.
func (n *Note) NullifierHash() uint256.Int {
	return pedersen.Hash(n.Nullifier[:])
}

// String renders "tornado-{symbol}-{amount}-{chainId}-0x{124-hex}".
func (n Note) String() string {
	preimage := n.Preimage()
	return fmt.Sprintf("tornado-%s-%s-%d-0x%s",
		n.Symbol, n.Amount, n.ChainID, hex.EncodeToString(preimage[:]))
}

// ParseNote parses a note string.
func ParseNote(s string) (Note, error) {
	parts := strings.SplitN(s, "-", 5)
	if len(parts) != 5 || parts[0] != "tornado" {
		return Note{}, ErrInvalidNoteFormat
	}

	chainID, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Note{}, ErrInvalidChainID
	}

	hexStr := strings.TrimPrefix(parts[4], "0x")
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return Note{}, fmt.Errorf("%w: %v", ErrInvalidNoteFormat, err)
	}
	if len(raw) != 62 {
		return Note{}, ErrInvalidNoteFormat
	}

	var note Note
	copy(note.Nullifier[:], raw[:31])
	copy(note.Secret[:], raw[31:])
	note.Symbol = parts[1]
	note.Amount = parts[2]
	note.ChainID = chainID
	return note, nil
}
