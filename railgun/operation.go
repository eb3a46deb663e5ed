// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/asset"
)

// maxOperationNotes is the circuit bound on inputs and outputs.
const maxOperationNotes = 13

// Operation is a single shielded transaction element (the contract's
// Transaction struct).
//
//   - An operation only spends notes from a single tree.
//   - An operation only spends a single asset, held by a single account:
//     the proof circuits take the spender keys and the token as single
//     private inputs.
//   - An operation has at most 13 inputs and 13 outputs, counting the
//     unshield note, which must be unique: the contract supports one
//     cleartext token/value pair per transaction.
type Operation[N IncludedNote] struct {
	// UtxoTreeNumber is the tree all input notes are spent from.
	UtxoTreeNumber uint32

	// From holds the assets being spent.
	From Signer

	// Token is the asset this operation spends.
	Token asset.ID

	InNotes      []N
	OutNotes     []TransferNote
	UnshieldNote *UnshieldNote
}

// ErrImbalanced reports an operation whose inputs and outputs do not sum.
type ErrImbalanced struct {
	In, Out, Unshield uint256.Int
}

func (e ErrImbalanced) Error() string {
	return fmt.Sprintf("railgun: imbalanced operation: %s != %s + %s",
		e.In.Dec(), e.Out.Dec(), e.Unshield.Dec())
}

// ErrTooManyNotes reports an operation exceeding the circuit bounds.
type ErrTooManyNotes struct {
	Count  int
	Inputs bool
}

func (e ErrTooManyNotes) Error() string {
	side := "output"
	if e.Inputs {
		side = "input"
	}
	return fmt.Sprintf("railgun: too many %s notes: %d > %d", side, e.Count, maxOperationNotes)
}

// NewOperation assembles an operation from parts.
func NewOperation[N IncludedNote](treeNumber uint32, from Signer, token asset.ID,
	in []N, out []TransferNote, unshield *UnshieldNote) Operation[N] {
	return Operation[N]{
		UtxoTreeNumber: treeNumber,
		From:           from,
		Token:          token,
		InNotes:        in,
		OutNotes:       out,
		UnshieldNote:   unshield,
	}
}

// InValue sums the input note values.
func (o *Operation[N]) InValue() uint256.Int {
	var total uint256.Int
	for i := range o.InNotes {
		total.Add(&total, o.InNotes[i].Value())
	}
	return total
}

// OutValue sums transfer and unshield output values.
func (o *Operation[N]) OutValue() uint256.Int {
	var total uint256.Int
	for i := range o.OutNotes {
		total.Add(&total, &o.OutNotes[i].Amount)
	}
	if o.UnshieldNote != nil {
		total.Add(&total, &o.UnshieldNote.Amount)
	}
	return total
}

// Verify checks the operation invariants.
func (o *Operation[N]) Verify() error {
	in := o.InValue()
	var out, unshield uint256.Int
	for i := range o.OutNotes {
		out.Add(&out, &o.OutNotes[i].Amount)
	}
	if o.UnshieldNote != nil {
		unshield = o.UnshieldNote.Amount
	}

	var sum uint256.Int
	sum.Add(&out, &unshield)
	if !in.Eq(&sum) {
		return ErrImbalanced{In: in, Out: out, Unshield: unshield}
	}

	outCount := len(o.OutNotes)
	if o.UnshieldNote != nil {
		outCount++
	}
	if outCount > maxOperationNotes {
		return ErrTooManyNotes{Count: outCount}
	}
	if len(o.InNotes) > maxOperationNotes {
		return ErrTooManyNotes{Count: len(o.InNotes), Inputs: true}
	}

	return nil
}

// AllOutNotes returns the non-zero output notes, transfers first and the
// unshield note last.
func (o *Operation[N]) AllOutNotes() []Note {
	notes := make([]Note, 0, len(o.OutNotes)+1)
	for i := range o.OutNotes {
		if !o.OutNotes[i].Amount.IsZero() {
			notes = append(notes, o.OutNotes[i])
		}
	}
	if o.UnshieldNote != nil && !o.UnshieldNote.Amount.IsZero() {
		notes = append(notes, *o.UnshieldNote)
	}
	return notes
}

// EncryptableOutNotes returns the non-zero transfer outputs, which are the
// notes that get a ciphertext on-chain.
func (o *Operation[N]) EncryptableOutNotes() []TransferNote {
	notes := make([]TransferNote, 0, len(o.OutNotes))
	for i := range o.OutNotes {
		if !o.OutNotes[i].Amount.IsZero() {
			notes = append(notes, o.OutNotes[i])
		}
	}
	return notes
}

// BlindedCommitments returns the input notes' blinded commitments.
func (o *Operation[N]) BlindedCommitments() []uint256.Int {
	out := make([]uint256.Int, len(o.InNotes))
	for i := range o.InNotes {
		out[i] = o.InNotes[i].BlindedCommitment()
	}
	return out
}

func (o *Operation[N]) String() string {
	return fmt.Sprintf("Operation(tree: %d, from: %s, asset: %s, in: %d, out: %d, unshield: %t)",
		o.UtxoTreeNumber, o.From.Address(), o.Token, len(o.InNotes), len(o.OutNotes), o.UnshieldNote != nil)
}
