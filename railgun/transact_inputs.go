// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/merkle"
)

// TransactCircuitInputs carries the named signals of the transact SNARK.
type TransactCircuitInputs struct {
	// Public inputs.
	MerkleRoot      uint256.Int
	BoundParamsHash uint256.Int
	Nullifiers      []uint256.Int
	CommitmentsOut  []uint256.Int

	// Private inputs.
	Token         uint256.Int
	PublicKey     [2]uint256.Int
	Signature     [3]uint256.Int
	RandomIn      []uint256.Int
	ValueIn       []uint256.Int
	PathElements  [][]uint256.Int
	LeavesIndices []uint256.Int
	NullifyingKey uint256.Int
	NpkOut        []uint256.Int
	ValueOut      []uint256.Int
}

// ErrEmptyNotes reports an operation with no inputs or no outputs.
var ErrEmptyNotes = errors.New("railgun: operation has no input or output notes")

// NewTransactCircuitInputs assembles the transact witness for one
// operation: inclusion proofs and nullifiers for every input, commitment
// hashes for every output, and the EdDSA signature of the first input's
// owner over [root, boundParamsHash, nullifiers..., commitments...].
func NewTransactCircuitInputs[N IncludedNote](tree *UtxoTree, boundParamsHash uint256.Int,
	notesIn []N, notesOut []Note, sign func([]uint256.Int) ([3]uint256.Int, error)) (TransactCircuitInputs, error) {

	if len(notesIn) == 0 || len(notesOut) == 0 {
		return TransactCircuitInputs{}, ErrEmptyNotes
	}

	root := tree.Root()

	proofs := make([]merkle.Proof, len(notesIn))
	for i := range notesIn {
		proof, err := tree.GenerateProof(notesIn[i].Hash())
		if err != nil {
			return TransactCircuitInputs{}, err
		}
		proofs[i] = proof
	}

	nullifiers := make([]uint256.Int, len(notesIn))
	for i := range notesIn {
		nullifiers[i] = notesIn[i].Nullifier(&proofs[i].Indices)
	}

	commitments := make([]uint256.Int, len(notesOut))
	for i := range notesOut {
		commitments[i] = notesOut[i].Hash()
	}

	noteZero := notesIn[0]
	unsigned := make([]uint256.Int, 0, 2+len(nullifiers)+len(commitments))
	unsigned = append(unsigned, root, boundParamsHash)
	unsigned = append(unsigned, nullifiers...)
	unsigned = append(unsigned, commitments...)

	signature, err := sign(unsigned)
	if err != nil {
		return TransactCircuitInputs{}, err
	}

	randomIn := make([]uint256.Int, len(notesIn))
	valueIn := make([]uint256.Int, len(notesIn))
	pathElements := make([][]uint256.Int, len(notesIn))
	leavesIndices := make([]uint256.Int, len(notesIn))
	for i := range notesIn {
		random := notesIn[i].Random()
		randomIn[i].SetBytes(random[:])
		valueIn[i] = *notesIn[i].Value()
		pathElements[i] = proofs[i].Siblings
		leavesIndices[i] = proofs[i].Indices
	}

	npkOut := make([]uint256.Int, len(notesOut))
	valueOut := make([]uint256.Int, len(notesOut))
	for i := range notesOut {
		npkOut[i] = notesOut[i].NotePublicKey()
		valueOut[i] = *notesOut[i].Value()
	}

	return TransactCircuitInputs{
		MerkleRoot:      root,
		BoundParamsHash: boundParamsHash,
		Nullifiers:      nullifiers,
		CommitmentsOut:  commitments,
		Token:           noteZero.Asset().Hash(),
		PublicKey:       noteZero.SpendingPubkey(),
		Signature:       signature,
		RandomIn:        randomIn,
		ValueIn:         valueIn,
		PathElements:    pathElements,
		LeavesIndices:   leavesIndices,
		NullifyingKey:   noteZero.NullifyingKey(),
		NpkOut:          npkOut,
		ValueOut:        valueOut,
	}, nil
}

// Signals flattens the inputs into the named map the prover consumes.
func (in *TransactCircuitInputs) Signals() circuit.Signals {
	return circuit.Signals{
		"merkleRoot":      circuit.Signal(in.MerkleRoot),
		"boundParamsHash": circuit.Signal(in.BoundParamsHash),
		"nullifiers":      circuit.SignalVec(in.Nullifiers),
		"commitmentsOut":  circuit.SignalVec(in.CommitmentsOut),
		"token":           circuit.Signal(in.Token),
		"publicKey":       circuit.SignalVec(in.PublicKey[:]),
		"signature":       circuit.SignalVec(in.Signature[:]),
		"randomIn":        circuit.SignalVec(in.RandomIn),
		"valueIn":         circuit.SignalVec(in.ValueIn),
		"pathElements":    circuit.SignalMatrix(in.PathElements),
		"leavesIndices":   circuit.SignalVec(in.LeavesIndices),
		"nullifyingKey":   circuit.Signal(in.NullifyingKey),
		"npkOut":          circuit.SignalVec(in.NpkOut),
		"valueOut":        circuit.SignalVec(in.ValueOut),
	}
}
