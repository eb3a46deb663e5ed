// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/field"
	"github.com/luxfi/veil/merkle"
)

// WithdrawCircuitInputs carries the named signals of the withdraw SNARK.
type WithdrawCircuitInputs struct {
	// Public inputs.
	MerkleRoot    uint256.Int
	NullifierHash uint256.Int
	Recipient     uint256.Int
	Relayer       uint256.Int
	Fee           uint256.Int
	Refund        uint256.Int

	// Private inputs.
	Nullifier    uint256.Int
	Secret       uint256.Int
	PathElements []uint256.Int
	PathIndices  []uint256.Int
}

// NewWithdrawCircuitInputs assembles the withdraw witness for a note: the
// inclusion proof padded to the full tree depth, with indices unpacked into
// per-level bits.
func NewWithdrawCircuitInputs(tree *merkle.Tree, note *Note, recipient, relayer common.Address,
	fee, refund *uint256.Int) (WithdrawCircuitInputs, error) {

	proof, err := tree.GenerateProof(note.Commitment())
	if err != nil {
		return WithdrawCircuitInputs{}, err
	}

	pathElements := make([]uint256.Int, TreeDepth)
	pathIndices := make([]uint256.Int, TreeDepth)
	for i := 0; i < TreeDepth && i < len(proof.Siblings); i++ {
		pathElements[i] = proof.Siblings[i]
	}
	indices := proof.Indices.Uint64()
	for i := 0; i < TreeDepth; i++ {
		if indices>>uint(i)&1 == 1 {
			pathIndices[i] = *uint256.NewInt(1)
		}
	}

	var recipientWord, relayerWord uint256.Int
	recipientWord.SetBytes(recipient.Bytes())
	relayerWord.SetBytes(relayer.Bytes())

	return WithdrawCircuitInputs{
		MerkleRoot:    tree.Root(),
		NullifierHash: note.NullifierHash(),
		Recipient:     recipientWord,
		Relayer:       relayerWord,
		Fee:           *fee,
		Refund:        *refund,
		Nullifier:     field.FromBytesLE(note.Nullifier[:]),
		Secret:        field.FromBytesLE(note.Secret[:]),
		PathElements:  pathElements,
		PathIndices:   pathIndices,
	}, nil
}

// Signals flattens the inputs into the named map the prover consumes.
func (in *WithdrawCircuitInputs) Signals() circuit.Signals {
	return circuit.Signals{
		"root":          circuit.Signal(in.MerkleRoot),
		"nullifierHash": circuit.Signal(in.NullifierHash),
		"recipient":     circuit.Signal(in.Recipient),
		"relayer":       circuit.Signal(in.Relayer),
		"fee":           circuit.Signal(in.Fee),
		"refund":        circuit.Signal(in.Refund),
		"nullifier":     circuit.Signal(in.Nullifier),
		"secret":        circuit.Signal(in.Secret),
		"pathElements":  circuit.SignalVec(in.PathElements),
		"pathIndices":   circuit.SignalVec(in.PathIndices),
	}
}
