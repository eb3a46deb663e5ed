// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/railgun"
)

// PoiProver proves the POI circuit. The circuit exists in 3x3 and 13x13
// sizes; implementations select by the padded input width.
type PoiProver interface {
	ProvePoi(ctx context.Context, inputs *CircuitInputs) (circuit.Proof, []uint256.Int, error)
}

// CircuitInputs carries the named signals of the POI SNARK, padded to the
// selected circuit size.
type CircuitInputs struct {
	// Public inputs.
	TxidMerklerootAfterTransaction uint256.Int
	// PoiMerkleroots holds the unpadded roots from the per-note POI proofs;
	// the padded variant feeds the circuit.
	PoiMerkleroots       []uint256.Int
	poiMerklerootsPadded []uint256.Int

	// Private inputs.
	BoundParamsHash uint256.Int
	Nullifiers      []uint256.Int
	Commitments     []uint256.Int

	SpendingPublicKey [2]uint256.Int
	NullifyingKey     uint256.Int

	Token           uint256.Int
	RandomsIn       []uint256.Int
	ValuesIn        []uint256.Int
	UtxoPositionsIn []uint256.Int
	UtxoTreeIn      uint256.Int

	NpksOut   []uint256.Int
	ValuesOut []uint256.Int

	UtxoBatchGlobalStartPositionOut uint256.Int

	RailgunTxidIfHasUnshield    uint256.Int
	TxidMerkleProofIndices      uint256.Int
	TxidMerkleProofPathElements []uint256.Int

	PoiInMerkleProofIndices      []uint256.Int
	PoiInMerkleProofPathElements [][]uint256.Int

	// Helper fields, not circuit signals.
	Txid         railgun.Txid
	TxidLeafHash uint256.Int
}

// ErrMissingPoiProofs reports a note lacking a proof for a list key.
type ErrMissingPoiProofs struct {
	ListKey ListKey
}

func (e ErrMissingPoiProofs) Error() string {
	return fmt.Sprintf("poi: missing poi proofs for list key %s", e.ListKey)
}

// circuitSize selects the 3-wide circuit when both sides fit, else 13.
func circuitSize(nullifiers, commitments int) int {
	if nullifiers <= 3 && commitments <= 3 {
		return 3
	}
	return 13
}

// CircuitName maps the padded size to the prover's circuit identifier.
func (in *CircuitInputs) CircuitName() string {
	if len(in.Nullifiers) <= 3 {
		return "poi_3x3"
	}
	return "poi_13x13"
}

func padWith(vals []uint256.Int, target int, fill uint256.Int) []uint256.Int {
	out := append([]uint256.Int(nil), vals...)
	for len(out) < target {
		out = append(out, fill)
	}
	return out
}

func padPaths(paths [][]uint256.Int, target int) [][]uint256.Int {
	zero := railgun.UtxoMerkleZero()
	empty := make([]uint256.Int, railgun.TreeDepth)
	for i := range empty {
		empty[i] = zero
	}

	out := append([][]uint256.Int(nil), paths...)
	for len(out) < target {
		out = append(out, append([]uint256.Int(nil), empty...))
	}
	return out
}

// NewCircuitInputs builds pre-transaction POI inputs using the
// deterministic pre-inclusion txid proof. Used when handing proofs to
// broadcasters.
func NewCircuitInputs(spendingPub keys.SpendingPublicKey, nullifyingKey uint256.Int,
	utxoTree *railgun.UtxoTree, utxoTreeIn uint32, boundParamsHash uint256.Int,
	inNotes []*PoiNote, outCommitments, outNpks, outValues []uint256.Int,
	token uint256.Int, hasUnshield bool, listKey ListKey) (*CircuitInputs, error) {

	nullifiers, err := computeNullifiers(utxoTree, inNotes)
	if err != nil {
		return nil, err
	}

	txid := railgun.NewTxid(nullifiers, outCommitments, boundParamsHash)
	treeIndex := railgun.PreInclusionIndex()
	leafHash := railgun.NewTxidLeaf(txid, utxoTreeIn, treeIndex)
	txidProof := railgun.PreInclusionTxidProof(leafHash)

	return assemble(spendingPub, nullifyingKey, boundParamsHash, utxoTreeIn, inNotes,
		outCommitments, outNpks, outValues, token, hasUnshield, listKey,
		nullifiers, txid, leafHash, treeIndex, txidProof)
}

// NewCircuitInputsIncluded builds post-transaction POI inputs using the
// txid's real on-chain position. Used when submitting to the aggregator.
func NewCircuitInputsIncluded(spendingPub keys.SpendingPublicKey, nullifyingKey uint256.Int,
	utxoTree *railgun.UtxoTree, utxoTreeIn uint32, boundParamsHash uint256.Int,
	inNotes []*PoiNote, outCommitments, outNpks, outValues []uint256.Int,
	token uint256.Int, hasUnshield bool, listKey ListKey,
	included railgun.UtxoTreeIndex, txidTree *railgun.TxidTree) (*CircuitInputs, error) {

	nullifiers, err := computeNullifiers(utxoTree, inNotes)
	if err != nil {
		return nil, err
	}

	txid := railgun.NewTxid(nullifiers, outCommitments, boundParamsHash)
	leafHash := railgun.NewTxidLeaf(txid, utxoTreeIn, included)
	txidProof, err := txidTree.GenerateProof(leafHash)
	if err != nil {
		return nil, err
	}

	return assemble(spendingPub, nullifyingKey, boundParamsHash, utxoTreeIn, inNotes,
		outCommitments, outNpks, outValues, token, hasUnshield, listKey,
		nullifiers, txid, leafHash, included, txidProof)
}

func computeNullifiers(utxoTree *railgun.UtxoTree, inNotes []*PoiNote) ([]uint256.Int, error) {
	nullifiers := make([]uint256.Int, len(inNotes))
	for i, note := range inNotes {
		proof, err := utxoTree.GenerateProof(note.Hash())
		if err != nil {
			return nil, err
		}
		nullifiers[i] = note.Nullifier(&proof.Indices)
	}
	return nullifiers, nil
}

func assemble(spendingPub keys.SpendingPublicKey, nullifyingKey uint256.Int,
	boundParamsHash uint256.Int, utxoTreeIn uint32, inNotes []*PoiNote,
	outCommitments, outNpks, outValues []uint256.Int, token uint256.Int,
	hasUnshield bool, listKey ListKey, nullifiers []uint256.Int,
	txid railgun.Txid, leafHash uint256.Int, treeIndex railgun.UtxoTreeIndex,
	txidProof merkle.Proof) (*CircuitInputs, error) {

	poiProofs := make([]merkle.Proof, len(inNotes))
	for i, note := range inNotes {
		proof, ok := note.PoiMerkleProofs()[listKey]
		if !ok {
			return nil, ErrMissingPoiProofs{ListKey: listKey}
		}
		poiProofs[i] = proof
	}

	poiRoots := make([]uint256.Int, len(poiProofs))
	poiIndices := make([]uint256.Int, len(poiProofs))
	poiPaths := make([][]uint256.Int, len(poiProofs))
	for i, proof := range poiProofs {
		poiRoots[i] = proof.Root
		poiIndices[i] = proof.Indices
		poiPaths[i] = proof.Siblings
	}

	randomsIn := make([]uint256.Int, len(inNotes))
	valuesIn := make([]uint256.Int, len(inNotes))
	positionsIn := make([]uint256.Int, len(inNotes))
	for i, note := range inNotes {
		random := note.Random()
		randomsIn[i].SetBytes(random[:])
		valuesIn[i] = *note.Value()
		positionsIn[i] = *uint256.NewInt(uint64(note.LeafIndex()))
	}

	var txidIfUnshield uint256.Int
	if hasUnshield {
		txidIfUnshield = txid.Uint()
	}

	size := circuitSize(len(nullifiers), len(outCommitments))
	zero := railgun.UtxoMerkleZero()
	var zeroWord uint256.Int

	return &CircuitInputs{
		TxidMerklerootAfterTransaction:  txidProof.Root,
		PoiMerkleroots:                  poiRoots,
		poiMerklerootsPadded:            padWith(poiRoots, size, zero),
		BoundParamsHash:                 boundParamsHash,
		Nullifiers:                      padWith(nullifiers, size, zero),
		Commitments:                     padWith(outCommitments, size, zero),
		SpendingPublicKey:               [2]uint256.Int{spendingPub.XUint(), spendingPub.YUint()},
		NullifyingKey:                   nullifyingKey,
		Token:                           token,
		RandomsIn:                       padWith(randomsIn, size, zero),
		ValuesIn:                        padWith(valuesIn, size, zeroWord),
		UtxoPositionsIn:                 padWith(positionsIn, size, zero),
		UtxoTreeIn:                      *uint256.NewInt(uint64(utxoTreeIn)),
		NpksOut:                         padWith(outNpks, size, zero),
		ValuesOut:                       padWith(outValues, size, zeroWord),
		UtxoBatchGlobalStartPositionOut: *uint256.NewInt(treeIndex.GlobalIndex()),
		RailgunTxidIfHasUnshield:        txidIfUnshield,
		TxidMerkleProofIndices:          txidProof.Indices,
		TxidMerkleProofPathElements:     txidProof.Siblings,
		PoiInMerkleProofIndices:         padWith(poiIndices, size, zeroWord),
		PoiInMerkleProofPathElements:    padPaths(poiPaths, size),
		Txid:                            txid,
		TxidLeafHash:                    leafHash,
	}, nil
}

// Signals flattens the inputs into the named map the prover consumes.
func (in *CircuitInputs) Signals() circuit.Signals {
	return circuit.Signals{
		"anyRailgunTxidMerklerootAfterTransaction": circuit.Signal(in.TxidMerklerootAfterTransaction),
		"boundParamsHash":                          circuit.Signal(in.BoundParamsHash),
		"nullifiers":                               circuit.SignalVec(in.Nullifiers),
		"commitmentsOut":                           circuit.SignalVec(in.Commitments),
		"spendingPublicKey":                        circuit.SignalVec(in.SpendingPublicKey[:]),
		"nullifyingKey":                            circuit.Signal(in.NullifyingKey),
		"token":                                    circuit.Signal(in.Token),
		"randomsIn":                                circuit.SignalVec(in.RandomsIn),
		"valuesIn":                                 circuit.SignalVec(in.ValuesIn),
		"utxoPositionsIn":                          circuit.SignalVec(in.UtxoPositionsIn),
		"utxoTreeIn":                               circuit.Signal(in.UtxoTreeIn),
		"npksOut":                                  circuit.SignalVec(in.NpksOut),
		"valuesOut":                                circuit.SignalVec(in.ValuesOut),
		"utxoBatchGlobalStartPositionOut":          circuit.Signal(in.UtxoBatchGlobalStartPositionOut),
		"railgunTxidIfHasUnshield":                 circuit.Signal(in.RailgunTxidIfHasUnshield),
		"railgunTxidMerkleProofIndices":            circuit.Signal(in.TxidMerkleProofIndices),
		"railgunTxidMerkleProofPathElements":       circuit.SignalVec(in.TxidMerkleProofPathElements),
		"poiMerkleroots":                           circuit.SignalVec(in.poiMerklerootsPadded),
		"poiInMerkleProofIndices":                  circuit.SignalVec(in.PoiInMerkleProofIndices),
		"poiInMerkleProofPathElements":             circuit.SignalMatrix(in.PoiInMerkleProofPathElements),
	}
}
