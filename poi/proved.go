// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/railgun"
)

// ProvedTx is a proved transaction with POI proofs for every operation.
type ProvedTx struct {
	// TxData executes the transaction on-chain.
	TxData railgun.TxData
	// Operations are the proved operations with their POI proofs.
	Operations  []*ProvedOperation
	MinGasPrice uint256.Int
	// Fee is set when the transaction goes through a broadcaster.
	Fee *Fee
}

// ProvedOperation is a proved operation with POI proofs per list key.
type ProvedOperation struct {
	Operation     railgun.Operation[*PoiNote]
	CircuitInputs railgun.TransactCircuitInputs
	Transaction   abis.Transaction
	// Pois holds the pre-transaction POI proofs keyed by list.
	Pois map[ListKey]PreTransactionPoi
	// Txid and TxidLeafHash are computed on the first AddPois call.
	Txid         *railgun.Txid
	TxidLeafHash *uint256.Int
}

// AddPois generates a POI proof for each list key not yet covered.
func (op *ProvedOperation) AddPois(ctx context.Context, prover PoiProver, listKeys []ListKey,
	utxoTrees map[uint32]*railgun.UtxoTree) error {

	tree, ok := utxoTrees[op.Operation.UtxoTreeNumber]
	if !ok {
		return fmt.Errorf("%w: %d", railgun.ErrMissingTree, op.Operation.UtxoTreeNumber)
	}

	for _, listKey := range listKeys {
		if _, done := op.Pois[listKey]; done {
			continue
		}

		outNotes := op.Operation.AllOutNotes()
		outCommitments := make([]uint256.Int, len(outNotes))
		for i := range outNotes {
			outCommitments[i] = outNotes[i].Hash()
		}

		encryptable := op.Operation.EncryptableOutNotes()
		outNpks := make([]uint256.Int, len(encryptable))
		outValues := make([]uint256.Int, len(encryptable))
		for i := range encryptable {
			outNpks[i] = encryptable[i].NotePublicKey()
			outValues[i] = encryptable[i].Amount
		}

		inputs, err := NewCircuitInputs(
			op.Operation.From.SpendingKey().PublicKey(),
			op.Operation.From.ViewingKey().NullifyingKey().Uint(),
			tree,
			op.Operation.UtxoTreeNumber,
			op.CircuitInputs.BoundParamsHash,
			op.Operation.InNotes,
			outCommitments, outNpks, outValues,
			op.Operation.Token.Hash(),
			op.Operation.UnshieldNote != nil,
			listKey,
		)
		if err != nil {
			return err
		}

		if op.TxidLeafHash == nil {
			txid := inputs.Txid
			leaf := inputs.TxidLeafHash
			op.Txid = &txid
			op.TxidLeafHash = &leaf
		}

		proof, publicInputs, err := prover.ProvePoi(ctx, inputs)
		if err != nil {
			return err
		}

		op.Pois[listKey] = PreTransactionPoi{
			Proof:                    proof,
			TxidMerkleroot:           HexU256(inputs.TxidMerklerootAfterTransaction),
			PoiMerkleroots:           toHexVec(inputs.PoiMerkleroots),
			BlindedCommitmentsOut:    blindedFromPublicInputs(publicInputs, len(inputs.Commitments)),
			RailgunTxidIfHasUnshield: HexU256(inputs.RailgunTxidIfHasUnshield),
		}
	}

	return nil
}

// blindedFromPublicInputs extracts the blinded output commitments from the
// head of the proof's public inputs.
func blindedFromPublicInputs(publicInputs []uint256.Int, count int) []HexU256 {
	if count > len(publicInputs) {
		count = len(publicInputs)
	}
	out := make([]HexU256, count)
	for i := 0; i < count; i++ {
		out[i] = HexU256(publicInputs[i])
	}
	return out
}

func toHexVec(vals []uint256.Int) []HexU256 {
	out := make([]HexU256, len(vals))
	for i := range vals {
		out[i] = HexU256(vals[i])
	}
	return out
}
