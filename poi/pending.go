// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/railgun"
)

// PendingSubmitter tracks operations that have been broadcast and are
// waiting for their on-chain txid position to become validated, so the
// post-transaction POI proofs can be generated and submitted to the
// aggregator.
type PendingSubmitter struct {
	pending []PendingEntry
	log     log.Logger
}

// PendingEntry is the minimal snapshot needed to re-prove and submit one
// operation's POI. Signers are stripped; all values are still sensitive and
// callers persisting the state should treat it accordingly.
type PendingEntry struct {
	// Txid looks up the on-chain position in the txid tree.
	Txid            railgun.Txid           `json:"txid"`
	SpendingPubkey  keys.SpendingPublicKey `json:"spendingPubkey"`
	NullifyingKey   uint256.Int            `json:"nullifyingKey"`
	UtxoTreeIn      uint32                 `json:"utxoTreeIn"`
	BoundParamsHash uint256.Int            `json:"boundParamsHash"`
	// InNotes are the input notes; fresh POI proofs are re-fetched at
	// process time.
	InNotes []railgun.NoteState `json:"inNotes"`
	// OutCommitments hashes every output note (fee + transfer + unshield,
	// unpadded).
	OutCommitments []uint256.Int `json:"outCommitments"`
	// OutNpks and OutValues cover the encryptable (non-unshield) outputs.
	OutNpks     []uint256.Int `json:"outNpks"`
	OutValues   []uint256.Int `json:"outValues"`
	Token       uint256.Int   `json:"token"`
	HasUnshield bool          `json:"hasUnshield"`
	ListKeys    []ListKey     `json:"listKeys"`
}

// PendingSubmitterState is the serialisable queue snapshot.
type PendingSubmitterState struct {
	Pending []PendingEntry `json:"pending"`
}

// NewPendingSubmitter builds an empty submitter.
func NewPendingSubmitter(logger log.Logger) *PendingSubmitter {
	return &PendingSubmitter{log: logger}
}

// SetState restores a snapshot.
func (s *PendingSubmitter) SetState(state PendingSubmitterState) {
	s.pending = state.Pending
}

// State snapshots the queue.
func (s *PendingSubmitter) State() PendingSubmitterState {
	return PendingSubmitterState{Pending: append([]PendingEntry(nil), s.pending...)}
}

// Len returns the number of queued entries.
func (s *PendingSubmitter) Len() int {
	return len(s.pending)
}

// Register queues a proved operation for post-transaction POI submission.
func (s *PendingSubmitter) Register(op *ProvedOperation) {
	if op.Txid == nil {
		return
	}

	inNotes := make([]railgun.NoteState, len(op.Operation.InNotes))
	for i, note := range op.Operation.InNotes {
		inNotes[i] = note.Inner().State()
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

	listKeys := make([]ListKey, 0, len(op.Pois))
	for listKey := range op.Pois {
		listKeys = append(listKeys, listKey)
	}

	s.log.Info("registering pending poi submission", "txid", op.Txid.Hex())
	s.pending = append(s.pending, PendingEntry{
		Txid:            *op.Txid,
		SpendingPubkey:  op.Operation.From.SpendingKey().PublicKey(),
		NullifyingKey:   op.Operation.From.ViewingKey().NullifyingKey().Uint(),
		UtxoTreeIn:      op.Operation.UtxoTreeNumber,
		BoundParamsHash: op.CircuitInputs.BoundParamsHash,
		InNotes:         inNotes,
		OutCommitments:  outCommitments,
		OutNpks:         outNpks,
		OutValues:       outValues,
		Token:           op.Operation.Token.Hash(),
		HasUnshield:     op.Operation.UnshieldNote != nil,
		ListKeys:        listKeys,
	})
}

// Process walks the queue in reverse (so removal is safe) and, for every
// entry whose txid now has a validated position, re-proves against the real
// txid tree position and submits to the aggregator. Returns the txids
// submitted.
func (s *PendingSubmitter) Process(ctx context.Context, txidIndexer *railgun.TxidIndexer,
	utxoIndexer *railgun.UtxoIndexer, client *Client, prover PoiProver) ([]railgun.Txid, error) {

	var submitted []railgun.Txid
	for i := len(s.pending) - 1; i >= 0; i-- {
		entry := s.pending[i]

		txidPos, ok := txidIndexer.TxidPosition(entry.Txid)
		if !ok {
			s.log.Info("txid not yet in txid tree, skipping", "txid", entry.Txid.Hex())
			continue
		}

		utxoPos, ok := txidIndexer.UtxoPosition(entry.Txid)
		if !ok {
			s.log.Info("txid not yet in utxo tree, skipping", "txid", entry.Txid.Hex())
			continue
		}

		txidTree, ok := txidIndexer.Tree(txidPos.Tree)
		if !ok {
			return submitted, ErrMissingTxidTree{TreeNumber: txidPos.Tree}
		}

		utxoTree, ok := utxoIndexer.Tree(entry.UtxoTreeIn)
		if !ok {
			return submitted, ErrMissingUtxoTree{TreeNumber: entry.UtxoTreeIn}
		}

		included := railgun.IncludedIndex(utxoPos.Tree, utxoPos.Index)

		// Re-fetch fresh POI proofs; notes whose proofs are unavailable
		// are skipped for this round.
		var poiNotes []*PoiNote
		for _, noteState := range entry.InNotes {
			note := railgun.NoteFromState(noteState)
			poiNote, err := client.NoteToPoiNote(ctx, note, entry.ListKeys)
			if err != nil {
				s.log.Info("failed to get poi note", "txid", entry.Txid.Hex(), "err", err)
				continue
			}
			poiNotes = append(poiNotes, poiNote)
		}

		proofData := make(map[ListKey]TransactProofData, len(entry.ListKeys))
		for _, listKey := range entry.ListKeys {
			inputs, err := NewCircuitInputsIncluded(
				entry.SpendingPubkey,
				entry.NullifyingKey,
				utxoTree,
				entry.UtxoTreeIn,
				entry.BoundParamsHash,
				poiNotes,
				entry.OutCommitments,
				entry.OutNpks,
				entry.OutValues,
				entry.Token,
				entry.HasUnshield,
				listKey,
				included,
				txidTree,
			)
			if err != nil {
				return submitted, err
			}

			proof, publicInputs, err := prover.ProvePoi(ctx, inputs)
			if err != nil {
				return submitted, err
			}

			merklerootIndex := uint64(txidPos.Tree)*uint64(railgun.TotalLeaves) +
				uint64(txidTree.LeavesLen()-1)

			proofData[listKey] = TransactProofData{
				Proof:                    proof,
				PoiMerkleroots:           toHexVec(inputs.PoiMerkleroots),
				TxidMerkleroot:           HexU256(inputs.TxidMerklerootAfterTransaction),
				TxidMerklerootIndex:      merklerootIndex,
				BlindedCommitmentsOut:    blindedFromPublicInputs(publicInputs, len(inputs.Commitments)),
				RailgunTxidIfHasUnshield: HexU256(inputs.RailgunTxidIfHasUnshield),
			}
		}

		if err := client.SubmitOperation(ctx, proofData); err != nil {
			return submitted, err
		}

		txid := entry.Txid
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.log.Info("submitted poi", "txid", txid.Hex())
		submitted = append(submitted, txid)
	}

	return submitted, nil
}

// ErrMissingUtxoTree reports a pending entry whose input tree is unsynced.
type ErrMissingUtxoTree struct {
	TreeNumber uint32
}

func (e ErrMissingUtxoTree) Error() string {
	return "poi: missing utxo tree"
}

// ErrMissingTxidTree reports a validated txid whose tree is unsynced.
type ErrMissingTxidTree struct {
	TreeNumber uint32
}

func (e ErrMissingTxidTree) Error() string {
	return "poi: missing txid tree"
}
