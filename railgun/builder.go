// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// A "note" is an on-chain note, spendable as an operation input. An
// "operation" is a single shielded transaction element (the contract's
// Transaction struct): many inputs from one tree and one account, many
// outputs to arbitrary accounts, at most one unshield. An EVM transaction
// carries many operations across trees and accounts.

package railgun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poseidon"
)

// TransactProver proves the transact circuit.
type TransactProver interface {
	ProveTransact(ctx context.Context, inputs *TransactCircuitInputs) (circuit.Proof, []uint256.Int, error)
}

// TransferRequest is one requested shielded transfer.
type TransferRequest struct {
	From  Signer
	To    address.Address
	Token asset.ID
	Value uint256.Int
	Memo  string
}

// UnshieldRequest is one requested exit to a cleartext address.
type UnshieldRequest struct {
	From  Signer
	To    common.Address
	Token asset.ID
	Value uint256.Int
}

// TransactionBuilder accumulates transfer and unshield intents and builds
// proved operations from them.
type TransactionBuilder struct {
	Transfers []TransferRequest
	Unshields map[asset.ID]UnshieldRequest
	Signers   map[keys.ViewingPublicKey]Signer
}

var (
	// ErrMissingTree reports an operation referencing an unsynced tree.
	ErrMissingTree = errors.New("railgun: missing tree")
	// ErrNoInputNotes reports an operation that found no spendable inputs.
	ErrNoInputNotes = errors.New("railgun: no input notes")
	// ErrMixedTrees reports selected inputs spanning multiple trees.
	// Splitting an operation across trees is not implemented; spend the
	// trees in separate transactions.
	ErrMixedTrees = errors.New("railgun: input notes span multiple trees")
)

// NewTransactionBuilder builds an empty builder.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		Unshields: make(map[asset.ID]UnshieldRequest),
		Signers:   make(map[keys.ViewingPublicKey]Signer),
	}
}

// Transfer queues a shielded transfer.
func (b *TransactionBuilder) Transfer(from Signer, to address.Address, token asset.ID,
	value *uint256.Int, memo string) *TransactionBuilder {
	b.Signers[from.ViewingKey().PublicKey()] = from
	b.Transfers = append(b.Transfers, TransferRequest{
		From: from, To: to, Token: token, Value: *value, Memo: memo,
	})
	return b
}

// SetUnshield queues an unshield, at most one per asset. A repeated call
// for the same asset overwrites the previous request.
func (b *TransactionBuilder) SetUnshield(from Signer, to common.Address, token asset.ID,
	value *uint256.Int) *TransactionBuilder {
	b.Signers[from.ViewingKey().PublicKey()] = from
	b.Unshields[token] = UnshieldRequest{From: from, To: to, Token: token, Value: *value}
	return b
}

// OperationKey groups requests into operations by (sender, asset).
type OperationKey struct {
	From  address.Address
	Token asset.ID
}

// Clone copies the builder, sharing signers.
func (b *TransactionBuilder) Clone() *TransactionBuilder {
	out := NewTransactionBuilder()
	out.Transfers = append([]TransferRequest(nil), b.Transfers...)
	for k, v := range b.Unshields {
		out.Unshields[k] = v
	}
	for k, v := range b.Signers {
		out.Signers[k] = v
	}
	return out
}

// Build drafts, selects inputs for, proves and packs the queued requests
// into a ready-to-send transaction.
func (b *TransactionBuilder) Build(ctx context.Context, chain ChainConfig, indexer *UtxoIndexer,
	prover TransactProver, rand io.Reader) (*ProvedTx[*UtxoNote], error) {
	inNotes := indexer.AllUnspent()

	draft, err := DraftOperations[*UtxoNote](b, rand)
	if err != nil {
		return nil, err
	}

	ops, err := BuildOperations(draft, inNotes, rand)
	if err != nil {
		return nil, err
	}

	return ProveOperations(ctx, prover, indexer.Trees(), ops, chain, uint256.NewInt(0), rand)
}

// DraftOperations groups the queued transfers and unshields into one draft
// operation per (sender, asset), assigning fresh note randomness.
func DraftOperations[N IncludedNote](b *TransactionBuilder, rand io.Reader) (map[OperationKey]*Operation[N], error) {
	draft := make(map[OperationKey]*Operation[N])

	ensure := func(from Signer, token asset.ID) *Operation[N] {
		key := OperationKey{From: from.Address(), Token: token}
		op, ok := draft[key]
		if !ok {
			newOp := NewOperation[N](0, from, token, nil, nil, nil)
			op = &newOp
			draft[key] = op
		}
		return op
	}

	for _, transfer := range b.Transfers {
		var random [16]byte
		if _, err := io.ReadFull(rand, random[:]); err != nil {
			return nil, err
		}

		op := ensure(transfer.From, transfer.Token)
		op.OutNotes = append(op.OutNotes, NewTransferNote(
			transfer.From.ViewingKey(), transfer.To, transfer.Token,
			&transfer.Value, random, transfer.Memo))
	}

	for _, unshield := range b.Unshields {
		op := ensure(unshield.From, unshield.Token)
		note := NewUnshieldNote(unshield.To, unshield.Token, &unshield.Value)
		op.UnshieldNote = &note
	}

	return draft, nil
}

// BuildOperations populates the draft with input notes, resolves tree
// numbers and appends change notes, verifying every resulting operation.
func BuildOperations[N IncludedNote](draft map[OperationKey]*Operation[N], inNotes []N,
	rand io.Reader) ([]Operation[N], error) {

	var operations []Operation[N]
	for key, op := range draft {
		outValue := op.OutValue()
		op.InNotes = selectInNotes(key.From, key.Token, &outValue, inNotes)

		resolved, err := resolveTree(op)
		if err != nil {
			return nil, err
		}

		withChange, err := addChangeNote(resolved, rand)
		if err != nil {
			return nil, err
		}
		operations = append(operations, withChange)
	}

	for i := range operations {
		if err := operations[i].Verify(); err != nil {
			return nil, err
		}
	}

	return operations, nil
}

// selectInNotes greedily takes the sender's notes of the right asset in
// insertion order until the requested value is covered.
func selectInNotes[N IncludedNote](from address.Address, token asset.ID,
	value *uint256.Int, inNotes []N) []N {

	var selected []N
	var total uint256.Int
	for _, note := range inNotes {
		if note.ViewingPubkey() != from.ViewingPubkey || note.Asset() != token {
			continue
		}
		selected = append(selected, note)
		total.Add(&total, note.Value())
		if total.Cmp(value) >= 0 {
			break
		}
	}

	return selected
}

// resolveTree pins the operation to its inputs' tree. All selected inputs
// must come from the same tree.
func resolveTree[N IncludedNote](op *Operation[N]) (Operation[N], error) {
	if len(op.InNotes) == 0 {
		return Operation[N]{}, ErrNoInputNotes
	}

	treeNumber := op.InNotes[0].TreeNumber()
	for _, note := range op.InNotes {
		if note.TreeNumber() != treeNumber {
			return Operation[N]{}, ErrMixedTrees
		}
	}

	out := *op
	out.UtxoTreeNumber = treeNumber
	return out, nil
}

// addChangeNote sends any surplus input value back to the sender with fresh
// randomness.
func addChangeNote[N IncludedNote](op Operation[N], rand io.Reader) (Operation[N], error) {
	inValue := op.InValue()
	outValue := op.OutValue()

	if inValue.Cmp(&outValue) <= 0 {
		return op, nil
	}

	var change uint256.Int
	change.Sub(&inValue, &outValue)

	var random [16]byte
	if _, err := io.ReadFull(rand, random[:]); err != nil {
		return Operation[N]{}, err
	}

	op.OutNotes = append(append([]TransferNote(nil), op.OutNotes...), NewTransferNote(
		op.From.ViewingKey(), op.From.Address(), op.Token, &change, random, "change"))
	return op, nil
}

// ProvedOperation is an operation with its circuit inputs and contract form.
type ProvedOperation[N IncludedNote] struct {
	Operation     Operation[N]
	CircuitInputs TransactCircuitInputs
	Transaction   abis.Transaction
}

// ProvedTx is a fully proved transaction ready for submission.
type ProvedTx[N IncludedNote] struct {
	TxData           TxData
	ProvedOperations []ProvedOperation[N]
	MinGasPrice      uint256.Int
}

// ProveOperations proves each operation and packs the results into a single
// transact() call.
func ProveOperations[N IncludedNote](ctx context.Context, prover TransactProver,
	trees map[uint32]*UtxoTree, operations []Operation[N], chain ChainConfig,
	minGasPrice *uint256.Int, rand io.Reader) (*ProvedTx[N], error) {

	results, err := CreateTransactions(ctx, prover, trees, operations, chain,
		minGasPrice, common.Address{}, [32]byte{}, rand)
	if err != nil {
		return nil, err
	}

	transactions := make([]abis.Transaction, len(results))
	for i := range results {
		transactions[i] = results[i].Transaction
	}

	txData, err := TxDataFromTransactions(chain.SmartWallet, transactions)
	if err != nil {
		return nil, err
	}

	return &ProvedTx[N]{
		TxData:           txData,
		ProvedOperations: results,
		MinGasPrice:      *minGasPrice,
	}, nil
}

// CreateTransactions proves every operation into its contract form.
func CreateTransactions[N IncludedNote](ctx context.Context, prover TransactProver,
	trees map[uint32]*UtxoTree, operations []Operation[N], chain ChainConfig,
	minGasPrice *uint256.Int, adaptContract common.Address, adaptInput [32]byte,
	rand io.Reader) ([]ProvedOperation[N], error) {

	var out []ProvedOperation[N]
	for i := range operations {
		op := operations[i]
		if err := op.Verify(); err != nil {
			return nil, err
		}

		tree, ok := trees[op.UtxoTreeNumber]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrMissingTree, op.UtxoTreeNumber)
		}

		proved, err := createTransaction(ctx, prover, tree, &op, chain,
			minGasPrice, adaptContract, adaptInput, rand)
		if err != nil {
			return nil, err
		}
		out = append(out, proved)
	}

	return out, nil
}

func createTransaction[N IncludedNote](ctx context.Context, prover TransactProver,
	tree *UtxoTree, op *Operation[N], chain ChainConfig, minGasPrice *uint256.Int,
	adaptContract common.Address, adaptInput [32]byte, rand io.Reader) (ProvedOperation[N], error) {

	notesOut := op.AllOutNotes()

	unshieldType := abis.UnshieldNone
	if op.UnshieldNote != nil {
		unshieldType = op.UnshieldNote.UnshieldType()
	}

	encryptable := op.EncryptableOutNotes()
	ciphertexts := make([]abis.CommitmentCiphertext, len(encryptable))
	for i := range encryptable {
		ct, err := encryptable[i].Encrypt(rand)
		if err != nil {
			return ProvedOperation[N]{}, err
		}
		ciphertexts[i] = ct
	}

	boundParams := abis.NewBoundParams(uint16(tree.Number()), minGasPrice, unshieldType,
		chain.ID, adaptContract, adaptInput, ciphertexts)
	boundParamsHash, err := boundParams.Hash()
	if err != nil {
		return ProvedOperation[N]{}, err
	}

	signFn := func(unsigned []uint256.Int) ([3]uint256.Int, error) {
		return signOperation(op.From, unsigned)
	}

	inputs, err := NewTransactCircuitInputs(tree, boundParamsHash, op.InNotes, notesOut, signFn)
	if err != nil {
		return ProvedOperation[N]{}, err
	}

	proof, _, err := prover.ProveTransact(ctx, &inputs)
	if err != nil {
		return ProvedOperation[N]{}, err
	}

	nullifiers := make([][32]byte, len(inputs.Nullifiers))
	for i := range inputs.Nullifiers {
		nullifiers[i] = inputs.Nullifiers[i].Bytes32()
	}
	commitments := make([][32]byte, len(inputs.CommitmentsOut))
	for i := range inputs.CommitmentsOut {
		commitments[i] = inputs.CommitmentsOut[i].Bytes32()
	}

	unshieldPreimage := abis.CommitmentPreimage{
		Token: abis.TokenData{TokenSubID: new(big.Int)},
		Value: new(big.Int),
	}
	if op.UnshieldNote != nil {
		unshieldPreimage = op.UnshieldNote.Preimage()
	}

	transaction := abis.Transaction{
		Proof:            abis.NewSnarkProof(proof),
		MerkleRoot:       inputs.MerkleRoot.Bytes32(),
		Nullifiers:       nullifiers,
		Commitments:      commitments,
		BoundParams:      boundParams,
		UnshieldPreimage: unshieldPreimage,
	}

	return ProvedOperation[N]{Operation: *op, CircuitInputs: inputs, Transaction: transaction}, nil
}

// signOperation poseidon-hashes the unsigned message and signs it with the
// operation owner's spending key.
func signOperation(from Signer, unsigned []uint256.Int) ([3]uint256.Int, error) {
	digest, err := poseidon.Hash(unsigned)
	if err != nil {
		return [3]uint256.Int{}, err
	}
	sig, err := from.Sign(&digest)
	if err != nil {
		return [3]uint256.Int{}, err
	}
	return [3]uint256.Int{sig.R8X, sig.R8Y, sig.S}, nil
}
