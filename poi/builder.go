// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"io"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/railgun"
)

// TransactionBuilder builds proved transactions with POI proofs attached,
// optionally negotiating a broadcaster fee.
type TransactionBuilder struct {
	inner *railgun.TransactionBuilder
	log   log.Logger
}

// feeConvergenceIters bounds the prove/estimate fee loop.
const feeConvergenceIters = 5

// NewTransactionBuilder builds an empty builder.
func NewTransactionBuilder(logger log.Logger) *TransactionBuilder {
	return &TransactionBuilder{inner: railgun.NewTransactionBuilder(), log: logger}
}

// Transfer queues a shielded transfer.
func (b *TransactionBuilder) Transfer(from railgun.Signer, to address.Address,
	token asset.ID, value *uint256.Int, memo string) *TransactionBuilder {
	b.inner.Transfer(from, to, token, value, memo)
	return b
}

// SetUnshield queues an unshield, at most one per asset.
func (b *TransactionBuilder) SetUnshield(from railgun.Signer, to common.Address,
	token asset.ID, value *uint256.Int) *TransactionBuilder {
	b.inner.SetUnshield(from, to, token, value)
	return b
}

// BuildPoi builds and proves a self-broadcast transaction with POI proofs
// for every list key the aggregator tracks.
func (b *TransactionBuilder) BuildPoi(ctx context.Context, chain railgun.ChainConfig,
	indexer *railgun.UtxoIndexer, prover railgun.TransactProver, client *Client,
	poiProver PoiProver, rand io.Reader) (*ProvedTx, error) {

	listKeys := client.ListKeys()
	poiNotes := notesToPoiNotes(ctx, client, listKeys, indexer.AllUnspent(), b.log)

	draft, err := railgun.DraftOperations[*PoiNote](b.inner, rand)
	if err != nil {
		return nil, err
	}
	ops, err := railgun.BuildOperations(draft, poiNotes, rand)
	if err != nil {
		return nil, err
	}

	proved, err := railgun.ProveOperations(ctx, prover, indexer.Trees(), ops, chain,
		uint256.NewInt(0), rand)
	if err != nil {
		return nil, err
	}

	b.log.Info("attaching poi proofs")
	return b.provePoi(ctx, poiProver, proved, indexer.Trees(), listKeys, nil)
}

// BuildBroadcast builds a broadcastable transaction: the fee note is
// negotiated to convergence against gas estimates, and POI proofs cover the
// broadcaster's required lists.
func (b *TransactionBuilder) BuildBroadcast(ctx context.Context, chain railgun.ChainConfig,
	indexer *railgun.UtxoIndexer, prover railgun.TransactProver, client *Client,
	poiProver PoiProver, estimator railgun.GasEstimator, feePayer railgun.Signer,
	fee *Fee, rand io.Reader) (*ProvedTx, error) {

	b.log.Info("building broadcast transaction")
	poiNotes := notesToPoiNotes(ctx, client, fee.ListKeys, indexer.AllUnspent(), b.log)

	proved, err := b.feeToConvergence(ctx, poiNotes, prover, indexer.Trees(), estimator,
		feePayer, fee, chain, rand)
	if err != nil {
		return nil, err
	}

	b.log.Info("attaching poi proofs")
	return b.provePoi(ctx, poiProver, proved, indexer.Trees(), fee.ListKeys, fee)
}

// feeToConvergence iteratively builds and proves the transaction until the
// broadcaster fee stabilises: each round proves with the current fee,
// re-estimates gas, and feeds the new fee back into the fee note.
func (b *TransactionBuilder) feeToConvergence(ctx context.Context, inNotes []*PoiNote,
	prover railgun.TransactProver, trees map[uint32]*railgun.UtxoTree,
	estimator railgun.GasEstimator, feePayer railgun.Signer, fee *Fee,
	chain railgun.ChainConfig, rand io.Reader) (*railgun.ProvedTx[*PoiNote], error) {

	gasPriceWei, err := estimator.GasPriceWei(ctx)
	if err != nil {
		return nil, err
	}

	feeAsset := asset.Erc20(fee.Token)
	lastFee := calculateFee(1_000_000, gasPriceWei, &fee.PerUnitGas)

	// The fee transfer goes in last so each iteration knows which request
	// to edit.
	feeBuilder := b.inner.Clone()
	feeBuilder.Transfer(feePayer, fee.Recipient, feeAsset, &lastFee, "fee")

	var provedTx *railgun.ProvedTx[*PoiNote]
	for iter := 0; iter < feeConvergenceIters; iter++ {
		draft, err := railgun.DraftOperations[*PoiNote](feeBuilder, rand)
		if err != nil {
			return nil, err
		}
		operations, err := railgun.BuildOperations(draft, inNotes, rand)
		if err != nil {
			return nil, err
		}

		sortFeeOperationFirst(operations, feePayer, feeAsset)

		proved, err := railgun.ProveOperations(ctx, prover, trees, operations, chain,
			uint256.NewInt(0), rand)
		if err != nil {
			return nil, err
		}

		gas, err := estimator.EstimateGas(ctx, proved.TxData)
		if err != nil {
			return nil, err
		}

		provedTx = proved
		newFee := calculateFee(gas, gasPriceWei, &fee.PerUnitGas)
		b.log.Info("fee iteration", "gas", gas, "gasPriceWei", gasPriceWei, "fee", newFee.Dec())

		// Converged when the new fee is within 1% of what we already pay.
		var tolerance uint256.Int
		tolerance.Mul(&lastFee, uint256.NewInt(100))
		tolerance.Div(&tolerance, uint256.NewInt(99))
		if newFee.Cmp(&tolerance) <= 0 {
			b.log.Info("fee converged", "fee", newFee.Dec())
			break
		}

		feeBuilder.Transfers[len(feeBuilder.Transfers)-1].Value = newFee
		lastFee = newFee
	}

	provedTx.MinGasPrice = *uint256.NewInt(gasPriceWei)
	return provedTx, nil
}

// sortFeeOperationFirst orders operations so the fee payer's fee-asset
// operation leads, with its fee note first among the outputs.
func sortFeeOperationFirst(operations []railgun.Operation[*PoiNote],
	feePayer railgun.Signer, feeAsset asset.ID) {

	payerAddr := feePayer.Address()
	sort.SliceStable(operations, func(i, j int) bool {
		iFee := operations[i].From.Address() == payerAddr && operations[i].Token == feeAsset
		jFee := operations[j].From.Address() == payerAddr && operations[j].Token == feeAsset
		return iFee && !jFee
	})

	if len(operations) == 0 {
		return
	}
	feeKey := feePayer.ViewingKey()
	sort.SliceStable(operations[0].OutNotes, func(i, j int) bool {
		iFee := operations[0].OutNotes[i].FromKey == feeKey && operations[0].OutNotes[i].Token == feeAsset && operations[0].OutNotes[i].MemoStr == "fee"
		jFee := operations[0].OutNotes[j].FromKey == feeKey && operations[0].OutNotes[j].Token == feeAsset && operations[0].OutNotes[j].MemoStr == "fee"
		return iFee && !jFee
	})
}

// provePoi attaches POI proofs to every proved operation.
func (b *TransactionBuilder) provePoi(ctx context.Context, poiProver PoiProver,
	proved *railgun.ProvedTx[*PoiNote], trees map[uint32]*railgun.UtxoTree,
	listKeys []ListKey, fee *Fee) (*ProvedTx, error) {

	operations := make([]*ProvedOperation, len(proved.ProvedOperations))
	for i := range proved.ProvedOperations {
		operations[i] = &ProvedOperation{
			Operation:     proved.ProvedOperations[i].Operation,
			CircuitInputs: proved.ProvedOperations[i].CircuitInputs,
			Transaction:   proved.ProvedOperations[i].Transaction,
			Pois:          make(map[ListKey]PreTransactionPoi),
		}
	}

	for _, op := range operations {
		if err := op.AddPois(ctx, poiProver, listKeys, trees); err != nil {
			return nil, err
		}
	}

	return &ProvedTx{
		TxData:      proved.TxData,
		Operations:  operations,
		MinGasPrice: proved.MinGasPrice,
		Fee:         fee,
	}, nil
}

// notesToPoiNotes loads POI data for every unspent note, dropping notes the
// aggregator has no data for.
func notesToPoiNotes(ctx context.Context, client *Client, listKeys []ListKey,
	notes []*railgun.UtxoNote, logger log.Logger) []*PoiNote {

	logger.Info("loading note poi data", "notes", len(notes))
	out := make([]*PoiNote, 0, len(notes))
	for _, note := range notes {
		poiNote, err := client.NoteToPoiNote(ctx, note, listKeys)
		if err != nil {
			logger.Info("failed to get poi note", "err", err)
			continue
		}
		out = append(out, poiNote)
	}
	return out
}

// calculateFee converts an estimated gas cost into the broadcaster's token
// denomination and pads it with the fee buffer.
func calculateFee(gasCost, gasPriceWei uint64, feeRate *uint256.Int) uint256.Int {
	var raw uint256.Int
	raw.Mul(uint256.NewInt(gasCost), uint256.NewInt(gasPriceWei))
	raw.Mul(&raw, feeRate)
	raw.Div(&raw, uint256.NewInt(1_000_000_000_000_000_000))

	// fee * 1.3 rounded up, in integer arithmetic
	var buffered, rem uint256.Int
	buffered.Mul(&raw, uint256.NewInt(13))
	rem.Mod(&buffered, uint256.NewInt(10))
	buffered.Div(&buffered, uint256.NewInt(10))
	if !rem.IsZero() {
		buffered.Add(&buffered, uint256.NewInt(1))
	}
	return buffered
}
