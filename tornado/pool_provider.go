// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"context"
	"io"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/circuit"
)

// TxData is ready-to-send transaction content.
type TxData struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// PoolProvider drives a single pool: deposits, withdrawals and syncing.
type PoolProvider struct {
	indexer *Indexer
	prover  circuit.Prover
}

// PoolProviderState is the serialisable pool snapshot.
type PoolProviderState struct {
	IndexerState IndexerState `json:"indexerState"`
}

// NewPoolProvider builds a provider for one pool.
func NewPoolProvider(syncer Syncer, verifier Verifier, prover circuit.Prover, pool Pool,
	logger log.Logger) *PoolProvider {
	return &PoolProvider{
		indexer: NewIndexer(syncer, verifier, pool, logger),
		prover:  prover,
	}
}

// PoolProviderFromState restores a pool snapshot.
func PoolProviderFromState(syncer Syncer, verifier Verifier, prover circuit.Prover,
	state PoolProviderState, logger log.Logger) *PoolProvider {
	return &PoolProvider{
		indexer: IndexerFromState(syncer, verifier, state.IndexerState, logger),
		prover:  prover,
	}
}

// Pool returns the provider's pool.
func (p *PoolProvider) Pool() Pool {
	return p.indexer.Pool()
}

// State snapshots the provider.
func (p *PoolProvider) State() PoolProviderState {
	return PoolProviderState{IndexerState: p.indexer.State()}
}

// Deposit creates a fresh note and the deposit transaction committing it.
func (p *PoolProvider) Deposit(rand io.Reader) (TxData, Note, error) {
	pool := p.Pool()
	note, err := RandomNote(rand, pool.Symbol(), pool.Amount(), pool.ChainID)
	if err != nil {
		return TxData{}, Note{}, err
	}

	commitment := note.Commitment()
	calldata, err := abis.PackDeposit(commitment.Bytes32())
	if err != nil {
		return TxData{}, Note{}, err
	}

	value := new(big.Int)
	if pool.Asset.Native {
		value.SetString(pool.AmountWei, 10)
	}

	return TxData{To: pool.Address, Data: calldata, Value: value}, note, nil
}

// Withdraw proves and packs a withdrawal transaction.
func (p *PoolProvider) Withdraw(ctx context.Context, note *Note, recipient common.Address,
	relayer common.Address, fee, refund *uint256.Int) (TxData, error) {

	call, err := p.WithdrawCalldata(ctx, note, recipient, relayer, fee, refund)
	if err != nil {
		return TxData{}, err
	}

	packed, err := call.Pack()
	if err != nil {
		return TxData{}, err
	}

	return TxData{To: p.Pool().Address, Data: packed, Value: call.Refund}, nil
}

// WithdrawCalldata proves a withdrawal and returns the contract call
// arguments.
func (p *PoolProvider) WithdrawCalldata(ctx context.Context, note *Note,
	recipient common.Address, relayer common.Address, fee, refund *uint256.Int) (abis.WithdrawCall, error) {

	if fee == nil {
		fee = uint256.NewInt(0)
	}
	if refund == nil {
		refund = uint256.NewInt(0)
	}

	inputs, err := NewWithdrawCircuitInputs(p.indexer.Tree(), note, recipient, relayer, fee, refund)
	if err != nil {
		return abis.WithdrawCall{}, err
	}

	proof, _, err := p.prover.Prove(ctx, "tc", inputs.Signals())
	if err != nil {
		return abis.WithdrawCall{}, err
	}

	return abis.WithdrawCall{
		Proof:         ProofToSolidityBytes(&proof),
		Root:          inputs.MerkleRoot.Bytes32(),
		NullifierHash: inputs.NullifierHash.Bytes32(),
		Recipient:     recipient,
		Relayer:       relayer,
		Fee:           fee.ToBig(),
		Refund:        refund.ToBig(),
	}, nil
}

// Sync advances the indexer and verifies the root on-chain.
func (p *PoolProvider) Sync(ctx context.Context) error {
	if err := p.indexer.Sync(ctx); err != nil {
		return err
	}
	return p.Verify(ctx)
}

// SyncTo advances the indexer to a specific height.
func (p *PoolProvider) SyncTo(ctx context.Context, block uint64) error {
	return p.indexer.SyncTo(ctx, block)
}

// Verify checks the current root against the contract.
func (p *PoolProvider) Verify(ctx context.Context) error {
	return p.indexer.Verify(ctx)
}

// ProofToSolidityBytes flattens a Groth16 proof into the 8-word byte form
// the pool verifier expects. The order of the G2 element pairs is reversed
// to match the on-chain encoding.
func ProofToSolidityBytes(proof *circuit.Proof) []byte {
	words := [8]uint256.Int{
		proof.A.X,
		proof.A.Y,
		proof.B.X[1],
		proof.B.X[0],
		proof.B.Y[1],
		proof.B.Y[0],
		proof.C.X,
		proof.C.Y,
	}

	out := make([]byte, 0, 256)
	for i := range words {
		w := words[i].Bytes32()
		out = append(out, w[:]...)
	}
	return out
}
