// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/evm"
)

// Provider is the session facade over one chain's shielded pool: it owns
// the indexer and builds shield and transact transactions.
type Provider struct {
	Chain ChainConfig

	indexer *UtxoIndexer
	prover  TransactProver
}

// ProviderState is the serialisable provider snapshot. Registered accounts
// are not included and must be re-registered per session.
type ProviderState struct {
	ChainID uint64           `json:"chainId"`
	Indexer UtxoIndexerState `json:"indexer"`
}

// ErrUnsupportedChain reports an unknown chain id in a restored snapshot.
type ErrUnsupportedChain struct {
	ChainID uint64
}

func (e ErrUnsupportedChain) Error() string {
	return fmt.Sprintf("railgun: unsupported chain id %d", e.ChainID)
}

// NewProvider builds a provider, verifying tree roots against the deployed
// contract.
func NewProvider(chain ChainConfig, client evm.Client, syncer NoteSyncer,
	prover TransactProver, logger log.Logger) *Provider {
	verifier := NewSmartWalletVerifier(chain, client)
	return &Provider{
		Chain:   chain,
		indexer: NewUtxoIndexer(syncer, verifier, logger),
		prover:  prover,
	}
}

// SetState restores a provider snapshot.
func (p *Provider) SetState(state ProviderState) error {
	chain, ok := GetChainConfig(state.ChainID)
	if !ok {
		return ErrUnsupportedChain{ChainID: state.ChainID}
	}
	p.Chain = chain
	p.indexer.SetState(state.Indexer)
	return nil
}

// State snapshots the provider.
func (p *Provider) State() ProviderState {
	return ProviderState{ChainID: p.Chain.ID, Indexer: p.indexer.State()}
}

// Indexer exposes the owned indexer.
func (p *Provider) Indexer() *UtxoIndexer {
	return p.indexer
}

// Register adds an account to the indexer. Accounts are not indexed
// retroactively and are not part of the snapshot.
func (p *Provider) Register(account Signer) {
	p.indexer.Register(account)
}

// Balance returns the per-asset balance of an address.
func (p *Provider) Balance(addr address.Address) map[asset.ID]uint256.Int {
	return p.indexer.Balance(addr)
}

// Shield starts a shield builder for this chain.
func (p *Provider) Shield() *ShieldBuilder {
	return NewShieldBuilder(p.Chain)
}

// Transact starts a transaction builder.
func (p *Provider) Transact() *TransactionBuilder {
	return NewTransactionBuilder()
}

// Build proves a transaction builder's requests into a sendable transaction.
func (p *Provider) Build(ctx context.Context, builder *TransactionBuilder, rand io.Reader) (*ProvedTx[*UtxoNote], error) {
	return builder.Build(ctx, p.Chain, p.indexer, p.prover, rand)
}

// Sync advances the indexer to the chain head.
func (p *Provider) Sync(ctx context.Context) error {
	return p.indexer.Sync(ctx)
}

// SyncTo advances the indexer to a specific height.
func (p *Provider) SyncTo(ctx context.Context, blockNumber uint64) error {
	return p.indexer.SyncTo(ctx, blockNumber)
}

// ResetIndexer clears the indexer state.
func (p *Provider) ResetIndexer() {
	p.indexer.Reset()
}

// Prover returns the transact prover.
func (p *Provider) Prover() TransactProver {
	return p.prover
}
