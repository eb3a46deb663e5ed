// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"context"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/circuit"
)

// Provider manages multiple pools behind one deposit/withdraw interface.
type Provider struct {
	pools []*PoolProvider

	syncer   Syncer
	verifier Verifier
	prover   circuit.Prover
	log      log.Logger
}

// ProviderState is the serialisable provider snapshot.
type ProviderState struct {
	PoolStates []PoolProviderState `json:"poolStates"`
}

// ErrMissingPool reports an operation against a pool the provider does not
// manage.
type ErrMissingPool struct {
	Pool Pool
}

func (e ErrMissingPool) Error() string {
	return fmt.Sprintf("tornado: missing pool: %s", e.Pool)
}

// NewProvider builds an empty multi-pool provider.
func NewProvider(syncer Syncer, verifier Verifier, prover circuit.Prover, logger log.Logger) *Provider {
	return &Provider{syncer: syncer, verifier: verifier, prover: prover, log: logger}
}

// ProviderFromState restores a provider snapshot.
func ProviderFromState(syncer Syncer, verifier Verifier, prover circuit.Prover,
	state ProviderState, logger log.Logger) *Provider {
	p := NewProvider(syncer, verifier, prover, logger)
	for _, poolState := range state.PoolStates {
		p.AddPoolFromState(poolState)
	}
	return p
}

// State snapshots every pool.
func (p *Provider) State() ProviderState {
	states := make([]PoolProviderState, len(p.pools))
	for i, pool := range p.pools {
		states[i] = pool.State()
	}
	return ProviderState{PoolStates: states}
}

// AddPool starts tracking a pool.
func (p *Provider) AddPool(pool Pool) {
	p.addProvider(NewPoolProvider(p.syncer, p.verifier, p.prover, pool, p.log))
}

// AddPoolFromState restores a tracked pool from a snapshot.
func (p *Provider) AddPoolFromState(state PoolProviderState) {
	p.addProvider(PoolProviderFromState(p.syncer, p.verifier, p.prover, state, p.log))
}

func (p *Provider) addProvider(provider *PoolProvider) {
	pool := provider.Pool()
	kept := p.pools[:0]
	for _, existing := range p.pools {
		if existing.Pool() == pool {
			p.log.Warn("overwriting existing provider for pool", "pool", pool.Address)
			continue
		}
		kept = append(kept, existing)
	}
	p.pools = append(kept, provider)
}

// PoolProvider returns the provider for a pool.
func (p *Provider) PoolProvider(pool Pool) (*PoolProvider, error) {
	for _, provider := range p.pools {
		if provider.Pool() == pool {
			return provider, nil
		}
	}
	return nil, ErrMissingPool{Pool: pool}
}

// Deposit creates a deposit transaction for a pool.
func (p *Provider) Deposit(pool Pool, rand io.Reader) (TxData, Note, error) {
	provider, err := p.PoolProvider(pool)
	if err != nil {
		return TxData{}, Note{}, err
	}
	return provider.Deposit(rand)
}

// Withdraw creates a withdrawal transaction for a pool.
func (p *Provider) Withdraw(ctx context.Context, pool Pool, note *Note, recipient common.Address,
	relayer common.Address, fee, refund *uint256.Int) (TxData, error) {
	provider, err := p.PoolProvider(pool)
	if err != nil {
		return TxData{}, err
	}
	return provider.Withdraw(ctx, note, recipient, relayer, fee, refund)
}

// WithdrawCalldata proves a withdrawal and returns the call arguments.
func (p *Provider) WithdrawCalldata(ctx context.Context, pool Pool, note *Note,
	recipient common.Address, relayer common.Address, fee, refund *uint256.Int) (abis.WithdrawCall, error) {
	provider, err := p.PoolProvider(pool)
	if err != nil {
		return abis.WithdrawCall{}, err
	}
	return provider.WithdrawCalldata(ctx, note, recipient, relayer, fee, refund)
}

// Sync advances every pool.
func (p *Provider) Sync(ctx context.Context) error {
	for _, provider := range p.pools {
		if err := provider.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SyncTo advances every pool to a specific height.
func (p *Provider) SyncTo(ctx context.Context, block uint64) error {
	for _, provider := range p.pools {
		if err := provider.SyncTo(ctx, block); err != nil {
			return err
		}
	}
	return nil
}
