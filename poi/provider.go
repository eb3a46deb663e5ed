// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/evm"
	"github.com/luxfi/veil/railgun"
)

// Broadcaster submits an encrypted proved transaction through a relay and
// reports the resulting transaction hash.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *ProvedTx, rand io.Reader) (common.Hash, error)
}

// Provider layers the POI pipeline over the base shielded-pool provider: a
// txid indexer mirroring the aggregator, a pending-proof queue advanced on
// every sync, and broadcast confirmation.
type Provider struct {
	inner *railgun.Provider

	client    evm.Client
	txid      *railgun.TxidIndexer
	poiClient *Client
	prover    PoiProver
	pending   *PendingSubmitter

	log log.Logger
}

// ProviderState is the serialisable provider snapshot.
type ProviderState struct {
	Inner            railgun.ProviderState    `json:"inner"`
	TxidIndexer      railgun.TxidIndexerState `json:"txidIndexer"`
	PendingSubmitter PendingSubmitterState    `json:"pendingSubmitter"`
}

// ErrBroadcastTimeout reports a broadcast that neither the broadcaster nor
// the indexer confirmed in time.
var ErrBroadcastTimeout = errors.New("poi: timed out waiting for operation to land on-chain")

// NewProvider assembles a POI provider.
func NewProvider(chain railgun.ChainConfig, client evm.Client, utxoSyncer railgun.NoteSyncer,
	txProver railgun.TransactProver, txidSyncer railgun.TransactionSyncer,
	poiClient *Client, poiProver PoiProver, logger log.Logger) *Provider {

	return &Provider{
		inner:     railgun.NewProvider(chain, client, utxoSyncer, txProver, logger),
		client:    client,
		txid:      railgun.NewTxidIndexer(txidSyncer, poiClient, logger),
		poiClient: poiClient,
		prover:    poiProver,
		pending:   NewPendingSubmitter(logger),
		log:       logger,
	}
}

// SetState restores a provider snapshot. Accounts must be re-registered.
func (p *Provider) SetState(state ProviderState) error {
	if err := p.inner.SetState(state.Inner); err != nil {
		return err
	}
	if err := p.txid.SetState(state.TxidIndexer); err != nil {
		return err
	}
	p.pending.SetState(state.PendingSubmitter)
	return nil
}

// State snapshots the provider. Accounts and signers are never included.
func (p *Provider) State() ProviderState {
	return ProviderState{
		Inner:            p.inner.State(),
		TxidIndexer:      p.txid.State(),
		PendingSubmitter: p.pending.State(),
	}
}

// Register adds an account to the underlying indexer.
func (p *Provider) Register(account railgun.Signer) {
	p.inner.Register(account)
}

// Inner exposes the base provider.
func (p *Provider) Inner() *railgun.Provider {
	return p.inner
}

// TxidIndexer exposes the txid indexer.
func (p *Provider) TxidIndexer() *railgun.TxidIndexer {
	return p.txid
}

// ListKeys returns the aggregator's tracked POI lists.
func (p *Provider) ListKeys() []ListKey {
	return p.poiClient.ListKeys()
}

// Balance returns the POI-annotated balance of an address: values grouped
// by (status, asset) for the given list.
func (p *Provider) Balance(ctx context.Context, addr address.Address, listKey ListKey) map[Status]map[asset.ID]uint256.Int {
	notes := p.inner.Indexer().Unspent(addr)

	out := make(map[Status]map[asset.ID]uint256.Int)
	for _, note := range notes {
		status := StatusMissing
		statuses, err := p.poiClient.NotePois(ctx, note, []ListKey{listKey})
		if err == nil {
			if s, ok := statuses[listKey]; ok {
				status = s
			}
		}

		byAsset := out[status]
		if byAsset == nil {
			byAsset = make(map[asset.ID]uint256.Int)
			out[status] = byAsset
		}
		total := byAsset[note.Asset()]
		total.Add(&total, note.Value())
		byAsset[note.Asset()] = total
	}

	return out
}

// Shield starts a shield builder.
func (p *Provider) Shield() *railgun.ShieldBuilder {
	return p.inner.Shield()
}

// Transact starts a POI transaction builder.
func (p *Provider) Transact() *TransactionBuilder {
	return NewTransactionBuilder(p.log)
}

// Build proves a builder's requests with POI proofs and registers the
// operations in the pending queue.
func (p *Provider) Build(ctx context.Context, builder *TransactionBuilder, rand io.Reader) (*ProvedTx, error) {
	tx, err := builder.BuildPoi(ctx, p.inner.Chain, p.inner.Indexer(), p.inner.Prover(),
		p.poiClient, p.prover, rand)
	if err != nil {
		return nil, err
	}

	for _, op := range tx.Operations {
		p.pending.Register(op)
	}
	return tx, nil
}

// BuildBroadcast proves a broadcastable transaction with a negotiated fee
// and registers the operations in the pending queue.
func (p *Provider) BuildBroadcast(ctx context.Context, builder *TransactionBuilder,
	feePayer railgun.Signer, fee *Fee, rand io.Reader) (*ProvedTx, error) {

	estimator := railgun.ClientGasEstimator{Client: p.client}
	tx, err := builder.BuildBroadcast(ctx, p.inner.Chain, p.inner.Indexer(), p.inner.Prover(),
		p.poiClient, p.prover, estimator, feePayer, fee, rand)
	if err != nil {
		return nil, err
	}

	for _, op := range tx.Operations {
		p.pending.Register(op)
	}
	return tx, nil
}

// Broadcast submits a proved transaction through the broadcaster, racing
// the broadcaster's response against the indexer observing the commitments
// on-chain; whichever confirms first wins. A final sync runs afterwards.
func (p *Provider) Broadcast(ctx context.Context, broadcaster Broadcaster, tx *ProvedTx,
	rand io.Reader) error {

	var commitments []uint256.Int
	for _, op := range tx.Operations {
		commitments = append(commitments, op.CircuitInputs.CommitmentsOut...)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		hash common.Hash
		err  error
		from string
	}
	results := make(chan result, 2)

	go func() {
		hash, err := broadcaster.Broadcast(raceCtx, tx, rand)
		results <- result{hash: hash, err: err, from: "broadcaster"}
	}()
	go func() {
		err := p.inner.Indexer().AwaitCommitments(raceCtx, commitments,
			5*time.Second, 120*time.Second)
		results <- result{err: err, from: "indexer"}
	}()

	first := <-results
	cancel()
	<-results // drain the loser

	switch {
	case first.err == nil && first.from == "broadcaster":
		p.log.Info("confirmed via broadcaster response", "txHash", first.hash)
	case first.err == nil:
		p.log.Info("confirmed via indexer, commitment found on-chain")
	case errors.Is(first.err, railgun.ErrAwaitTimeout):
		return ErrBroadcastTimeout
	default:
		if !errors.Is(first.err, context.Canceled) {
			return first.err
		}
	}

	return p.Sync(ctx)
}

// Sync advances the base indexer, the txid indexer and the pending queue.
func (p *Provider) Sync(ctx context.Context) error {
	if err := p.inner.Sync(ctx); err != nil {
		return err
	}
	if err := p.txid.Sync(ctx); err != nil {
		return err
	}
	_, err := p.pending.Process(ctx, p.txid, p.inner.Indexer(), p.poiClient, p.prover)
	return err
}

// SyncTo advances all indexers to a specific height.
func (p *Provider) SyncTo(ctx context.Context, blockNumber uint64) error {
	if err := p.inner.SyncTo(ctx, blockNumber); err != nil {
		return err
	}
	if err := p.txid.SyncTo(ctx, blockNumber); err != nil {
		return err
	}
	_, err := p.pending.Process(ctx, p.txid, p.inner.Indexer(), p.poiClient, p.prover)
	return err
}

// ResetIndexer clears all indexer state.
func (p *Provider) ResetIndexer() {
	p.inner.ResetIndexer()
	p.txid.Reset()
}
