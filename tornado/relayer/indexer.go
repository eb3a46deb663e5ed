// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	log "github.com/luxfi/log"

	"github.com/luxfi/veil/evm"
)

// Indexer discovers relayers from the on-chain registry, validates them
// against the aggregator and tracks their health and fee quotes.
type Indexer struct {
	syncer        RelayerSyncer
	mainnetClient evm.Client
	relayers      []Relayer
	syncedBlock   uint64
	http          *http.Client
	log           log.Logger
}

// IndexerState is the serialisable relayer snapshot.
type IndexerState struct {
	Relayers    []Relayer `json:"relayers"`
	SyncedBlock uint64    `json:"syncedBlock"`
}

// NewIndexer builds a relayer indexer. The client must be connected to
// mainnet, where the registry aggregates relayer data for all chains.
func NewIndexer(syncer RelayerSyncer, mainnetClient evm.Client, logger log.Logger) *Indexer {
	return &Indexer{
		syncer:        syncer,
		mainnetClient: mainnetClient,
		syncedBlock:   RegistryDeployedBlock,
		http:          &http.Client{Timeout: 15 * time.Second},
		log:           logger,
	}
}

// IndexerFromState restores a relayer snapshot.
func IndexerFromState(syncer RelayerSyncer, mainnetClient evm.Client, state IndexerState,
	logger log.Logger) *Indexer {
	x := NewIndexer(syncer, mainnetClient, logger)
	x.relayers = state.Relayers
	x.syncedBlock = state.SyncedBlock
	return x
}

// State snapshots the indexer.
func (x *Indexer) State() IndexerState {
	return IndexerState{
		Relayers:    append([]Relayer(nil), x.relayers...),
		SyncedBlock: x.syncedBlock,
	}
}

// Relayers returns the currently healthy relayers.
func (x *Indexer) Relayers() []*Relayer {
	var out []*Relayer
	for i := range x.relayers {
		if x.relayers[i].Healthy {
			out = append(out, &x.relayers[i])
		}
	}
	return out
}

// PickRelayer samples a relayer by stake-weighted score for the chain and
// token. Pass an empty symbol for native pools; for token pools only
// relayers quoting that token qualify.
//
// Fee bands: mainnet scores within [0.33, 0.53], other chains within
// [0.01, 0.30]. Score = stake * (1 - ((fee - min)^2 / (max - min)^2)); fees
// at or above the band ceiling score zero.
func (x *Indexer) PickRelayer(chainID uint64, tokenSymbol string, rand io.Reader) *Relayer {
	var candidates []*Relayer
	for i := range x.relayers {
		r := &x.relayers[i]
		if r.ChainID != chainID {
			continue
		}
		if tokenSymbol != "" {
			if _, ok := r.EthPrices[tokenSymbol]; !ok {
				continue
			}
		}
		candidates = append(candidates, r)
	}

	if len(candidates) == 0 {
		return nil
	}

	minFee, maxFee := 0.01, 0.30
	if chainID == 1 {
		minFee, maxFee = 0.33, 0.53
	}
	feeRange := maxFee - minFee

	weights := make([]float64, len(candidates))
	var totalWeight float64
	for i, r := range candidates {
		fee := r.ServiceFeePercent
		if fee >= maxFee {
			continue
		}
		feeDiff := fee - minFee
		if feeDiff < 0 {
			feeDiff = 0
		}
		penalty := (feeDiff * feeDiff) / (feeRange * feeRange)
		stake, _ := new(big.Float).SetInt(r.StakeBalance).Float64()
		weights[i] = stake * (1 - penalty)
		totalWeight += weights[i]
	}

	if totalWeight <= 0 {
		return candidates[0]
	}

	target := randomFloat(rand) * totalWeight
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if cumulative >= target {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// Sync discovers relayers up to the chain head.
func (x *Indexer) Sync(ctx context.Context) error {
	latest, err := x.syncer.LatestBlock(ctx)
	if err != nil {
		return err
	}
	return x.SyncTo(ctx, latest)
}

// SyncTo discovers relayers up to a height: scan registrations, dedupe by
// ENS name keeping the latest, filter against the aggregator, materialise
// one candidate per (relayer, hostname), then health-check everyone.
func (x *Indexer) SyncTo(ctx context.Context, block uint64) error {
	fromBlock := x.syncedBlock
	if fromBlock > block {
		x.log.Info("relayer indexer already synced", "block", block)
		return nil
	}

	records, err := x.syncer.SyncRelayers(ctx, RegistryAddress, fromBlock, block)
	if err != nil {
		return err
	}
	x.log.Info("fetched relayer registration events", "count", len(records))

	// Deduplicate by ENS name, keeping the latest registration.
	deduped := make(map[string]Record)
	for _, record := range records {
		existing, ok := deduped[record.EnsName]
		if !ok || record.BlockNumber >= existing.BlockNumber {
			deduped[record.EnsName] = record
		}
	}

	unique := make([]Record, 0, len(deduped))
	for _, record := range deduped {
		unique = append(unique, record)
	}
	x.log.Info("deduplicated relayers", "count", len(unique))

	if len(unique) == 0 {
		x.syncedBlock = block
		return nil
	}

	ensHashes := make([][32]byte, len(unique))
	for i, record := range unique {
		ensHashes[i] = record.EnsHash
	}
	datas, err := queryAggregator(ctx, x.mainnetClient, ensHashes)
	if err != nil {
		return err
	}

	keys := subdomainKeys()
	for i := range datas {
		if i >= len(unique) {
			break
		}
		data, record := &datas[i], unique[i]

		if !data.IsRegistered ||
			data.Balance.Cmp(MinStakeBalance) < 0 ||
			data.Owner != record.Address {
			continue
		}

		for recordIdx, hostname := range data.Records {
			if hostname == "" || recordIdx >= len(keys) {
				continue
			}
			chainID := chainIDFromSubdomain(keys[recordIdx])

			if existing := x.find(record.EnsHash, hostname); existing != nil {
				existing.StakeBalance = data.Balance
				existing.Record = record
				continue
			}

			x.relayers = append(x.relayers, Relayer{
				Record:       record,
				ChainID:      chainID,
				Hostname:     hostname,
				StakeBalance: data.Balance,
				EthPrices:    make(map[string]float64),
				LastHealthy:  time.Now(),
			})
		}
	}

	x.syncedBlock = block

	x.HealthCheckAll(ctx)
	x.log.Info("relayers available after sync", "count", len(x.relayers))
	return nil
}

func (x *Indexer) find(ensHash [32]byte, hostname string) *Relayer {
	for i := range x.relayers {
		if x.relayers[i].Record.EnsHash == ensHash && x.relayers[i].Hostname == hostname {
			return &x.relayers[i]
		}
	}
	return nil
}

// HealthCheckAll probes every known relayer's /status endpoint, requiring a
// passing health flag and matching network id.
func (x *Indexer) HealthCheckAll(ctx context.Context) {
	for i := range x.relayers {
		r := &x.relayers[i]
		r.Healthy = false

		status, err := healthCheck(ctx, x.http, r.Hostname)
		if err != nil {
			x.log.Warn("health check failed", "hostname", r.Hostname, "err", err)
			continue
		}

		if status.Health == nil || status.Health.Status != "true" {
			x.log.Warn("relayer is not healthy", "hostname", r.Hostname)
			continue
		}

		if status.NetID != r.ChainID {
			x.log.Warn("relayer has mismatched chain id", "hostname", r.Hostname,
				"expected", r.ChainID, "got", status.NetID)
			continue
		}

		x.log.Info("relayer healthy", "hostname", r.Hostname)
		r.RewardAccount = status.RewardAccount
		r.ServiceFeePercent = status.ServiceFee
		r.EthPrices = parseEthPrices(status.EthPrices)
		r.Healthy = true
		r.LastHealthy = time.Now()
	}
}

// PruneStaleRelayers drops relayers unhealthy for longer than maxAge.
func (x *Indexer) PruneStaleRelayers(maxAge time.Duration) {
	now := time.Now()
	kept := x.relayers[:0]
	for _, r := range x.relayers {
		if r.Healthy || now.Sub(r.LastHealthy) <= maxAge {
			kept = append(kept, r)
			continue
		}
		x.log.Info("pruning stale relayer", "hostname", r.Hostname,
			"lastHealthy", r.LastHealthy)
	}
	x.relayers = kept
}

func parseEthPrices(raw map[string]string) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for symbol, priceStr := range raw {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		out[symbol] = price
	}
	return out
}

// randomFloat draws a uniform float64 in [0, 1) from the reader.
func randomFloat(rand io.Reader) float64 {
	var buf [8]byte
	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return 0
	}
	v := uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 | uint64(buf[3])<<32 |
		uint64(buf[4])<<24 | uint64(buf[5])<<16 | uint64(buf[6])<<8 | uint64(buf[7])
	return float64(v>>11) / float64(1<<53)
}
