// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer implements relayer discovery and fee-paying withdrawal
// broadcast for the pool mixer: registry scanning, health checks, fee-band
// scoring and the REST submission round-trip.
package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
)

// Record is one relayer registration event.
type Record struct {
	EnsHash     [32]byte       `json:"ensHash"`
	EnsName     string         `json:"ensName"`
	Address     common.Address `json:"address"`
	Staked      *big.Int       `json:"staked"`
	BlockNumber uint64         `json:"blockNumber"`
}

// Relayer is one discovered relayer endpoint, per chain hostname.
type Relayer struct {
	Record       Record   `json:"record"`
	ChainID      uint64   `json:"chainId"`
	Hostname     string   `json:"hostname"`
	StakeBalance *big.Int `json:"stakeBalance"`

	// Health-check results.
	Healthy           bool           `json:"healthy"`
	LastHealthy       time.Time      `json:"lastHealthy"`
	RewardAccount     common.Address `json:"rewardAccount"`
	ServiceFeePercent float64        `json:"serviceFeePercent"`
	// EthPrices caches per-symbol prices, in tokens per ETH.
	EthPrices map[string]float64 `json:"ethPrices"`
}

// RelayerSyncer fetches relayer registration events.
type RelayerSyncer interface {
	LatestBlock(ctx context.Context) (uint64, error)
	SyncRelayers(ctx context.Context, registry common.Address, fromBlock, toBlock uint64) ([]Record, error)
}

// RegistrySyncer fetches registration events over a chain client.
type RegistrySyncer struct {
	client    evm.Client
	batchSize uint64
	log       log.Logger
}

// NewRegistrySyncer builds a registry syncer.
func NewRegistrySyncer(client evm.Client, logger log.Logger) *RegistrySyncer {
	return &RegistrySyncer{client: client, batchSize: 100000, log: logger}
}

// LatestBlock returns the chain head height.
func (s *RegistrySyncer) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

// SyncRelayers fetches RelayerRegistered events from the registry.
func (s *RegistrySyncer) SyncRelayers(ctx context.Context, registry common.Address,
	fromBlock, toBlock uint64) ([]Record, error) {

	var out []Record
	for current := fromBlock; current <= toBlock; {
		batchEnd := current + s.batchSize - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}

		logs, err := s.client.FilterLogs(ctx, evm.FilterQuery{
			FromBlock: current,
			ToBlock:   batchEnd,
			Addresses: []common.Address{registry},
			Topics:    [][]common.Hash{{abis.RelayerRegistry.EventID("RelayerRegistered")}},
		})
		if err != nil {
			return nil, err
		}

		for i := range logs {
			record, ok := s.decode(&logs[i])
			if ok {
				out = append(out, record)
			}
		}

		current = batchEnd + 1
	}
	return out, nil
}

func (s *RegistrySyncer) decode(lg *types.Log) (Record, bool) {
	var event abis.RelayerRegisteredEvent
	if err := abis.RelayerRegistry.DecodeEvent(&event, "RelayerRegistered", lg); err != nil {
		s.log.Warn("failed to decode RelayerRegistered event", "err", err)
		return Record{}, false
	}
	return Record{
		EnsHash:     event.Relayer,
		EnsName:     event.EnsName,
		Address:     event.RelayerAddress,
		Staked:      event.StakedAmount,
		BlockNumber: lg.BlockNumber,
	}, true
}

// relayerStatus is the /status response shape.
type relayerStatus struct {
	RewardAccount common.Address    `json:"rewardAccount"`
	ServiceFee    float64           `json:"tornadoServiceFee"`
	EthPrices     map[string]string `json:"ethPrices"`
	Health        *relayerHealth    `json:"health"`
	NetID         uint64            `json:"netId"`
}

type relayerHealth struct {
	Status string `json:"status"`
}

// healthCheck fetches and parses a relayer's /status document.
func healthCheck(ctx context.Context, client *http.Client, hostname string) (*relayerStatus, error) {
	url := fmt.Sprintf("https://%s/status", hostname)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status relayerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// MinStakeBalance is the minimum staked amount for a relayer to qualify:
// 500 tokens at 18 decimals.
var MinStakeBalance = new(big.Int).Mul(big.NewInt(500), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Registry deployment constants on mainnet.
var (
	RegistryAddress       = common.HexToAddress("0x58E8dCC13BE9780fC42E8723D8EaD4CF46943dF2")
	AggregatorAddress     = common.HexToAddress("0xE8F47A78A6D52D317D0D2FFFac56739fE14D1b49")
	RegistryDeployedBlock = uint64(14173129)
)

// subdomains maps per-chain ENS subdomain records to chain ids, in record
// order.
var subdomains = []struct {
	Key     string
	ChainID uint64
}{
	{"mainnet-tornado", 1},
	{"bsc-tornado", 56},
	{"polygon-tornado", 137},
	{"gnosis-tornado", 100},
	{"avalanche-tornado", 43114},
	{"optimism-tornado", 10},
	{"arbitrum-tornado", 42161},
	{"sepolia-tornado", 11155111},
}

func subdomainKeys() []string {
	keys := make([]string, len(subdomains))
	for i, s := range subdomains {
		keys[i] = s.Key
	}
	return keys
}

func chainIDFromSubdomain(key string) uint64 {
	for _, s := range subdomains {
		if s.Key == key {
			return s.ChainID
		}
	}
	return 0
}

// queryAggregator bulk-fetches relayer data from the on-chain aggregator.
// The client must be connected to mainnet: the registry aggregates all
// chains there.
func queryAggregator(ctx context.Context, client evm.Client, ensHashes [][32]byte) ([]abis.AggregatorRelayer, error) {
	data, err := abis.RelayerAggregator.Pack("relayersData", ensHashes, subdomainKeys())
	if err != nil {
		return nil, err
	}

	out, err := client.CallContract(ctx, evm.CallMsg{To: AggregatorAddress, Data: data})
	if err != nil {
		return nil, err
	}

	results, err := abis.RelayerAggregator.UnpackOutput("relayersData", out)
	if err != nil {
		return nil, err
	}

	relayers := *abi.ConvertType(results[0], new([]abis.AggregatorRelayer)).(*[]abis.AggregatorRelayer)
	return relayers, nil
}
