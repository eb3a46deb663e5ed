// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func testLogger() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

func healthyRelayer(hostname string, chainID uint64, stake int64, feePercent float64) Relayer {
	return Relayer{
		Record:            Record{EnsName: hostname},
		ChainID:           chainID,
		Hostname:          hostname,
		StakeBalance:      big.NewInt(stake),
		Healthy:           true,
		LastHealthy:       time.Now(),
		ServiceFeePercent: feePercent,
		EthPrices:         map[string]float64{"DAI": 3000},
	}
}

func TestPickRelayerFiltersChainAndToken(t *testing.T) {
	indexer := NewIndexer(nil, nil, testLogger())
	indexer.relayers = []Relayer{
		healthyRelayer("a.example", 1, 1000, 0.35),
		healthyRelayer("b.example", 137, 1000, 0.05),
	}

	picked := indexer.PickRelayer(137, "", rand.Reader)
	require.NotNil(t, picked)
	require.Equal(t, "b.example", picked.Hostname)

	// Token filter: only relayers quoting the symbol qualify.
	indexer.relayers[1].EthPrices = map[string]float64{}
	require.Nil(t, indexer.PickRelayer(137, "DAI", rand.Reader))
}

func TestPickRelayerScoresFeeBand(t *testing.T) {
	// Equal stakes on mainnet: the relayer at the band floor dominates the
	// one at the ceiling, which scores zero.
	cheap := healthyRelayer("cheap.example", 1, 1000, 0.33)
	atCeiling := healthyRelayer("ceiling.example", 1, 1000, 0.53)

	indexer := NewIndexer(nil, nil, testLogger())
	indexer.relayers = []Relayer{atCeiling, cheap}

	counts := map[string]int{}
	for i := 0; i < 32; i++ {
		picked := indexer.PickRelayer(1, "", rand.Reader)
		require.NotNil(t, picked)
		counts[picked.Hostname]++
	}

	require.Equal(t, 32, counts["cheap.example"])
}

func TestPickRelayerWeightsByStake(t *testing.T) {
	heavy := healthyRelayer("big.example", 1, 1_000_000, 0.33)
	light := healthyRelayer("small.example", 1, 1, 0.33)

	indexer := NewIndexer(nil, nil, testLogger())
	indexer.relayers = []Relayer{light, heavy}

	// With a million-to-one stake ratio, the heavy relayer is effectively
	// always sampled.
	reader := bytes.NewReader(bytes.Repeat([]byte{0xAA}, 8*64))
	for i := 0; i < 8; i++ {
		picked := indexer.PickRelayer(1, "", reader)
		require.NotNil(t, picked)
		require.Equal(t, "big.example", picked.Hostname)
	}
}

func TestPruneStaleRelayers(t *testing.T) {
	fresh := healthyRelayer("fresh.example", 1, 1000, 0.4)

	stale := healthyRelayer("stale.example", 1, 1000, 0.4)
	stale.Healthy = false
	stale.LastHealthy = time.Now().Add(-2 * time.Hour)

	recent := healthyRelayer("recent.example", 1, 1000, 0.4)
	recent.Healthy = false
	recent.LastHealthy = time.Now().Add(-time.Minute)

	indexer := NewIndexer(nil, nil, testLogger())
	indexer.relayers = []Relayer{fresh, stale, recent}

	indexer.PruneStaleRelayers(time.Hour)

	require.Len(t, indexer.relayers, 2)
	for _, r := range indexer.relayers {
		require.NotEqual(t, "stale.example", r.Hostname)
	}
}

func TestComputeServiceFee(t *testing.T) {
	// 1 ETH at 0.33%: 0.0033 ETH.
	fee := computeServiceFee("1000000000000000000", 0.33)
	require.Equal(t, "3300000000000000", fee.Dec())
}

func TestMinStake(t *testing.T) {
	require.Equal(t, "500000000000000000000", MinStakeBalance.String())
}
