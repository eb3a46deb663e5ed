// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/evm"
	"github.com/luxfi/veil/tornado"
)

const (
	jobPollInterval = 3 * time.Second
	jobTimeout      = 120 * time.Second
)

var (
	// ErrNoRelayerAvailable reports an empty candidate set for the pool.
	ErrNoRelayerAvailable = errors.New("relayer: no relayer available")
	// ErrJobTimeout reports a relayer job that never reached a terminal
	// state.
	ErrJobTimeout = errors.New("relayer: job timed out")
)

// ErrJobFailed reports a relayer job that failed.
type ErrJobFailed struct {
	Reason string
}

func (e ErrJobFailed) Error() string {
	return fmt.Sprintf("relayer: job failed: %s", e.Reason)
}

// ErrGasEstimation wraps a gas estimation failure.
type ErrGasEstimation struct {
	Reason string
}

func (e ErrGasEstimation) Error() string {
	return fmt.Sprintf("relayer: gas estimation: %s", e.Reason)
}

// BroadcastProvider couples a multi-pool provider with relayer discovery
// and the REST submission round-trip.
type BroadcastProvider struct {
	inner   *tornado.Provider
	indexer *Indexer
	http    *http.Client
	log     log.Logger
}

// BroadcastProviderState is the serialisable broadcast provider snapshot.
type BroadcastProviderState struct {
	Tornado tornado.ProviderState `json:"tornado"`
	Indexer IndexerState          `json:"indexer"`
}

// PreparedBroadcast is a fee-finalised withdrawal ready for submission.
type PreparedBroadcast struct {
	Call     abis.WithdrawCall
	Hostname string
	Pool     tornado.Pool
}

type withdrawResponse struct {
	ID string `json:"id"`
}

type jobStatusResponse struct {
	TxHash       *common.Hash `json:"txHash"`
	Status       string       `json:"status"`
	FailedReason *string      `json:"failedReason"`
}

// NewBroadcastProvider assembles a broadcast provider.
func NewBroadcastProvider(syncer tornado.Syncer, verifier tornado.Verifier,
	prover circuit.Prover, relaySyncer RelayerSyncer, mainnetClient evm.Client,
	logger log.Logger) *BroadcastProvider {
	return &BroadcastProvider{
		inner:   tornado.NewProvider(syncer, verifier, prover, logger),
		indexer: NewIndexer(relaySyncer, mainnetClient, logger),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// BroadcastProviderFromState restores a broadcast provider snapshot.
func BroadcastProviderFromState(state BroadcastProviderState, syncer tornado.Syncer,
	verifier tornado.Verifier, prover circuit.Prover, relaySyncer RelayerSyncer,
	mainnetClient evm.Client, logger log.Logger) *BroadcastProvider {
	return &BroadcastProvider{
		inner:   tornado.ProviderFromState(syncer, verifier, prover, state.Tornado, logger),
		indexer: IndexerFromState(relaySyncer, mainnetClient, state.Indexer, logger),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// State snapshots the broadcast provider.
func (p *BroadcastProvider) State() BroadcastProviderState {
	return BroadcastProviderState{
		Tornado: p.inner.State(),
		Indexer: p.indexer.State(),
	}
}

// AddPool starts tracking a pool.
func (p *BroadcastProvider) AddPool(pool tornado.Pool) {
	p.inner.AddPool(pool)
}

// AddPoolFromState restores a tracked pool from a snapshot.
func (p *BroadcastProvider) AddPoolFromState(state tornado.PoolProviderState) {
	p.inner.AddPoolFromState(state)
}

// Deposit creates a deposit transaction for a pool.
func (p *BroadcastProvider) Deposit(pool tornado.Pool, rand io.Reader) (tornado.TxData, tornado.Note, error) {
	return p.inner.Deposit(pool, rand)
}

// Relayers returns the currently healthy relayers.
func (p *BroadcastProvider) Relayers() []*Relayer {
	return p.indexer.Relayers()
}

// Sync advances the relayer indexer and every pool.
func (p *BroadcastProvider) Sync(ctx context.Context) error {
	if err := p.indexer.Sync(ctx); err != nil {
		return err
	}
	return p.inner.Sync(ctx)
}

// SyncTo advances the relayer indexer and every pool to a height.
func (p *BroadcastProvider) SyncTo(ctx context.Context, block uint64) error {
	if err := p.indexer.SyncTo(ctx, block); err != nil {
		return err
	}
	return p.inner.SyncTo(ctx, block)
}

// PrepareBroadcast picks a relayer and produces the final withdrawal call:
// a placeholder-fee withdrawal is proved to estimate gas, the gas cost is
// converted into the pool's token via the relayer's quoted price, and the
// withdrawal is re-proved with fee = (serviceFee + gasCostInToken) * 1.3,
// rounded up.
func (p *BroadcastProvider) PrepareBroadcast(ctx context.Context, pool tornado.Pool,
	note *tornado.Note, client evm.Client, recipient common.Address,
	refund *uint256.Int, rand io.Reader) (PreparedBroadcast, error) {

	tokenSymbol := ""
	if !pool.Asset.Native {
		tokenSymbol = pool.Asset.Symbol
	}
	picked := p.indexer.PickRelayer(pool.ChainID, tokenSymbol, rand)
	if picked == nil {
		return PreparedBroadcast{}, ErrNoRelayerAvailable
	}

	relayerFee := computeServiceFee(pool.AmountWei, picked.ServiceFeePercent)

	dummyTx, err := p.inner.Withdraw(ctx, pool, note, recipient,
		picked.RewardAccount, &relayerFee, refund)
	if err != nil {
		return PreparedBroadcast{}, err
	}

	gasCostWei, err := estimateGasCostWei(ctx, client, dummyTx)
	if err != nil {
		return PreparedBroadcast{}, err
	}

	// Convert the gas cost into token denomination for ERC-20 pools.
	gasCostInToken := gasCostWei
	if !pool.Asset.Native {
		price, ok := picked.EthPrices[pool.Asset.Symbol]
		if !ok {
			return PreparedBroadcast{}, ErrGasEstimation{
				Reason: fmt.Sprintf("no ETH price for %s from relayer", pool.Asset.Symbol)}
		}
		if price <= 0 {
			return PreparedBroadcast{}, ErrGasEstimation{Reason: "ETH price is zero or negative"}
		}

		costFloat := new(big.Float).Quo(
			new(big.Float).SetInt(gasCostWei.ToBig()),
			big.NewFloat(price),
		)
		costInt, _ := costFloat.Int(nil)
		gasCostInToken = *uint256.MustFromBig(costInt)
	}

	var totalFee, rem uint256.Int
	totalFee.Add(&relayerFee, &gasCostInToken)
	totalFee.Mul(&totalFee, uint256.NewInt(13))
	rem.Mod(&totalFee, uint256.NewInt(10))
	totalFee.Div(&totalFee, uint256.NewInt(10))
	if !rem.IsZero() {
		totalFee.Add(&totalFee, uint256.NewInt(1))
	}

	call, err := p.inner.WithdrawCalldata(ctx, pool, note, recipient,
		picked.RewardAccount, &totalFee, refund)
	if err != nil {
		return PreparedBroadcast{}, err
	}

	return PreparedBroadcast{
		Call:     call,
		Hostname: picked.Hostname,
		Pool:     pool,
	}, nil
}

// Broadcast submits a prepared withdrawal to the relayer and polls the job
// until it confirms or fails.
func (p *BroadcastProvider) Broadcast(ctx context.Context, prepared PreparedBroadcast) (common.Hash, error) {
	resp, err := p.submitWithdraw(ctx, &prepared.Pool, prepared.Hostname, &prepared.Call)
	if err != nil {
		return common.Hash{}, err
	}
	p.log.Info("relayer job submitted", "id", resp.ID)
	return p.awaitWithdraw(ctx, prepared.Hostname, resp)
}

// submitWithdraw posts the withdrawal to /v1/tornadoWithdraw.
func (p *BroadcastProvider) submitWithdraw(ctx context.Context, pool *tornado.Pool,
	hostname string, call *abis.WithdrawCall) (*withdrawResponse, error) {

	payload := map[string]interface{}{
		"contract": pool.Address.Hex(),
		"proof":    "0x" + hex.EncodeToString(call.Proof),
		"args": []string{
			"0x" + hex.EncodeToString(call.Root[:]),
			"0x" + hex.EncodeToString(call.NullifierHash[:]),
			call.Recipient.Hex(),
			call.Relayer.Hex(),
			call.Fee.String(),
			call.Refund.String(),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://%s/v1/tornadoWithdraw", hostname)
	p.log.Info("submitting withdrawal to relayer", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relayer: withdraw returned status %d", resp.StatusCode)
	}

	var out withdrawResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// awaitWithdraw polls /v1/jobs/{id} until CONFIRMED or FAILED.
func (p *BroadcastProvider) awaitWithdraw(ctx context.Context, hostname string,
	submitted *withdrawResponse) (common.Hash, error) {

	jobURL := fmt.Sprintf("https://%s/v1/jobs/%s", hostname, submitted.ID)
	start := time.Now()

	for {
		if time.Since(start) > jobTimeout {
			return common.Hash{}, ErrJobTimeout
		}

		select {
		case <-time.After(jobPollInterval):
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
		if err != nil {
			return common.Hash{}, err
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return common.Hash{}, err
		}

		var job jobStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if err != nil {
			return common.Hash{}, err
		}

		switch job.Status {
		case "CONFIRMED":
			var txHash common.Hash
			if job.TxHash != nil {
				txHash = *job.TxHash
			}
			p.log.Info("withdrawal confirmed", "txHash", txHash)
			return txHash, nil
		case "FAILED":
			reason := "unknown"
			if job.FailedReason != nil {
				reason = *job.FailedReason
			}
			p.log.Warn("relayer job failed", "reason", reason)
			return common.Hash{}, ErrJobFailed{Reason: reason}
		default:
			p.log.Info("job status", "status", job.Status)
		}
	}
}

// computeServiceFee is amount * feePercent / 100 in the pool denomination.
func computeServiceFee(amountWei string, feePercent float64) uint256.Int {
	amount, err := uint256.FromDecimal(amountWei)
	if err != nil {
		return uint256.Int{}
	}

	// Work at 1e6 precision to keep the fraction in integer arithmetic.
	scaled := uint64(feePercent * 1e6)
	var fee uint256.Int
	fee.Mul(amount, uint256.NewInt(scaled))
	fee.Div(&fee, uint256.NewInt(100_000_000))
	return fee
}

// estimateGasCostWei estimates gasLimit * gasPrice for the transaction.
func estimateGasCostWei(ctx context.Context, client evm.Client, tx tornado.TxData) (uint256.Int, error) {
	gasLimit, err := client.EstimateGas(ctx, evm.TxMsg{To: tx.To, Data: tx.Data, Value: tx.Value})
	if err != nil {
		return uint256.Int{}, ErrGasEstimation{Reason: err.Error()}
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return uint256.Int{}, ErrGasEstimation{Reason: err.Error()}
	}

	var cost uint256.Int
	cost.Mul(uint256.NewInt(gasLimit), uint256.MustFromBig(gasPrice))
	return cost, nil
}
