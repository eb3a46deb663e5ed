// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poi"
)

// Broadcaster versions this client will talk to.
const (
	MinBroadcasterVersion = "8.0.0"
	MaxBroadcasterVersion = "8.999.0"
)

// Broadcaster is one relay endpoint bound to a specific fee offer.
type Broadcaster struct {
	transport Transport
	ChainID   uint64
	// Address is the broadcaster's shielded address (the fee recipient).
	Address    address.Address
	Identifier *string
	Fee        poi.Fee

	timeout    time.Duration
	retryDelay time.Duration

	log log.Logger
}

var (
	// ErrMissingFee reports a broadcast attempt without fee information.
	ErrMissingFee = errors.New("broadcast: missing fee information for transaction")
	// ErrMissingTxidLeaf reports an operation without its txid leaf hash.
	ErrMissingTxidLeaf = errors.New("broadcast: missing txid leaf hash")
	// ErrTimeout reports a broadcast window that elapsed without a response.
	ErrTimeout = errors.New("broadcast: timeout while sending message")
)

// broadcastParams is the cleartext request body, GCM-encrypted before it
// leaves the process.
type broadcastParams struct {
	TxidVersion           poi.TxidVersion                          `json:"txidVersion"`
	To                    common.Address                           `json:"to"`
	Data                  string                                   `json:"data"`
	BroadcasterViewingKey string                                   `json:"broadcasterViewingKey"`
	ChainID               uint64                                   `json:"chainID"`
	ChainType             uint8                                    `json:"chainType"`
	MinGasPrice           string                                   `json:"minGasPrice"`
	FeesID                string                                   `json:"feesID"`
	UseRelayAdapt         bool                                     `json:"useRelayAdapt"`
	DevLog                bool                                     `json:"devLog"`
	MinVersion            string                                   `json:"minVersion"`
	MaxVersion            string                                   `json:"maxVersion"`
	PreTransactionPOIs    poi.PreTransactionPoisPerTxidLeafPerList `json:"preTransactionPOIsPerTxidLeafPerList"`
}

type broadcastMessage struct {
	Method string                 `json:"method"`
	Params broadcastMessageParams `json:"params"`
}

type broadcastMessageParams struct {
	Pubkey        string    `json:"pubkey"`
	EncryptedData [2]string `json:"encryptedData"`
}

type rpcResult struct {
	Result [2]string `json:"result"`
}

type transactResponse struct {
	TxHash *common.Hash `json:"txHash"`
	Error  *string      `json:"error"`
}

// NewBroadcaster binds a transport to a fee offer.
func NewBroadcaster(transport Transport, chainID uint64, addr address.Address,
	identifier *string, fee poi.Fee, logger log.Logger) *Broadcaster {
	return &Broadcaster{
		transport:  transport,
		ChainID:    chainID,
		Address:    addr,
		Identifier: identifier,
		Fee:        fee,
		timeout:    120 * time.Second,
		retryDelay: 5 * time.Second,
		log:        logger,
	}
}

// Broadcast encrypts the transaction to the broadcaster, publishes it on
// the transact topic and awaits the matching encrypted response.
func (b *Broadcaster) Broadcast(ctx context.Context, tx *poi.ProvedTx, rand io.Reader) (common.Hash, error) {
	if tx.Fee == nil {
		return common.Hash{}, ErrMissingFee
	}

	pois, err := preTransactionPois(tx)
	if err != nil {
		return common.Hash{}, err
	}

	viewingPub := b.Address.ViewingPubkey
	params := broadcastParams{
		TxidVersion:           poi.TxidVersionV2,
		To:                    tx.TxData.To,
		Data:                  "0x" + common.Bytes2Hex(tx.TxData.Data),
		BroadcasterViewingKey: viewingPub.Hex(),
		ChainID:               b.ChainID,
		ChainType:             0,
		MinGasPrice:           tx.MinGasPrice.Dec(),
		FeesID:                tx.Fee.FeesID,
		UseRelayAdapt:         false,
		DevLog:                true,
		MinVersion:            MinBroadcasterVersion,
		MaxVersion:            MaxBroadcasterVersion,
		PreTransactionPOIs:    pois,
	}

	encrypted, pubkey, sharedSecret, err := encryptTransaction(&params, viewingPub, rand)
	if err != nil {
		return common.Hash{}, err
	}

	message := broadcastMessage{
		Method: "transact",
		Params: broadcastMessageParams{
			Pubkey:        pubkey.Hex(),
			EncryptedData: encrypted,
		},
	}

	return b.send(ctx, sharedSecret, &message)
}

// send publishes the request and drains the response topic, via both the
// live subscription and periodic store polling, until a response decrypts
// under the request's shared secret. The request is re-published every 30
// seconds; messages are deduplicated by payload hash.
func (b *Broadcaster) send(ctx context.Context, sharedSecret keys.SharedKey,
	message *broadcastMessage) (common.Hash, error) {

	payload, err := json.Marshal(message)
	if err != nil {
		return common.Hash{}, err
	}

	reqTopic := TransactContentTopic(b.ChainID)
	respTopic := TransactResponseContentTopic(b.ChainID)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := b.transport.Subscribe(subCtx, []string{respTopic})
	if err != nil {
		return common.Hash{}, err
	}

	b.log.Info("sending message", "topic", reqTopic)
	if err := b.transport.Send(ctx, reqTopic, payload); err != nil {
		return common.Hash{}, err
	}

	const resendInterval = 30 * time.Second
	deadline := time.NewTimer(b.timeout)
	defer deadline.Stop()
	resend := time.NewTicker(resendInterval)
	defer resend.Stop()
	storePoll := time.NewTicker(b.retryDelay)
	defer storePoll.Stop()

	seen := make(map[uint64]struct{})

	handle := func(payload []byte) (common.Hash, bool, error) {
		h := hashPayload(payload)
		if _, dup := seen[h]; dup {
			return common.Hash{}, false, nil
		}
		seen[h] = struct{}{}
		return b.decodeResponse(sharedSecret, payload)
	}

	for {
		select {
		case msg, ok := <-stream:
			if !ok {
				return common.Hash{}, ErrTimeout
			}
			hash, done, err := handle(msg.Payload)
			if err != nil {
				return common.Hash{}, err
			}
			if done {
				return hash, nil
			}

		case <-storePoll.C:
			b.log.Info("polling store for response")
			msgs, err := b.transport.RetrieveHistorical(ctx, respTopic)
			if err != nil {
				b.log.Warn("retrieve historical errored", "err", err)
				continue
			}
			for _, msg := range msgs {
				hash, done, err := handle(msg.Payload)
				if err != nil {
					return common.Hash{}, err
				}
				if done {
					return hash, nil
				}
			}

		case <-resend.C:
			b.log.Info("re-sending message", "topic", reqTopic)
			if err := b.transport.Send(ctx, reqTopic, payload); err != nil {
				return common.Hash{}, err
			}

		case <-deadline.C:
			return common.Hash{}, ErrTimeout

		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}
}

// decodeResponse tries to decrypt one response payload. Failures to decrypt
// are expected: the message belongs to another request and is skipped.
func (b *Broadcaster) decodeResponse(sharedSecret keys.SharedKey, payload []byte) (common.Hash, bool, error) {
	var wrapped rpcResult
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		b.log.Warn("error deserializing broadcaster response", "err", err)
		return common.Hash{}, false, nil
	}

	ivTag := common.FromHex(wrapped.Result[0])
	data := common.FromHex(wrapped.Result[1])
	if len(ivTag) != 32 {
		return common.Hash{}, false, fmt.Errorf("broadcast: invalid iv/tag length %d", len(ivTag))
	}

	ct := keys.Ciphertext{}
	copy(ct.IV[:], ivTag[:16])
	copy(ct.Tag[:], ivTag[16:])
	for len(data) > 0 {
		n := 32
		if len(data) < n {
			n = len(data)
		}
		ct.Data = append(ct.Data, data[:n])
		data = data[n:]
	}

	decrypted, err := sharedSecret.DecryptGCM(ct)
	if err != nil {
		// Not addressed to this request; a different shared key was used.
		b.log.Info("response did not decrypt, skipping")
		return common.Hash{}, false, nil
	}

	var joined []byte
	for _, block := range decrypted {
		joined = append(joined, block...)
	}

	var resp transactResponse
	if err := json.Unmarshal(joined, &resp); err != nil {
		return common.Hash{}, false, fmt.Errorf("broadcast: invalid decrypted response: %w", err)
	}

	if resp.Error != nil {
		return common.Hash{}, false, fmt.Errorf("broadcast: broadcaster returned error: %s", *resp.Error)
	}
	if resp.TxHash == nil {
		return common.Hash{}, false, errors.New("broadcast: broadcaster response missing tx hash")
	}

	return *resp.TxHash, true, nil
}

// preTransactionPois collects each operation's POI proofs keyed by list and
// txid leaf.
func preTransactionPois(tx *poi.ProvedTx) (poi.PreTransactionPoisPerTxidLeafPerList, error) {
	out := make(poi.PreTransactionPoisPerTxidLeafPerList)
	for _, op := range tx.Operations {
		if op.TxidLeafHash == nil {
			return nil, ErrMissingTxidLeaf
		}
		leafHex := fmt.Sprintf("%064x", op.TxidLeafHash.ToBig())

		for listKey, p := range op.Pois {
			if out[listKey] == nil {
				out[listKey] = make(map[string]poi.PreTransactionPoi)
			}
			out[listKey][leafHex] = p
		}
	}
	return out, nil
}

// encryptTransaction serialises the params, chunks them into 32-byte
// blocks, and GCM-encrypts them under a fresh viewing key's shared secret
// with the broadcaster.
func encryptTransaction(params *broadcastParams, broadcasterKey keys.ViewingPublicKey,
	rand io.Reader) ([2]string, keys.ViewingPublicKey, keys.SharedKey, error) {

	var randomKey keys.ViewingKey
	if _, err := io.ReadFull(rand, randomKey[:]); err != nil {
		return [2]string{}, keys.ViewingPublicKey{}, keys.SharedKey{}, err
	}
	randomKey[0] &= 0x1F

	randomPubkey := randomKey.PublicKey()
	sharedSecret, err := randomKey.DeriveSharedSecret(broadcasterKey)
	if err != nil {
		return [2]string{}, keys.ViewingPublicKey{}, keys.SharedKey{}, err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return [2]string{}, keys.ViewingPublicKey{}, keys.SharedKey{}, err
	}

	var chunks [][]byte
	for len(raw) > 0 {
		n := 32
		if len(raw) < n {
			n = len(raw)
		}
		chunks = append(chunks, raw[:n])
		raw = raw[n:]
	}

	encrypted, err := sharedSecret.EncryptGCM(chunks, rand)
	if err != nil {
		return [2]string{}, keys.ViewingPublicKey{}, keys.SharedKey{}, err
	}

	var ivTag [32]byte
	copy(ivTag[:16], encrypted.IV[:])
	copy(ivTag[16:], encrypted.Tag[:])

	var data []byte
	for _, block := range encrypted.Data {
		data = append(data, block...)
	}

	out := [2]string{
		"0x" + common.Bytes2Hex(ivTag[:]),
		"0x" + common.Bytes2Hex(data),
	}
	return out, randomPubkey, sharedSecret, nil
}

// hashPayload hashes a payload for dedup purposes; 64 bits suffice.
func hashPayload(payload []byte) uint64 {
	h := fnv.New64a()
	h.Write(payload)
	return h.Sum64()
}

// Ensure Broadcaster satisfies the provider's interface.
var _ poi.Broadcaster = (*Broadcaster)(nil)
