// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poi"
	"github.com/luxfi/veil/railgun"
)

// memoryTransport is an in-process Transport connecting the test relayer to
// the broadcaster under test.
type memoryTransport struct {
	mu        sync.Mutex
	subs      map[string][]chan Message
	onPublish func(topic string, payload []byte)
}

func newMemoryTransport() *memoryTransport {
	return &memoryTransport{subs: make(map[string][]chan Message)}
}

func (m *memoryTransport) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	out := make(chan Message, 16)
	m.mu.Lock()
	for _, topic := range topics {
		m.subs[topic] = append(m.subs[topic], out)
	}
	m.mu.Unlock()
	return out, nil
}

func (m *memoryTransport) Send(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	channels := append([]chan Message(nil), m.subs[topic]...)
	handler := m.onPublish
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- Message{Payload: payload, ContentTopic: topic}:
		default:
		}
	}
	if handler != nil {
		go handler(topic, payload)
	}
	return nil
}

func (m *memoryTransport) RetrieveHistorical(context.Context, string) ([]Message, error) {
	return nil, nil
}

func (m *memoryTransport) publish(topic string, payload []byte) {
	m.Send(context.Background(), topic, payload)
}

func TestBroadcastRoundTrip(t *testing.T) {
	transport := newMemoryTransport()

	// The "relayer" side keys.
	relayerViewing := keys.ViewingKey{}
	for i := range relayerViewing {
		relayerViewing[i] = 9
	}
	relayerViewing[0] &= 0x1F

	var master keys.MasterPublicKey
	master[0] = 1
	relayerAddr := address.New(master, relayerViewing.PublicKey(), address.EVMChain(1))

	expectedHash := common.HexToHash("0x46699e314efd2a92f67ec3d2fcecee3e1976e01606818ee069027a7129a1a7ae")

	// The relayer decrypts incoming transact requests and answers on the
	// response topic, encrypted under the same shared secret.
	transport.onPublish = func(topic string, payload []byte) {
		if topic != TransactContentTopic(1) {
			return
		}

		var msg struct {
			Method string `json:"method"`
			Params struct {
				Pubkey        string    `json:"pubkey"`
				EncryptedData [2]string `json:"encryptedData"`
			} `json:"params"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Method != "transact" {
			return
		}

		clientKeyBytes, err := keys.ParseKeyHex(msg.Params.Pubkey)
		if err != nil {
			return
		}
		shared, err := relayerViewing.DeriveSharedSecret(keys.ViewingPublicKey(clientKeyBytes))
		if err != nil {
			return
		}

		// Confirm the request decrypts before answering.
		ivTag := common.FromHex(msg.Params.EncryptedData[0])
		data := common.FromHex(msg.Params.EncryptedData[1])
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
		if _, err := shared.DecryptGCM(ct); err != nil {
			return
		}

		respPlain, _ := json.Marshal(map[string]string{"txHash": expectedHash.Hex()})
		var chunks [][]byte
		for len(respPlain) > 0 {
			n := 32
			if len(respPlain) < n {
				n = len(respPlain)
			}
			chunks = append(chunks, respPlain[:n])
			respPlain = respPlain[n:]
		}
		encrypted, err := shared.EncryptGCM(chunks, rand.Reader)
		if err != nil {
			return
		}

		var respIvTag [32]byte
		copy(respIvTag[:16], encrypted.IV[:])
		copy(respIvTag[16:], encrypted.Tag[:])
		var respData []byte
		for _, block := range encrypted.Data {
			respData = append(respData, block...)
		}

		resp, _ := json.Marshal(map[string][2]string{"result": {
			"0x" + common.Bytes2Hex(respIvTag[:]),
			"0x" + common.Bytes2Hex(respData),
		}})
		transport.publish(TransactResponseContentTopic(1), resp)
	}

	fee := poi.Fee{
		Token:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		PerUnitGas: *uint256.NewInt(100),
		Recipient:  relayerAddr,
		FeesID:     "fees-1",
	}
	broadcaster := NewBroadcaster(transport, 1, relayerAddr, nil, fee, testLogger())
	broadcaster.timeout = 10 * time.Second
	broadcaster.retryDelay = time.Second

	tx := &poi.ProvedTx{
		TxData: railgun.TxData{
			To:   common.HexToAddress("0x000000000000000000000000000000000000dead"),
			Data: []byte{1, 2, 3, 4},
		},
		MinGasPrice: *uint256.NewInt(100),
		Fee:         &fee,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	hash, err := broadcaster.Broadcast(ctx, tx, rand.Reader)
	require.NoError(t, err)
	require.Equal(t, expectedHash, hash)
}

func TestBroadcastRequiresFee(t *testing.T) {
	broadcaster := NewBroadcaster(newMemoryTransport(), 1,
		testBroadcasterAddress(2), nil, poi.Fee{}, testLogger())

	_, err := broadcaster.Broadcast(context.Background(), &poi.ProvedTx{}, rand.Reader)
	require.ErrorIs(t, err, ErrMissingFee)
}
