// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func testLogger() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

// fakeAggregator is a minimal JSON-RPC server for client tests.
func fakeAggregator(t *testing.T, handlers map[string]func(params json.RawMessage) interface{}) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			ID     uint64          `json:"id"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handler, ok := handlers[req.Method]
		var result interface{}
		if ok {
			result = handler(req.Params)
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func statusHandler() func(json.RawMessage) interface{} {
	return func(json.RawMessage) interface{} {
		return NodeStatusAllNetworks{
			ListKeys:   []ListKey{"list-a", "list-b"},
			ForNetwork: map[string]NodeStatusForNetwork{},
		}
	}
}

func TestClientStatusAndListKeys(t *testing.T) {
	server := fakeAggregator(t, map[string]func(json.RawMessage) interface{}{
		"ppoi_node_status": statusHandler(),
	})
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, 1, testLogger())
	require.NoError(t, err)
	require.Equal(t, []ListKey{"list-a", "list-b"}, client.ListKeys())
}

func TestClientValidatedTxid(t *testing.T) {
	server := fakeAggregator(t, map[string]func(json.RawMessage) interface{}{
		"ppoi_node_status": statusHandler(),
		"ppoi_validated_txid": func(params json.RawMessage) interface{} {
			// Assert the chain params shape.
			var chain ChainParams
			require.NoError(t, json.Unmarshal(params, &chain))
			require.Equal(t, "0", chain.ChainType)
			require.Equal(t, "1", chain.ChainID)
			require.Equal(t, TxidVersionV2, chain.TxidVersion)

			return map[string]interface{}{
				"validatedTxidIndex":  (3 << 16) | 7,
				"validatedMerkleroot": "0abc",
			}
		},
	})
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, 1, testLogger())
	require.NoError(t, err)

	status, err := client.ValidatedTxidStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(3), status.Tree())
	require.Equal(t, uint64(7), status.LeafIndex())

	index, err := client.ValidatedTxid(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64((3<<16)|7), index)
}

func TestClientMerkleProofs(t *testing.T) {
	server := fakeAggregator(t, map[string]func(json.RawMessage) interface{}{
		"ppoi_node_status": statusHandler(),
		"ppoi_merkle_proofs": func(params json.RawMessage) interface{} {
			var p struct {
				ListKey            ListKey   `json:"listKey"`
				BlindedCommitments []HexU256 `json:"blindedCommitments"`
			}
			require.NoError(t, json.Unmarshal(params, &p))
			require.Len(t, p.BlindedCommitments, 1)

			return []WireMerkleProof{{
				Leaf:     HexU256(*uint256.NewInt(5)),
				Elements: []HexU256{HexU256(*uint256.NewInt(6))},
				Indices:  HexU256(*uint256.NewInt(0)),
				Root:     HexU256(*uint256.NewInt(7)),
			}}
		},
	})
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, 1, testLogger())
	require.NoError(t, err)

	blinded := *uint256.NewInt(5)
	proofs, err := client.MerkleProofs(context.Background(),
		[]uint256.Int{blinded}, []ListKey{"list-a"})
	require.NoError(t, err)

	proof, ok := proofs[blinded]["list-a"]
	require.True(t, ok)
	require.True(t, proof.Element.Eq(uint256.NewInt(5)))
	require.True(t, proof.Root.Eq(uint256.NewInt(7)))
}

func TestClientSubmitToleratesNullResult(t *testing.T) {
	server := fakeAggregator(t, map[string]func(json.RawMessage) interface{}{
		"ppoi_node_status": statusHandler(),
		// ppoi_submit_transact_proof intentionally returns null.
	})
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, 1, testLogger())
	require.NoError(t, err)

	err = client.SubmitOperation(context.Background(), map[ListKey]TransactProofData{
		"list-a": {},
	})
	require.NoError(t, err)
}

func TestHexU256RoundTrip(t *testing.T) {
	v := HexU256(*uint256.NewInt(0xdeadbeef))

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	// 64 chars, no 0x prefix.
	require.Len(t, string(raw), 66)
	require.NotContains(t, string(raw), "0x")

	var back HexU256
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, v, back)

	// Short and 0x-prefixed forms parse too.
	require.NoError(t, json.Unmarshal([]byte(`"0xff"`), &back))
	backU := back.Uint()
	require.Equal(t, uint64(255), backU.Uint64())
}
