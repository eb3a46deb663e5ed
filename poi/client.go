// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/railgun"
)

// Client speaks the aggregator's JSON-RPC surface.
type Client struct {
	http   *http.Client
	url    string
	nextID atomic.Uint64

	chainID uint64
	status  NodeStatusAllNetworks

	log log.Logger
}

// RPCError is a JSON-RPC error response.
type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrNullResult reports an RPC response with neither result nor error.
var ErrNullResult = errors.New("poi: null result from rpc")

const clientRetries = 3
const clientRetryPause = time.Second

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	ID      uint64      `json:"id"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// NewClient dials the aggregator and fetches its node status.
func NewClient(ctx context.Context, url string, chainID uint64, logger log.Logger) (*Client, error) {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		url:     url,
		chainID: chainID,
		log:     logger,
	}

	if err := c.call(ctx, "ppoi_node_status", struct{}{}, &c.status); err != nil {
		return nil, err
	}
	return c, nil
}

// Health reports whether the aggregator answers its health probe.
func (c *Client) Health(ctx context.Context) bool {
	var status string
	if err := c.call(ctx, "ppoi_health", []struct{}{}, &status); err != nil {
		return false
	}
	return status == "ok" || status == "OK"
}

// ListKeys returns the POI lists the aggregator tracks.
func (c *Client) ListKeys() []ListKey {
	return append([]ListKey(nil), c.status.ListKeys...)
}

func (c *Client) chain() ChainParams {
	return ChainParams{
		ChainType:   "0", // EVM
		ChainID:     strconv.FormatUint(c.chainID, 10),
		TxidVersion: TxidVersionV2,
	}
}

// Pois fetches the POI statuses for blinded commitments across list keys.
func (c *Client) Pois(ctx context.Context, listKeys []ListKey,
	commitments []BlindedCommitmentData) (map[string]map[ListKey]Status, error) {

	params := struct {
		ChainParams
		ListKeys               []ListKey               `json:"listKeys"`
		BlindedCommitmentDatas []BlindedCommitmentData `json:"blindedCommitmentDatas"`
	}{c.chain(), listKeys, commitments}

	var out map[string]map[ListKey]Status
	if err := c.call(ctx, "ppoi_pois_per_list", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NotePois returns the POI status of one note across the given lists.
func (c *Client) NotePois(ctx context.Context, note *railgun.UtxoNote,
	listKeys []ListKey) (map[ListKey]Status, error) {

	data := BlindedCommitmentData{
		Type:              CommitmentTypeOf(note.Kind()),
		BlindedCommitment: HexU256(note.BlindedCommitment()),
	}

	pois, err := c.Pois(ctx, listKeys, []BlindedCommitmentData{data})
	if err != nil {
		return nil, err
	}

	blinded := note.BlindedCommitment()
	key := fmt.Sprintf("0x%064x", blinded.ToBig())
	if statuses, ok := pois[key]; ok {
		return statuses, nil
	}
	return map[ListKey]Status{}, nil
}

// MerkleProofs fetches the POI tree proofs for blinded commitments, per
// list key.
func (c *Client) MerkleProofs(ctx context.Context, blindedCommitments []uint256.Int,
	listKeys []ListKey) (map[uint256.Int]map[ListKey]merkle.Proof, error) {

	wire := make([]HexU256, len(blindedCommitments))
	for i := range blindedCommitments {
		wire[i] = HexU256(blindedCommitments[i])
	}

	proofs := make(map[uint256.Int]map[ListKey]merkle.Proof)
	for _, listKey := range listKeys {
		params := struct {
			ChainParams
			ListKey            ListKey   `json:"listKey"`
			BlindedCommitments []HexU256 `json:"blindedCommitments"`
		}{c.chain(), listKey, wire}

		var listProofs []WireMerkleProof
		if err := c.call(ctx, "ppoi_merkle_proofs", params, &listProofs); err != nil {
			return nil, err
		}

		for i, proof := range listProofs {
			if i >= len(blindedCommitments) {
				break
			}
			key := blindedCommitments[i]
			if proofs[key] == nil {
				proofs[key] = make(map[ListKey]merkle.Proof)
			}
			proofs[key][listKey] = proofFromWire(proof)
		}
	}

	return proofs, nil
}

// NoteToPoiNote augments a note with its POI proofs for the given lists.
func (c *Client) NoteToPoiNote(ctx context.Context, note *railgun.UtxoNote,
	listKeys []ListKey) (*PoiNote, error) {

	blinded := note.BlindedCommitment()
	proofs, err := c.MerkleProofs(ctx, []uint256.Int{blinded}, listKeys)
	if err != nil {
		return nil, err
	}

	noteProofs := proofs[blinded]
	if noteProofs == nil {
		noteProofs = make(map[ListKey]merkle.Proof)
	}
	return NewPoiNote(note, noteProofs), nil
}

// SubmitOperation submits one proof per list key, tolerating the
// aggregator's null acknowledgements.
func (c *Client) SubmitOperation(ctx context.Context, proofs map[ListKey]TransactProofData) error {
	for listKey, proofData := range proofs {
		params := struct {
			ChainParams
			ListKey           ListKey           `json:"listKey"`
			TransactProofData TransactProofData `json:"transactProofData"`
		}{c.chain(), listKey, proofData}

		var ignored json.RawMessage
		err := c.call(ctx, "ppoi_submit_transact_proof", params, &ignored)
		if err != nil && !errors.Is(err, ErrNullResult) {
			return err
		}
	}
	return nil
}

// ValidatedTxidStatus fetches the aggregator's validated txid head.
func (c *Client) ValidatedTxidStatus(ctx context.Context) (ValidatedTxidStatus, error) {
	var out ValidatedTxidStatus
	if err := c.call(ctx, "ppoi_validated_txid", c.chain(), &out); err != nil {
		return ValidatedTxidStatus{}, err
	}
	return out, nil
}

// ValidatedTxid implements railgun.TxidValidator.
func (c *Client) ValidatedTxid(ctx context.Context) (uint64, error) {
	status, err := c.ValidatedTxidStatus(ctx)
	if err != nil {
		return 0, err
	}
	return status.Index, nil
}

// ValidateTxidMerkleroot checks a local root against the aggregator's tree
// snapshot at (tree, index).
func (c *Client) ValidateTxidMerkleroot(ctx context.Context, tree uint32, index uint64,
	root uint256.Int) (bool, error) {

	params := struct {
		ChainParams
		Tree       uint32  `json:"tree"`
		Index      uint64  `json:"index"`
		Merkleroot HexU256 `json:"merkleroot"`
	}{c.chain(), tree, index, HexU256(root)}

	var valid bool
	if err := c.call(ctx, "ppoi_validate_txid_merkleroot", params, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

// ValidatePoiMerkleroot checks a POI tree root against the aggregator.
func (c *Client) ValidatePoiMerkleroot(ctx context.Context, listKey ListKey,
	root uint256.Int) (bool, error) {

	params := struct {
		ChainParams
		ListKey        ListKey   `json:"listKey"`
		PoiMerkleroots []HexU256 `json:"poiMerkleroots"`
	}{c.chain(), listKey, []HexU256{HexU256(root)}}

	var valid bool
	if err := c.call(ctx, "ppoi_validate_poi_merkleroots", params, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

// VerifyRoot implements railgun.RootVerifier over the txid tree.
func (c *Client) VerifyRoot(ctx context.Context, treeNumber uint32, treeIndex uint64,
	root uint256.Int) (bool, error) {
	return c.ValidateTxidMerkleroot(ctx, treeNumber, treeIndex, root)
}

// call performs one JSON-RPC request with bounded retries on transport
// errors.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      id,
		Params:  params,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < clientRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(clientRetryPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, err := c.post(ctx, body)
		if err != nil {
			c.log.Warn("poi rpc transport error", "method", method, "attempt", attempt, "err", err)
			lastErr = err
			continue
		}

		if resp.Error != nil {
			return resp.Error
		}
		if resp.Result == nil || string(resp.Result) == "null" {
			return ErrNullResult
		}
		return json.Unmarshal(resp.Result, result)
	}

	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "close")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func proofFromWire(w WireMerkleProof) merkle.Proof {
	siblings := make([]uint256.Int, len(w.Elements))
	for i := range w.Elements {
		siblings[i] = w.Elements[i].Uint()
	}
	return merkle.Proof{
		Element:  w.Leaf.Uint(),
		Siblings: siblings,
		Indices:  w.Indices.Uint(),
		Root:     w.Root.Uint(),
	}
}
