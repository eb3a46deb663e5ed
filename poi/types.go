// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poi implements the proof-of-innocence pipeline: the aggregator
// JSON-RPC client, POI-augmented notes and circuit inputs, and the pending
// queue that re-proves operations once their on-chain txid position is
// validated.
package poi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/railgun"
)

// ListKey names a POI list tracked by the aggregator.
type ListKey string

// TxidVersion selects the aggregator's tree flavour.
type TxidVersion string

// TxidVersionV2 is the Poseidon-merkle v2 tree.
const TxidVersionV2 TxidVersion = "V2_PoseidonMerkle"

// Status is the POI state of one blinded commitment on one list.
type Status string

const (
	StatusValid          Status = "Valid"
	StatusShieldBlocked  Status = "ShieldBlocked"
	StatusProofSubmitted Status = "ProofSubmitted"
	StatusMissing        Status = "Missing"
)

// CommitmentType tags a blinded commitment for the aggregator.
type CommitmentType string

const (
	CommitmentShield   CommitmentType = "Shield"
	CommitmentTransact CommitmentType = "Transact"
	CommitmentUnshield CommitmentType = "Unshield"
)

// CommitmentTypeOf maps a note kind to its aggregator tag.
func CommitmentTypeOf(kind railgun.UtxoKind) CommitmentType {
	if kind == railgun.KindShield {
		return CommitmentShield
	}
	return CommitmentTransact
}

// HexU256 is a uint256 that travels as 64 hex chars without 0x on the
// aggregator wire, tolerating shorter and 0x-prefixed values on input.
type HexU256 uint256.Int

// Uint returns the word value.
func (h HexU256) Uint() uint256.Int {
	return uint256.Int(h)
}

// MarshalJSON renders the zero-padded 64-char hex form.
func (h HexU256) MarshalJSON() ([]byte, error) {
	v := uint256.Int(h)
	return json.Marshal(fmt.Sprintf("%064x", v.ToBig()))
}

// UnmarshalJSON parses optionally-0x-prefixed, possibly short hex.
func (h *HexU256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	v, err := uint256.FromHex("0x" + s)
	if err != nil {
		return fmt.Errorf("poi: invalid hex word: %w", err)
	}
	*h = HexU256(*v)
	return nil
}

// ChainParams identifies the chain and tree flavour in every RPC call.
type ChainParams struct {
	ChainType   string      `json:"chainType"`
	ChainID     string      `json:"chainID"`
	TxidVersion TxidVersion `json:"txidVersion"`
}

// NodeStatusAllNetworks is the aggregator's status summary.
type NodeStatusAllNetworks struct {
	ListKeys   []ListKey                       `json:"listKeys"`
	ForNetwork map[string]NodeStatusForNetwork `json:"forNetwork"`
}

// NodeStatusForNetwork is the per-network status block.
type NodeStatusForNetwork struct {
	TxidStatus           TxidStatus            `json:"txidStatus"`
	ShieldQueueStatus    ShieldQueueStatus     `json:"shieldQueueStatus"`
	ListStatuses         map[string]ListStatus `json:"listStatuses"`
	LegacyTransactProofs uint64                `json:"legacyTransactProofs"`
}

// TxidStatus is the aggregator's txid tree status.
type TxidStatus struct {
	CurrentTxidIndex    uint64  `json:"currentTxidIndex"`
	CurrentMerkleroot   HexU256 `json:"currentMerkleroot"`
	ValidatedTxidIndex  uint64  `json:"validatedTxidIndex"`
	ValidatedMerkleroot HexU256 `json:"validatedMerkleroot"`
}

// ShieldQueueStatus is the aggregator's shield queue summary.
type ShieldQueueStatus struct {
	Unknown      uint64  `json:"unknown"`
	Pending      uint64  `json:"pending"`
	Allowed      uint64  `json:"allowed"`
	Blocked      uint64  `json:"blocked"`
	AddedPOI     uint64  `json:"addedPOI"`
	LatestShield *string `json:"latestShield"`
}

// ListStatus is the per-list aggregator status.
type ListStatus struct {
	PoiEventLengths             map[string]uint64 `json:"poiEventLengths"`
	PendingTransactProofs       uint64            `json:"pendingTransactProofs"`
	BlockedShields              uint64            `json:"blockedShields"`
	HistoricalMerklerootsLength uint64            `json:"historicalMerklerootsLength"`
	LatestHistoricalMerkleroot  HexU256           `json:"latestHistoricalMerkleroot"`
}

// BlindedCommitmentData tags a blinded commitment with its origin.
type BlindedCommitmentData struct {
	Type              CommitmentType `json:"type"`
	BlindedCommitment HexU256        `json:"blindedCommitment"`
}

// ValidatedTxidStatus is the aggregator's validated txid head.
type ValidatedTxidStatus struct {
	Index      uint64  `json:"validatedTxidIndex"`
	Merkleroot HexU256 `json:"validatedMerkleroot"`
}

// Tree unpacks the tree number from the packed index.
func (s ValidatedTxidStatus) Tree() uint32 {
	return uint32(s.Index >> 16)
}

// LeafIndex unpacks the leaf index from the packed index.
func (s ValidatedTxidStatus) LeafIndex() uint64 {
	return s.Index & 0xFFFF
}

// WireMerkleProof is a Merkle proof on the aggregator wire.
type WireMerkleProof struct {
	Leaf     HexU256   `json:"leaf"`
	Elements []HexU256 `json:"elements"`
	Indices  HexU256   `json:"indices"`
	Root     HexU256   `json:"root"`
}

// PreTransactionPoi is a POI proof handed to broadcasters ahead of
// submission.
type PreTransactionPoi struct {
	Proof                    circuit.Proof `json:"snarkProof"`
	TxidMerkleroot           HexU256       `json:"txidMerkleroot"`
	PoiMerkleroots           []HexU256     `json:"poiMerkleroots"`
	BlindedCommitmentsOut    []HexU256     `json:"blindedCommitmentsOut"`
	RailgunTxidIfHasUnshield HexU256       `json:"railgunTxidIfHasUnshield"`
}

// TransactProofData is the post-transaction proof submitted to the
// aggregator.
type TransactProofData struct {
	Proof          circuit.Proof `json:"snarkProof"`
	PoiMerkleroots []HexU256     `json:"poiMerkleroots"`
	// TxidMerkleroot is the root of the txid tree snapshot the inclusion
	// proof was generated against.
	TxidMerkleroot HexU256 `json:"txidMerkleroot"`
	// TxidMerklerootIndex is the global index of that snapshot: all txids
	// of one transaction share it.
	TxidMerklerootIndex      uint64    `json:"txidMerklerootIndex"`
	BlindedCommitmentsOut    []HexU256 `json:"blindedCommitmentsOut"`
	RailgunTxidIfHasUnshield HexU256   `json:"railgunTxidIfHasUnshield"`
}

// PreTransactionPoisPerTxidLeafPerList maps list key -> txid leaf hex ->
// proof, the shape broadcasters expect.
type PreTransactionPoisPerTxidLeafPerList map[ListKey]map[string]PreTransactionPoi
