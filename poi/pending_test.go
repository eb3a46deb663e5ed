// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/railgun"
)

func pendingEntryFixture(t *testing.T, seed byte) *ProvedOperation {
	t.Helper()

	signer := testSigner()
	note := railgun.NewUtxoNote(0, uint32(seed), signer,
		asset.Erc20(common.HexToAddress("0x1234567890123456789012345678901234567890")),
		uint256.NewInt(uint64(seed)+100), [16]byte{seed}, "", railgun.KindTransact)
	poiNote := NewPoiNote(note, nil)

	transfer := railgun.NewTransferNote(signer.ViewingKey(), signer.Address(),
		note.Asset(), uint256.NewInt(uint64(seed)+100), [16]byte{seed + 1}, "")

	op := railgun.NewOperation(0, signer, note.Asset(),
		[]*PoiNote{poiNote}, []railgun.TransferNote{transfer}, nil)

	txid := railgun.NewTxid(
		[]uint256.Int{*uint256.NewInt(uint64(seed))},
		[]uint256.Int{*uint256.NewInt(uint64(seed) + 1)},
		*uint256.NewInt(uint64(seed) + 2))
	leaf := railgun.NewTxidLeaf(txid, 0, railgun.PreInclusionIndex())

	return &ProvedOperation{
		Operation: op,
		CircuitInputs: railgun.TransactCircuitInputs{
			BoundParamsHash: *uint256.NewInt(uint64(seed) + 2),
		},
		Pois:         map[ListKey]PreTransactionPoi{"list-a": {}},
		Txid:         &txid,
		TxidLeafHash: &leaf,
	}
}

func TestPendingSubmitterRegister(t *testing.T) {
	submitter := NewPendingSubmitter(testLogger())

	op := pendingEntryFixture(t, 1)
	submitter.Register(op)
	require.Equal(t, 1, submitter.Len())

	state := submitter.State()
	entry := state.Pending[0]
	require.Equal(t, *op.Txid, entry.Txid)
	require.Equal(t, []ListKey{"list-a"}, entry.ListKeys)
	require.Len(t, entry.InNotes, 1)
	require.Len(t, entry.OutCommitments, 1)
	require.False(t, entry.HasUnshield)

	// Serialisable without signers: a JSON round trip preserves the entry.
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	var restored PendingSubmitterState
	require.NoError(t, json.Unmarshal(raw, &restored))

	fresh := NewPendingSubmitter(testLogger())
	fresh.SetState(restored)
	require.Equal(t, 1, fresh.Len())
	require.Equal(t, entry.Txid, fresh.State().Pending[0].Txid)
}

func TestPendingSubmitterSkipsUnvalidatedTxids(t *testing.T) {
	submitter := NewPendingSubmitter(testLogger())
	first, second := pendingEntryFixture(t, 1), pendingEntryFixture(t, 2)
	submitter.Register(first)
	submitter.Register(second)

	// Empty txid indexer: nothing is validated, everything is skipped and
	// the queue retains its order.
	txidIndexer := railgun.NewTxidIndexer(nil, nil, testLogger())
	utxoIndexer := railgun.NewUtxoIndexer(nil, nil, testLogger())

	submitted, err := submitter.Process(context.Background(), txidIndexer, utxoIndexer, nil, nil)
	require.NoError(t, err)
	require.Empty(t, submitted)
	require.Equal(t, 2, submitter.Len())
	pending := submitter.State().Pending
	require.Equal(t, *first.Txid, pending[0].Txid)
	require.Equal(t, *second.Txid, pending[1].Txid)
}

func TestPendingSubmitterIgnoresOpsWithoutTxid(t *testing.T) {
	submitter := NewPendingSubmitter(testLogger())

	op := pendingEntryFixture(t, 1)
	op.Txid = nil
	submitter.Register(op)
	require.Equal(t, 0, submitter.Len())
}
