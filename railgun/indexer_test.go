// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/poseidon"
)

func testLogger() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

// fakeSyncer replays a fixed event list.
type fakeSyncer struct {
	latest uint64
	events []SyncEvent
}

func (f *fakeSyncer) LatestBlock(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSyncer) Sync(ctx context.Context, fromBlock, toBlock uint64) (<-chan SyncEvent, error) {
	out := make(chan SyncEvent, len(f.events))
	for _, ev := range f.events {
		if ev.Block >= fromBlock && ev.Block <= toBlock {
			out <- ev
		}
	}
	close(out)
	return out, nil
}

// acceptAllVerifier approves every root.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyRoot(context.Context, uint32, uint64, uint256.Int) (bool, error) {
	return true, nil
}

// rejectAllVerifier rejects every root.
type rejectAllVerifier struct{}

func (rejectAllVerifier) VerifyRoot(context.Context, uint32, uint64, uint256.Int) (bool, error) {
	return false, nil
}

// transactEventFor encrypts a note to the receiver and wraps it in a
// Transact event at the given position.
func transactEventFor(t *testing.T, receiver Signer, tree, start uint32,
	value *uint256.Int, block uint64) (SyncEvent, *UtxoNote) {
	t.Helper()

	sender := testSigner(11, 12)
	receiverAddr := receiver.Address()

	random := [16]byte{42}
	encrypted, err := encryptNote(&receiverAddr, random, value, testAsset(), "memo",
		sender.ViewingKey(), false, rand.Reader)
	require.NoError(t, err)

	note := NewUtxoNote(tree, start, receiver, testAsset(), value, random, "memo", KindTransact)
	hash := note.Hash()

	event := SyncEvent{
		Transact: &abis.TransactEvent{
			TreeNumber:    new(big.Int).SetUint64(uint64(tree)),
			StartPosition: new(big.Int).SetUint64(uint64(start)),
			Hash:          [][32]byte{hash.Bytes32()},
			Ciphertext:    []abis.CommitmentCiphertext{encrypted},
		},
		Block: block,
	}
	return event, note
}

func TestIndexerSyncDecryptsAndTracksBalance(t *testing.T) {
	receiver := testSigner(3, 4)

	event, note := transactEventFor(t, receiver, 0, 0, uint256.NewInt(1000), 5)
	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{event}}

	indexer := NewUtxoIndexer(syncer, acceptAllVerifier{}, testLogger())
	indexer.Register(receiver)

	require.NoError(t, indexer.Sync(context.Background()))
	require.Equal(t, uint64(10), indexer.SyncedBlock())

	unspent := indexer.Unspent(receiver.Address())
	require.Len(t, unspent, 1)
	require.True(t, note.Equal(unspent[0]))

	balance := indexer.Balance(receiver.Address())
	total := balance[testAsset()]
	require.True(t, total.Eq(uint256.NewInt(1000)))

	// The commitment landed in the tree.
	tree, ok := indexer.Tree(0)
	require.True(t, ok)
	require.Equal(t, 1, tree.LeavesLen())
	_, err := tree.GenerateProof(note.Hash())
	require.NoError(t, err)
}

func TestIndexerNullifiesNotes(t *testing.T) {
	receiver := testSigner(3, 4)
	event, note := transactEventFor(t, receiver, 0, 0, uint256.NewInt(500), 5)

	nullifier := note.Nullifier(uint256.NewInt(0))
	nullEvent := SyncEvent{
		Nullified: &abis.NullifiedEvent{
			TreeNumber: 0,
			Nullifier:  [][32]byte{nullifier.Bytes32()},
		},
		Block: 6,
	}

	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{event, nullEvent}}
	indexer := NewUtxoIndexer(syncer, acceptAllVerifier{}, testLogger())
	indexer.Register(receiver)

	require.NoError(t, indexer.Sync(context.Background()))
	require.Empty(t, indexer.Unspent(receiver.Address()))
}

func TestIndexerVerifyFailureIsFatal(t *testing.T) {
	receiver := testSigner(3, 4)
	event, _ := transactEventFor(t, receiver, 0, 0, uint256.NewInt(5), 5)

	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{event}}
	indexer := NewUtxoIndexer(syncer, rejectAllVerifier{}, testLogger())

	err := indexer.Sync(context.Background())
	var invalidRoot ErrInvalidRoot
	require.ErrorAs(t, err, &invalidRoot)
	// The synced height did not advance.
	require.Equal(t, uint64(0), indexer.SyncedBlock())
}

func TestIndexerRegisterReplaysMatchedEvents(t *testing.T) {
	receiver := testSigner(3, 4)
	event, note := transactEventFor(t, receiver, 0, 0, uint256.NewInt(77), 5)

	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{event}}
	indexer := NewUtxoIndexer(syncer, acceptAllVerifier{}, testLogger())

	// First pass with the account registered retains the matched event.
	indexer.Register(receiver)
	require.NoError(t, indexer.Sync(context.Background()))

	// Restore the state into a fresh indexer; replay on register rebuilds
	// the balance without a resync.
	state := indexer.State()
	restored := NewUtxoIndexer(&fakeSyncer{latest: 10}, acceptAllVerifier{}, testLogger())
	restored.SetState(state)
	restored.Register(receiver)

	unspent := restored.Unspent(receiver.Address())
	require.Len(t, unspent, 1)
	require.True(t, note.Equal(unspent[0]))
}

func TestIndexerLegacyCommitmentsNotMatched(t *testing.T) {
	receiver := testSigner(3, 4)

	legacy := SyncEvent{
		Legacy: &LegacyCommitment{
			Hash:       *uint256.NewInt(12345),
			TreeNumber: 0,
			LeafIndex:  0,
		},
		Block: 3,
	}

	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{legacy}}
	indexer := NewUtxoIndexer(syncer, acceptAllVerifier{}, testLogger())
	indexer.Register(receiver)

	require.NoError(t, indexer.Sync(context.Background()))

	// Inserted as a raw leaf, never matched to the account.
	tree, ok := indexer.Tree(0)
	require.True(t, ok)
	require.Equal(t, 1, tree.LeavesLen())
	require.Empty(t, indexer.Unspent(receiver.Address()))
	require.Empty(t, indexer.State().MatchedEvents)
}

func TestInsertLeavesCarriesTreeBoundary(t *testing.T) {
	indexer := NewUtxoIndexer(&fakeSyncer{}, acceptAllVerifier{}, testLogger())

	leaves := []uint256.Int{*uint256.NewInt(1), *uint256.NewInt(2), *uint256.NewInt(3)}
	indexer.insertLeaves(0, TotalLeaves-2, leaves)

	tree0, ok := indexer.Tree(0)
	require.True(t, ok)
	require.Equal(t, TotalLeaves, tree0.LeavesLen())

	tree1, ok := indexer.Tree(1)
	require.True(t, ok)
	require.Equal(t, 1, tree1.LeavesLen())
}

func TestShieldEventLeafHash(t *testing.T) {
	// A shield event's leaf is Poseidon(npk, tokenHash, value) from the
	// cleartext preimage.
	receiver := testSigner(3, 4)
	receiverAddr := receiver.Address()

	req, err := createShieldRequest(&receiverAddr, testAsset(), uint256.NewInt(900), rand.Reader)
	require.NoError(t, err)

	event := SyncEvent{
		Shield: &abis.ShieldEvent{
			TreeNumber:       big.NewInt(0),
			StartPosition:    big.NewInt(0),
			Commitments:      []abis.CommitmentPreimage{req.Preimage},
			ShieldCiphertext: []abis.ShieldCiphertext{req.Ciphertext},
			Fees:             []*big.Int{big.NewInt(0)},
		},
		Block: 2,
	}

	syncer := &fakeSyncer{latest: 10, events: []SyncEvent{event}}
	indexer := NewUtxoIndexer(syncer, acceptAllVerifier{}, testLogger())
	indexer.Register(receiver)
	require.NoError(t, indexer.Sync(context.Background()))

	// The decrypted note's hash equals the inserted leaf.
	unspent := indexer.Unspent(receiver.Address())
	require.Len(t, unspent, 1)

	var npk uint256.Int
	npk.SetBytes(req.Preimage.Npk[:])
	tokenHash := req.Preimage.Token.AssetID().Hash()
	leaf := poseidon.MustHash(npk, tokenHash, *uint256.NewInt(900))
	noteHash := unspent[0].Hash()
	require.True(t, leaf.Eq(&noteHash))
}

func TestAwaitCommitmentsTimesOut(t *testing.T) {
	indexer := NewUtxoIndexer(&fakeSyncer{latest: 1}, acceptAllVerifier{}, testLogger())

	err := indexer.AwaitCommitments(context.Background(),
		[]uint256.Int{*uint256.NewInt(999)}, 0, 0)
	require.ErrorIs(t, err, ErrAwaitTimeout)
}
