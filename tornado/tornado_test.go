// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/circuit"
)

func testLogger() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

func TestMerkleZeroKnownValue(t *testing.T) {
	// keccak256("tornado") mod Q, matching the deployed contracts.
	expected, err := uint256.FromDecimal(
		"21663839004416932945382355908790599225266501822907911457504978515578255421292")
	require.NoError(t, err)

	zero := MerkleZero()
	require.True(t, zero.Eq(expected))
}

func TestEmptyTreeRootKnownValue(t *testing.T) {
	tree := NewTree()

	expected, err := uint256.FromDecimal(
		"18926336163373752588529320804722226672465218465546337267825102089394393880276")
	require.NoError(t, err)

	root := tree.Root()
	require.True(t, root.Eq(expected))
}

func TestNoteStringRoundTrip(t *testing.T) {
	var nullifier, secret [31]byte
	for i := range nullifier {
		nullifier[i] = 1
		secret[i] = 2
	}

	note := NewNote(nullifier, secret, "ETH", "1", 1)
	encoded := note.String()
	require.Contains(t, encoded, "tornado-ETH-1-1-0x")

	decoded, err := ParseNote(encoded)
	require.NoError(t, err)
	require.Equal(t, note, decoded)
}

func TestParseNoteErrors(t *testing.T) {
	_, err := ParseNote("tornado-ETH-1-1")
	require.ErrorIs(t, err, ErrInvalidNoteFormat)

	_, err = ParseNote("cyclone-ETH-1-1-0x00")
	require.ErrorIs(t, err, ErrInvalidNoteFormat)

	_, err = ParseNote("tornado-ETH-1-x-0x00")
	require.ErrorIs(t, err, ErrInvalidChainID)
}

func TestNoteCommitments(t *testing.T) {
	note, err := RandomNote(rand.Reader, "ETH", "1", 1)
	require.NoError(t, err)

	commitment := note.Commitment()
	nullifierHash := note.NullifierHash()
	require.False(t, commitment.IsZero())
	require.False(t, nullifierHash.IsZero())
	require.False(t, commitment.Eq(&nullifierHash))
}

func TestPoolAmountFormatting(t *testing.T) {
	sepoliaPool := SepoliaEther1()
	require.Equal(t, "1", sepoliaPool.Amount())
	ethereumPool := EthereumEther100()
	require.Equal(t, "100", ethereumPool.Amount())

	pool := Pool{
		Asset:     PoolAsset{Symbol: "ETH", Decimals: 18, Native: true},
		AmountWei: "100000000000000000",
	}
	require.Equal(t, "0.1", pool.Amount())
}

// fakePoolSyncer replays fixed deposits.
type fakePoolSyncer struct {
	latest      uint64
	commitments []Commitment
}

func (f *fakePoolSyncer) LatestBlock(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakePoolSyncer) SyncCommitments(_ context.Context, _ common.Address,
	fromBlock, toBlock uint64) ([]Commitment, error) {
	var out []Commitment
	for _, c := range f.commitments {
		if c.BlockNumber >= fromBlock && c.BlockNumber <= toBlock {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePoolSyncer) SyncNullifiers(context.Context, common.Address, uint64, uint64) ([]Nullifier, error) {
	return nil, nil
}

type acceptVerifier struct{}

func (acceptVerifier) Verify(context.Context, common.Address, uint256.Int) error {
	return nil
}

func TestIndexerInsertsSorted(t *testing.T) {
	note1, err := RandomNote(rand.Reader, "ETH", "1", 1)
	require.NoError(t, err)
	note2, err := RandomNote(rand.Reader, "ETH", "1", 1)
	require.NoError(t, err)

	c1, c2 := note1.Commitment(), note2.Commitment()

	// Delivered out of order; the indexer sorts by leaf index.
	syncer := &fakePoolSyncer{latest: 100, commitments: []Commitment{
		{BlockNumber: 11, Commitment: c2.Bytes32(), LeafIndex: 1},
		{BlockNumber: 10, Commitment: c1.Bytes32(), LeafIndex: 0},
	}}

	indexer := NewIndexer(syncer, acceptVerifier{}, SepoliaEther1(), testLogger())
	require.NoError(t, indexer.Sync(context.Background()))

	require.Equal(t, 2, indexer.Tree().LeavesLen())

	proof, err := indexer.Tree().GenerateProof(note1.Commitment())
	require.NoError(t, err)
	require.True(t, proof.Indices.IsZero())

	proof2, err := indexer.Tree().GenerateProof(note2.Commitment())
	require.NoError(t, err)
	require.Equal(t, uint64(1), proof2.Indices.Uint64())
}

func TestIndexerStateRoundTrip(t *testing.T) {
	note, err := RandomNote(rand.Reader, "ETH", "1", 1)
	require.NoError(t, err)
	c := note.Commitment()

	syncer := &fakePoolSyncer{latest: 50, commitments: []Commitment{
		{BlockNumber: 10, Commitment: c.Bytes32(), LeafIndex: 0},
	}}
	indexer := NewIndexer(syncer, acceptVerifier{}, SepoliaEther1(), testLogger())
	require.NoError(t, indexer.Sync(context.Background()))

	restored := IndexerFromState(syncer, acceptVerifier{}, indexer.State(), testLogger())
	origRoot, restoredRoot := indexer.Tree().Root(), restored.Tree().Root()
	require.True(t, origRoot.Eq(&restoredRoot))
	require.Equal(t, indexer.Pool(), restored.Pool())
}

// fixedProver returns a constant proof.
type fixedProver struct {
	lastCircuit string
	lastInputs  circuit.Signals
}

func (p *fixedProver) Prove(_ context.Context, name string, inputs circuit.Signals) (circuit.Proof, []uint256.Int, error) {
	p.lastCircuit = name
	p.lastInputs = inputs
	return circuit.Proof{
		A: circuit.G1Affine{X: *uint256.NewInt(1), Y: *uint256.NewInt(2)},
		B: circuit.G2Affine{
			X: [2]uint256.Int{*uint256.NewInt(3), *uint256.NewInt(4)},
			Y: [2]uint256.Int{*uint256.NewInt(5), *uint256.NewInt(6)},
		},
		C: circuit.G1Affine{X: *uint256.NewInt(7), Y: *uint256.NewInt(8)},
	}, nil, nil
}

func TestPoolProviderDepositAndWithdraw(t *testing.T) {
	pool := SepoliaEther1()
	syncer := &fakePoolSyncer{latest: 100}
	prover := &fixedProver{}

	provider := NewPoolProvider(syncer, acceptVerifier{}, prover, pool, testLogger())

	txData, note, err := provider.Deposit(rand.Reader)
	require.NoError(t, err)
	require.Equal(t, pool.Address, txData.To)
	require.Equal(t, "1000000000000000000", txData.Value.String())

	// Index the deposit, then withdraw it.
	c := note.Commitment()
	syncer.commitments = []Commitment{{BlockNumber: 10, Commitment: c.Bytes32(), LeafIndex: 0}}
	require.NoError(t, provider.Sync(context.Background()))

	withdrawal, err := provider.Withdraw(context.Background(), &note,
		common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		common.Address{}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, pool.Address, withdrawal.To)
	require.Equal(t, "tc", prover.lastCircuit)

	// The withdraw witness pads paths to the full depth.
	require.Len(t, prover.lastInputs["pathElements"], TreeDepth)
	require.Len(t, prover.lastInputs["pathIndices"], TreeDepth)
}

func TestProofToSolidityBytesSwapsG2(t *testing.T) {
	proof := circuit.Proof{
		A: circuit.G1Affine{X: *uint256.NewInt(1), Y: *uint256.NewInt(2)},
		B: circuit.G2Affine{
			X: [2]uint256.Int{*uint256.NewInt(3), *uint256.NewInt(4)},
			Y: [2]uint256.Int{*uint256.NewInt(5), *uint256.NewInt(6)},
		},
		C: circuit.G1Affine{X: *uint256.NewInt(7), Y: *uint256.NewInt(8)},
	}

	out := ProofToSolidityBytes(&proof)
	require.Len(t, out, 256)

	wordAt := func(i int) uint64 {
		var w uint256.Int
		w.SetBytes(out[i*32 : (i+1)*32])
		return w.Uint64()
	}

	// a.x, a.y, b.x[1], b.x[0], b.y[1], b.y[0], c.x, c.y
	require.Equal(t, []uint64{1, 2, 4, 3, 6, 5, 7, 8},
		[]uint64{wordAt(0), wordAt(1), wordAt(2), wordAt(3), wordAt(4), wordAt(5), wordAt(6), wordAt(7)})
}
