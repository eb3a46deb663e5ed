// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abis

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/circuit"
)

func TestBoundParamsHashKnownVector(t *testing.T) {
	ones := [32]byte{}
	for i := range ones {
		ones[i] = 1
	}
	var twos, threes, adapt [32]byte
	for i := range twos {
		twos[i] = 2
		threes[i] = 3
		adapt[i] = 5
	}

	annotation := make([]byte, 50)
	memo := make([]byte, 50)
	for i := range annotation {
		annotation[i] = 4
		memo[i] = 5
	}

	bp := NewBoundParams(1, uint256.NewInt(10), UnshieldNone, 1,
		common.HexToAddress("0x1234567890123456789012345678901234567890"), adapt,
		[]CommitmentCiphertext{{
			Ciphertext:                [4][32]byte{ones, ones, ones, ones},
			BlindedSenderViewingKey:   twos,
			BlindedReceiverViewingKey: threes,
			AnnotationData:            annotation,
			Memo:                      memo,
		}})

	hash, err := bp.Hash()
	require.NoError(t, err)

	expected, err := uint256.FromDecimal(
		"653354349844558206886319240777917397850034746873378410801880094244109558523")
	require.NoError(t, err)
	require.True(t, hash.Eq(expected))
}

func TestSnarkProofG2Swap(t *testing.T) {
	proof := circuit.Proof{
		A: circuit.G1Affine{X: *uint256.NewInt(10), Y: *uint256.NewInt(20)},
		B: circuit.G2Affine{
			X: [2]uint256.Int{*uint256.NewInt(30), *uint256.NewInt(40)},
			Y: [2]uint256.Int{*uint256.NewInt(50), *uint256.NewInt(60)},
		},
		C: circuit.G1Affine{X: *uint256.NewInt(70), Y: *uint256.NewInt(80)},
	}

	sol := NewSnarkProof(proof)

	require.Equal(t, int64(10), sol.A.X.Int64())
	require.Equal(t, int64(20), sol.A.Y.Int64())
	// The G2 coordinate pairs are element-wise swapped for the on-chain
	// verifier.
	require.Equal(t, int64(40), sol.B.X[0].Int64())
	require.Equal(t, int64(30), sol.B.X[1].Int64())
	require.Equal(t, int64(60), sol.B.Y[0].Int64())
	require.Equal(t, int64(50), sol.B.Y[1].Int64())
	require.Equal(t, int64(70), sol.C.X.Int64())
	require.Equal(t, int64(80), sol.C.Y.Int64())
}

func TestPackTransactSelector(t *testing.T) {
	calldata, err := PackTransact([]Transaction{})
	require.NoError(t, err)
	require.Len(t, calldata[4:], 64)

	selector := Railgun.Methods["transact"].ID
	require.Equal(t, selector, calldata[:4])
}

func TestPackShieldRoundTripsThroughABI(t *testing.T) {
	req := ShieldRequest{
		Preimage: CommitmentPreimage{
			Npk:   [32]byte{1},
			Token: TokenData{TokenType: 0, TokenAddress: common.HexToAddress("0x01"), TokenSubID: new(big.Int)},
			Value: big.NewInt(1000),
		},
		Ciphertext: ShieldCiphertext{
			EncryptedBundle: [3][32]byte{{2}, {3}, {4}},
			ShieldKey:       [32]byte{5},
		},
	}

	calldata, err := PackShield([]ShieldRequest{req})
	require.NoError(t, err)

	selector := Railgun.Methods["shield"].ID
	require.Equal(t, selector, calldata[:4])

	unpacked, err := Railgun.Methods["shield"].Inputs.Unpack(calldata[4:])
	require.NoError(t, err)
	require.Len(t, unpacked, 1)
}

func TestEventIDs(t *testing.T) {
	// Sanity on the event surface: distinct, well-formed signatures.
	ids := map[string]common.Hash{
		"Shield":    Railgun.EventID("Shield"),
		"Transact":  Railgun.EventID("Transact"),
		"Nullified": Railgun.EventID("Nullified"),
		"Unshield":  Railgun.EventID("Unshield"),
	}

	seen := make(map[common.Hash]bool)
	for name, id := range ids {
		require.False(t, seen[id], "duplicate id for %s", name)
		seen[id] = true
	}
}
