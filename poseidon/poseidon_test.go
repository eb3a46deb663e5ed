// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poseidon

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// Expected values from the circomlib reference implementation, hashing
// [0], [0,1], [0,1,2], ... up to 13 inputs.
var circomVectors = []string{
	"19014214495641488759237505126948346942972912379615652741039992445865937985820",
	"12583541437132735734108669866114103169564651237895298778035846191048104863326",
	"8599452571108419911675042369134657596129797276905188988960674134744449929238",
	"4050345352754260300667252706570081029004026400044882557845061748628670512780",
	"1475992993236322576209363326357087103599755887159177217587002895783839174540",
	"2579592068985894564663884204285667087640059297900666937160965942401359072100",
	"20329113756446417239599955060882819799955615300225172556927540370625639639591",
	"21656500796439224421257401895129482535503528269793362483330745763391692399728",
	"14408976789489036679302672303794802454823291363240129034501311453268715567967",
	"830312311503515836401584074612726804626276011883476452565502338584358217994",
	"16482319307391173079257078223199649745782806293396026512574082249553342763664",
	"9229882540043959809176016464298330440879059374171305180729988720176368448252",
	"14044108921269203222904300236541952095368226907391252621253021080476169222351",
}

func TestHashBigCircomVectors(t *testing.T) {
	for n, expectedStr := range circomVectors {
		inputs := make([]*big.Int, n+1)
		for i := range inputs {
			inputs[i] = big.NewInt(int64(i))
		}

		got, err := HashBig(inputs)
		require.NoError(t, err, "inputs=%d", n+1)

		expected, ok := new(big.Int).SetString(expectedStr, 10)
		require.True(t, ok)
		require.Equal(t, 0, got.Cmp(expected), "inputs=%d", n+1)
	}
}

func TestUnsupportedLengths(t *testing.T) {
	var lengthErr ErrUnsupportedLength

	_, err := HashBig(nil)
	require.ErrorAs(t, err, &lengthErr)
	require.Equal(t, 0, lengthErr.N)

	inputs := make([]*big.Int, 14)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i))
	}
	_, err = HashBig(inputs)
	require.ErrorAs(t, err, &lengthErr)
	require.Equal(t, 14, lengthErr.N)
}

func TestHashUintMatchesBig(t *testing.T) {
	inputs := []uint256.Int{*uint256.NewInt(1), *uint256.NewInt(2)}
	got, err := Hash(inputs)
	require.NoError(t, err)

	expected, err := HashBig([]*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	require.Equal(t, 0, got.ToBig().Cmp(expected))
}
