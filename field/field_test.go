// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package field

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestConstants(t *testing.T) {
	require.Equal(t,
		"21888242871839275222246405745257275088548364400416034343698204186575808495617",
		Q.String())
	require.Equal(t,
		"21888242871839275222246405745257275088614511777268538073601725287587578984328",
		Order.String())
	require.Equal(t,
		"2736030358979909402780800718157159386076813972158567259200215660948447373041",
		SubOrder.String())
}

func TestInFieldAndReduce(t *testing.T) {
	require.True(t, InField(uint256.NewInt(0)))
	require.False(t, InField(&QUint))

	var overQ uint256.Int
	overQ.Add(&QUint, uint256.NewInt(5))
	reduced := Reduce(&overQ)
	require.True(t, reduced.Eq(uint256.NewInt(5)))
}

func TestElementRoundTrip(t *testing.T) {
	v := uint256.NewInt(123456789)
	e := ToElement(v)
	back := FromElement(&e)
	require.True(t, v.Eq(&back))
}

func TestBytesLERoundTrip(t *testing.T) {
	v := uint256.NewInt(0x0102030405060708)
	le := BytesLE(v)
	require.Equal(t, byte(0x08), le[0])
	require.Equal(t, byte(0x01), le[7])

	back := FromBytesLE(le[:])
	require.True(t, v.Eq(&back))
}

func TestTestBit(t *testing.T) {
	b := []byte{0b00000101}
	require.True(t, TestBit(b, 0))
	require.False(t, TestBit(b, 1))
	require.True(t, TestBit(b, 2))
}
