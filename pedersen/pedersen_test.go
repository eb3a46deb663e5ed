// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pedersen

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestHashKnownVector(t *testing.T) {
	// Expected value verified against circomlib's pedersenHash.
	h := Hash([]byte("Hello, world!"))

	expected, err := uint256.FromDecimal(
		"13491600061712299675396441404596955294388976214662355192405913840310160783842")
	require.NoError(t, err)
	require.True(t, h.Eq(expected))
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte{1, 2, 3})
	b := Hash([]byte{1, 2, 3})
	require.True(t, a.Eq(&b))

	c := Hash([]byte{1, 2, 4})
	require.False(t, a.Eq(&c))
}

func TestHashLongInputSpansSegments(t *testing.T) {
	// 62 bytes is 496 bits: three 200-bit segments, exercising multiple
	// generators.
	data := make([]byte, 62)
	for i := range data {
		data[i] = byte(i + 1)
	}

	h := Hash(data)
	require.False(t, h.IsZero())
}
