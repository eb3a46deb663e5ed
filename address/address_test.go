// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package address

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/veil/keys"
)

func TestAddressRoundTrip(t *testing.T) {
	var master keys.MasterPublicKey
	var viewing keys.ViewingPublicKey
	for i := range master {
		master[i] = 1
		viewing[i] = 2
	}

	addr := New(master, viewing, EVMChain(1))

	encoded := addr.String()
	expected := "0zk1qyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszunpd9kxwatwqypqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqy3t4umn"
	require.Equal(t, expected, encoded)

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestAddressAllChains(t *testing.T) {
	var master keys.MasterPublicKey
	var viewing keys.ViewingPublicKey
	master[0] = 7
	viewing[0] = 8

	addr := New(master, viewing, AllChains())
	parsed, err := Parse(addr.String())
	require.NoError(t, err)
	require.True(t, parsed.Chain.All)
	require.Equal(t, addr, parsed)
}

func TestAddressFromPrivateKeys(t *testing.T) {
	var spending keys.SpendingKey
	var viewing keys.ViewingKey
	for i := range spending {
		spending[i] = 1
		viewing[i] = 2
	}

	addr := FromPrivateKeys(spending, viewing, EVMChain(1))
	require.Equal(t, viewing.PublicKey(), addr.ViewingPubkey)
	require.Equal(t,
		keys.NewMasterPublicKey(spending.PublicKey(), viewing.NullifyingKey()),
		addr.MasterKey)

	parsed, err := Parse(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestParseRejectsWrongPrefix(t *testing.T) {
	_, err := Parse("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	require.Error(t, err)
}

func TestBase37KnownVector(t *testing.T) {
	// Expected value sourced from the reference SDK.
	encoded, err := EncodeBase37("hello world")
	require.NoError(t, err)
	require.Equal(t, [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 58, 182, 27, 136, 104, 32, 128}, encoded)
}

func TestBase37RoundTrip(t *testing.T) {
	for _, text := range []string{"", "hello", "railgun", "0x1234", "test 123"} {
		encoded, err := EncodeBase37(text)
		require.NoError(t, err)
		require.Equal(t, text, DecodeBase37(encoded))
	}
}

func TestBase37InvalidCharacter(t *testing.T) {
	_, err := EncodeBase37("HELLO")
	require.ErrorIs(t, err, ErrInvalidCharacter)
}
