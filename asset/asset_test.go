// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestErc20HashIsAddressWord(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	id := Erc20(addr)

	h := id.Hash()
	b := h.Bytes32()
	require.Equal(t, addr.Bytes(), b[12:])

	// Round-trip through the hash preimage recovery.
	recovered, err := TokenDataFromHash(b[:])
	require.NoError(t, err)
	require.Equal(t, id, FromTokenData(recovered))
}

func TestNonFungibleHashIsReduced(t *testing.T) {
	id := Erc721(common.HexToAddress("0x0202020202020202020202020202020202020202"),
		*uint256.NewInt(123))

	h := id.Hash()
	require.False(t, h.IsZero())

	other := Erc1155(id.Address, id.SubID)
	otherHash := other.Hash()
	require.False(t, h.Eq(&otherHash))
}

func TestTokenDataFromHashPreimage(t *testing.T) {
	id := Erc1155(common.HexToAddress("0x0303030303030303030303030303030303030303"),
		*uint256.NewInt(456))
	td := id.TokenData()

	// Rebuild the 96-byte preimage and recover the descriptor from it.
	preimage := make([]byte, 0, 96)
	var typeWord [32]byte
	typeWord[31] = byte(td.TokenType)
	preimage = append(preimage, typeWord[:]...)
	var addrWord [32]byte
	copy(addrWord[12:], td.TokenAddress.Bytes())
	preimage = append(preimage, addrWord[:]...)
	sub := td.TokenSubID.Bytes32()
	preimage = append(preimage, sub[:]...)

	recovered, err := TokenDataFromHash(preimage)
	require.NoError(t, err)
	require.Equal(t, id, FromTokenData(recovered))
}

func TestTokenDataFromHashBadLength(t *testing.T) {
	_, err := TokenDataFromHash(make([]byte, 33))
	require.ErrorIs(t, err, ErrInvalidHashLength)
}

func TestParseRoundTrip(t *testing.T) {
	cases := []ID{
		Erc20(common.HexToAddress("0x1234567890123456789012345678901234567890")),
		Erc721(common.HexToAddress("0x0202020202020202020202020202020202020202"), *uint256.NewInt(123)),
		Erc1155(common.HexToAddress("0x0303030303030303030303030303030303030303"), *uint256.NewInt(456)),
	}

	for _, id := range cases {
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("not-an-asset")
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse("erc721:0x0202020202020202020202020202020202020202")
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse("erc99:0x0202020202020202020202020202020202020202")
	require.Error(t, err)
}
