// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset models the assets carried by shielded notes: the ERC-20 /
// ERC-721 / ERC-1155 token families, with their scalar hashes and string
// forms. There is no variant for the chain's native coin.
package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"

	"github.com/luxfi/veil/field"
)

// TokenType is the on-chain token family tag.
type TokenType uint8

const (
	ERC20 TokenType = iota
	ERC721
	ERC1155
)

// TokenData is the contract-side token descriptor.
type TokenData struct {
	TokenType    TokenType
	TokenAddress common.Address
	TokenSubID   uint256.Int
}

// ID is a typed asset identifier. ERC-20 assets carry no sub-id.
type ID struct {
	Type    TokenType
	Address common.Address
	SubID   uint256.Int
}

var (
	// ErrInvalidHashLength reports a token-data preimage of the wrong size.
	ErrInvalidHashLength = errors.New("asset: invalid token data hash length")
	// ErrInvalidFormat reports an unparseable asset string.
	ErrInvalidFormat = errors.New("asset: expected 'type:address' or 'type:address/subId'")
)

// Erc20 builds an ERC-20 asset id.
func Erc20(addr common.Address) ID {
	return ID{Type: ERC20, Address: addr}
}

// Erc721 builds an ERC-721 asset id.
func Erc721(addr common.Address, subID uint256.Int) ID {
	return ID{Type: ERC721, Address: addr, SubID: subID}
}

// Erc1155 builds an ERC-1155 asset id.
func Erc1155(addr common.Address, subID uint256.Int) ID {
	return ID{Type: ERC1155, Address: addr, SubID: subID}
}

// TokenData converts the id to its contract descriptor.
func (a ID) TokenData() TokenData {
	return TokenData{TokenType: a.Type, TokenAddress: a.Address, TokenSubID: a.SubID}
}

// FromTokenData converts a contract descriptor back to an id.
func FromTokenData(td TokenData) ID {
	return ID{Type: td.TokenType, Address: td.TokenAddress, SubID: td.TokenSubID}
}

// Hash returns the scalar hash of the asset: the zero-extended address for
// ERC-20, otherwise keccak(type || address || subID) reduced modulo the
// scalar field.
func (a ID) Hash() uint256.Int {
	return a.TokenData().Hash()
}

// Hash returns the scalar hash of the token descriptor.
func (td TokenData) Hash() uint256.Int {
	if td.TokenType == ERC20 {
		var out uint256.Int
		out.SetBytes(td.TokenAddress.Bytes())
		return out
	}

	// tokenType (32) | address (32) | subID (32)
	data := make([]byte, 0, 96)
	var typeWord [32]byte
	typeWord[31] = byte(td.TokenType)
	data = append(data, typeWord[:]...)
	var addrWord [32]byte
	copy(addrWord[12:], td.TokenAddress.Bytes())
	data = append(data, addrWord[:]...)
	sub := td.TokenSubID.Bytes32()
	data = append(data, sub[:]...)

	h := new(big.Int).SetBytes(crypto.Keccak256(data))
	h.Mod(h, field.Q)
	return field.MustUint(h)
}

// TokenDataFromHash recovers a descriptor from a hash preimage: a 32-byte
// value is an ERC-20 address word, a 96-byte value is the full preimage of
// the non-fungible hash.
func TokenDataFromHash(hash []byte) (TokenData, error) {
	if len(hash) == 32 {
		return TokenData{
			TokenType:    ERC20,
			TokenAddress: common.BytesToAddress(hash[12:32]),
		}, nil
	}

	if len(hash) != 96 {
		return TokenData{}, ErrInvalidHashLength
	}

	var tokenType TokenType
	switch hash[31] {
	case 1:
		tokenType = ERC721
	case 2:
		tokenType = ERC1155
	default:
		return TokenData{}, fmt.Errorf("asset: unknown token type %d", hash[31])
	}

	var subID uint256.Int
	subID.SetBytes(hash[64:96])

	return TokenData{
		TokenType:    tokenType,
		TokenAddress: common.BytesToAddress(hash[44:64]),
		TokenSubID:   subID,
	}, nil
}

// String renders the id as "erc20:0x…" or "erc721:0x…/subID".
func (a ID) String() string {
	switch a.Type {
	case ERC20:
		return fmt.Sprintf("erc20:%s", strings.ToLower(a.Address.Hex()))
	case ERC721:
		return fmt.Sprintf("erc721:%s/%s", strings.ToLower(a.Address.Hex()), a.SubID.Dec())
	default:
		return fmt.Sprintf("erc1155:%s/%s", strings.ToLower(a.Address.Hex()), a.SubID.Dec())
	}
}

// Parse parses "erc20:0x…", "erc721:0x…/id" or "erc1155:0x…/id".
func Parse(s string) (ID, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return ID{}, ErrInvalidFormat
	}

	parseAddr := func(s string) (common.Address, error) {
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("asset: invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	}

	switch strings.ToLower(kind) {
	case "erc20":
		addr, err := parseAddr(rest)
		if err != nil {
			return ID{}, err
		}
		return Erc20(addr), nil
	case "erc721", "erc1155":
		addrStr, subStr, ok := strings.Cut(rest, "/")
		if !ok {
			return ID{}, ErrInvalidFormat
		}
		addr, err := parseAddr(addrStr)
		if err != nil {
			return ID{}, err
		}
		sub, err := uint256.FromDecimal(subStr)
		if err != nil {
			return ID{}, fmt.Errorf("asset: invalid sub id %q", subStr)
		}
		if strings.ToLower(kind) == "erc721" {
			return Erc721(addr, *sub), nil
		}
		return Erc1155(addr, *sub), nil
	default:
		return ID{}, fmt.Errorf("asset: unknown asset type %q", kind)
	}
}
