// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package address implements the shielded account address codec: bech32m
// with HRP "0zk" over version || masterPublicKey || maskedNetworkID ||
// viewingPublicKey.
package address

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/luxfi/veil/keys"
)

// ChainID identifies the network an address is bound to. With All unset,
// EVM holds the EVM chain id; with All set, the address is valid on every
// chain.
type ChainID struct {
	EVM uint64
	All bool
}

// Address is a parsed shielded account address.
type Address struct {
	MasterKey     keys.MasterPublicKey
	ViewingPubkey keys.ViewingPublicKey
	Chain         ChainID
}

const (
	hrp             = "0zk"
	addressVersion  = 1
	allChainsMarker = 0xFF
	lengthLimit     = 127
)

// networkIDMask is "railgun" zero-padded to 8 bytes, XORed over the network
// id on the wire.
var networkIDMask = [8]byte{'r', 'a', 'i', 'l', 'g', 'u', 'n', 0}

var (
	// ErrInvalidPrefix reports a bech32 HRP other than "0zk".
	ErrInvalidPrefix = errors.New("address: invalid prefix")
	// ErrInvalidVersion reports an unsupported address version.
	ErrInvalidVersion = errors.New("address: invalid version")
	// ErrInvalidChainID reports an unknown network id marker.
	ErrInvalidChainID = errors.New("address: invalid chain id")
	// ErrInvalidLength reports a payload of the wrong size.
	ErrInvalidLength = errors.New("address: invalid payload length")
)

// EVMChain builds an EVM ChainID.
func EVMChain(id uint64) ChainID {
	return ChainID{EVM: id}
}

// AllChains builds the any-chain ChainID.
func AllChains() ChainID {
	return ChainID{All: true}
}

// New builds an address from its parts.
func New(master keys.MasterPublicKey, viewing keys.ViewingPublicKey, chain ChainID) Address {
	return Address{MasterKey: master, ViewingPubkey: viewing, Chain: chain}
}

// FromPrivateKeys derives the address of a spending/viewing key pair.
func FromPrivateKeys(spending keys.SpendingKey, viewing keys.ViewingKey, chain ChainID) Address {
	master := keys.NewMasterPublicKey(spending.PublicKey(), viewing.NullifyingKey())
	return New(master, viewing.PublicKey(), chain)
}

// String renders the bech32m form.
func (a Address) String() string {
	payload := make([]byte, 0, 73)
	payload = append(payload, addressVersion)
	payload = append(payload, a.MasterKey[:]...)

	network := encodeChainID(a.Chain)
	for i := range network {
		network[i] ^= networkIDMask[i]
	}
	payload = append(payload, network[:]...)
	payload = append(payload, a.ViewingPubkey[:]...)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.EncodeM(hrp, converted)
	if err != nil {
		panic(err)
	}
	if len(encoded) > lengthLimit {
		panic("address: generated address exceeds length limit")
	}
	return encoded
}

// Parse decodes a bech32m address string.
func Parse(s string) (Address, error) {
	decodedHRP, data, version, err := bech32.DecodeNoLimitWithVersion(s)
	if err != nil {
		return Address{}, fmt.Errorf("address: bech32 decode: %w", err)
	}
	if version != bech32.VersionM {
		return Address{}, fmt.Errorf("address: not a bech32m string")
	}
	if decodedHRP != hrp {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, decodedHRP)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("address: convert bits: %w", err)
	}
	if len(payload) != 1+32+8+32 {
		return Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(payload))
	}

	if payload[0] != addressVersion {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidVersion, payload[0])
	}

	var out Address
	copy(out.MasterKey[:], payload[1:33])

	var network [8]byte
	copy(network[:], payload[33:41])
	for i := range network {
		network[i] ^= networkIDMask[i]
	}
	out.Chain, err = decodeChainID(network)
	if err != nil {
		return Address{}, err
	}

	copy(out.ViewingPubkey[:], payload[41:73])
	return out, nil
}

// encodeChainID renders a network id: 0x00 || chainID big-endian [1..8) for
// EVM chains, 0xFF || zeros for all-chains.
func encodeChainID(c ChainID) [8]byte {
	var out [8]byte
	if c.All {
		out[0] = allChainsMarker
		return out
	}
	binary.BigEndian.PutUint64(out[:], c.EVM)
	out[0] = 0
	return out
}

func decodeChainID(network [8]byte) (ChainID, error) {
	switch network[0] {
	case 0:
		id := binary.BigEndian.Uint64(network[:])
		return EVMChain(id), nil
	case allChainsMarker:
		return AllChains(), nil
	default:
		return ChainID{}, fmt.Errorf("%w: marker %d", ErrInvalidChainID, network[0])
	}
}
