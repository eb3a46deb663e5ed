// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package field provides helpers for the BN254 scalar field shared by every
// hash, commitment and curve operation in this module. Internally arithmetic
// runs on gnark-crypto's fr.Element; 256-bit words cross package boundaries
// as holiman/uint256 values.
package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
)

var (
	// Q is the BN254 scalar field modulus.
	Q = fr.Modulus()

	// Order is the order of the BabyJubJub curve group.
	Order, _ = new(big.Int).SetString(
		"21888242871839275222246405745257275088614511777268538073601725287587578984328", 10)

	// SubOrder is the order of the prime-order subgroup (Order / 8).
	SubOrder = new(big.Int).Rsh(Order, 3)

	// QUint is Q as a uint256 word.
	QUint = MustUint(Q)

	// HalfQ is Q/2, used for the lesser-square-root convention.
	HalfQ = new(big.Int).Rsh(Q, 1)
)

// ErrNotInField reports a value outside [0, Q).
var ErrNotInField = errors.New("value outside scalar field")

// MustUint converts a non-negative big.Int below 2^256 to a uint256 word.
func MustUint(v *big.Int) uint256.Int {
	u, overflow := uint256.FromBig(v)
	if overflow {
		panic("field: value overflows 256 bits")
	}
	return *u
}

// InField reports whether v is a canonical field element.
func InField(v *uint256.Int) bool {
	return v.Cmp(&QUint) < 0
}

// Reduce returns v mod Q.
func Reduce(v *uint256.Int) uint256.Int {
	var out uint256.Int
	out.Mod(v, &QUint)
	return out
}

// ToElement converts a uint256 word to a field element, reducing mod Q.
func ToElement(v *uint256.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(v.ToBig())
	return e
}

// FromElement converts a field element to a uint256 word.
func FromElement(e *fr.Element) uint256.Int {
	b := e.Bytes()
	var out uint256.Int
	out.SetBytes(b[:])
	return out
}

// ElementToBig returns the canonical integer value of e.
func ElementToBig(e *fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// BytesLE returns the 32-byte little-endian encoding of v.
func BytesLE(v *uint256.Int) [32]byte {
	be := v.Bytes32()
	var le [32]byte
	for i := 0; i < 32; i++ {
		le[i] = be[31-i]
	}
	return le
}

// FromBytesLE interprets b as a little-endian integer.
func FromBytesLE(b []byte) uint256.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	var out uint256.Int
	out.SetBytes(be)
	return out
}

// TestBit probes bit i of a little-endian byte string.
func TestBit(b []byte, i int) bool {
	return b[i/8]&(1<<(i%8)) != 0
}
