// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mimc implements the MiMC-Sponge hash over the BN254 scalar field,
// parameter-compatible with circomlib's mimcsponge circuit.
package mimc

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"

	"github.com/luxfi/veil/field"
)

const nRounds = 220

var (
	constantsOnce sync.Once
	constants     [nRounds]fr.Element
)

// roundConstants derives the 220 round constants from the keccak chain seeded
// with "mimcsponge". The first and last constants are zero.
func roundConstants() *[nRounds]fr.Element {
	constantsOnce.Do(func() {
		c := crypto.Keccak256([]byte("mimcsponge"))
		for i := 1; i < nRounds; i++ {
			c = crypto.Keccak256(c)
			v := new(big.Int).SetBytes(c)
			v.Mod(v, field.Q)
			constants[i].SetBigInt(v)
		}
		constants[0].SetZero()
		constants[nRounds-1].SetZero()
	})
	return &constants
}

// Hash is the two-to-one MiMC-Sponge hash: the first output of a single
// sponge absorption of (left, right) with key 0.
func Hash(left, right fr.Element) fr.Element {
	return MultiHash([]fr.Element{left, right}, fr.Element{}, 1)[0]
}

// HashUint is Hash over uint256 words.
func HashUint(left, right *uint256.Int) uint256.Int {
	l := field.ToElement(left)
	r := field.ToElement(right)
	out := Hash(l, r)
	return field.FromElement(&out)
}

// block runs the 220-round Feistel permutation on (xl, xr) with key k.
func block(xl, xr, k fr.Element) (fr.Element, fr.Element) {
	cts := roundConstants()
	last := nRounds - 1

	for i := 0; i < nRounds; i++ {
		var t fr.Element
		t.Add(&xl, &k)
		if i > 0 {
			t.Add(&t, &cts[i])
		}

		// t^5
		var t2, t4, t5 fr.Element
		t2.Square(&t)
		t4.Square(&t2)
		t5.Mul(&t4, &t)

		var xrNew fr.Element
		xrNew.Add(&xr, &t5)
		if i < last {
			xr = xl
			xl = xrNew
		} else {
			xr = xrNew
		}
	}

	return xl, xr
}

// MultiHash absorbs arr into the sponge with the given key and squeezes
// numOutputs field elements.
func MultiHash(arr []fr.Element, key fr.Element, numOutputs int) []fr.Element {
	var r, c fr.Element

	for _, elem := range arr {
		r.Add(&r, &elem)
		r, c = block(r, c, key)
	}

	out := make([]fr.Element, 0, numOutputs)
	out = append(out, r)
	for i := 1; i < numOutputs; i++ {
		r, c = block(r, c, key)
		out = append(out, r)
	}

	return out
}
