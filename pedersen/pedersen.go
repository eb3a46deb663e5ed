// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pedersen implements the circomlib-compatible Pedersen hash over
// BabyJubJub. Input bytes are read as a little-endian bit stream, chunked
// into 200-bit segments of fifty 4-bit signed windows, and each segment
// scalar multiplies a generator derived by Blake-256 trial hashing.
package pedersen

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/dchest/blake256"
	"github.com/holiman/uint256"

	"github.com/luxfi/veil/babyjub"
	"github.com/luxfi/veil/field"
)

const (
	windowSize         = 4
	nWindowsPerSegment = 50
	bitsPerSegment     = windowSize * nWindowsPerSegment
)

// Generators are immutable once derived; they are cached for the process
// lifetime since trial hashing plus the subgroup check is not cheap.
var (
	genMu      sync.Mutex
	generators []babyjub.Point
)

// Hash computes the Pedersen hash of data and returns the x-coordinate of
// the accumulated point.
func Hash(data []byte) uint256.Int {
	nBits := len(data) * 8
	nSegments := 1
	if nBits > 0 {
		nSegments = (nBits-1)/bitsPerSegment + 1
	}

	acc := babyjub.Identity().Projective()

	for s := 0; s < nSegments; s++ {
		lo := s * bitsPerSegment
		hi := (s + 1) * bitsPerSegment
		if hi > nBits {
			hi = nBits
		}

		scalar := segmentScalar(data, lo, hi)
		if scalar.Sign() < 0 {
			scalar.Add(scalar, field.SubOrder)
		}

		contribution := basePoint(s).MulScalar(scalar)
		acc = acc.Add(contribution.Projective())
	}

	affine := acc.Affine()
	return field.FromElement(&affine.X)
}

// segmentScalar encodes bits [lo, hi) as a signed window scalar. Each window
// contributes acc * 2^(5w): acc starts at 1, bits 0-2 add magnitude and bit 3
// negates. The exponent advances by 5 rather than 4 so the signed encoding
// stays injective.
func segmentScalar(data []byte, lo, hi int) *big.Int {
	scalar := new(big.Int)
	exp := big.NewInt(1)
	i := lo

	for w := 0; w < nWindowsPerSegment; w++ {
		if i >= hi {
			break
		}

		acc := big.NewInt(1)
		for b := 0; b < windowSize-1; b++ {
			if i < hi && field.TestBit(data, i) {
				acc.Add(acc, new(big.Int).Lsh(big.NewInt(1), uint(b)))
			}
			i++
		}
		if i < hi && field.TestBit(data, i) {
			acc.Neg(acc)
		}
		i++

		acc.Mul(acc, exp)
		scalar.Add(scalar, acc)
		exp.Lsh(exp, windowSize+1)
	}

	return scalar
}

// basePoint returns the s-th Pedersen generator, deriving and caching any
// missing prefix.
func basePoint(s int) babyjub.Point {
	genMu.Lock()
	defer genMu.Unlock()

	for len(generators) <= s {
		generators = append(generators, deriveGenerator(len(generators)))
	}
	return generators[s]
}

// deriveGenerator trial-hashes "PedersenGenerator_{s:032}_{try:032}" with
// Blake-256, clears bit 254, unpacks the digest as a compressed point,
// multiplies by 8 to clear the cofactor and returns the first result that
// lands in the prime-order subgroup.
func deriveGenerator(pointIdx int) babyjub.Point {
	for try := 0; ; try++ {
		seed := fmt.Sprintf("PedersenGenerator_%032d_%032d", pointIdx, try)

		h := blake256.New()
		h.Write([]byte(seed))
		var digest [32]byte
		copy(digest[:], h.Sum(nil))
		digest[31] &= 0xbf // clear bit 254

		p, ok := babyjub.UnpackPoint(digest)
		if !ok {
			continue
		}

		p8 := p.MulScalar(big.NewInt(8))
		if p8.InSubgroup() {
			return p8
		}
	}
}
