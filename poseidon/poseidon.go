// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poseidon fronts the circomlib-parameter Poseidon permutation over
// the BN254 scalar field. The permutation itself (round schedules, MDS
// matrices and constants for widths 2..14) comes from go-iden3-crypto, which
// embeds the circomlib parameter set; this package pins the supported input
// range and the word types used across the module.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	iden3 "github.com/iden3/go-iden3-crypto/poseidon"
)

// MaxInputs is the widest supported input vector: the permutation family is
// parameterised for state widths t = n+1 in 2..14.
const MaxInputs = 13

// ErrUnsupportedLength reports an input count outside [1, MaxInputs].
type ErrUnsupportedLength struct {
	N int
}

func (e ErrUnsupportedLength) Error() string {
	return fmt.Sprintf("poseidon: unsupported input length %d", e.N)
}

// HashBig hashes 1..13 field elements, prepending the zero capacity element
// and returning state element 0 after the permutation.
func HashBig(inputs []*big.Int) (*big.Int, error) {
	if len(inputs) < 1 || len(inputs) > MaxInputs {
		return nil, ErrUnsupportedLength{N: len(inputs)}
	}
	return iden3.Hash(inputs)
}

// Hash hashes 1..13 uint256 words.
func Hash(inputs []uint256.Int) (uint256.Int, error) {
	big := make([]*big.Int, len(inputs))
	for i := range inputs {
		big[i] = inputs[i].ToBig()
	}

	out, err := HashBig(big)
	if err != nil {
		return uint256.Int{}, err
	}

	u, _ := uint256.FromBig(out)
	return *u, nil
}

// MustHash is Hash for input counts known to be in range.
func MustHash(inputs ...uint256.Int) uint256.Int {
	out, err := Hash(inputs)
	if err != nil {
		panic(err)
	}
	return out
}
