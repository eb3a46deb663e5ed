// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"github.com/holiman/uint256"
)

// Proof is an inclusion proof: the leaf, its sibling path, the bit-packed
// path indices and the root the path folds to.
type Proof struct {
	Element  uint256.Int   `json:"leaf"`
	Siblings []uint256.Int `json:"elements"`
	Indices  uint256.Int   `json:"indices"`
	Root     uint256.Int   `json:"root"`
}

// Verify recomputes the root from the leaf and sibling path, hashing
// (prev, sibling) or (sibling, prev) per level according to bit i of
// Indices, and compares against the recorded root.
func (p *Proof) Verify(hash func(left, right *uint256.Int) uint256.Int) bool {
	current := p.Element
	indices := p.Indices.Uint64()

	for i := range p.Siblings {
		if indices>>uint(i)&1 == 0 {
			current = hash(&current, &p.Siblings[i])
		} else {
			current = hash(&p.Siblings[i], &current)
		}
	}

	return current.Eq(&p.Root)
}
