// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"

	"github.com/luxfi/veil/field"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/mimc"
)

// TreeDepth is the pool commitment tree depth.
const TreeDepth = 20

var (
	zeroOnce sync.Once
	zeroLeaf uint256.Int
)

// MerkleZero returns keccak256("tornado") mod Q, the pool's zero leaf.
func MerkleZero() uint256.Int {
	zeroOnce.Do(func() {
		h := new(big.Int).SetBytes(crypto.Keccak256([]byte("tornado")))
		h.Mod(h, field.Q)
		zeroLeaf = field.MustUint(h)
	})
	return zeroLeaf
}

// TreeConfig returns the pool's tree parameters: depth 20, MiMC-Sponge,
// keccak("tornado") zero leaf.
func TreeConfig() merkle.Config {
	return merkle.Config{
		Depth: TreeDepth,
		Hash:  mimc.HashUint,
		Zero:  MerkleZero(),
	}
}

// NewTree builds an empty pool commitment tree.
func NewTree() *merkle.Tree {
	return merkle.New(TreeConfig(), 0)
}

// TreeFromState restores a pool tree snapshot.
func TreeFromState(state merkle.TreeState) *merkle.Tree {
	return merkle.FromState(TreeConfig(), state)
}
