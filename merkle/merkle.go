// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle implements a sparse, append-only, fixed-depth Merkle tree
// parameterised by its two-to-one hash and zero leaf. Insertion is batched
// and lazy: leaves mark their parents dirty and a later Rebuild recomputes
// only the dirty paths.
package merkle

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Config fixes a tree shape: depth, node hash and the zero leaf used for
// unpopulated positions.
type Config struct {
	Depth int
	Hash  func(left, right *uint256.Int) uint256.Int
	Zero  uint256.Int
}

// Tree is a sparse fixed-depth Merkle tree. levels[0] holds leaves and
// levels[Depth][0] is the root.
type Tree struct {
	cfg    Config
	number uint32
	zeros  []uint256.Int
	levels [][]uint256.Int
	dirty  map[int]struct{}
}

// TreeState is the plain serialisable snapshot of a tree.
type TreeState struct {
	Number uint32          `json:"number"`
	Levels [][]uint256.Int `json:"tree"`
}

var (
	// ErrElementNotFound reports a proof request for an element that is not
	// a leaf of the tree.
	ErrElementNotFound = errors.New("merkle: element not found in tree")
	// ErrInvalidProof reports a generated proof that failed self-verification.
	ErrInvalidProof = errors.New("merkle: invalid proof")
)

// ZeroLevels precomputes Z[0..depth] with Z[0] = zero and Z[k+1] = H(Z[k], Z[k]).
func ZeroLevels(cfg Config) []uint256.Int {
	levels := make([]uint256.Int, 0, cfg.Depth+1)
	current := cfg.Zero
	for i := 0; i <= cfg.Depth; i++ {
		levels = append(levels, current)
		current = cfg.Hash(&current, &current)
	}
	return levels
}

// New constructs an empty tree with the given number, seeding the root from
// the zero levels.
func New(cfg Config, number uint32) *Tree {
	zeros := ZeroLevels(cfg)
	levels := make([][]uint256.Int, cfg.Depth+1)

	root := cfg.Hash(&zeros[cfg.Depth-1], &zeros[cfg.Depth-1])
	levels[cfg.Depth] = []uint256.Int{root}

	return &Tree{
		cfg:    cfg,
		number: number,
		zeros:  zeros,
		levels: levels,
		dirty:  make(map[int]struct{}),
	}
}

// FromState restores a tree from a snapshot.
func FromState(cfg Config, state TreeState) *Tree {
	t := New(cfg, state.Number)
	if state.Levels != nil {
		t.levels = state.Levels
	}
	return t
}

// State returns a snapshot of the tree.
func (t *Tree) State() TreeState {
	levels := make([][]uint256.Int, len(t.levels))
	for i, level := range t.levels {
		levels[i] = append([]uint256.Int(nil), level...)
	}
	return TreeState{Number: t.number, Levels: levels}
}

// Number returns the tree number.
func (t *Tree) Number() uint32 {
	return t.number
}

// Depth returns the tree depth.
func (t *Tree) Depth() int {
	return t.cfg.Depth
}

// TotalLeaves returns the tree capacity 2^depth.
func (t *Tree) TotalLeaves() int {
	return 1 << t.cfg.Depth
}

// Zero returns the configured zero leaf.
func (t *Tree) Zero() uint256.Int {
	return t.cfg.Zero
}

// LeavesLen returns the number of leaf positions currently populated.
func (t *Tree) LeavesLen() int {
	return len(t.levels[0])
}

// Clean reports whether all inserted leaves have been folded into the root.
func (t *Tree) Clean() bool {
	return len(t.dirty) == 0
}

// Root returns the current root. The tree must be clean.
func (t *Tree) Root() uint256.Int {
	if !t.Clean() {
		panic(fmt.Sprintf("merkle: tree %d has dirty parents, root is stale", t.number))
	}
	return t.levels[t.cfg.Depth][0]
}

// InsertLeaf writes one leaf and immediately rebuilds.
func (t *Tree) InsertLeaf(leaf uint256.Int, position int) {
	t.InsertLeaves([]uint256.Int{leaf}, position)
	t.Rebuild()
}

// InsertLeaves writes leaves into level 0 starting at start, extending the
// level with zero leaves as needed, and marks parents dirty. It does not
// recompute any inner node.
func (t *Tree) InsertLeaves(leaves []uint256.Int, start int) {
	if len(leaves) == 0 {
		return
	}

	end := start + len(leaves)
	for len(t.levels[0]) < end {
		t.levels[0] = append(t.levels[0], t.zeros[0])
	}

	for i, leaf := range leaves {
		idx := start + i
		t.levels[0][idx] = leaf
		t.dirty[idx/2] = struct{}{}
	}
}

// Rebuild promotes dirty parents level by level until the root is current.
func (t *Tree) Rebuild() {
	if len(t.dirty) == 0 {
		return
	}

	dirty := t.dirty
	t.dirty = make(map[int]struct{})

	for level := 0; level < t.cfg.Depth; level++ {
		childWidth := len(t.levels[level])
		parentWidth := (childWidth + 1) / 2

		for len(t.levels[level+1]) < parentWidth {
			t.levels[level+1] = append(t.levels[level+1], t.zeros[level+1])
		}

		next := make(map[int]struct{}, len(dirty))
		for parent := range dirty {
			left := t.child(level, 2*parent, childWidth)
			right := t.child(level, 2*parent+1, childWidth)
			t.levels[level+1][parent] = t.cfg.Hash(&left, &right)
			next[parent/2] = struct{}{}
		}
		dirty = next
	}
}

func (t *Tree) child(level, idx, width int) uint256.Int {
	if idx < width {
		return t.levels[level][idx]
	}
	return t.zeros[level]
}

// GenerateProof builds an inclusion proof for element, self-verifying the
// result against the current root. The tree must be clean.
func (t *Tree) GenerateProof(element uint256.Int) (Proof, error) {
	if !t.Clean() {
		panic(fmt.Sprintf("merkle: tree %d has dirty parents, root is stale", t.number))
	}

	index := -1
	for i := range t.levels[0] {
		if t.levels[0][i].Eq(&element) {
			index = i
			break
		}
	}
	if index < 0 {
		return Proof{}, fmt.Errorf("%w: %s", ErrElementNotFound, element.Hex())
	}

	siblings := make([]uint256.Int, 0, t.cfg.Depth)
	idx := index
	for level := 0; level < t.cfg.Depth; level++ {
		sibIdx := idx ^ 1
		if sibIdx < len(t.levels[level]) {
			siblings = append(siblings, t.levels[level][sibIdx])
		} else {
			siblings = append(siblings, t.zeros[level])
		}
		idx /= 2
	}

	proof := Proof{
		Element:  element,
		Siblings: siblings,
		Indices:  *uint256.NewInt(uint64(index)),
		Root:     t.Root(),
	}
	if !proof.Verify(t.cfg.Hash) {
		return Proof{}, ErrInvalidProof
	}

	return proof, nil
}

// PreInclusionProof builds the deterministic placeholder proof for a value
// that is not yet on-chain: indices zero and an all-zero sibling path, with
// the root H^depth(element, 0).
func PreInclusionProof(cfg Config, element uint256.Int) Proof {
	siblings := make([]uint256.Int, cfg.Depth)

	root := element
	for i := range siblings {
		root = cfg.Hash(&root, &siblings[i])
	}

	return Proof{
		Element:  element,
		Siblings: siblings,
		Indices:  uint256.Int{},
		Root:     root,
	}
}
