// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
	"github.com/luxfi/veil/field"
	"github.com/luxfi/veil/merkle"
	"github.com/luxfi/veil/poseidon"
)

// TreeDepth is the depth of the commitment and txid trees.
const TreeDepth = 16

// TotalLeaves is the per-tree leaf capacity.
const TotalLeaves = 1 << TreeDepth

var (
	zeroOnce sync.Once
	zeroLeaf uint256.Int
)

// UtxoMerkleZero returns keccak256("Railgun") mod Q, the zero leaf of both
// tree families.
func UtxoMerkleZero() uint256.Int {
	zeroOnce.Do(func() {
		h := new(big.Int).SetBytes(crypto.Keccak256([]byte("Railgun")))
		h.Mod(h, field.Q)
		zeroLeaf = field.MustUint(h)
	})
	return zeroLeaf
}

// TreeConfig returns the merkle configuration shared by the commitment and
// txid trees: depth 16, Poseidon-2, keccak("Railgun") zero leaf.
func TreeConfig() merkle.Config {
	return merkle.Config{
		Depth: TreeDepth,
		Hash: func(left, right *uint256.Int) uint256.Int {
			return poseidon.MustHash(*left, *right)
		},
		Zero: UtxoMerkleZero(),
	}
}

// RootVerifier validates a tree root against an external authority (the
// contract's root history or a POI node).
type RootVerifier interface {
	VerifyRoot(ctx context.Context, treeNumber uint32, treeIndex uint64, root uint256.Int) (bool, error)
}

// ErrInvalidRoot reports a tree whose rebuilt root the authority rejects.
type ErrInvalidRoot struct {
	TreeNumber uint32
	Root       uint256.Int
}

func (e ErrInvalidRoot) Error() string {
	return fmt.Sprintf("railgun: tree %d root %s is not valid", e.TreeNumber, e.Root.Hex())
}

// UtxoTree tracks the commitments of one on-chain tree. New leaves are
// appended as commitments are observed from the contract events.
type UtxoTree struct {
	inner    *merkle.Tree
	verifier RootVerifier
}

// NewUtxoTree builds an empty commitment tree.
func NewUtxoTree(number uint32) *UtxoTree {
	return &UtxoTree{inner: merkle.New(TreeConfig(), number)}
}

// UtxoTreeFromState restores a tree snapshot.
func UtxoTreeFromState(state merkle.TreeState) *UtxoTree {
	return &UtxoTree{inner: merkle.FromState(TreeConfig(), state)}
}

// WithVerifier attaches a root verifier.
func (t *UtxoTree) WithVerifier(v RootVerifier) *UtxoTree {
	t.verifier = v
	return t
}

// Number returns the tree number.
func (t *UtxoTree) Number() uint32 { return t.inner.Number() }

// Root returns the tree root; the tree must be clean.
func (t *UtxoTree) Root() uint256.Int { return t.inner.Root() }

// LeavesLen returns the populated leaf count.
func (t *UtxoTree) LeavesLen() int { return t.inner.LeavesLen() }

// State snapshots the tree.
func (t *UtxoTree) State() merkle.TreeState { return t.inner.State() }

// InsertLeaves appends leaves without rebuilding.
func (t *UtxoTree) InsertLeaves(leaves []uint256.Int, start int) {
	t.inner.InsertLeaves(leaves, start)
}

// Rebuild folds pending leaves into the root.
func (t *UtxoTree) Rebuild() { t.inner.Rebuild() }

// GenerateProof builds an inclusion proof for a commitment.
func (t *UtxoTree) GenerateProof(leaf uint256.Int) (merkle.Proof, error) {
	return t.inner.GenerateProof(leaf)
}

// Verify validates the current root against the attached verifier. Empty
// trees and trees without a verifier pass trivially.
func (t *UtxoTree) Verify(ctx context.Context) error {
	if t.verifier == nil || t.inner.LeavesLen() == 0 {
		return nil
	}

	root := t.inner.Root()
	ok, err := t.verifier.VerifyRoot(ctx, t.inner.Number(), uint64(t.inner.LeavesLen()-1), root)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidRoot{TreeNumber: t.inner.Number(), Root: root}
	}
	return nil
}

// TxidTree tracks the txid leaves of every operation, mirroring the POI
// aggregator's canonical tree.
type TxidTree struct {
	inner *merkle.Tree
}

// NewTxidTree builds an empty txid tree.
func NewTxidTree(number uint32) *TxidTree {
	return &TxidTree{inner: merkle.New(TreeConfig(), number)}
}

// TxidTreeFromState restores a tree snapshot.
func TxidTreeFromState(state merkle.TreeState) *TxidTree {
	return &TxidTree{inner: merkle.FromState(TreeConfig(), state)}
}

// Number returns the tree number.
func (t *TxidTree) Number() uint32 { return t.inner.Number() }

// Root returns the tree root; the tree must be clean.
func (t *TxidTree) Root() uint256.Int { return t.inner.Root() }

// LeavesLen returns the populated leaf count.
func (t *TxidTree) LeavesLen() int { return t.inner.LeavesLen() }

// State snapshots the tree.
func (t *TxidTree) State() merkle.TreeState { return t.inner.State() }

// InsertLeaves appends leaves without rebuilding.
func (t *TxidTree) InsertLeaves(leaves []uint256.Int, start int) {
	t.inner.InsertLeaves(leaves, start)
}

// Rebuild folds pending leaves into the root.
func (t *TxidTree) Rebuild() { t.inner.Rebuild() }

// GenerateProof builds an inclusion proof for a txid leaf.
func (t *TxidTree) GenerateProof(leaf uint256.Int) (merkle.Proof, error) {
	return t.inner.GenerateProof(leaf)
}

// PreInclusionTxidProof builds the deterministic placeholder proof for a
// txid leaf that is not yet on-chain: an all-zero path folding to
// Poseidon^depth(leaf, 0).
func PreInclusionTxidProof(leaf uint256.Int) merkle.Proof {
	return merkle.PreInclusionProof(TreeConfig(), leaf)
}

// SmartWalletVerifier validates commitment tree roots against the deployed
// contract's root history mapping.
type SmartWalletVerifier struct {
	chain  ChainConfig
	client evm.Client
}

// NewSmartWalletVerifier builds a verifier over a chain client.
func NewSmartWalletVerifier(chain ChainConfig, client evm.Client) *SmartWalletVerifier {
	return &SmartWalletVerifier{chain: chain, client: client}
}

// VerifyRoot queries rootHistory(treeNumber, root).
func (v *SmartWalletVerifier) VerifyRoot(ctx context.Context, treeNumber uint32, _ uint64, root uint256.Int) (bool, error) {
	data, err := abis.Railgun.Pack("rootHistory", new(big.Int).SetUint64(uint64(treeNumber)), root.Bytes32())
	if err != nil {
		return false, err
	}

	out, err := v.client.CallContract(ctx, evm.CallMsg{To: v.chain.SmartWallet, Data: data})
	if err != nil {
		return false, err
	}

	results, err := abis.Railgun.UnpackOutput("rootHistory", out)
	if err != nil {
		return false, err
	}
	known, ok := results[0].(bool)
	if !ok {
		return false, errors.New("railgun: unexpected rootHistory result type")
	}
	return known, nil
}
