// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abis

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// DepositEvent mirrors the mixer pool Deposit log. The commitment is an
// indexed topic.
type DepositEvent struct {
	Commitment [32]byte
	LeafIndex  uint32
	Timestamp  *big.Int
}

// WithdrawalEvent mirrors the mixer pool Withdrawal log. The relayer is an
// indexed topic.
type WithdrawalEvent struct {
	To            common.Address
	NullifierHash [32]byte
	Relayer       common.Address
	Fee           *big.Int
}

const tornadoABIJSON = `[
  {"type":"event","name":"Deposit","inputs":[
    {"name":"commitment","type":"bytes32","indexed":true},
    {"name":"leafIndex","type":"uint32","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdrawal","inputs":[
    {"name":"to","type":"address","indexed":false},
    {"name":"nullifierHash","type":"bytes32","indexed":false},
    {"name":"relayer","type":"address","indexed":true},
    {"name":"fee","type":"uint256","indexed":false}]},
  {"type":"function","name":"deposit","stateMutability":"payable","inputs":[
    {"name":"_commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"payable","inputs":[
    {"name":"_proof","type":"bytes"},
    {"name":"_root","type":"bytes32"},
    {"name":"_nullifierHash","type":"bytes32"},
    {"name":"_recipient","type":"address"},
    {"name":"_relayer","type":"address"},
    {"name":"_fee","type":"uint256"},
    {"name":"_refund","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"isSpent","stateMutability":"view","inputs":[
    {"name":"_nullifierHash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isKnownRoot","stateMutability":"view","inputs":[
    {"name":"_root","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getLastRoot","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"bytes32"}]}]`

// Tornado is the mixer pool ABI surface.
var Tornado = ParseABI(tornadoABIJSON)

// WithdrawCall carries the arguments of a withdraw() call.
type WithdrawCall struct {
	Proof         []byte
	Root          [32]byte
	NullifierHash [32]byte
	Recipient     common.Address
	Relayer       common.Address
	Fee           *big.Int
	Refund        *big.Int
}

// Pack builds withdraw() calldata.
func (c WithdrawCall) Pack() ([]byte, error) {
	return Tornado.Pack("withdraw", c.Proof, c.Root, c.NullifierHash,
		c.Recipient, c.Relayer, c.Fee, c.Refund)
}

// PackDeposit builds deposit() calldata.
func PackDeposit(commitment [32]byte) ([]byte, error) {
	return Tornado.Pack("deposit", commitment)
}
