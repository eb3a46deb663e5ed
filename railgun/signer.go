// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package railgun implements the client engine for the shielded-UTXO
// protocol: the note model, commitment and txid Merkle trees, the event
// indexer, and the transaction builder that emits contract calldata.
package railgun

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/keys"
)

// Signer holds an account's key pair for the duration of a session. Keys are
// process-resident only; nothing in this module persists them.
type Signer interface {
	SpendingKey() keys.SpendingKey
	ViewingKey() keys.ViewingKey
	Sign(message *uint256.Int) (keys.Signature, error)
	Address() address.Address
}

// PrivateKeySigner is an in-memory Signer over raw key material.
type PrivateKeySigner struct {
	spendingKey keys.SpendingKey
	viewingKey  keys.ViewingKey
	chain       address.ChainID
}

// NewSigner builds a signer for the given chain.
func NewSigner(spending keys.SpendingKey, viewing keys.ViewingKey, chain address.ChainID) *PrivateKeySigner {
	return &PrivateKeySigner{spendingKey: spending, viewingKey: viewing, chain: chain}
}

// NewEVMSigner builds a signer bound to an EVM chain id.
func NewEVMSigner(spending keys.SpendingKey, viewing keys.ViewingKey, chainID uint64) *PrivateKeySigner {
	return NewSigner(spending, viewing, address.EVMChain(chainID))
}

// SpendingKey returns the spending key.
func (s *PrivateKeySigner) SpendingKey() keys.SpendingKey {
	return s.spendingKey
}

// ViewingKey returns the viewing key.
func (s *PrivateKeySigner) ViewingKey() keys.ViewingKey {
	return s.viewingKey
}

// Sign signs a circuit message with the spending key.
func (s *PrivateKeySigner) Sign(message *uint256.Int) (keys.Signature, error) {
	return s.spendingKey.Sign(message)
}

// Address derives the signer's shielded address.
func (s *PrivateKeySigner) Address() address.Address {
	return address.FromPrivateKeys(s.spendingKey, s.viewingKey, s.chain)
}
