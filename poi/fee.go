// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package poi

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/address"
)

// Fee is one broadcaster's fee offer for one token.
type Fee struct {
	// Token is the ERC-20 the fee is denominated in.
	Token common.Address
	// PerUnitGas is the fee in token base units per unit of gas, where gas
	// is denominated in ether (1e18).
	PerUnitGas uint256.Int
	// Recipient is the broadcaster's shielded address, paid inside the
	// transaction.
	Recipient address.Address
	// Expiration is the unix timestamp the offer lapses at.
	Expiration uint64
	// FeesID identifies the offer.
	FeesID string
	// AvailableWallets is how many broadcast wallets are free.
	AvailableWallets uint32
	// RelayAdapt is the relay adapt contract address.
	RelayAdapt common.Address
	// Reliability is the broadcaster's reliability score, 0-100.
	Reliability uint32
	// ListKeys are the POI lists the broadcaster requires proofs for.
	ListKeys []ListKey
}
