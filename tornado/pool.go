// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tornado

import (
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
)

// PoolAsset is the asset a pool denominates in.
type PoolAsset struct {
	// Address is zero for native-coin pools.
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	// Native marks a native-coin pool.
	Native bool `json:"native"`
}

// Pool is one fixed-denomination mixer pool. The denomination is a wei
// value up to 2^128, carried as a decimal string.
type Pool struct {
	ChainID   uint64         `json:"chainId"`
	Address   common.Address `json:"address"`
	Asset     PoolAsset      `json:"asset"`
	AmountWei string         `json:"amountWei"`
}

// SepoliaEther1 is the 1-ETH pool on Sepolia.
func SepoliaEther1() Pool {
	return Pool{
		ChainID:   11155111,
		Address:   common.HexToAddress("0x8cc930096b4df705a007c4a039bdfa1320ed2508"),
		Asset:     PoolAsset{Symbol: "ETH", Decimals: 18, Native: true},
		AmountWei: "1000000000000000000",
	}
}

// EthereumEther100 is the 100-ETH pool on mainnet.
func EthereumEther100() Pool {
	return Pool{
		ChainID:   1,
		Address:   common.HexToAddress("0xA160cdAB225685dA1d56aa342Ad8841c3b53f291"),
		Asset:     PoolAsset{Symbol: "ETH", Decimals: 18, Native: true},
		AmountWei: "100000000000000000000",
	}
}

// Symbol returns the pool's asset symbol.
func (p *Pool) Symbol() string {
	return p.Asset.Symbol
}

// Amount renders the denomination as a decimal string, e.g. "0.1".
func (p *Pool) Amount() string {
	return formatAmount(p.AmountWei, p.Asset.Decimals)
}

func (p Pool) String() string {
	return fmt.Sprintf("eip155:%d/%s/%s", p.ChainID, p.Symbol(), p.Amount())
}

// formatAmount shifts a decimal wei string left by decimals places and trims
// trailing zeros.
func formatAmount(amountWei string, decimals uint8) string {
	digits := strings.TrimLeft(amountWei, "0")
	if digits == "" {
		return "0"
	}

	d := int(decimals)
	if d == 0 {
		return digits
	}

	var whole, frac string
	if len(digits) > d {
		whole = digits[:len(digits)-d]
		frac = digits[len(digits)-d:]
	} else {
		whole = "0"
		frac = strings.Repeat("0", d-len(digits)) + digits
	}

	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
