// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/evm"
)

// TxData is ready-to-send transaction content.
type TxData struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// NewTxData builds a TxData.
func NewTxData(to common.Address, data []byte, value *big.Int) TxData {
	if value == nil {
		value = new(big.Int)
	}
	return TxData{To: to, Data: data, Value: value}
}

// TxDataFromTransactions packs operations into a single transact() call.
func TxDataFromTransactions(to common.Address, transactions []abis.Transaction) (TxData, error) {
	calldata, err := abis.PackTransact(transactions)
	if err != nil {
		return TxData{}, err
	}
	return NewTxData(to, calldata, nil), nil
}

// Msg converts the TxData to a chain-client message.
func (t TxData) Msg(from common.Address) evm.TxMsg {
	return evm.TxMsg{From: from, To: t.To, Data: t.Data, Value: t.Value}
}
