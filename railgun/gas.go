// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"context"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/veil/evm"
)

// GasEstimator estimates execution cost for fee negotiation.
type GasEstimator interface {
	EstimateGas(ctx context.Context, tx TxData) (uint64, error)
	GasPriceWei(ctx context.Context) (uint64, error)
}

// ClientGasEstimator adapts a chain client to the GasEstimator interface.
type ClientGasEstimator struct {
	Client evm.Client
	From   common.Address
}

// EstimateGas estimates the gas limit for the transaction.
func (e ClientGasEstimator) EstimateGas(ctx context.Context, tx TxData) (uint64, error) {
	return e.Client.EstimateGas(ctx, tx.Msg(e.From))
}

// GasPriceWei returns the suggested gas price.
func (e ClientGasEstimator) GasPriceWei(ctx context.Context) (uint64, error) {
	price, err := e.Client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, err
	}
	return price.Uint64(), nil
}
