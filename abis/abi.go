// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package abis carries the contract ABI surfaces the client speaks: the
// shielded-pool smart wallet, the mixer pools and the relayer registry,
// together with typed Go structs, calldata packing and event decoding.
package abis

import (
	"fmt"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// ExtendedABI wraps the standard ABI and adds event decoding and output
// packing helpers.
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses the raw ABI JSON and returns an ExtendedABI.
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// EventID returns the topic0 hash for the named event.
func (e ExtendedABI) EventID(name string) common.Hash {
	event, exist := e.Events[name]
	if !exist {
		panic(fmt.Sprintf("event '%s' not found", name))
	}
	return event.ID
}

// DecodeEvent unpacks a log's non-indexed data into out, checking the
// event signature first.
func (e ExtendedABI) DecodeEvent(out interface{}, name string, log *types.Log) error {
	event, exist := e.Events[name]
	if !exist {
		return fmt.Errorf("event '%s' not found", name)
	}
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return fmt.Errorf("log is not a '%s' event", name)
	}
	return e.UnpackIntoInterface(out, name, log.Data)
}

// PackOutput packs the given args as the output of the named method,
// without the method ID.
func (e ExtendedABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Pack(args...)
}

// UnpackOutput unpacks a contract call result for the named method.
func (e ExtendedABI) UnpackOutput(name string, data []byte) ([]interface{}, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Unpack(data)
}
