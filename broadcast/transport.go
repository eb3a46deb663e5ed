// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broadcast implements the relay side of the shielded-UTXO
// protocol: broadcaster discovery over pub/sub fee messages, fee-based
// selection, and the encrypted transact request/response round-trip.
package broadcast

import (
	"context"
	"errors"
	"fmt"
)

// Message is one pub/sub message.
type Message struct {
	// Payload is the raw message body.
	Payload []byte `json:"payload"`
	// ContentTopic is the topic the message arrived on.
	ContentTopic string `json:"contentTopic"`
	// Timestamp is the optional sender timestamp in milliseconds.
	Timestamp uint64 `json:"timestamp,omitempty"`
}

var (
	// ErrSubscriptionFailed reports a failed topic subscription.
	ErrSubscriptionFailed = errors.New("broadcast: subscription failed")
	// ErrSendFailed reports a failed publish.
	ErrSendFailed = errors.New("broadcast: send failed")
	// ErrRetrieveFailed reports a failed historical retrieval.
	ErrRetrieveFailed = errors.New("broadcast: historical retrieval failed")
)

// Transport is the pub/sub layer broadcasters communicate over.
type Transport interface {
	// Subscribe returns a channel of messages on the given content topics.
	// The subscription stays active until ctx is cancelled; the channel
	// closes when the subscription ends.
	Subscribe(ctx context.Context, contentTopics []string) (<-chan Message, error)

	// Send publishes a payload on a content topic.
	Send(ctx context.Context, contentTopic string, payload []byte) error

	// RetrieveHistorical returns stored messages for a content topic in
	// chronological order; each message is returned at most once across
	// calls. Transports without a store return an empty slice.
	RetrieveHistorical(ctx context.Context, contentTopic string) ([]Message, error)
}

// FeeContentTopic is the fee-broadcast topic for a chain.
func FeeContentTopic(chainID uint64) string {
	return fmt.Sprintf("/railgun/v2/0-%d-fees/json", chainID)
}

// TransactContentTopic is the transact-request topic for a chain.
func TransactContentTopic(chainID uint64) string {
	return fmt.Sprintf("/railgun/v2/0-%d-transact/json", chainID)
}

// TransactResponseContentTopic is the transact-response topic for a chain.
func TransactResponseContentTopic(chainID uint64) string {
	return fmt.Sprintf("/railgun/v2/0-%d-transact-response/json", chainID)
}
