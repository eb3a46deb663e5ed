// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	log "github.com/luxfi/log"
)

// PubsubTransport is a gossipsub-backed Transport. It joins one gossipsub
// topic per content topic and fans messages into subscriber channels.
// Gossipsub keeps no history, so RetrieveHistorical always returns nothing;
// the live subscription carries all delivery.
type PubsubTransport struct {
	host   host.Host
	pubsub *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic

	log log.Logger
}

// PubsubConfig configures the transport's libp2p host.
type PubsubConfig struct {
	// ListenAddr is the multiaddr the host listens on, e.g.
	// "/ip4/0.0.0.0/tcp/0".
	ListenAddr string
	// BootstrapPeers are multiaddrs dialled at startup.
	BootstrapPeers []string
}

// NewPubsubTransport creates a libp2p host and gossipsub router.
func NewPubsubTransport(ctx context.Context, cfg PubsubConfig, logger log.Logger) (*PubsubTransport, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		return nil, fmt.Errorf("broadcast: failed to create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("broadcast: failed to create pubsub: %w", err)
	}

	t := &PubsubTransport{
		host:   h,
		pubsub: ps,
		topics: make(map[string]*pubsub.Topic),
		log:    logger,
	}

	for _, peer := range cfg.BootstrapPeers {
		if err := dialPeer(ctx, h, peer); err != nil {
			logger.Warn("bootstrap dial failed", "peer", peer, "err", err)
		}
	}

	return t, nil
}

// Close shuts the host down.
func (t *PubsubTransport) Close() error {
	return t.host.Close()
}

func (t *PubsubTransport) topic(name string) (*pubsub.Topic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if topic, ok := t.topics[name]; ok {
		return topic, nil
	}

	topic, err := t.pubsub.Join(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
	}
	t.topics[name] = topic
	return topic, nil
}

// Subscribe joins the content topics and streams their messages until ctx
// is cancelled.
func (t *PubsubTransport) Subscribe(ctx context.Context, contentTopics []string) (<-chan Message, error) {
	subs := make([]*pubsub.Subscription, 0, len(contentTopics))
	for _, name := range contentTopics {
		topic, err := t.topic(name)
		if err != nil {
			return nil, err
		}
		sub, err := topic.Subscribe()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan Message, 64)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(name string, sub *pubsub.Subscription) {
			defer wg.Done()
			defer sub.Cancel()

			for {
				msg, err := sub.Next(ctx)
				if err != nil {
					return
				}
				// Skip our own publishes.
				if msg.ReceivedFrom == t.host.ID() {
					continue
				}

				select {
				case out <- Message{Payload: msg.Data, ContentTopic: name}:
				case <-ctx.Done():
					return
				}
			}
		}(contentTopics[i], sub)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Send publishes a payload on a content topic.
func (t *PubsubTransport) Send(ctx context.Context, contentTopic string, payload []byte) error {
	topic, err := t.topic(contentTopic)
	if err != nil {
		return err
	}
	if err := topic.Publish(ctx, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// RetrieveHistorical returns nothing: gossipsub carries no store.
func (t *PubsubTransport) RetrieveHistorical(context.Context, string) ([]Message, error) {
	return nil, nil
}

var _ Transport = (*PubsubTransport)(nil)
