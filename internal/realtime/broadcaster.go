// Package realtime fans display events out to TV clients. With Redis
// configured, events travel through Pub/Sub so every instance, including
// the publishing one, relays them to its local WebSocket hub; without
// Redis, events go straight to the local hub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
	"github.com/CoreyFoshee/thatsamorepizza/internal/redis"
)

// Hub is the local fan-out surface the broadcaster delivers to.
type Hub interface {
	Broadcast(data []byte)
}

// Broadcaster implements domain.EventPublisher.
type Broadcaster struct {
	hub    Hub
	pubsub *redis.PubSub
	sub    *redis.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

var _ domain.EventPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a local-only broadcaster. Events reach only the
// clients connected to this instance.
func NewBroadcaster(hub Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// NewRedisBroadcaster creates a broadcaster that publishes through Redis
// Pub/Sub and relays received events to the local hub. Publishing and
// relaying are split this way so an event is delivered to local clients
// exactly once regardless of which instance published it.
func NewRedisBroadcaster(hub Hub, pubsub *redis.PubSub) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		hub:    hub,
		pubsub: pubsub,
		sub:    pubsub.SubscribeEvents(ctx),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.relay()
	return b
}

func (b *Broadcaster) relay() {
	defer close(b.done)
	for envelope := range b.sub.Ch {
		data, err := json.Marshal(envelope)
		if err != nil {
			slog.Warn("Failed to marshal relayed event", "event", envelope.Event, "error", err)
			continue
		}
		b.hub.Broadcast(data)
	}
}

// Publish sends an event to every connected display on every instance.
func (b *Broadcaster) Publish(ctx context.Context, event string, payload any) error {
	metrics.DisplayEventsPublished.WithLabelValues(event).Inc()

	if b.pubsub != nil {
		// Local delivery happens when the relay receives it back.
		return b.pubsub.PublishEvent(ctx, event, payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	envelope, err := json.Marshal(redis.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	b.hub.Broadcast(envelope)
	return nil
}

// Close stops the Pub/Sub relay, if any.
func (b *Broadcaster) Close() {
	if b.cancel != nil {
		b.cancel()
		b.sub.Close()
		<-b.done
	}
}
