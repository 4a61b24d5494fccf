package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CoreyFoshee/thatsamorepizza/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const eventsChannel = "display:events"

// Envelope is the message published via Redis Pub/Sub. Data is the
// already-marshalled event payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PubSub provides cross-instance display fan-out via Redis Pub/Sub.
type PubSub struct {
	rdb *goredis.Client
}

// NewPubSub creates a new PubSub instance.
func NewPubSub(client *Client) *PubSub {
	return &PubSub{rdb: client.rdb}
}

// PublishEvent publishes a display event so every instance, including
// this one, relays it to its local clients.
func (ps *PubSub) PublishEvent(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	envelope, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return ps.rdb.Publish(ctx, eventsChannel, envelope).Err()
}

// Subscription represents an active Pub/Sub subscription.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan Envelope
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// SubscribeEvents subscribes to the display event channel.
// Returns a Subscription with a channel that receives envelopes.
// Call subscription.Close() when done.
func (ps *PubSub) SubscribeEvents(ctx context.Context) *Subscription {
	sub := ps.rdb.Subscribe(ctx, eventsChannel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Envelope, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				metrics.PubSubMessagesReceived.WithLabelValues(eventsChannel).Inc()
				var envelope Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
					slog.Warn("Failed to unmarshal pubsub message", "error", err)
					continue
				}
				select {
				case ch <- envelope:
				default:
					// Drop if receiver is slow
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
