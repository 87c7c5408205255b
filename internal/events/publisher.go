package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Publisher broadcasts task lifecycle events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Broadcaster is the transport side of the publisher, injected so the
// fan-out can be tested without a running Redis.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload []byte) error
}

var _ Publisher = (*ChannelPublisher)(nil)

// ChannelPublisher serializes events and broadcasts them on a single
// well-known channel. Delivery is best-effort: failures are logged and
// swallowed, never surfaced to the mutation that triggered the event.
type ChannelPublisher struct {
	broadcaster Broadcaster
	channel     string
}

func NewChannelPublisher(broadcaster Broadcaster, channel string) *ChannelPublisher {
	return &ChannelPublisher{broadcaster: broadcaster, channel: channel}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) {
	payload, err := event.Encode()
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"task_id": event.TaskID,
			"kind":    event.Kind,
		}).Warn("failed to encode lifecycle event")
		return
	}
	if err := p.broadcaster.Broadcast(ctx, p.channel, payload); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"task_id": event.TaskID,
			"kind":    event.Kind,
			"channel": p.channel,
		}).Warn("failed to publish lifecycle event")
	}
}

var _ Broadcaster = (*RedisBroadcaster)(nil)

// RedisBroadcaster publishes over Redis pub/sub.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}
