package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "commonshub:realtime:changes"

// envelope is the message shape on the Redis channel. It wraps a ChangeEvent
// so every instance can fan it back into its local Hub.
type envelope struct {
	ChangeEvent
	SentAt time.Time `json:"sent_at"`
}

// Bridge connects the local in-process Hub with a Redis pub/sub channel so
// events published on any instance reach subscribers on all instances. With
// no Redis configured the service still works in single-instance mode via the
// Hub alone.
type Bridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	cancel  context.CancelFunc
}

// NewBridge wires a Hub to a Redis pub/sub channel and starts the subscriber
// loop. Pass an empty channel name to use the default.
func NewBridge(client *redis.Client, channel string, hub *Hub) *Bridge {
	if channel == "" {
		channel = defaultChannel
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		client:  client,
		channel: channel,
		hub:     hub,
		cancel:  cancel,
	}
	go b.runSubscriber(ctx)
	log.Printf("realtime: redis bridge started on channel %s", channel)
	return b
}

// Publish sends the event to the shared Redis channel. Delivery back into the
// local hub happens through the subscriber loop like on every other instance.
func (b *Bridge) Publish(ev ChangeEvent) {
	body, err := json.Marshal(envelope{ChangeEvent: ev, SentAt: time.Now().UTC()})
	if err != nil {
		log.Printf("realtime: encode envelope failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		log.Printf("realtime: publish to %s failed: %v", b.channel, err)
	}
}

// Close stops the subscriber loop.
func (b *Bridge) Close() {
	b.cancel()
}

func (b *Bridge) runSubscriber(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Ensure the subscription is established before reading messages.
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("realtime: subscribe to %s failed: %v", b.channel, err)
		return
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("realtime: decode message on %s failed: %v", b.channel, err)
				continue
			}
			if env.Scope == "" || env.Table == "" {
				continue
			}
			b.hub.Publish(env.ChangeEvent)
		}
	}
}
