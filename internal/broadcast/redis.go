// Package broadcast pushes events to target systems over a low-latency
// pub/sub channel. Delivery is fire-and-forget: there is no acknowledgment
// and no retry, the durable stream remains the source of truth.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// Metadata travels next to the payload on every broadcast.
type Metadata struct {
	EventID      string    `json:"event_id"`
	Timestamp    time.Time `json:"timestamp"`
	OriginSystem string    `json:"origin_system"`
	Priority     string    `json:"priority"`
}

// Message is the broadcast wire shape.
type Message struct {
	Type     string      `json:"type"`
	Action   string      `json:"action"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
}

// Broadcaster delivers a message to one target system.
type Broadcaster interface {
	Send(ctx context.Context, target string, msg Message) error
}

// Redis publishes to channel "<prefix>event:<target>".
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis returns a Broadcaster over rdb. prefix namespaces every channel
// and is usually empty.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// Channel returns the channel name for target.
func (r *Redis) Channel(target string) string {
	return r.prefix + "event:" + target
}

// Send publishes msg to the target's channel.
func (r *Redis) Send(ctx context.Context, target string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.Channel(target), string(payload)).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
