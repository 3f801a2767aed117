package broker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// Named streams.
const (
	StreamEvents   = "hotel-events"
	StreamCritical = "hotel-critical-events"
	StreamBatch    = "hotel-batch-events"
	StreamErrors   = "hotel-error-events"
)

// ErrDisconnected is returned by every call once the client has been closed.
var ErrDisconnected = errors.New("broker disconnected")

// Entry is one stream entry.
type Entry struct {
	ID     string
	Values map[string]interface{}
}

// Missing reports whether the entry's payload is gone (trimmed or deleted
// while still pending).
func (e Entry) Missing() bool { return e.Values == nil }

// Streams is the subset of a Redis-Streams broker the integration core uses.
type Streams interface {
	Append(ctx context.Context, stream string, values []interface{}) (string, error)
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Entry, error)
	Pending(ctx context.Context, stream, group, consumer string, count int64) ([]Entry, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Len(ctx context.Context, stream string) (int64, error)
	PendingCount(ctx context.Context, stream, group string) (int64, error)
	Ping(ctx context.Context) error
	Connected() bool
}

// Redis implements Streams over go-redis.
type Redis struct {
	rdb    *redis.Client
	maxLen int64
	closed atomic.Bool
}

// NewRedis wraps rdb. maxLen > 0 enables approximate trimming on append.
func NewRedis(rdb *redis.Client, maxLen int64) *Redis {
	return &Redis{rdb: rdb, maxLen: maxLen}
}

// Connected is false after Close.
func (r *Redis) Connected() bool { return !r.closed.Load() }

// Close marks the broker disconnected and closes the client. Consumer loops
// observe this on their next iteration and exit.
func (r *Redis) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.rdb.Close()
}

// Append issues XADD <stream> * values... and returns the assigned id.
func (r *Redis) Append(ctx context.Context, stream string, values []interface{}) (string, error) {
	if !r.Connected() {
		return "", ErrDisconnected
	}
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	return r.rdb.XAdd(ctx, args).Result()
}

// EnsureGroup creates group at the stream tail, creating the stream if needed.
// An existing group is not an error.
func (r *Redis) EnsureGroup(ctx context.Context, stream, group string) error {
	if !r.Connected() {
		return ErrDisconnected
	}
	err := r.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// ReadGroup reads up to count new entries for consumer, blocking at most block.
// A timeout with no entries returns (nil, nil).
func (r *Redis) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Entry, error) {
	if !r.Connected() {
		return nil, ErrDisconnected
	}
	res, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, s := range res {
		for _, m := range s.Messages {
			out = append(out, Entry{ID: m.ID, Values: m.Values})
		}
	}
	return out, nil
}

// Pending lists entries delivered to consumer but not acknowledged, with their
// payloads re-fetched by XRANGE. An entry whose payload no longer exists is
// returned with nil Values.
func (r *Redis) Pending(ctx context.Context, stream, group, consumer string, count int64) ([]Entry, error) {
	if !r.Connected() {
		return nil, ErrDisconnected
	}
	summary, err := r.rdb.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, err
	}
	if summary.Count == 0 || summary.Consumers[consumer] == 0 {
		return nil, nil
	}
	pending, err := r.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    group,
		Start:    "-",
		End:      "+",
		Count:    count,
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(pending))
	for _, p := range pending {
		msgs, err := r.rdb.XRangeN(ctx, stream, p.ID, p.ID, 1).Result()
		if err != nil {
			return out, err
		}
		if len(msgs) == 0 {
			out = append(out, Entry{ID: p.ID})
			continue
		}
		out = append(out, Entry{ID: msgs[0].ID, Values: msgs[0].Values})
	}
	return out, nil
}

// Ack acknowledges ids in group.
func (r *Redis) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if !r.Connected() {
		return ErrDisconnected
	}
	return r.rdb.XAck(ctx, stream, group, ids...).Err()
}

// Len returns XLEN of stream.
func (r *Redis) Len(ctx context.Context, stream string) (int64, error) {
	if !r.Connected() {
		return 0, ErrDisconnected
	}
	return r.rdb.XLen(ctx, stream).Result()
}

// PendingCount returns the number of unacknowledged entries in group.
func (r *Redis) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	if !r.Connected() {
		return 0, ErrDisconnected
	}
	p, err := r.rdb.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, err
	}
	return p.Count, nil
}

// Ping checks reachability.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Connected() {
		return ErrDisconnected
	}
	return r.rdb.Ping(ctx).Err()
}
