package service

import (
	"context"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broadcast"
	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/deadletter"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// Deps are the collaborators of the integration core. Broadcaster and
// DeadLetter may be nil to disable them.
type Deps struct {
	Streams     broker.Streams
	Broadcaster broadcast.Broadcaster
	Audit       AuditSink
	DeadLetter  deadletter.Sink
	Log         *zap.SugaredLogger
}

// Options tune delivery. Zero values get defaults.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int64
	Block      time.Duration
	// Location is where batch schedules are evaluated; defaults to time.Local.
	Location *time.Location
	// Now and AfterFunc replace the wall clock and timers in tests.
	Now       func() time.Time
	AfterFunc AfterFunc
}

// Bus is the process-wide integration context: build one at startup and
// pass it to everything that publishes or consumes.
type Bus struct {
	streams     broker.Streams
	broadcaster broadcast.Broadcaster
	audit       AuditSink
	deadLetter  deadletter.Sink
	log         *zap.SugaredLogger
	opts        Options
	now         func() time.Time

	publisher *Publisher
	scheduler *Scheduler
}

// NewBus wires publisher and scheduler around deps.
func NewBus(deps Deps, opts Options) *Bus {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	b := &Bus{
		streams:     deps.Streams,
		broadcaster: deps.Broadcaster,
		audit:       deps.Audit,
		deadLetter:  deps.DeadLetter,
		log:         deps.Log,
		opts:        opts,
		now:         opts.Now,
	}
	b.publisher = &Publisher{
		streams:     deps.Streams,
		broadcaster: deps.Broadcaster,
		audit:       deps.Audit,
		log:         deps.Log,
		now:         opts.Now,
	}
	b.scheduler = newScheduler(b.publishBatch, opts.AfterFunc, opts.Now, opts.Location, deps.Log)
	b.publisher.scheduler = b.scheduler
	return b
}

// Publish validates, enriches and dispatches ev. See Publisher.Publish.
func (b *Bus) Publish(ctx context.Context, ev *model.Event) (string, error) {
	return b.publisher.Publish(ctx, ev)
}

func (b *Bus) publishBatch(ctx context.Context, ev *model.Event) (string, error) {
	return b.publisher.publishRealtime(ctx, ev, broker.StreamBatch)
}

// Scheduler exposes the batch scheduler.
func (b *Bus) Scheduler() *Scheduler { return b.scheduler }

// NewConsumer builds a consumer loop for (stream, group, consumer) using the
// bus's retry policy.
func (b *Bus) NewConsumer(stream, group, consumer string, h Handler) *Consumer {
	opts := ConsumerOptions{
		Stream:     stream,
		Group:      group,
		Consumer:   consumer,
		BatchSize:  b.opts.BatchSize,
		Block:      b.opts.Block,
		MaxRetries: b.opts.MaxRetries,
		RetryDelay: b.opts.RetryDelay,
	}
	opts.applyDefaults()
	return &Consumer{
		opts:       opts,
		streams:    b.streams,
		handler:    h,
		audit:      b.audit,
		deadLetter: b.deadLetter,
		log:        b.log,
		now:        b.now,
		sleep:      sleepCtx,
		failures:   make(map[string]int),
	}
}

// Shutdown cancels all batch timers. Consumers stop on their own context or
// when the broker is closed.
func (b *Bus) Shutdown() {
	b.scheduler.Shutdown()
}
