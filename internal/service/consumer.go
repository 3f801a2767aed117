package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/deadletter"
	"github.com/richardliu001/hotel-sync/internal/metrics"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// Handler processes one delivered event. It must tolerate seeing the same
// entry more than once.
type Handler func(ctx context.Context, ev *model.Event, entryID string) error

// ConsumerOptions configure one (stream, group, consumer) loop.
type ConsumerOptions struct {
	Stream     string
	Group      string
	Consumer   string
	BatchSize  int64
	Block      time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// PauseOnError is the wait after a failed poll.
	PauseOnError time.Duration
	// PendingBatch bounds how many pending entries one drain pass re-offers.
	PendingBatch int64
}

func (o *ConsumerOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.Block <= 0 {
		o.Block = time.Second
	}
	if o.PauseOnError <= 0 {
		o.PauseOnError = 5 * time.Second
	}
	if o.PendingBatch <= 0 {
		o.PendingBatch = 100
	}
}

// Consumer is a single-threaded poll loop over one stream in one consumer group.
type Consumer struct {
	opts       ConsumerOptions
	streams    broker.Streams
	handler    Handler
	audit      AuditSink
	deadLetter deadletter.Sink
	log        *zap.SugaredLogger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) bool

	// failures counts handler failures per entry id; owned by the loop goroutine.
	failures map[string]int
}

// Run ensures the group exists, then alternates pending redelivery and
// polling until the broker is disconnected or ctx is done. Only a failed
// group creation is returned; everything else is logged and audited.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.log.With("stream", c.opts.Stream, "group", c.opts.Group, "consumer", c.opts.Consumer)
	if err := c.streams.EnsureGroup(ctx, c.opts.Stream, c.opts.Group); err != nil {
		log.Errorw("consumer group init failed", "err", err)
		return fmt.Errorf("ensure group %s on %s: %w", c.opts.Group, c.opts.Stream, err)
	}
	log.Infow("consumer started")
	defer log.Infow("consumer stopped")

	for c.running(ctx) {
		c.drainPending(ctx, log)
		if !c.running(ctx) {
			return nil
		}

		entries, err := c.streams.ReadGroup(ctx, c.opts.Stream, c.opts.Group, c.opts.Consumer,
			c.opts.BatchSize, c.opts.Block)
		if err != nil {
			if !c.running(ctx) {
				return nil
			}
			log.Warnw("stream read failed, pausing", "err", err, "pause", c.opts.PauseOnError)
			c.sleep(ctx, c.opts.PauseOnError)
			continue
		}
		for _, e := range entries {
			c.handle(ctx, log, e)
		}
	}
	return nil
}

func (c *Consumer) running(ctx context.Context) bool {
	return ctx.Err() == nil && c.streams.Connected()
}

// drainPending re-offers entries this consumer received but never acknowledged.
func (c *Consumer) drainPending(ctx context.Context, log *zap.SugaredLogger) {
	entries, err := c.streams.Pending(ctx, c.opts.Stream, c.opts.Group, c.opts.Consumer, c.opts.PendingBatch)
	if err != nil {
		if c.running(ctx) {
			log.Warnw("pending inspection failed", "err", err)
		}
		return
	}
	for _, e := range entries {
		if !c.running(ctx) {
			return
		}
		c.handle(ctx, log, e)
	}
}

func (c *Consumer) handle(ctx context.Context, log *zap.SugaredLogger, e broker.Entry) {
	if e.Missing() {
		log.Warnw("pending entry no longer in stream, acknowledging", "entry_id", e.ID)
		c.ack(ctx, log, e.ID)
		delete(c.failures, e.ID)
		return
	}

	// in-flight handlers finish even when shutdown cancels ctx
	hctx := context.WithoutCancel(ctx)
	start := c.now()
	ev, err := DecodeEntry(e.Values)
	if err == nil {
		err = c.handler(hctx, ev, e.ID)
	} else {
		ev = undecodable(e)
	}
	elapsed := c.now().Sub(start)
	metrics.HandlerDuration.WithLabelValues(c.opts.Stream).Observe(float64(elapsed.Milliseconds()))

	if err == nil {
		prior := c.failures[e.ID]
		delete(c.failures, e.ID)
		c.ack(ctx, log, e.ID)
		c.record(hctx, ev, e.ID, model.DeliverySuccess, elapsed, prior, nil)
		return
	}

	c.failures[e.ID]++
	retries := c.failures[e.ID]
	if retries <= c.opts.MaxRetries {
		log.Warnw("handler failed, will retry", "entry_id", e.ID, "event_id", ev.EventID,
			"retry_count", retries, "err", err)
		c.record(hctx, ev, e.ID, model.DeliveryRetrying, elapsed, retries, err)
		c.sleep(ctx, c.opts.RetryDelay*time.Duration(retries))
		return
	}

	log.Errorw("handler failed permanently, giving up", "entry_id", e.ID, "event_id", ev.EventID,
		"retry_count", retries, "err", err)
	delete(c.failures, e.ID)
	c.ack(ctx, log, e.ID)
	c.record(hctx, ev, e.ID, model.DeliveryFailed, elapsed, retries, err)
	c.sendDeadLetter(hctx, log, ev, e, retries, err)
}

func (c *Consumer) ack(ctx context.Context, log *zap.SugaredLogger, id string) {
	// An ack lost here leaves the entry pending; it is re-offered on the next drain.
	bestEffort(log, "ack", c.streams.Ack(context.WithoutCancel(ctx), c.opts.Stream, c.opts.Group, id), "entry_id", id)
}

func (c *Consumer) record(ctx context.Context, ev *model.Event, entryID string, status model.DeliveryStatus,
	elapsed time.Duration, retries int, cause error) {
	metrics.Deliveries.WithLabelValues(c.opts.Stream, string(status)).Inc()
	row := auditRow(ev, status, c.opts.Stream, entryID, elapsed.Milliseconds(), retries, cause, c.now())
	row.TargetSystems = []string{c.opts.Group}
	recordAudit(ctx, c.audit, c.log, row)
}

func (c *Consumer) sendDeadLetter(ctx context.Context, log *zap.SugaredLogger, ev *model.Event,
	e broker.Entry, retries int, cause error) {
	if c.deadLetter == nil {
		return
	}
	var original json.RawMessage
	if s, ok := e.Values["event_data"].(string); ok && json.Valid([]byte(s)) {
		original = json.RawMessage(s)
	}
	rec := deadletter.Record{
		EntryID:      e.ID,
		Stream:       c.opts.Stream,
		Group:        c.opts.Group,
		Consumer:     c.opts.Consumer,
		EventID:      ev.EventID,
		EventType:    string(ev.Type),
		TenantID:     ev.TenantID,
		Original:     original,
		ErrorSummary: cause.Error(),
		RetryCount:   retries,
		LastErrorAt:  c.now(),
	}
	bestEffort(log, "dead-letter export", c.deadLetter.Send(ctx, rec), "entry_id", e.ID)
}

// undecodable builds a placeholder so a malformed entry still gets audited.
func undecodable(e broker.Entry) *model.Event {
	ev := &model.Event{EventID: e.ID}
	if s, ok := e.Values["event_type"].(string); ok {
		ev.Type = model.EventType(s)
	}
	if s, ok := e.Values["origin_system"].(string); ok {
		ev.OriginSystem = s
	}
	if s, ok := e.Values["tenant_id"].(string); ok {
		ev.TenantID = s
	}
	return ev
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
