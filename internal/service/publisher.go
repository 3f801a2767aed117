package service

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broadcast"
	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/metrics"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// AuditSink persists delivery audit rows.
type AuditSink interface {
	Record(ctx context.Context, row *model.DeliveryLog) error
}

// Publisher turns validated events into stream appends, broadcasts and audit rows.
type Publisher struct {
	streams     broker.Streams
	broadcaster broadcast.Broadcaster
	audit       AuditSink
	scheduler   *Scheduler
	log         *zap.SugaredLogger
	now         func() time.Time
}

// Publish enriches ev in place and dispatches it by sync mode. Realtime events
// return the stream entry id; batch events return a synthetic batch id and are
// delivered later by the scheduler.
func (p *Publisher) Publish(ctx context.Context, ev *model.Event) (string, error) {
	if err := Enrich(ev, p.now()); err != nil {
		return "", err
	}
	switch ev.SyncMode {
	case model.SyncRealtime:
		if ev.Type == model.TypeAnalytics {
			return "", fmt.Errorf("%w: analytics events are batch only", ErrUnsupportedSyncMode)
		}
		return p.publishRealtime(ctx, ev, broker.StreamEvents)
	case model.SyncBatch:
		if ev.Type != model.TypeAnalytics {
			return "", fmt.Errorf("%w: batch is only for analytics, got %s", ErrUnsupportedSyncMode, ev.Type)
		}
		return p.scheduler.Schedule(ev)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSyncMode, ev.SyncMode)
	}
}

// publishRealtime appends ev to stream. Only the append can fail the call;
// broadcast, critical fan-out and audit are best effort.
func (p *Publisher) publishRealtime(ctx context.Context, ev *model.Event, stream string) (string, error) {
	start := p.now()
	values, err := StreamValues(ev)
	if err != nil {
		return "", err
	}

	id, err := p.streams.Append(ctx, stream, values)
	elapsed := p.now().Sub(start).Milliseconds()
	if err != nil {
		metrics.EventsPublished.WithLabelValues(stream, "failed").Inc()
		p.recordAudit(ctx, auditRow(ev, model.DeliveryFailed, stream, "", elapsed, 0, err, p.now()))
		p.reportFailure(ctx, ev, stream, err)
		return "", fmt.Errorf("%w: %s: %w", ErrBrokerAppend, stream, err)
	}
	metrics.EventsPublished.WithLabelValues(stream, "success").Inc()

	if p.broadcaster != nil {
		p.broadcast(ctx, ev)
	}
	if ev.Priority == model.PriorityCritical {
		_, cerr := p.streams.Append(ctx, broker.StreamCritical, values)
		if cerr == nil {
			metrics.EventsPublished.WithLabelValues(broker.StreamCritical, "success").Inc()
		} else {
			metrics.EventsPublished.WithLabelValues(broker.StreamCritical, "failed").Inc()
		}
		bestEffort(p.log, "critical fan-out", cerr, "event_id", ev.EventID, "stream", broker.StreamCritical)
	}

	p.recordAudit(ctx, auditRow(ev, model.DeliverySuccess, stream, id, elapsed, 0, nil, p.now()))
	p.log.Debugw("event published", "event_id", ev.EventID, "kind", ev.Kind().String(),
		"stream", stream, "delivery_id", id, "tenant_id", ev.TenantID)
	return id, nil
}

func (p *Publisher) broadcast(ctx context.Context, ev *model.Event) {
	msg := broadcast.Message{
		Type:   string(ev.Type),
		Action: string(ev.Action),
		Data:   ev.Data,
		Metadata: broadcast.Metadata{
			EventID:      ev.EventID,
			Timestamp:    ev.Timestamp,
			OriginSystem: ev.OriginSystem,
			Priority:     string(ev.Priority),
		},
	}
	for _, target := range ev.Targets {
		err := p.broadcaster.Send(ctx, target, msg)
		if err != nil {
			metrics.Broadcasts.WithLabelValues("failed").Inc()
		} else {
			metrics.Broadcasts.WithLabelValues("success").Inc()
		}
		bestEffort(p.log, "broadcast", err, "event_id", ev.EventID, "target", target)
	}
}

// reportFailure self-reports a failed append on the error stream.
func (p *Publisher) reportFailure(ctx context.Context, ev *model.Event, stream string, cause error) {
	_, err := p.streams.Append(ctx, broker.StreamErrors, errorValues(ev, stream, cause, p.now()))
	bestEffort(p.log, "error event report", err, "event_id", ev.EventID, "stream", broker.StreamErrors)
}

func (p *Publisher) recordAudit(ctx context.Context, row *model.DeliveryLog) {
	recordAudit(ctx, p.audit, p.log, row)
}

func recordAudit(ctx context.Context, sink AuditSink, log *zap.SugaredLogger, row *model.DeliveryLog) {
	if sink == nil {
		return
	}
	bestEffort(log, "audit write", sink.Record(ctx, row),
		"event_id", row.EventID, "status", string(row.DeliveryStatus))
}

func auditRow(ev *model.Event, status model.DeliveryStatus, stream, deliveryID string,
	elapsedMs int64, retries int, cause error, now time.Time) *model.DeliveryLog {
	row := &model.DeliveryLog{
		EventID:        ev.EventID,
		EventType:      string(ev.Type),
		SourceSystem:   ev.OriginSystem,
		TargetSystems:  append([]string(nil), ev.Targets...),
		DeliveryStatus: status,
		DeliveryTimeMs: elapsedMs,
		RetryCount:     retries,
		Stream:         stream,
		DeliveryID:     deliveryID,
		Timestamp:      now,
	}
	if cause != nil {
		msg := cause.Error()
		row.ErrorMessage = &msg
	}
	return row
}
