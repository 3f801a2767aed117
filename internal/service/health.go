package service

import (
	"context"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthReport aggregates broker reachability, broadcast state and armed batches.
type HealthReport struct {
	Status           string    `json:"status"`
	Broker           string    `json:"broker"`
	BrokerError      string    `json:"broker_error,omitempty"`
	Broadcast        string    `json:"broadcast"`
	ScheduledBatches []string  `json:"scheduled_batches"`
	CheckedAt        time.Time `json:"checked_at"`
}

// Healthy is true only when the broker answered.
func (h HealthReport) Healthy() bool { return h.Status == StatusHealthy }

// Health pings the broker with a short timeout and reports the rest from memory.
func (b *Bus) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:           StatusHealthy,
		Broker:           "connected",
		Broadcast:        "disabled",
		ScheduledBatches: b.scheduler.Keys(),
		CheckedAt:        b.now(),
	}
	if b.broadcaster != nil {
		report.Broadcast = "enabled"
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.streams.Ping(pingCtx); err != nil {
		report.Status = StatusUnhealthy
		report.Broker = "unreachable"
		report.BrokerError = err.Error()
	}
	return report
}
