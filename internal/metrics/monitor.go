package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StreamStats is what the monitor needs from the broker.
type StreamStats interface {
	Len(ctx context.Context, stream string) (int64, error)
	PendingCount(ctx context.Context, stream, group string) (int64, error)
}

// Monitor samples stream depth and pending counts on an interval.
type Monitor struct {
	stats    StreamStats
	streams  []string
	group    string
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewMonitor returns a monitor over streams. An empty group skips pending counts.
func NewMonitor(stats StreamStats, streams []string, group string, interval time.Duration, log *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{stats: stats, streams: streams, group: group, interval: interval, log: log}
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample records one reading per stream.
func (m *Monitor) Sample(ctx context.Context) {
	for _, s := range m.streams {
		n, err := m.stats.Len(ctx, s)
		if err != nil {
			m.log.Debugw("stream length unavailable", "stream", s, "err", err)
			continue
		}
		StreamLength.WithLabelValues(s).Set(float64(n))

		if m.group == "" {
			continue
		}
		p, err := m.stats.PendingCount(ctx, s, m.group)
		if err != nil {
			m.log.Debugw("pending count unavailable", "stream", s, "group", m.group, "err", err)
			continue
		}
		PendingEntries.WithLabelValues(s, m.group).Set(float64(p))
	}
}
