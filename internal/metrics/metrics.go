package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_sync_events_published_total",
		Help: "Stream appends, labelled by stream and outcome.",
	}, []string{"stream", "status"})

	BatchesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hotel_sync_batches_scheduled_total",
		Help: "Analytics events accepted by the batch scheduler.",
	})

	BatchFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_sync_batch_firings_total",
		Help: "Batch timer firings, labelled by outcome.",
	}, []string{"status"})

	ArmedSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hotel_sync_armed_schedules",
		Help: "Currently armed batch schedule timers.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_sync_broadcasts_total",
		Help: "Broadcast sends per target, labelled by outcome.",
	}, []string{"status"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_sync_deliveries_total",
		Help: "Consumer handler outcomes, labelled by stream and delivery status.",
	}, []string{"stream", "status"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hotel_sync_handler_duration_ms",
		Help:    "Consumer handler latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"stream"})

	StreamLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hotel_sync_stream_length",
		Help: "XLEN of each monitored stream.",
	}, []string{"stream"})

	PendingEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hotel_sync_pending_entries",
		Help: "Unacknowledged entries per stream and consumer group.",
	}, []string{"stream", "group"})
)
