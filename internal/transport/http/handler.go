package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/hotel-sync/internal/model"
	"github.com/richardliu001/hotel-sync/internal/service"
)

// EventBus is what the handlers need from *service.Bus.
type EventBus interface {
	Publish(ctx context.Context, ev *model.Event) (string, error)
	Health(ctx context.Context) service.HealthReport
}

// AuditReader looks up delivery audit rows.
type AuditReader interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLog, error)
}

func RegisterHandlers(g *gin.RouterGroup, bus EventBus, audit AuditReader) {
	g.POST("/events", publishHandler(bus))
	g.GET("/events/:id/deliveries", deliveriesHandler(audit))
}

func publishHandler(bus EventBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev model.Event
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := bus.Publish(c.Request.Context(), &ev)
		if err != nil {
			c.JSON(publishStatus(err), gin.H{"error": err.Error(), "event_id": ev.EventID})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"delivery_id": id,
			"event_id":    ev.EventID,
			"sync_mode":   ev.SyncMode,
		})
	}
}

func publishStatus(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBrokerAppend):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrSchedulerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func deliveriesHandler(audit AuditReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := audit.ListByEvent(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if rows == nil {
			rows = []model.DeliveryLog{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

func healthHandler(bus EventBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := bus.Health(c.Request.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
