package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/hotel-sync/internal/config"
	"go.uber.org/zap"
)

// NewRouter builds the operations surface: event ingestion, audit lookup,
// health and metrics. Health and metrics are not rate limited.
func NewRouter(bus EventBus, audit AuditReader, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))

	r.GET("/healthz", healthHandler(bus))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(v1, bus, audit)
	return r
}
