// Package httpapi exposes the checker over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 365
)

// Service is the part of *uptime.Checker the handlers use.
type Service interface {
	RunCycle(ctx context.Context) (uptime.CycleSummary, error)
	Status() uptime.SchedulerStatus
	Stats(ctx context.Context, systemID uint) (uptime.UptimeStats, error)
	Trend(ctx context.Context, systemID uint, days int) ([]uptime.TrendPoint, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the API under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	hc := rg.Group("/health-check")
	hc.POST("/run", h.runCycle)
	hc.GET("/status", h.status)

	systems := rg.Group("/systems")
	systems.GET("/:id/uptime", h.uptimeStats)
	systems.GET("/:id/uptime/trend", h.uptimeTrend)
}

// NewRouter builds the full engine: the API under /api, liveness on
// /health and the metrics of gatherer on /metrics (skipped when nil).
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func (h *Handler) runCycle(c *gin.Context) {
	summary, err := h.svc.RunCycle(c.Request.Context())
	if errors.Is(err, uptime.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A health check cycle is already running"})
		return
	}
	if err != nil {
		h.logger.Error("manual health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Health check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Health check completed",
		"summary": summary,
	})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *Handler) uptimeStats(c *gin.Context) {
	id, ok := systemID(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) uptimeTrend(c *gin.Context) {
	id, ok := systemID(c)
	if !ok {
		return
	}
	days := defaultTrendDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = n
	}
	trend, err := h.svc.Trend(c.Request.Context(), id, days)
	if err != nil {
		h.fail(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"system_id": id, "days": days, "trend": trend})
}

func (h *Handler) fail(c *gin.Context, id uint, err error) {
	if errors.Is(err, uptime.ErrSystemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "System not found"})
		return
	}
	h.logger.Error("uptime query failed", zap.Uint("system_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load uptime data"})
}

func systemID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system id"})
		return 0, false
	}
	return uint(n), true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
