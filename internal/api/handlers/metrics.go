package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/services"
)

// MetricsHandler serves the prometheus registry
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *services.Metrics) *MetricsHandler {
	return &MetricsHandler{handler: metrics.Handler()}
}

// GetMetrics handles metrics request
// @Summary Prometheus metrics
// @Description HTTP, CNDT workflow, CAPTCHA, gate, CND and cache metrics in the prometheus text format
// @Tags Metrics
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	h.handler.ServeHTTP(c.Writer, c.Request)
}
