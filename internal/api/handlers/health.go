package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthChecker reports per-service health maps keyed by service name
type HealthChecker interface {
	Health() map[string]interface{}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checker   HealthChecker
	version   string
	logger    *logrus.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker, version string, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		version:   version,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetHealth handles general health check
// @Summary Health check
// @Description Get the health status of the API and its dependencies
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *gin.Context) {
	servicesHealth := h.checker.Health()
	now := time.Now()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: now,
		Version:   h.version,
		Services:  make(map[string]models.ServiceInfo, len(servicesHealth)),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	for name, raw := range servicesHealth {
		healthMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		info := models.ServiceInfo{Status: "healthy", LastCheck: now, Details: healthMap}
		if status, ok := healthMap["status"].(string); ok {
			info.Status = status
		}
		if errMsg, ok := healthMap["error"].(string); ok {
			info.Error = errMsg
		}
		response.Services[name] = info

		switch info.Status {
		case "unhealthy":
			response.Status = "unhealthy"
		case "degraded":
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	httpStatus := http.StatusOK
	if response.Status == "unhealthy" {
		h.logger.WithField("request_id", c.GetString("request_id")).Warn("Health check reports unhealthy services")
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, response)
}

// GetLiveness handles the liveness check
// @Summary Liveness check
// @Description Check if the API is alive and responding
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	// if we can respond, we're alive
	c.JSON(http.StatusOK, gin.H{
		"alive":     true,
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"version":   h.version,
	})
}
