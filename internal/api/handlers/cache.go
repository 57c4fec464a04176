package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/nexconsult/certidao-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	cacheService services.CNDCacheStore
	logger       *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheService services.CNDCacheStore, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		logger:       logger,
	}
}

// GetStats handles cache statistics request
// @Summary Get cache statistics
// @Description Get cache statistics for the CND lookup cache
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":     h.cacheService.Stats(c.Request.Context()),
		"timestamp": time.Now(),
		"health":    h.cacheService.Health(),
	})
}

// DeleteCND handles deletion of one cached CND lookup
// @Summary Delete a cached CND
// @Description Drop the cached CND lookup for a CNPJ so the next lookup reaches Dataprev
// @Tags Cache
// @Param cnpj path string true "CNPJ, 14 digits only"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/cnd/{cnpj} [delete]
func (h *CacheHandler) DeleteCND(c *gin.Context) {
	requestID := c.GetString("request_id")
	cnpj := c.Param("cnpj")

	if !utils.HasCNPJShape(cnpj) {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_CNPJ", "O parâmetro cnpj deve conter exatamente 14 dígitos numéricos.")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"cnpj":       cnpj,
	})

	removed, err := h.cacheService.Evict(c.Request.Context(), cnpj)
	if err != nil {
		log.WithError(err).Error("Failed to delete CND from cache")
		respondError(c, http.StatusInternalServerError, "CACHE_DELETE_ERROR", "Falha ao remover do cache.")
		return
	}
	if !removed {
		respondError(c, http.StatusNotFound, "CND_NOT_IN_CACHE", "CND não está no cache.")
		return
	}

	log.Info("CND deleted from cache")
	c.JSON(http.StatusOK, gin.H{
		"message":   "CND removida do cache",
		"cnpj":      utils.FormatCNPJ(cnpj),
		"timestamp": time.Now(),
		"success":   true,
	})
}
