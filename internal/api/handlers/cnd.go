package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/nexconsult/certidao-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// CNDHandler handles CND lookups
type CNDHandler struct {
	service services.CNDServiceInterface
	strict  bool
	logger  *logrus.Logger
}

// NewCNDHandler creates a new CND handler
func NewCNDHandler(service services.CNDServiceInterface, strict bool, logger *logrus.Logger) *CNDHandler {
	return &CNDHandler{
		service: service,
		strict:  strict,
		logger:  logger,
	}
}

// Lookup handles CND lookups
// @Summary Consulta uma Certidão Negativa de Débitos (CND)
// @Description Looks up the CND of an establishment on the Dataprev site
// @Tags CND
// @Produce json
// @Param cnpj query string true "CNPJ, 14 digits only" example(00000000000191)
// @Success 200 {object} models.CndResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /consulta/cnd [get]
func (h *CNDHandler) Lookup(c *gin.Context) {
	start := time.Now()
	cnpj := c.Query("cnpj")

	if !utils.ValidateCNPJ(cnpj, h.strict) {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_CNPJ", "O parâmetro cnpj deve conter exatamente 14 dígitos numéricos.")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"cnpj":       cnpj,
	})

	result, err := h.service.Lookup(c.Request.Context(), cnpj)
	if err != nil {
		log = log.WithError(err).WithField("duration", time.Since(start))
		switch {
		case errors.Is(err, services.ErrCNDNotFound):
			log.Info("CND not found")
			respondError(c, http.StatusNotFound, "CND_NOT_FOUND", err.Error())
		case errors.Is(err, services.ErrCNDUnavailable):
			log.Warn("Dataprev unavailable")
			respondError(c, http.StatusServiceUnavailable, "CND_UNAVAILABLE", err.Error())
		default:
			log.Error("Unexpected CND failure")
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", genericDetail)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
