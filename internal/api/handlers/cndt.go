package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/nexconsult/certidao-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// CNDTHandler handles CNDT issuance requests
type CNDTHandler struct {
	service services.CNDTServiceInterface
	strict  bool
	logger  *logrus.Logger
}

// NewCNDTHandler creates a new CNDT handler. With strict set, CNPJ check digits
// are verified before the portal is contacted.
func NewCNDTHandler(service services.CNDTServiceInterface, strict bool, logger *logrus.Logger) *CNDTHandler {
	return &CNDTHandler{
		service: service,
		strict:  strict,
		logger:  logger,
	}
}

// Generate handles CNDT issuance
// @Summary Consulta e extrai texto de uma certidão CNDT
// @Description Emits the CNDT on the TST portal, solving its CAPTCHA, and returns the text of the downloaded PDF
// @Tags CNDT
// @Accept json
// @Produce json
// @Param request body models.CndtRequest true "CNPJ and file identifier"
// @Success 200 {object} models.CndtResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /consulta/cndt [post]
func (h *CNDTHandler) Generate(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	var req models.CndtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Corpo da requisição inválido: cnpj e file_id são obrigatórios.")
		return
	}
	if !utils.IsSafeFileID(req.FileID) {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_ID", "file_id deve ser um nome de arquivo simples.")
		return
	}
	if h.strict && !utils.ValidateCNPJ(utils.CleanCNPJ(req.CNPJ), true) {
		respondError(c, http.StatusBadRequest, "INVALID_CNPJ", "CNPJ inválido.")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"cnpj":       req.CNPJ,
		"file_id":    req.FileID,
	})
	log.Info("Starting CNDT request")

	text, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		log = log.WithError(err).WithField("duration", time.Since(start))
		// Step timeouts wrap context.DeadlineExceeded too; only the request's own
		// context says whether the client went away.
		switch {
		case errors.Is(err, services.ErrCndt):
			log.Error("CNDT business failure")
			respondError(c, http.StatusInternalServerError, "CNDT_ERROR", err.Error())
		case c.Request.Context().Err() != nil:
			log.Warn("Client left before the CNDT was issued")
			c.AbortWithStatus(statusClientClosedRequest)
		default:
			log.Error("Unexpected CNDT failure")
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", genericDetail)
		}
		return
	}

	log.WithField("duration", time.Since(start)).Info("CNDT request completed")
	c.JSON(http.StatusOK, models.CndtResponse{TextoPDF: text})
}
