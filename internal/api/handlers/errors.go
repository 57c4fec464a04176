package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/models"
)

// genericDetail is reported for errors whose message must not reach callers
const genericDetail = "Erro interno inesperado."

// statusClientClosedRequest is logged when the caller disconnects before a result exists
const statusClientClosedRequest = 499

func respondError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Detail:    detail,
		Code:      code,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
