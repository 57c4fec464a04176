package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/models"
)

// GetStatus handles the status check
// @Summary API status
// @Description Returns ok while the API is serving requests
// @Tags Status
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /status [get]
func GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
