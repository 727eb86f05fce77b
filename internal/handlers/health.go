package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/services"
)

type HealthHandler struct {
	logger *logrus.Logger
	health *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, health *services.HealthService) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		health: health,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := h.health.CheckHealth()

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}

// Ready reports whether the service can take traffic. Degraded still
// counts as ready: the pipeline has fallbacks for every non-critical
// dependency.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.health.CheckHealth()

	if status.Status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ready": true})
}
