package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/middleware"
	"github.com/veltrix/shoprec/internal/services"
	"github.com/veltrix/shoprec/pkg/models"
)

type InteractionHandler struct {
	logger    *logrus.Logger
	tracker   *services.InteractionTrackerService
	validator *validator.Validate
}

func NewInteractionHandler(logger *logrus.Logger, tracker *services.InteractionTrackerService) *InteractionHandler {
	return &InteractionHandler{
		logger:    logger,
		tracker:   tracker,
		validator: validator.New(),
	}
}

// Track records one interaction event. Anonymous requests are accepted
// and dropped by the tracker, so the response is 202 either way.
func (h *InteractionHandler) Track(c *gin.Context) {
	var req models.TrackInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind interaction request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.WithError(err).Error("Validation failed for interaction")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.tracker.TrackInteraction(c.Request.Context(), userID, req); err != nil {
		h.logger.WithError(err).Error("Failed to track interaction")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "TRACKING_FAILED",
				"message": "Failed to track interaction",
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Interaction accepted",
	})
}

// GetPreferences returns the preference aggregate for the requested
// user. An empty id resolves to anonymous defaults.
func (h *InteractionHandler) GetPreferences(c *gin.Context) {
	userID := c.Param("userId")

	prefs, err := h.tracker.GetUserPreferences(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to load preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": prefs})
}

func (h *InteractionHandler) UpdatePreferences(c *gin.Context) {
	userID := c.Param("userId")

	var update models.PreferenceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.WithError(err).Error("Failed to bind preference update")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if update.PriceRange != nil && update.PriceRange.Min > update.PriceRange.Max {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_PRICE_RANGE",
				"message": "Price range min must not exceed max",
			},
		})
		return
	}

	if err := h.tracker.UpdateUserPreferences(c.Request.Context(), userID, update); err != nil {
		h.logger.WithError(err).Error("Failed to update preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to update preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated"})
}

// GetTrending returns interaction-weighted trending product ids.
func (h *InteractionHandler) GetTrending(c *gin.Context) {
	limit := intQuery(c, "count", 10)
	trending := h.tracker.GetTrendingProducts(c.Request.Context(), limit)

	c.JSON(http.StatusOK, gin.H{
		"data":  trending,
		"count": len(trending),
	})
}

// GetAnalytics returns the locally buffered analytics for the user.
func (h *InteractionHandler) GetAnalytics(c *gin.Context) {
	userID := c.Param("userId")
	analytics := h.tracker.GetUserAnalytics(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{"data": analytics})
}

// ExportData returns the locally buffered state for the user.
func (h *InteractionHandler) ExportData(c *gin.Context) {
	userID := c.Param("userId")
	export := h.tracker.ExportUserData(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{"data": export})
}

// ClearData erases the user's data from both storage tiers.
func (h *InteractionHandler) ClearData(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.tracker.ClearUserData(c.Request.Context(), userID); err != nil {
		h.logger.WithError(err).Error("Failed to clear user data")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "CLEAR_FAILED",
				"message": "User data was cleared locally but remote deletion failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User data cleared"})
}
