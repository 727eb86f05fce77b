package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/services"
)

const defaultRecommendationCount = 10

type RecommendationHandler struct {
	logger         *logrus.Logger
	recommendation *services.RecommendationService
	tracker        *services.InteractionTrackerService
	catalog        *services.CatalogService
}

func NewRecommendationHandler(logger *logrus.Logger, recommendation *services.RecommendationService,
	tracker *services.InteractionTrackerService, catalog *services.CatalogService) *RecommendationHandler {

	return &RecommendationHandler{
		logger:         logger,
		recommendation: recommendation,
		tracker:        tracker,
		catalog:        catalog,
	}
}

// GetRecommendations runs the personalization pipeline for the user.
// The pipeline degrades internally, so this endpoint only fails on an
// empty catalog.
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	userID := c.Param("userId")
	count := intQuery(c, "count", defaultRecommendationCount)

	products := h.catalog.Products()
	if len(products) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":    "CATALOG_UNAVAILABLE",
				"message": "Product catalog is not loaded",
			},
		})
		return
	}

	prefs, err := h.tracker.GetUserPreferences(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load preferences for recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to load user preferences",
			},
		})
		return
	}

	recs := h.recommendation.GenerateRecommendations(c.Request.Context(), userID, products, prefs, count)

	c.JSON(http.StatusOK, gin.H{
		"data": services.RecommendationResponseFor(userID, recs),
	})
}

// GetTrending returns catalog-wide trending recommendations.
func (h *RecommendationHandler) GetTrending(c *gin.Context) {
	count := intQuery(c, "count", defaultRecommendationCount)

	recs := h.recommendation.GetTrendingProducts(c.Request.Context(), h.catalog.Products(), count)

	c.JSON(http.StatusOK, gin.H{
		"data":  recs,
		"count": len(recs),
	})
}

// GetSimilar returns products similar to the one in the path.
func (h *RecommendationHandler) GetSimilar(c *gin.Context) {
	productID := c.Param("productId")
	count := intQuery(c, "count", defaultRecommendationCount)

	target, ok := h.catalog.ProductByID(productID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "PRODUCT_NOT_FOUND",
				"message": "Product not found",
			},
		})
		return
	}

	recs := h.recommendation.GetSimilarProducts(c.Request.Context(), target, h.catalog.Products(), count)

	c.JSON(http.StatusOK, gin.H{
		"data":  recs,
		"count": len(recs),
	})
}

// intQuery parses a positive int query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
