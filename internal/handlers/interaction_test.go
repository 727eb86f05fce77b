package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/internal/services"
)

func testTracker(t *testing.T) (*services.InteractionTrackerService, pgxmock.PgxPoolIface) {
	t.Helper()

	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := &config.RecommendationConfig{
		LocalHistoryLimit:     1000,
		PreferenceReadLimit:   100,
		TrendingWindow:        7 * 24 * time.Hour,
		AnonymousPriceCeiling: 3000,
	}

	return services.NewInteractionTrackerService(mockDB, nil, cfg, logger), mockDB
}

func testRouter(handler *InteractionHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	router.POST("/interactions", handler.Track)
	router.GET("/interactions/trending", handler.GetTrending)
	router.GET("/users/:userId/analytics", handler.GetAnalytics)
	return router
}

func TestInteractionHandler_Track(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	t.Run("anonymous track is accepted without persistence", func(t *testing.T) {
		tracker, mockDB := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "")

		body, _ := json.Marshal(map[string]interface{}{
			"product_id":       "p1",
			"interaction_type": "view",
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("authenticated track persists", func(t *testing.T) {
		tracker, mockDB := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "user-1")

		mockDB.ExpectExec("INSERT INTO user_interactions").
			WithArgs(pgxmock.AnyArg(), "user-1", "p1", "purchase",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		body, _ := json.Marshal(map[string]interface{}{
			"product_id":       "p1",
			"interaction_type": "purchase",
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("persistence outage still accepts the event", func(t *testing.T) {
		tracker, mockDB := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "user-1")

		mockDB.ExpectExec("INSERT INTO user_interactions").
			WithArgs(pgxmock.AnyArg(), "user-1", "p1", "view",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		body, _ := json.Marshal(map[string]interface{}{
			"product_id":       "p1",
			"interaction_type": "view",
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		tracker, _ := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "user-1")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader([]byte("{not json")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown interaction type is rejected", func(t *testing.T) {
		tracker, _ := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "user-1")

		body, _ := json.Marshal(map[string]interface{}{
			"product_id":       "p1",
			"interaction_type": "teleport",
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_FAILED", resp["error"]["code"])
	})
}

func TestInteractionHandler_GetTrending(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	t.Run("store outage yields empty list, not error", func(t *testing.T) {
		tracker, mockDB := testTracker(t)
		router := testRouter(NewInteractionHandler(logger, tracker), "")

		mockDB.ExpectQuery("SELECT").
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/interactions/trending", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Zero(t, resp.Count)
	})
}
