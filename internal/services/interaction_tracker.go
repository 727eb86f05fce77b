package services

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/stat"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/pkg/models"
)

// AnonymousUserID is the identity used when no user can be resolved
// for a preference read.
const AnonymousUserID = "anonymous"

// Intent weights for trending aggregation. A purchase counts ten times
// a view.
var interactionWeights = map[string]float64{
	models.InteractionView:        1,
	models.InteractionLike:        3,
	models.InteractionWishlistAdd: 2,
	models.InteractionCartAdd:     5,
	models.InteractionPurchase:    10,
}

// eventPublisher decouples the tracker from the Kafka writer so it can
// run without a broker and tests can capture published events.
type eventPublisher interface {
	Publish(ctx context.Context, event models.UserInteraction) error
}

// InteractionTrackerService records shopper behavior and serves the
// preference and analytics reads built on it. Persistence degrades
// through failoverStore; the tracker itself never fails a track call.
type InteractionTrackerService struct {
	store     interactionStore
	local     *memoryStore
	publisher eventPublisher
	config    *config.RecommendationConfig
	logger    *logrus.Logger
	sessionID string
}

func NewInteractionTrackerService(db PostgresPool, publisher eventPublisher,
	cfg *config.RecommendationConfig, logger *logrus.Logger) *InteractionTrackerService {

	local := newMemoryStore(cfg.LocalHistoryLimit)
	remote := newPostgresStore(db, cfg.AnonymousPriceCeiling, logger)

	return &InteractionTrackerService{
		store:     newFailoverStore(remote, local, logger),
		local:     local,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		sessionID: newSessionID(),
	}
}

// newSessionID returns a short random token. It only needs to be
// distinct across concurrent service instances, not unguessable.
func newSessionID() string {
	return "session_" + strconv.FormatInt(time.Now().UnixMilli(), 36) +
		strconv.FormatInt(rand.Int63n(1<<31), 36)
}

// SessionID returns the tracker's session token, assigned once at
// construction.
func (s *InteractionTrackerService) SessionID() string {
	return s.sessionID
}

// TrackInteraction records one event. With no resolvable user it is a
// silent no-op: anonymous browsing must never error or persist. A
// persistence failure is absorbed by the store's local fallback, and
// event publishing is best-effort on top of that.
func (s *InteractionTrackerService) TrackInteraction(ctx context.Context, userID string, req models.TrackInteractionRequest) error {
	if userID == "" || userID == AnonymousUserID {
		s.logger.WithField("product_id", req.ProductID).
			Warn("No user identity, interaction not tracked")
		return nil
	}

	event := models.UserInteraction{
		ID:              uuid.New(),
		UserID:          userID,
		ProductID:       req.ProductID,
		InteractionType: req.InteractionType,
		Timestamp:       time.Now(),
		SessionID:       s.sessionID,
		Metadata:        normalizeMetadata(req.Metadata),
	}

	if err := s.store.SaveInteraction(ctx, event); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":    event.UserID,
				"product_id": event.ProductID,
			}).Warn("Failed to publish interaction event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":          event.UserID,
		"product_id":       event.ProductID,
		"interaction_type": event.InteractionType,
	}).Debug("Interaction tracked")

	return nil
}

// normalizeMetadata NFC-normalizes string values so equal-looking keys
// like category names compare equal regardless of the client's Unicode
// composition.
func normalizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}

	normalized := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		if str, ok := value.(string); ok {
			normalized[norm.NFC.String(key)] = norm.NFC.String(str)
			continue
		}
		normalized[norm.NFC.String(key)] = value
	}
	return normalized
}

// GetUserPreferences resolves the target identity and assembles the
// preference aggregate: the stored preference row (or defaults) plus
// the user's most recent interactions. Reads degrade to local state
// through the store.
func (s *InteractionTrackerService) GetUserPreferences(ctx context.Context, userID string) (*models.UserPreference, error) {
	if userID == "" {
		userID = AnonymousUserID
	}

	pref := s.defaultPreference(userID)
	if userID == AnonymousUserID {
		return pref, nil
	}

	stored, err := s.store.Preference(ctx, userID)
	if err == nil && stored != nil {
		stored.UserID = userID
		pref = stored
	}

	history, err := s.store.RecentInteractions(ctx, userID, s.config.PreferenceReadLimit)
	if err == nil {
		pref.InteractionHistory = history
	}

	return pref, nil
}

func (s *InteractionTrackerService) defaultPreference(userID string) *models.UserPreference {
	return &models.UserPreference{
		UserID:              userID,
		PreferredCategories: []string{},
		PreferredBrands:     []string{},
		PriceRange:          models.PriceRange{Min: 0, Max: s.config.AnonymousPriceCeiling},
		PreferredFeatures:   []string{},
		LastUpdated:         time.Now(),
	}
}

// UpdateUserPreferences applies a partial preference update. String
// lists are NFC-normalized before storage.
func (s *InteractionTrackerService) UpdateUserPreferences(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	if userID == "" || userID == AnonymousUserID {
		s.logger.Warn("No user identity, preference update not stored")
		return nil
	}

	update.PreferredCategories = normalizeStrings(update.PreferredCategories)
	update.PreferredBrands = normalizeStrings(update.PreferredBrands)
	update.PreferredFeatures = normalizeStrings(update.PreferredFeatures)

	return s.store.UpsertPreference(ctx, userID, update)
}

func normalizeStrings(values []string) []string {
	if values == nil {
		return nil
	}
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = norm.NFC.String(v)
	}
	return normalized
}

// GetTrendingProducts aggregates recent interactions across all users
// into intent-weighted product scores, highest first. Any store
// failure yields an empty list, never an error.
func (s *InteractionTrackerService) GetTrendingProducts(ctx context.Context, limit int) []models.TrendingProduct {
	since := time.Now().Add(-s.config.TrendingWindow)

	interactions, err := s.store.InteractionsSince(ctx, since)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read trending window")
		return []models.TrendingProduct{}
	}

	scores := make(map[string]float64)
	for _, event := range interactions {
		weight, ok := interactionWeights[event.InteractionType]
		if !ok {
			weight = 1
		}
		scores[event.ProductID] += weight
	}

	trending := make([]models.TrendingProduct, 0, len(scores))
	for productID, score := range scores {
		trending = append(trending, models.TrendingProduct{ProductID: productID, Score: score})
	}

	sort.Slice(trending, func(i, j int) bool {
		if trending[i].Score != trending[j].Score {
			return trending[i].Score > trending[j].Score
		}
		return trending[i].ProductID < trending[j].ProductID
	})

	if limit > 0 && len(trending) > limit {
		trending = trending[:limit]
	}

	return trending
}

// GetUserAnalytics aggregates the locally held history only. It is a
// diagnostic view over what this process has buffered, not a full
// account of the remote store.
func (s *InteractionTrackerService) GetUserAnalytics(ctx context.Context, userID string) *models.UserAnalytics {
	interactions, _ := s.local.RecentInteractions(ctx, userID, 0)

	analytics := &models.UserAnalytics{
		UserID:            userID,
		InteractionCounts: make(map[string]int),
		CategoryViews:     make(map[string]int),
	}

	var durations []float64
	weekAgo := time.Now().AddDate(0, 0, -7)

	for _, event := range interactions {
		analytics.InteractionCounts[event.InteractionType]++

		if event.InteractionType == models.InteractionView {
			if category, ok := event.Metadata["category"].(string); ok && category != "" {
				analytics.CategoryViews[category]++
			}
		}

		if duration, ok := event.Metadata["duration"].(float64); ok {
			durations = append(durations, duration)
		}

		if !event.Timestamp.Before(weekAgo) {
			analytics.RecentActivity++
		}
	}

	if len(durations) > 0 {
		analytics.AvgSessionDuration = stat.Mean(durations, nil)
	}

	return analytics
}

// ClearUserData erases the user from both the remote store and the
// local fallback. The local side always clears; a remote failure is
// surfaced so callers know erasure is incomplete.
func (s *InteractionTrackerService) ClearUserData(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.store.DeleteUserData(ctx, userID)
}

// ExportUserData returns the locally buffered state for the user.
func (s *InteractionTrackerService) ExportUserData(ctx context.Context, userID string) *models.UserDataExport {
	interactions, _ := s.local.RecentInteractions(ctx, userID, 0)
	pref, _ := s.local.Preference(ctx, userID)

	return &models.UserDataExport{
		UserID:       userID,
		Interactions: interactions,
		Preference:   pref,
		ExportedAt:   time.Now(),
	}
}
