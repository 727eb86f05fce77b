package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/pkg/models"
)

// PostgresPool is the subset of pgxpool.Pool the stores use, so tests
// can substitute pgxmock.
type PostgresPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// interactionStore is the persistence contract shared by the remote
// store, the local fallback and the failover wrapper. A nil preference
// with a nil error means "no row for this user".
type interactionStore interface {
	SaveInteraction(ctx context.Context, event models.UserInteraction) error
	RecentInteractions(ctx context.Context, userID string, limit int) ([]models.UserInteraction, error)
	InteractionsSince(ctx context.Context, since time.Time) ([]models.UserInteraction, error)
	Preference(ctx context.Context, userID string) (*models.UserPreference, error)
	UpsertPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error
	DeleteUserData(ctx context.Context, userID string) error
}

// postgresStore persists interactions and preference rows in
// PostgreSQL.
type postgresStore struct {
	db              PostgresPool
	defaultPriceMax float64
	logger          *logrus.Logger
}

func newPostgresStore(db PostgresPool, defaultPriceMax float64, logger *logrus.Logger) *postgresStore {
	return &postgresStore{
		db:              db,
		defaultPriceMax: defaultPriceMax,
		logger:          logger,
	}
}

func (s *postgresStore) SaveInteraction(ctx context.Context, event models.UserInteraction) error {
	query := `
		INSERT INTO user_interactions (id, user_id, product_id, interaction_type, timestamp, session_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		event.ID, event.UserID, event.ProductID, event.InteractionType,
		event.Timestamp, event.SessionID, event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	return nil
}

func (s *postgresStore) RecentInteractions(ctx context.Context, userID string, limit int) ([]models.UserInteraction, error) {
	query := `
		SELECT id, user_id, product_id, interaction_type, timestamp, session_id, metadata
		FROM user_interactions
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

func (s *postgresStore) InteractionsSince(ctx context.Context, since time.Time) ([]models.UserInteraction, error) {
	query := `
		SELECT id, user_id, product_id, interaction_type, timestamp, session_id, metadata
		FROM user_interactions
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction window: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

func scanInteractions(rows pgx.Rows) ([]models.UserInteraction, error) {
	var interactions []models.UserInteraction
	for rows.Next() {
		var event models.UserInteraction
		err := rows.Scan(&event.ID, &event.UserID, &event.ProductID,
			&event.InteractionType, &event.Timestamp, &event.SessionID, &event.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}

	return interactions, nil
}

func (s *postgresStore) Preference(ctx context.Context, userID string) (*models.UserPreference, error) {
	query := `
		SELECT user_id, preferred_categories, preferred_brands, price_min, price_max, preferred_features, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	var pref models.UserPreference
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&pref.UserID, &pref.PreferredCategories, &pref.PreferredBrands,
		&pref.PriceRange.Min, &pref.PriceRange.Max, &pref.PreferredFeatures,
		&pref.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preference: %w", err)
	}

	return &pref, nil
}

func (s *postgresStore) UpsertPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	// Nil update fields arrive as SQL NULL; COALESCE keeps the stored
	// value on conflict and falls back to defaults on first insert.
	query := `
		INSERT INTO user_preferences (user_id, preferred_categories, preferred_brands, price_min, price_max, preferred_features, updated_at)
		VALUES ($1, COALESCE($2, '{}'), COALESCE($3, '{}'), COALESCE($4, 0), COALESCE($5, $6), COALESCE($7, '{}'), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_categories = COALESCE($2, user_preferences.preferred_categories),
			preferred_brands     = COALESCE($3, user_preferences.preferred_brands),
			price_min            = COALESCE($4, user_preferences.price_min),
			price_max            = COALESCE($5, user_preferences.price_max),
			preferred_features   = COALESCE($7, user_preferences.preferred_features),
			updated_at           = NOW()
	`

	var priceMin, priceMax *float64
	if update.PriceRange != nil {
		priceMin = &update.PriceRange.Min
		priceMax = &update.PriceRange.Max
	}

	_, err := s.db.Exec(ctx, query, userID,
		update.PreferredCategories, update.PreferredBrands,
		priceMin, priceMax, s.defaultPriceMax, update.PreferredFeatures)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}

	return nil
}

func (s *postgresStore) DeleteUserData(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_interactions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete interactions: %w", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM user_preferences WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	return nil
}

// memoryStore is the in-process fallback. Events are kept in arrival
// order in a bounded buffer; when full, the oldest event is evicted.
// Its methods never fail.
type memoryStore struct {
	mu          sync.RWMutex
	events      []models.UserInteraction
	preferences map[string]*models.UserPreference
	limit       int
}

func newMemoryStore(limit int) *memoryStore {
	return &memoryStore{
		preferences: make(map[string]*models.UserPreference),
		limit:       limit,
	}
}

func (s *memoryStore) SaveInteraction(_ context.Context, event models.UserInteraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.limit {
		over := len(s.events) - s.limit
		s.events = append(s.events[:0:0], s.events[over:]...)
	}

	return nil
}

// RecentInteractions returns the user's events newest-first. A limit of
// zero or less means no cap.
func (s *memoryStore) RecentInteractions(_ context.Context, userID string, limit int) ([]models.UserInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.UserInteraction
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID != userID {
			continue
		}
		matched = append(matched, s.events[i])
		if limit > 0 && len(matched) == limit {
			break
		}
	}

	return matched, nil
}

func (s *memoryStore) InteractionsSince(_ context.Context, since time.Time) ([]models.UserInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.UserInteraction
	for i := len(s.events) - 1; i >= 0; i-- {
		if !s.events[i].Timestamp.Before(since) {
			matched = append(matched, s.events[i])
		}
	}

	return matched, nil
}

func (s *memoryStore) Preference(_ context.Context, userID string) (*models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}

	copied := *pref
	return &copied, nil
}

func (s *memoryStore) UpsertPreference(_ context.Context, userID string, update models.PreferenceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pref, ok := s.preferences[userID]
	if !ok {
		pref = &models.UserPreference{UserID: userID}
		s.preferences[userID] = pref
	}

	if update.PreferredCategories != nil {
		pref.PreferredCategories = update.PreferredCategories
	}
	if update.PreferredBrands != nil {
		pref.PreferredBrands = update.PreferredBrands
	}
	if update.PriceRange != nil {
		pref.PriceRange = *update.PriceRange
	}
	if update.PreferredFeatures != nil {
		pref.PreferredFeatures = update.PreferredFeatures
	}
	pref.LastUpdated = time.Now()

	return nil
}

func (s *memoryStore) DeleteUserData(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, event := range s.events {
		if event.UserID != userID {
			kept = append(kept, event)
		}
	}
	s.events = kept
	delete(s.preferences, userID)

	return nil
}

// failoverStore fronts the remote store with the local fallback so a
// database outage degrades tracking instead of breaking it. Writes
// that fail remotely are mirrored locally; reads that fail remotely
// are answered from local state.
type failoverStore struct {
	remote interactionStore
	local  *memoryStore
	logger *logrus.Logger
}

func newFailoverStore(remote interactionStore, local *memoryStore, logger *logrus.Logger) *failoverStore {
	return &failoverStore{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

func (s *failoverStore) SaveInteraction(ctx context.Context, event models.UserInteraction) error {
	if err := s.remote.SaveInteraction(ctx, event); err != nil {
		s.logger.WithError(err).WithField("user_id", event.UserID).
			Warn("Remote interaction write failed, using local fallback")
		return s.local.SaveInteraction(ctx, event)
	}
	return nil
}

func (s *failoverStore) RecentInteractions(ctx context.Context, userID string, limit int) ([]models.UserInteraction, error) {
	interactions, err := s.remote.RecentInteractions(ctx, userID, limit)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Remote interaction read failed, using local fallback")
		return s.local.RecentInteractions(ctx, userID, limit)
	}
	return interactions, nil
}

func (s *failoverStore) InteractionsSince(ctx context.Context, since time.Time) ([]models.UserInteraction, error) {
	interactions, err := s.remote.InteractionsSince(ctx, since)
	if err != nil {
		s.logger.WithError(err).Warn("Remote interaction window read failed, using local fallback")
		return s.local.InteractionsSince(ctx, since)
	}
	return interactions, nil
}

func (s *failoverStore) Preference(ctx context.Context, userID string) (*models.UserPreference, error) {
	pref, err := s.remote.Preference(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Remote preference read failed, using local fallback")
		return s.local.Preference(ctx, userID)
	}
	return pref, nil
}

func (s *failoverStore) UpsertPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	if err := s.remote.UpsertPreference(ctx, userID, update); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Remote preference write failed, using local fallback")
		return s.local.UpsertPreference(ctx, userID, update)
	}
	return nil
}

// DeleteUserData removes the user from both tiers. Local deletion
// always happens; a remote failure is returned so the caller knows the
// erasure is incomplete.
func (s *failoverStore) DeleteUserData(ctx context.Context, userID string) error {
	_ = s.local.DeleteUserData(ctx, userID)

	if err := s.remote.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("remote deletion failed: %w", err)
	}
	return nil
}
