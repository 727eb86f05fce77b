package models

import (
	"time"

	"github.com/google/uuid"
)

// Interaction types, ordered roughly by purchase intent.
const (
	InteractionView        = "view"
	InteractionLike        = "like"
	InteractionWishlistAdd = "wishlist_add"
	InteractionCartAdd     = "cart_add"
	InteractionPurchase    = "purchase"
)

// UserInteraction is one immutable tracked event. It is never updated
// after creation; re-sending the same action creates a new record.
type UserInteraction struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	UserID          string                 `json:"user_id" db:"user_id" validate:"required"`
	ProductID       string                 `json:"product_id" db:"product_id" validate:"required"`
	InteractionType string                 `json:"interaction_type" db:"interaction_type" validate:"required,oneof=view like purchase cart_add wishlist_add"`
	Timestamp       time.Time              `json:"timestamp" db:"timestamp"`
	SessionID       string                 `json:"session_id" db:"session_id"`
	Metadata        map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// TrackInteractionRequest is the inbound payload for recording an event.
// The user identity comes from the request context, not the body.
type TrackInteractionRequest struct {
	ProductID       string                 `json:"product_id" validate:"required"`
	InteractionType string                 `json:"interaction_type" validate:"required,oneof=view like purchase cart_add wishlist_add"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// PriceRange is an inclusive [Min, Max] band.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UserPreference is the per-user aggregate rebuilt on read from the
// stored preference row plus recent interactions. Values are user-set
// or default; nothing here is statistically learned.
type UserPreference struct {
	UserID              string            `json:"user_id" db:"user_id"`
	PreferredCategories []string          `json:"preferred_categories"`
	PreferredBrands     []string          `json:"preferred_brands"`
	PriceRange          PriceRange        `json:"price_range"`
	PreferredFeatures   []string          `json:"preferred_features"`
	InteractionHistory  []UserInteraction `json:"interaction_history,omitempty"`
	LastUpdated         time.Time         `json:"last_updated"`
}

// PreferenceUpdate carries a partial preference upsert. Nil fields are
// left untouched.
type PreferenceUpdate struct {
	PreferredCategories []string    `json:"preferred_categories,omitempty"`
	PreferredBrands     []string    `json:"preferred_brands,omitempty"`
	PriceRange          *PriceRange `json:"price_range,omitempty"`
	PreferredFeatures   []string    `json:"preferred_features,omitempty"`
}

// TrendingProduct is a product id with its interaction-weighted score.
type TrendingProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// UserAnalytics aggregates the tracker's locally held history for one
// user. It never consults the remote store.
type UserAnalytics struct {
	UserID             string         `json:"user_id"`
	InteractionCounts  map[string]int `json:"interaction_counts"`
	CategoryViews      map[string]int `json:"category_views"`
	AvgSessionDuration float64        `json:"avg_session_duration_seconds"`
	RecentActivity     int            `json:"recent_activity_7d"`
}

// UserDataExport is the privacy export of locally held state.
type UserDataExport struct {
	UserID       string            `json:"user_id"`
	Interactions []UserInteraction `json:"interactions"`
	Preference   *UserPreference   `json:"preference,omitempty"`
	ExportedAt   time.Time         `json:"exported_at"`
}
