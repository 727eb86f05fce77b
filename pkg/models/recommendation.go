package models

import "time"

// Recommendation source tags.
const (
	RecPersonalized  = "personalized"
	RecTrending      = "trending"
	RecSimilar       = "similar"
	RecContentBased  = "content_based"
	RecCollaborative = "collaborative"
	RecFallback      = "fallback"
)

// Recommendation is the pipeline's output unit. ProductID should map to
// a product in the caller's catalog; the service does not enforce this
// and callers must drop unresolved ids.
type Recommendation struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	Category  string  `json:"category"`
}

// UserAnalysis is the model's qualitative read of a user's behavior.
// Produced once per recommendation request and discarded afterwards.
// Strength scores are nominally 1-10 but come from the model unvalidated
// beyond schema range checks.
type UserAnalysis struct {
	Intent           string   `json:"intent"`
	CategoryStrength float64  `json:"category_strength"`
	BrandLoyalty     float64  `json:"brand_loyalty"`
	PriceSensitivity float64  `json:"price_sensitivity"`
	TopFeatures      []string `json:"top_features"`
	BehaviorPatterns []string `json:"behavior_patterns"`
}

// DefaultUserAnalysis is the substitute used when behavior analysis
// fails: mid-scale scores and a generic browsing intent. topFeatures is
// filled by the caller from the user's stored preferences.
func DefaultUserAnalysis(topFeatures []string) UserAnalysis {
	if len(topFeatures) > 3 {
		topFeatures = topFeatures[:3]
	}
	return UserAnalysis{
		Intent:           "browsing",
		CategoryStrength: 5,
		BrandLoyalty:     5,
		PriceSensitivity: 5,
		TopFeatures:      topFeatures,
		BehaviorPatterns: []string{"general_browsing"},
	}
}

// RecommendationResponse wraps an ordered recommendation list for the
// HTTP surface.
type RecommendationResponse struct {
	UserID          string           `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
	CacheHit        bool             `json:"cache_hit"`
}
