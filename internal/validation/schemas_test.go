package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserAnalysis(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	t.Run("valid analysis", func(t *testing.T) {
		doc := `{
			"intent": "bargain hunting",
			"category_strength": 8,
			"brand_loyalty": 3,
			"price_sensitivity": 9,
			"top_features": ["wireless", "waterproof"],
			"behavior_patterns": ["price_comparison"]
		}`
		assert.NoError(t, sv.ValidateUserAnalysis(doc))
	})

	t.Run("missing intent", func(t *testing.T) {
		doc := `{"category_strength": 5, "brand_loyalty": 5, "price_sensitivity": 5}`
		assert.Error(t, sv.ValidateUserAnalysis(doc))
	})

	t.Run("score out of range", func(t *testing.T) {
		doc := `{"intent": "browsing", "category_strength": 15, "brand_loyalty": 5, "price_sensitivity": 5}`
		assert.Error(t, sv.ValidateUserAnalysis(doc))
	})

	t.Run("score with wrong type", func(t *testing.T) {
		doc := `{"intent": "browsing", "category_strength": "high", "brand_loyalty": 5, "price_sensitivity": 5}`
		assert.Error(t, sv.ValidateUserAnalysis(doc))
	})
}

func TestValidateRecommendationList(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	t.Run("valid list", func(t *testing.T) {
		doc := `[
			{"product_id": "p1", "score": 92, "reason": "matches your taste"},
			{"product_id": "p2", "score": 75}
		]`
		assert.NoError(t, sv.ValidateRecommendationList(doc))
	})

	t.Run("empty list is valid", func(t *testing.T) {
		assert.NoError(t, sv.ValidateRecommendationList(`[]`))
	})

	t.Run("missing product id", func(t *testing.T) {
		assert.Error(t, sv.ValidateRecommendationList(`[{"score": 90}]`))
	})

	t.Run("score above range", func(t *testing.T) {
		assert.Error(t, sv.ValidateRecommendationList(`[{"product_id": "p1", "score": 150}]`))
	})

	t.Run("object instead of array", func(t *testing.T) {
		assert.Error(t, sv.ValidateRecommendationList(`{"product_id": "p1", "score": 90}`))
	})
}
