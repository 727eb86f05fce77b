package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/shoprec/internal/validation"
	"github.com/veltrix/shoprec/pkg/models"
)

// stubModel routes prompts to canned responses by stage marker.
type stubModel struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (m *stubModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.reply(prompt)
}

func (m *stubModel) promptCount(marker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.prompts {
		if strings.Contains(p, marker) {
			count++
		}
	}
	return count
}

const (
	analysisMarker = "shopping behavior analyst"
	contentMarker  = "engaged with these products"
	collabMarker   = "similar profile tend to buy"
	rerankMarker   = "Re-rank"
	trendingMarker = "likely to be trending"
	similarMarker  = "most similar to this one"
)

func newTestRecommendationService(t *testing.T, model TextGenerator) *RecommendationService {
	t.Helper()

	sv, err := validation.NewSchemaValidator()
	require.NoError(t, err)

	return NewRecommendationService(model, sv, nil, testRecommendationConfig(), testLogger())
}

func testProduct(id, category string, price, ratingAvg float64, ratingCount int) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Product " + id,
		Category: category,
		Brand:    "acme",
		Price:    price,
		InStock:  true,
		Rating:   models.Rating{Average: ratingAvg, Count: ratingCount},
	}
}

func testCatalog() []models.Product {
	return []models.Product{
		testProduct("p1", "audio", 100, 4.5, 200),
		testProduct("p2", "audio", 110, 4.0, 100),
		testProduct("p3", "audio", 150, 3.5, 50),
		testProduct("p4", "computers", 900, 4.8, 300),
		testProduct("p5", "computers", 1200, 4.2, 80),
		testProduct("p6", "kitchen", 60, 3.9, 40),
	}
}

func prefsWithHistory(productIDs ...string) *models.UserPreference {
	prefs := &models.UserPreference{
		UserID:            "user-1",
		PriceRange:        models.PriceRange{Min: 0, Max: 3000},
		PreferredFeatures: []string{"wireless", "compact", "durable", "cheap"},
	}
	for _, id := range productIDs {
		prefs.InteractionHistory = append(prefs.InteractionHistory,
			testEvent("user-1", id, models.InteractionView))
	}
	return prefs
}

const validAnalysis = `{"intent": "comparison shopping", "category_strength": 8,
	"brand_loyalty": 4, "price_sensitivity": 6,
	"top_features": ["wireless"], "behavior_patterns": ["researcher"]}`

func TestGenerateRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path respects count and uniqueness", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, analysisMarker):
				return validAnalysis, nil
			case strings.Contains(prompt, contentMarker):
				return `[{"product_id": "p2", "score": 85, "reason": "similar"},
					{"product_id": "p3", "score": 70, "reason": "similar"}]`, nil
			case strings.Contains(prompt, collabMarker):
				return `[{"product_id": "p2", "score": 60, "reason": "popular"},
					{"product_id": "p4", "score": 90, "reason": "popular"}]`, nil
			case strings.Contains(prompt, rerankMarker):
				return `[{"product_id": "p4", "score": 95, "reason": "best match"},
					{"product_id": "p2", "score": 80, "reason": "good match"},
					{"product_id": "p3", "score": 65, "reason": "ok match"}]`, nil
			}
			return "", errors.New("unexpected prompt")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory("p1"), 2)

		require.Len(t, recs, 2)
		assert.Equal(t, "p4", recs[0].ProductID)
		assert.Equal(t, "p2", recs[1].ProductID)

		seen := make(map[string]bool)
		for _, r := range recs {
			assert.False(t, seen[r.ProductID])
			seen[r.ProductID] = true
		}
	})

	t.Run("duplicate candidates keep first occurrence", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, analysisMarker):
				return validAnalysis, nil
			case strings.Contains(prompt, contentMarker):
				return `[{"product_id": "p2", "score": 85, "reason": "content pick"}]`, nil
			case strings.Contains(prompt, collabMarker):
				return `[{"product_id": "p2", "score": 40, "reason": "collab pick"}]`, nil
			case strings.Contains(prompt, rerankMarker):
				return "cannot rank this", nil
			}
			return "", errors.New("unexpected prompt")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory("p1"), 10)

		require.Len(t, recs, 1)
		assert.Equal(t, "p2", recs[0].ProductID)
		assert.Equal(t, 85.0, recs[0].Score)
		assert.Equal(t, models.RecContentBased, recs[0].Category)
	})

	t.Run("empty history skips content stage", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, analysisMarker):
				return validAnalysis, nil
			case strings.Contains(prompt, collabMarker):
				return `[{"product_id": "p1", "score": 88, "reason": "popular"}]`, nil
			case strings.Contains(prompt, rerankMarker):
				return `[{"product_id": "p1", "score": 88, "reason": "popular"}]`, nil
			}
			return "", errors.New("unexpected prompt")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory(), 5)

		assert.Zero(t, model.promptCount(contentMarker))
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecCollaborative, recs[0].Category)
	})

	t.Run("prose-only model output degrades to fallback", func(t *testing.T) {
		model := &stubModel{reply: func(string) (string, error) {
			return "I am sorry, I cannot help with that.", nil
		}}

		service := newTestRecommendationService(t, model)
		prefs := prefsWithHistory("p1")
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefs, 3)

		require.NotEmpty(t, recs)
		for _, r := range recs {
			assert.Equal(t, models.RecFallback, r.Category)
			assert.NotEqual(t, "p1", r.ProductID)
		}
		// Best rated unseen product first
		assert.Equal(t, "p4", recs[0].ProductID)
		assert.InDelta(t, 4.8*20, recs[0].Score, 0.001)
	})

	t.Run("rerank failure keeps merged set sorted by score", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, analysisMarker):
				return validAnalysis, nil
			case strings.Contains(prompt, contentMarker):
				return `[{"product_id": "p2", "score": 55, "reason": "similar"}]`, nil
			case strings.Contains(prompt, collabMarker):
				return `[{"product_id": "p4", "score": 90, "reason": "popular"},
					{"product_id": "p6", "score": 70, "reason": "popular"}]`, nil
			case strings.Contains(prompt, rerankMarker):
				return "", errors.New("model unavailable")
			}
			return "", errors.New("unexpected prompt")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory("p1"), 10)

		require.Len(t, recs, 3)
		assert.Equal(t, "p4", recs[0].ProductID)
		assert.Equal(t, "p6", recs[1].ProductID)
		assert.Equal(t, "p2", recs[2].ProductID)
	})

	t.Run("rerank cannot introduce unknown products", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, analysisMarker):
				return validAnalysis, nil
			case strings.Contains(prompt, contentMarker):
				return `[{"product_id": "p2", "score": 55, "reason": "similar"}]`, nil
			case strings.Contains(prompt, collabMarker):
				return `[]`, nil
			case strings.Contains(prompt, rerankMarker):
				return `[{"product_id": "hallucinated", "score": 99},
					{"product_id": "p2", "score": 80}]`, nil
			}
			return "", errors.New("unexpected prompt")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory("p1"), 10)

		require.Len(t, recs, 1)
		assert.Equal(t, "p2", recs[0].ProductID)
	})

	t.Run("zero max count returns empty", func(t *testing.T) {
		model := &stubModel{reply: func(string) (string, error) {
			return "", errors.New("must not be called")
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GenerateRecommendations(ctx, "user-1", testCatalog(), prefsWithHistory(), 0)
		assert.Empty(t, recs)
	})
}

func TestFallbackRecommendations(t *testing.T) {
	model := &stubModel{reply: func(string) (string, error) {
		return "", errors.New("unused")
	}}
	service := newTestRecommendationService(t, model)

	t.Run("filters to preferred categories", func(t *testing.T) {
		prefs := prefsWithHistory()
		prefs.PreferredCategories = []string{"audio"}

		recs := service.FallbackRecommendations(testCatalog(), prefs, 10)

		require.Len(t, recs, 3)
		assert.Equal(t, "p1", recs[0].ProductID)
		for _, r := range recs {
			assert.Equal(t, models.RecFallback, r.Category)
		}
	})

	t.Run("excludes interacted products", func(t *testing.T) {
		recs := service.FallbackRecommendations(testCatalog(), prefsWithHistory("p4", "p1"), 10)

		for _, r := range recs {
			assert.NotEqual(t, "p4", r.ProductID)
			assert.NotEqual(t, "p1", r.ProductID)
		}
	})
}

func TestGetTrendingProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("model results win when valid", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			require.Contains(t, prompt, trendingMarker)
			return `[{"product_id": "p6", "score": 91, "reason": "hot right now"}]`, nil
		}}

		service := newTestRecommendationService(t, model)
		recs := service.GetTrendingProducts(ctx, testCatalog(), 5)

		require.Len(t, recs, 1)
		assert.Equal(t, "p6", recs[0].ProductID)
		assert.Equal(t, models.RecTrending, recs[0].Category)
	})

	t.Run("fallback weights review volume", func(t *testing.T) {
		model := &stubModel{reply: func(string) (string, error) {
			return "", errors.New("model unavailable")
		}}

		service := newTestRecommendationService(t, model)

		// 4.0 * ln(101) beats 4.5 * ln(6)
		products := []models.Product{
			testProduct("few-reviews", "audio", 100, 4.5, 5),
			testProduct("many-reviews", "audio", 100, 4.0, 100),
		}

		recs := service.GetTrendingProducts(ctx, products, 2)
		require.Len(t, recs, 2)
		assert.Equal(t, "many-reviews", recs[0].ProductID)
		assert.Equal(t, "few-reviews", recs[1].ProductID)
		assert.Greater(t, recs[0].Score, recs[1].Score)
	})
}

func TestGetSimilarProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("model results exclude nothing but the target", func(t *testing.T) {
		model := &stubModel{reply: func(prompt string) (string, error) {
			require.Contains(t, prompt, similarMarker)
			assert.NotContains(t, prompt, "Candidates:\np1 |")
			return `[{"product_id": "p2", "score": 82, "reason": "close sibling"}]`, nil
		}}

		service := newTestRecommendationService(t, model)
		catalog := testCatalog()
		recs := service.GetSimilarProducts(ctx, catalog[0], catalog, 5)

		require.Len(t, recs, 1)
		assert.Equal(t, "p2", recs[0].ProductID)
		assert.Equal(t, models.RecSimilar, recs[0].Category)
	})

	t.Run("fallback ranks by price proximity in category", func(t *testing.T) {
		model := &stubModel{reply: func(string) (string, error) {
			return "no json here", nil
		}}

		service := newTestRecommendationService(t, model)
		catalog := testCatalog()
		target := catalog[0] // p1, audio, $100

		recs := service.GetSimilarProducts(ctx, target, catalog, 5)

		// p2 at $110 (score 79) before p3 at $150 (score 75)
		require.Len(t, recs, 2)
		assert.Equal(t, "p2", recs[0].ProductID)
		assert.InDelta(t, 79.0, recs[0].Score, 0.001)
		assert.Equal(t, "p3", recs[1].ProductID)
		assert.InDelta(t, 75.0, recs[1].Score, 0.001)

		for _, r := range recs {
			assert.Equal(t, models.RecSimilar, r.Category)
		}
	})
}
