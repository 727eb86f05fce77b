package services

import (
	"fmt"
	"strings"

	"github.com/veltrix/shoprec/pkg/models"
)

// Prompt builders for the recommendation pipeline. Each asks the model
// for bare JSON; the callers still treat the response as untrusted
// prose and extract/validate before use.

func productLine(p models.Product) string {
	return fmt.Sprintf("%s | %s | %s/%s | %s | $%.2f | %.1f stars (%d ratings)",
		p.ID, p.Name, p.Category, p.Subcategory, p.Brand, p.Price,
		p.Rating.Average, p.Rating.Count)
}

func productList(products []models.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, productLine(p))
	}
	return strings.Join(lines, "\n")
}

func preferenceSummary(prefs *models.UserPreference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Preferred categories: %s\n", strings.Join(prefs.PreferredCategories, ", "))
	fmt.Fprintf(&b, "Preferred brands: %s\n", strings.Join(prefs.PreferredBrands, ", "))
	fmt.Fprintf(&b, "Price range: $%.2f - $%.2f\n", prefs.PriceRange.Min, prefs.PriceRange.Max)
	fmt.Fprintf(&b, "Preferred features: %s", strings.Join(prefs.PreferredFeatures, ", "))
	return b.String()
}

func historySummary(history []models.UserInteraction, limit int) string {
	if len(history) > limit {
		history = history[:limit]
	}
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("%s %s at %s",
			h.InteractionType, h.ProductID, h.Timestamp.Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

func buildAnalysisPrompt(prefs *models.UserPreference, historyLimit int) string {
	return fmt.Sprintf(`You are a shopping behavior analyst. Analyze this user's profile and recent activity.

User profile:
%s

Recent interactions (newest first):
%s

Return ONLY a JSON object with this exact structure, no other text:
{
  "intent": "short description of shopping intent",
  "category_strength": 1-10,
  "brand_loyalty": 1-10,
  "price_sensitivity": 1-10,
  "top_features": ["up to 5 feature strings"],
  "behavior_patterns": ["short pattern tags"]
}`,
		preferenceSummary(prefs),
		historySummary(prefs.InteractionHistory, historyLimit))
}

func buildContentBasedPrompt(interacted, candidates []models.Product, requestCount int) string {
	return fmt.Sprintf(`You are a product recommendation engine. The user has engaged with these products:

%s

From the following catalog candidates, pick up to %d products most similar in category, features and price to what the user engaged with:

%s

Return ONLY a JSON array, no other text:
[{"product_id": "...", "score": 0-100, "reason": "one sentence"}]`,
		productList(interacted), requestCount, productList(candidates))
}

func buildCollaborativePrompt(candidates []models.Product, prefs *models.UserPreference, analysis models.UserAnalysis) string {
	return fmt.Sprintf(`You are a product recommendation engine. Recommend products that shoppers with a similar profile tend to buy.

User profile:
%s

Behavior analysis: intent=%s, category_strength=%.0f, brand_loyalty=%.0f, price_sensitivity=%.0f

Catalog:
%s

Pick popular, trend-consistent products for this profile. Return ONLY a JSON array, no other text:
[{"product_id": "...", "score": 0-100, "reason": "one sentence"}]`,
		preferenceSummary(prefs), analysis.Intent, analysis.CategoryStrength,
		analysis.BrandLoyalty, analysis.PriceSensitivity, productList(candidates))
}

func buildRerankPrompt(recs []models.Recommendation, analysis models.UserAnalysis) string {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("%s | score %.0f | %s", r.ProductID, r.Score, r.Reason))
	}

	return fmt.Sprintf(`You are a product recommendation engine. Re-rank and re-score this combined candidate list for a user whose behavior analysis is: intent=%s, category_strength=%.0f, brand_loyalty=%.0f, price_sensitivity=%.0f.

Candidates:
%s

Return ONLY a JSON array ordered best-first, no other text:
[{"product_id": "...", "score": 0-100, "reason": "one sentence"}]`,
		analysis.Intent, analysis.CategoryStrength, analysis.BrandLoyalty,
		analysis.PriceSensitivity, strings.Join(lines, "\n"))
}

func buildTrendingPrompt(products []models.Product, maxCount int) string {
	return fmt.Sprintf(`You are a product recommendation engine. From this catalog, pick the %d products most likely to be trending with shoppers right now, favoring well-rated, widely reviewed items:

%s

Return ONLY a JSON array, no other text:
[{"product_id": "...", "score": 0-100, "reason": "one sentence"}]`,
		maxCount, productList(products))
}

func buildSimilarPrompt(target models.Product, candidates []models.Product, maxCount int) string {
	return fmt.Sprintf(`You are a product recommendation engine. Find up to %d products most similar to this one:

%s

Candidates:
%s

Similarity means same or adjacent category, comparable price, overlapping features. Return ONLY a JSON array, no other text:
[{"product_id": "...", "score": 0-100, "reason": "one sentence"}]`,
		maxCount, productLine(target), productList(candidates))
}
