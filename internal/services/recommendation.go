package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/internal/llm"
	"github.com/veltrix/shoprec/internal/validation"
	"github.com/veltrix/shoprec/pkg/models"
)

// TextGenerator is the model dependency of the pipeline. The production
// implementation is llm.Client; tests substitute a stub.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecommendationService runs the four-stage pipeline: behavior
// analysis, content-based and collaborative candidate generation, then
// merge and re-rank. Every stage is model-first with a deterministic
// fallback, and the pipeline as a whole never returns an error: a
// shopper always gets a list, possibly a heuristic one.
type RecommendationService struct {
	model     TextGenerator
	validator *validation.SchemaValidator
	cache     *redis.Client
	config    *config.RecommendationConfig
	logger    *logrus.Logger
}

func NewRecommendationService(model TextGenerator, validator *validation.SchemaValidator,
	cache *redis.Client, cfg *config.RecommendationConfig, logger *logrus.Logger) *RecommendationService {

	return &RecommendationService{
		model:     model,
		validator: validator,
		cache:     cache,
		config:    cfg,
		logger:    logger,
	}
}

// GenerateRecommendations produces up to maxCount personalized
// recommendations for the user. Results are cached per user and count;
// a cache hit skips the pipeline entirely.
func (s *RecommendationService) GenerateRecommendations(ctx context.Context, userID string,
	products []models.Product, prefs *models.UserPreference, maxCount int) []models.Recommendation {

	if maxCount <= 0 || len(products) == 0 {
		return []models.Recommendation{}
	}

	cacheKey := fmt.Sprintf("recommendations:%s:%d", userID, maxCount)
	if cached := s.cachedRecommendations(ctx, cacheKey); cached != nil {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.PipelineTimeout)
	defer cancel()

	analysis := s.analyzeUserBehavior(ctx, prefs)

	// Candidate stages are independent of each other; run them
	// concurrently.
	var contentBased, collaborative []models.Recommendation
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		contentBased = s.contentBasedCandidates(ctx, products, prefs)
	}()
	go func() {
		defer wg.Done()
		collaborative = s.collaborativeCandidates(ctx, products, prefs, analysis)
	}()
	wg.Wait()

	merged := dedupeByProduct(append(contentBased, collaborative...))
	if len(merged) == 0 {
		stageFallbacksTotal.WithLabelValues("pipeline").Inc()
		return s.FallbackRecommendations(products, prefs, maxCount)
	}

	ranked := s.rerank(ctx, merged, analysis)
	if len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}

	s.storeRecommendations(ctx, cacheKey, ranked)

	s.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"content_based": len(contentBased),
		"collaborative": len(collaborative),
		"returned":      len(ranked),
	}).Info("Recommendations generated")

	return ranked
}

func (s *RecommendationService) cachedRecommendations(ctx context.Context, key string) []models.Recommendation {
	if s.cache == nil {
		return nil
	}

	payload, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		recommendationCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}

	var recs []models.Recommendation
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		recommendationCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}

	recommendationCacheTotal.WithLabelValues("hit").Inc()
	return recs
}

func (s *RecommendationService) storeRecommendations(ctx context.Context, key string, recs []models.Recommendation) {
	if s.cache == nil || len(recs) == 0 {
		return
	}

	payload, err := json.Marshal(recs)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.config.CacheTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("Failed to cache recommendations")
	}
}

// analyzeUserBehavior asks the model to profile the shopper from their
// preferences and recent history. Any failure in the call, extraction
// or schema check yields the neutral default analysis.
func (s *RecommendationService) analyzeUserBehavior(ctx context.Context, prefs *models.UserPreference) models.UserAnalysis {
	prompt := buildAnalysisPrompt(prefs, s.config.MaxHistoryInPrompt)

	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		modelRequestsTotal.WithLabelValues("analysis", "error").Inc()
		s.logger.WithError(err).Warn("Behavior analysis model call failed")
		return s.defaultAnalysis(prefs)
	}
	modelRequestsTotal.WithLabelValues("analysis", "ok").Inc()

	document, err := llm.ExtractJSONObject(raw)
	if err != nil {
		s.logger.WithError(err).Warn("Behavior analysis output contained no JSON object")
		return s.defaultAnalysis(prefs)
	}

	if err := s.validator.ValidateUserAnalysis(document); err != nil {
		s.logger.WithError(err).Warn("Behavior analysis output failed validation")
		return s.defaultAnalysis(prefs)
	}

	var analysis models.UserAnalysis
	if err := json.Unmarshal([]byte(document), &analysis); err != nil {
		s.logger.WithError(err).Warn("Behavior analysis output failed to decode")
		return s.defaultAnalysis(prefs)
	}

	return analysis
}

func (s *RecommendationService) defaultAnalysis(prefs *models.UserPreference) models.UserAnalysis {
	stageFallbacksTotal.WithLabelValues("analysis").Inc()
	return models.DefaultUserAnalysis(prefs.PreferredFeatures)
}

// contentBasedCandidates recommends from catalog items similar to what
// the user already engaged with. With no history there is nothing to be
// similar to, so the stage yields nothing rather than guessing.
func (s *RecommendationService) contentBasedCandidates(ctx context.Context,
	products []models.Product, prefs *models.UserPreference) []models.Recommendation {

	if len(prefs.InteractionHistory) == 0 {
		return nil
	}

	interactedIDs := interactedProductIDs(prefs.InteractionHistory)

	var interacted, candidates []models.Product
	for _, p := range products {
		if interactedIDs[p.ID] {
			interacted = append(interacted, p)
		} else if len(candidates) < s.config.ContentCandidateCap {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	prompt := buildContentBasedPrompt(interacted, candidates, s.config.ContentRequestCount)
	recs := s.modelRecommendations(ctx, "content_based", prompt)
	return tagCategory(recs, models.RecContentBased)
}

// collaborativeCandidates asks the model to emulate "shoppers like you
// also bought", grounded on the behavior analysis.
func (s *RecommendationService) collaborativeCandidates(ctx context.Context,
	products []models.Product, prefs *models.UserPreference, analysis models.UserAnalysis) []models.Recommendation {

	candidates := products
	if len(candidates) > s.config.CollaborativeCap {
		candidates = candidates[:s.config.CollaborativeCap]
	}

	prompt := buildCollaborativePrompt(candidates, prefs, analysis)
	recs := s.modelRecommendations(ctx, "collaborative", prompt)
	return tagCategory(recs, models.RecCollaborative)
}

// rerank has the model re-order and re-score the merged candidate set.
// On failure the merged set is kept, sorted by score descending.
func (s *RecommendationService) rerank(ctx context.Context,
	merged []models.Recommendation, analysis models.UserAnalysis) []models.Recommendation {

	known := make(map[string]models.Recommendation, len(merged))
	for _, r := range merged {
		known[r.ProductID] = r
	}

	prompt := buildRerankPrompt(merged, analysis)
	ranked := s.modelRecommendations(ctx, "rerank", prompt)

	if len(ranked) == 0 {
		stageFallbacksTotal.WithLabelValues("rerank").Inc()
		sorted := make([]models.Recommendation, len(merged))
		copy(sorted, merged)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Score > sorted[j].Score
		})
		return sorted
	}

	// Keep only candidates that were actually in the merged set; the
	// model must not introduce products the stages never proposed.
	result := make([]models.Recommendation, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		source, ok := known[r.ProductID]
		if !ok || seen[r.ProductID] {
			continue
		}
		seen[r.ProductID] = true

		if r.Reason == "" {
			r.Reason = source.Reason
		}
		r.Category = source.Category
		result = append(result, r)
	}

	if len(result) == 0 {
		stageFallbacksTotal.WithLabelValues("rerank").Inc()
		return merged
	}
	return result
}

// modelRecommendations runs one recommendation-list model call:
// generate, extract the array, schema-validate, decode. Any failure
// returns nil so the caller can apply its stage fallback.
func (s *RecommendationService) modelRecommendations(ctx context.Context, stage, prompt string) []models.Recommendation {
	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		modelRequestsTotal.WithLabelValues(stage, "error").Inc()
		s.logger.WithError(err).WithField("stage", stage).Warn("Model call failed")
		return nil
	}
	modelRequestsTotal.WithLabelValues(stage, "ok").Inc()

	document, err := llm.ExtractJSONArray(raw)
	if err != nil {
		s.logger.WithField("stage", stage).Warn("Model output contained no JSON array")
		return nil
	}

	if err := s.validator.ValidateRecommendationList(document); err != nil {
		s.logger.WithError(err).WithField("stage", stage).Warn("Model output failed validation")
		return nil
	}

	var recs []models.Recommendation
	if err := json.Unmarshal([]byte(document), &recs); err != nil {
		s.logger.WithError(err).WithField("stage", stage).Warn("Model output failed to decode")
		return nil
	}

	return recs
}

// FallbackRecommendations is the deterministic last resort: unseen
// products, filtered to preferred categories when any are set, best
// rated first.
func (s *RecommendationService) FallbackRecommendations(products []models.Product,
	prefs *models.UserPreference, maxCount int) []models.Recommendation {

	interactedIDs := interactedProductIDs(prefs.InteractionHistory)
	preferred := make(map[string]bool, len(prefs.PreferredCategories))
	for _, c := range prefs.PreferredCategories {
		preferred[c] = true
	}

	var pool []models.Product
	for _, p := range products {
		if interactedIDs[p.ID] {
			continue
		}
		if len(preferred) > 0 && !preferred[p.Category] {
			continue
		}
		pool = append(pool, p)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Rating.Average > pool[j].Rating.Average
	})
	if len(pool) > maxCount {
		pool = pool[:maxCount]
	}

	recs := make([]models.Recommendation, 0, len(pool))
	for _, p := range pool {
		recs = append(recs, models.Recommendation{
			ProductID: p.ID,
			Score:     p.Rating.Average * 20,
			Reason:    fmt.Sprintf("Highly rated in %s", p.Category),
			Category:  models.RecFallback,
		})
	}
	return recs
}

// GetTrendingProducts is model-first over a capped catalog slice; on
// failure it ranks by rating average weighted by review volume,
// avg * ln(count+1), so a 4.0 with hundreds of reviews can outrank a
// 4.5 with a handful.
func (s *RecommendationService) GetTrendingProducts(ctx context.Context,
	products []models.Product, maxCount int) []models.Recommendation {

	if maxCount <= 0 || len(products) == 0 {
		return []models.Recommendation{}
	}

	candidates := products
	if len(candidates) > s.config.TrendingCap {
		candidates = candidates[:s.config.TrendingCap]
	}

	recs := s.modelRecommendations(ctx, "trending", buildTrendingPrompt(candidates, maxCount))
	if len(recs) > 0 {
		if len(recs) > maxCount {
			recs = recs[:maxCount]
		}
		return tagCategory(recs, models.RecTrending)
	}

	stageFallbacksTotal.WithLabelValues("trending").Inc()

	scored := make([]models.Recommendation, 0, len(products))
	for _, p := range products {
		scored = append(scored, models.Recommendation{
			ProductID: p.ID,
			Score:     p.Rating.Average * math.Log(float64(p.Rating.Count)+1),
			Reason:    fmt.Sprintf("Rated %.1f by %d shoppers", p.Rating.Average, p.Rating.Count),
			Category:  models.RecTrending,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > maxCount {
		scored = scored[:maxCount]
	}
	return scored
}

// GetSimilarProducts is model-first; on failure it falls back to
// same-category products ranked by price proximity.
func (s *RecommendationService) GetSimilarProducts(ctx context.Context,
	target models.Product, products []models.Product, maxCount int) []models.Recommendation {

	if maxCount <= 0 {
		return []models.Recommendation{}
	}

	var candidates []models.Product
	for _, p := range products {
		if p.ID == target.ID {
			continue
		}
		candidates = append(candidates, p)
		if len(candidates) == s.config.SimilarCap {
			break
		}
	}
	if len(candidates) == 0 {
		return []models.Recommendation{}
	}

	recs := s.modelRecommendations(ctx, "similar", buildSimilarPrompt(target, candidates, maxCount))
	if len(recs) > 0 {
		if len(recs) > maxCount {
			recs = recs[:maxCount]
		}
		return tagCategory(recs, models.RecSimilar)
	}

	stageFallbacksTotal.WithLabelValues("similar").Inc()

	var sameCategory []models.Product
	for _, p := range products {
		if p.ID != target.ID && p.Category == target.Category {
			sameCategory = append(sameCategory, p)
		}
	}
	sort.SliceStable(sameCategory, func(i, j int) bool {
		return math.Abs(sameCategory[i].Price-target.Price) < math.Abs(sameCategory[j].Price-target.Price)
	})
	if len(sameCategory) > maxCount {
		sameCategory = sameCategory[:maxCount]
	}

	result := make([]models.Recommendation, 0, len(sameCategory))
	for _, p := range sameCategory {
		result = append(result, models.Recommendation{
			ProductID: p.ID,
			Score:     80 - math.Abs(p.Price-target.Price)/10,
			Reason:    fmt.Sprintf("Similar price point in %s", p.Category),
			Category:  models.RecSimilar,
		})
	}
	return result
}

func interactedProductIDs(history []models.UserInteraction) map[string]bool {
	ids := make(map[string]bool, len(history))
	for _, event := range history {
		ids[event.ProductID] = true
	}
	return ids
}

// dedupeByProduct keeps the first occurrence of each product id.
func dedupeByProduct(recs []models.Recommendation) []models.Recommendation {
	seen := make(map[string]bool, len(recs))
	result := make([]models.Recommendation, 0, len(recs))
	for _, r := range recs {
		if seen[r.ProductID] {
			continue
		}
		seen[r.ProductID] = true
		result = append(result, r)
	}
	return result
}

func tagCategory(recs []models.Recommendation, category string) []models.Recommendation {
	for i := range recs {
		recs[i].Category = category
	}
	return recs
}

// RecommendationResponseFor packages a generated list with its request
// context for the HTTP layer.
func RecommendationResponseFor(userID string, recs []models.Recommendation) models.RecommendationResponse {
	return models.RecommendationResponse{
		UserID:          userID,
		Recommendations: recs,
		GeneratedAt:     time.Now(),
	}
}
