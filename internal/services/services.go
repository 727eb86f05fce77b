package services

import (
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/internal/database"
	"github.com/veltrix/shoprec/internal/llm"
	"github.com/veltrix/shoprec/internal/messaging"
	"github.com/veltrix/shoprec/internal/validation"
)

type Services struct {
	Auth           *AuthService
	Health         *HealthService
	Catalog        *CatalogService
	Tracker        *InteractionTrackerService
	Recommendation *RecommendationService
	Publisher      *messaging.InteractionPublisher
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	authService := NewAuthService(cfg, logger, db.Redis)
	catalogService := NewCatalogService(&cfg.Catalog, logger)
	healthService := NewHealthService(cfg, logger, db, catalogService)

	schemaValidator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, err
	}

	model := llm.NewClient(&cfg.LLM, logger)

	var publisher *messaging.InteractionPublisher
	var tracker *InteractionTrackerService
	if cfg.Kafka.Enabled {
		publisher = messaging.NewInteractionPublisher(&cfg.Kafka, logger)
		tracker = NewInteractionTrackerService(db.PG, publisher, &cfg.Recommendation, logger)
	} else {
		tracker = NewInteractionTrackerService(db.PG, nil, &cfg.Recommendation, logger)
	}

	recommendationService := NewRecommendationService(
		model, schemaValidator, db.Redis, &cfg.Recommendation, logger,
	)

	return &Services{
		Auth:           authService,
		Health:         healthService,
		Catalog:        catalogService,
		Tracker:        tracker,
		Recommendation: recommendationService,
		Publisher:      publisher,
	}, nil
}

// Close releases service-owned resources. Database handles are closed
// by their owner, not here.
func (s *Services) Close() error {
	if s.Publisher != nil {
		return s.Publisher.Close()
	}
	return nil
}
