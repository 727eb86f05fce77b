package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Interaction    *InteractionHandler
	Recommendation *RecommendationHandler
}

func New(logger *logrus.Logger, svc *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Interaction:    NewInteractionHandler(logger, svc.Tracker),
		Recommendation: NewRecommendationHandler(logger, svc.Recommendation, svc.Tracker, svc.Catalog),
	}
}
