package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoprec_model_requests_total",
		Help: "Model calls by pipeline stage and outcome.",
	}, []string{"stage", "outcome"})

	stageFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoprec_stage_fallbacks_total",
		Help: "Pipeline stages that fell back to heuristics.",
	}, []string{"stage"})

	recommendationCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoprec_recommendation_cache_total",
		Help: "Recommendation cache lookups by result.",
	}, []string{"result"})
)
