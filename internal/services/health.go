package services

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/internal/database"
)

type HealthService struct {
	config  *config.Config
	logger  *logrus.Logger
	db      *database.Database
	catalog *CatalogService

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	systemMetrics       *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func NewHealthService(cfg *config.Config, logger *logrus.Logger, db *database.Database, catalog *CatalogService) *HealthService {
	hs := &HealthService{
		config:  cfg,
		logger:  logger,
		db:      db,
		catalog: catalog,
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	hs.lastHealthCheck = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})

	hs.systemMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "system_info",
		Help: "System information metrics",
	}, []string{"metric_type"})

	hs.dbConnectionMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "database_connection_pool_usage",
		Help: "Database connection pool usage percentage",
	}, []string{"database", "state"})

	// Register metrics, ignoring duplicates so restarts in tests don't fail
	for _, collector := range []prometheus.Collector{
		hs.healthCheckStatus, hs.lastHealthCheck, hs.systemMetrics, hs.dbConnectionMetrics,
	} {
		if err := prometheus.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register health metric")
			}
		}
	}

	go hs.collectSystemMetrics()
	go hs.collectDatabaseMetrics()

	return hs
}

// CheckHealth probes the service dependencies. PostgreSQL is critical;
// Redis only degrades caching and sessions, so its failure marks the
// service degraded, not down.
func (s *HealthService) CheckHealth() *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
		Details: map[string]interface{}{
			"catalog_products": s.catalog.Count(),
		},
	}

	criticalServices := map[string]func() error{
		"postgresql": s.checkPostgreSQL,
	}

	nonCriticalServices := map[string]func() error{
		"redis": s.checkRedis,
	}

	allCriticalHealthy := true
	for name, checkFunc := range criticalServices {
		if err := checkFunc(); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.updateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.updateHealthMetrics(name, true)
		}
	}

	for name, checkFunc := range nonCriticalServices {
		if err := checkFunc(); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.updateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.updateHealthMetrics(name, true)
		}
	}

	if allCriticalHealthy {
		if len(status.NonCritical) == 0 {
			status.Status = "healthy"
		} else {
			status.Status = "degraded"
		}
	} else {
		status.Status = "unhealthy"
	}

	return status
}

func (s *HealthService) checkPostgreSQL() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.db.PG.Ping(ctx)
}

func (s *HealthService) checkRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.db.Redis.Ping(ctx).Err()
}

func (s *HealthService) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var memStats runtime.MemStats

	for range ticker.C {
		runtime.ReadMemStats(&memStats)

		s.systemMetrics.WithLabelValues("memory_alloc_bytes").Set(float64(memStats.Alloc))
		s.systemMetrics.WithLabelValues("memory_sys_bytes").Set(float64(memStats.Sys))
		s.systemMetrics.WithLabelValues("goroutines_count").Set(float64(runtime.NumGoroutine()))
		s.systemMetrics.WithLabelValues("gc_runs_total").Set(float64(memStats.NumGC))
	}
}

func (s *HealthService) collectDatabaseMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if s.db == nil || s.db.PG == nil {
			continue
		}

		stats := s.db.PG.Stat()

		s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))

		if stats.MaxConns() > 0 {
			usage := float64(stats.AcquiredConns()) / float64(stats.MaxConns()) * 100
			s.dbConnectionMetrics.WithLabelValues("postgresql", "usage_percent").Set(usage)
		}
	}
}

func (s *HealthService) updateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
