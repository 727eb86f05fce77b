package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/pkg/models"
)

// CatalogService holds the product catalog in memory. The catalog is
// reference data loaded once at startup from a JSON file or URL;
// Reload exists for operational refreshes, not request-path use.
type CatalogService struct {
	mu       sync.RWMutex
	products []models.Product
	byID     map[string]models.Product

	source   string
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewCatalogService(cfg *config.CatalogConfig, logger *logrus.Logger) *CatalogService {
	return &CatalogService{
		source:   cfg.Source,
		validate: validator.New(),
		logger:   logger,
	}
}

// Load reads the catalog from the configured source. Entries that fail
// validation are skipped with a warning rather than rejecting the whole
// file.
func (s *CatalogService) Load(ctx context.Context) error {
	data, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog source: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}

	valid := make([]models.Product, 0, len(products))
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		if err := s.validate.Struct(p); err != nil {
			s.logger.WithError(err).WithField("product_id", p.ID).
				Warn("Skipping invalid catalog entry")
			continue
		}
		if _, exists := byID[p.ID]; exists {
			s.logger.WithField("product_id", p.ID).Warn("Skipping duplicate catalog entry")
			continue
		}
		valid = append(valid, p)
		byID[p.ID] = p
	}

	s.mu.Lock()
	s.products = valid
	s.byID = byID
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"source":   s.source,
		"products": len(valid),
		"skipped":  len(products) - len(valid),
	}).Info("Catalog loaded")

	return nil
}

func (s *CatalogService) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.source, "http://") || strings.HasPrefix(s.source, "https://") {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source, nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("catalog source returned status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	}

	return os.ReadFile(s.source)
}

// Products returns the loaded catalog. Callers must not mutate the
// returned slice.
func (s *CatalogService) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

// ProductByID looks up one product.
func (s *CatalogService) ProductByID(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// Count returns the number of loaded products.
func (s *CatalogService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
