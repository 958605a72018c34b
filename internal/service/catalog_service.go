package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

const (
	catalogTypesKey    = "catalog:types"
	catalogSlaRulesKey = "catalog:sla-rules"
	catalogPattern     = "catalog:*"
)

type catalogBackend interface {
	ListTypes(ctx context.Context) ([]models.TramiteType, error)
	ListAnalysts(ctx context.Context, subUnitID int) ([]models.Analyst, error)
	ListSlaRules(ctx context.Context) ([]models.SlaRule, error)
}

type catalogCache interface {
	Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) error) error
	Invalidate(ctx context.Context, pattern string) error
}

// CatalogService serves trámite types, analysts and SLA rules, cached in Redis when enabled.
type CatalogService struct {
	backend catalogBackend
	cache   catalogCache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCatalogService constructs the service. A nil cache disables caching.
func NewCatalogService(backend catalogBackend, cache catalogCache, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{backend: backend, cache: cache, ttl: ttl, logger: logger}
}

// Types returns the trámite type catalog.
func (s *CatalogService) Types(ctx context.Context) ([]models.TramiteType, error) {
	var types []models.TramiteType
	err := s.remember(ctx, catalogTypesKey, &types, func(ctx context.Context) (err error) {
		types, err = s.backend.ListTypes(ctx)
		return err
	})
	return types, err
}

// Analysts returns the analysts of a sub-unit.
func (s *CatalogService) Analysts(ctx context.Context, subUnitID int) ([]models.Analyst, error) {
	var analysts []models.Analyst
	key := fmt.Sprintf("catalog:analysts:%d", subUnitID)
	err := s.remember(ctx, key, &analysts, func(ctx context.Context) (err error) {
		analysts, err = s.backend.ListAnalysts(ctx, subUnitID)
		return err
	})
	return analysts, err
}

// AnalystName resolves a display name from the cached analyst list, falling back to the user id.
func (s *CatalogService) AnalystName(ctx context.Context, subUnitID int, userID string) string {
	analysts, err := s.Analysts(ctx, subUnitID)
	if err != nil {
		s.logger.Debug("analyst lookup failed", zap.Int("sub_unit_id", subUnitID), zap.Error(err))
		return userID
	}
	for _, a := range analysts {
		if a.UserID == userID {
			return a.Name
		}
	}
	return userID
}

// RuleBook returns the active SLA rules indexed for lookup.
func (s *CatalogService) RuleBook(ctx context.Context) (*SlaRuleBook, error) {
	var rules []models.SlaRule
	err := s.remember(ctx, catalogSlaRulesKey, &rules, func(ctx context.Context) (err error) {
		rules, err = s.backend.ListSlaRules(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewSlaRuleBook(rules), nil
}

// Invalidate drops every cached catalog.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, catalogPattern)
}

func (s *CatalogService) remember(ctx context.Context, key string, dest interface{}, load func(ctx context.Context) error) error {
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.Remember(ctx, key, s.ttl, dest, load)
}
