package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

var violationCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,63}$`)

// CatalogService manages the violation type registry.
type CatalogService struct {
	types  repository.ViolationTypeRepository
	logger *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(types repository.ViolationTypeRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{types: types, logger: logger}
}

// UpsertViolationTypeInput is the admin payload for a catalog entry.
type UpsertViolationTypeInput struct {
	Code             string
	Category         domain.ViolationCategory
	PointCost        int
	Description      string
	RequiresEvidence bool
	AutoDetect       bool
	IsActive         bool
}

// Seed installs the default catalog. Running it again rewrites the defaults.
func (s *CatalogService) Seed(ctx context.Context) (int, error) {
	defaults := domain.DefaultViolationTypes()
	for i := range defaults {
		if err := s.types.Upsert(ctx, &defaults[i]); err != nil {
			return i, apperrors.FromStore(err, "violation type", nil)
		}
	}
	s.logger.Info("violation catalog seeded", zap.Int("count", len(defaults)))
	return len(defaults), nil
}

// Upsert creates or replaces a catalog entry.
func (s *CatalogService) Upsert(ctx context.Context, input UpsertViolationTypeInput) (*domain.ViolationType, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if !violationCodePattern.MatchString(code) {
		return nil, apperrors.NewValidationError("code must be upper-case letters, digits and underscores", map[string]any{"code": input.Code})
	}
	if input.Category != domain.CategoryCustomer && input.Category != domain.CategoryProvider {
		return nil, apperrors.NewValidationError("category must be customer or provider", map[string]any{"category": input.Category})
	}
	if input.PointCost <= 0 || input.PointCost > domain.MaxPenaltyPoints {
		return nil, apperrors.NewValidationError("point_cost must be between 1 and 100", map[string]any{"point_cost": input.PointCost})
	}
	vt := &domain.ViolationType{
		Code:             code,
		Category:         input.Category,
		PointCost:        input.PointCost,
		Description:      strings.TrimSpace(input.Description),
		RequiresEvidence: input.RequiresEvidence,
		AutoDetect:       input.AutoDetect,
		IsActive:         input.IsActive,
	}
	if err := s.types.Upsert(ctx, vt); err != nil {
		return nil, apperrors.FromStore(err, "violation type", nil)
	}
	s.logger.Info("violation type upserted", zap.String("code", code), zap.Int("point_cost", vt.PointCost))
	return vt, nil
}

// List returns catalog entries ordered by category then cost.
func (s *CatalogService) List(ctx context.Context, category *domain.ViolationCategory, activeOnly bool) ([]domain.ViolationType, error) {
	items, err := s.types.List(ctx, repository.ViolationTypeFilter{Category: category, ActiveOnly: activeOnly})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation type", nil)
	}
	return items, nil
}
