package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// CatalogService lists categories and automation rules
type CatalogService interface {
	Categories(ctx context.Context, caller entity.Identity, activeOnly bool) ([]*entity.Category, error)
	Rules(ctx context.Context, caller entity.Identity) ([]*entity.Rule, error)
}

type catalogServiceImpl struct {
	categoryRepo port.CategoryRepository
	ruleRepo     port.RuleRepository
	logger       Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(categoryRepo port.CategoryRepository, ruleRepo port.RuleRepository, logger Logger) CatalogService {
	return &catalogServiceImpl{
		categoryRepo: categoryRepo,
		ruleRepo:     ruleRepo,
		logger:       orNop(logger),
	}
}

// Categories returns the category catalogue
func (s *catalogServiceImpl) Categories(ctx context.Context, caller entity.Identity, activeOnly bool) ([]*entity.Category, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	categories, err := s.categoryRepo.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list categories", "error", err)
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []*entity.Category{}
	}
	return categories, nil
}

// Rules returns rules ordered by priority. They are never evaluated.
func (s *catalogServiceImpl) Rules(ctx context.Context, caller entity.Identity) ([]*entity.Rule, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	rules, err := s.ruleRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list rules", "error", err)
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if rules == nil {
		rules = []*entity.Rule{}
	}
	return rules, nil
}
