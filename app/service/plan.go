package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type planRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Plan, error)
	FindByCode(ctx context.Context, code string) (*entity.Plan, error)
	ListActive(ctx context.Context) ([]*entity.Plan, error)
}

// PlanService is the read-only plan catalogue.
type PlanService struct {
	planRepo planRepository
}

func NewPlanService(planRepo planRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

// GetPlan also returns deactivated plans so payments made before a plan was
// retired can still be applied.
func (s *PlanService) GetPlan(ctx context.Context, id uint64) (*entity.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPlanNotFound, id)
	}
	return plan, nil
}

func (s *PlanService) GetPlanByCode(ctx context.Context, code string) (*entity.Plan, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: plan code is required", ErrInvalidRequest)
	}
	plan, err := s.planRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: code %s", ErrPlanNotFound, code)
	}
	return plan, nil
}

func (s *PlanService) ListPlans(ctx context.Context) ([]*entity.Plan, error) {
	return s.planRepo.ListActive(ctx)
}
