package repository

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// PlanChangeRepository histórico inmutable de cambios de plan.
type PlanChangeRepository interface {
	Create(ctx context.Context, record *entity.PlanChangeRecord) error
	GetByID(ctx context.Context, id string) (*entity.PlanChangeRecord, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.PlanChangeRecord, error)
}
