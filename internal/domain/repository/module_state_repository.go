package repository

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// ModuleStateRepository puerto de persistencia de los estados de módulo por tenant.
// Los estados nunca se borran.
type ModuleStateRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]entity.ModuleState, error)
	Upsert(ctx context.Context, state *entity.ModuleState) error
	UpsertMany(ctx context.Context, states []entity.ModuleState) error
}
