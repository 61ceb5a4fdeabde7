package planchange

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// TxRunner ejecuta los pasos 3a–3d del cambio de plan en una única transacción.
// Commit si fn devuelve nil; Rollback en cualquier otro caso.
type TxRunner interface {
	RunPlanChange(ctx context.Context, fn func(
		tenants repository.TenantRepository,
		modules repository.ModuleStateRepository,
		credits repository.CreditRepository,
		changes repository.PlanChangeRepository,
	) error) error
}
