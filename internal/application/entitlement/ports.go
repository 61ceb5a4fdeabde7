package entitlement

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// TxRunner ejecuta fn en una transacción con los repositorios atados a ella.
type TxRunner interface {
	RunEntitlements(ctx context.Context, fn func(
		tenants repository.TenantRepository,
		modules repository.ModuleStateRepository,
	) error) error
}
