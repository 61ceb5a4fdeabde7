package credit

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con los repositorios atados a ella.
// Commit si fn devuelve nil; Rollback en cualquier otro caso.
type TxRunner interface {
	RunLedger(ctx context.Context, fn func(
		tenants repository.TenantRepository,
		credits repository.CreditRepository,
	) error) error
}
