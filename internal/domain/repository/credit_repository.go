package repository

import (
	"context"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// CreditRepository puerto del ledger de créditos (append-only).
type CreditRepository interface {
	Append(ctx context.Context, tx *entity.CreditTransaction) error
	// Summary agrega los movimientos del tenant; ActiveEarned se evalúa en at.
	Summary(ctx context.Context, tenantID string, at time.Time) (entity.CreditSummary, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.CreditTransaction, error)
	// TenantsWithLapsedCredit tenants con crédito vencido pendiente de barrer en at.
	TenantsWithLapsedCredit(ctx context.Context, at time.Time) ([]string, error)
}
