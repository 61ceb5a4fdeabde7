package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo implementación de TenantRepository sobre PostgreSQL (usable con pool o tx).
type TenantRepo struct {
	q Querier
}

// NewTenantRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

const tenantColumns = `id, name, status, plan_slug, billing_cycle, period_start, period_end, created_at, updated_at`

// Create persiste un tenant nuevo.
func (r *TenantRepo) Create(ctx context.Context, t *entity.Tenant) error {
	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.Name, t.Status, t.PlanSlug, string(t.BillingCycle),
		t.PeriodStart, t.PeriodEnd, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: el tenant %s ya existe", domain.ErrConflict, t.ID)
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetByID obtiene un tenant. nil, nil si no existe.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// GetForUpdate obtiene el tenant bloqueando la fila (SELECT FOR UPDATE).
func (r *TenantRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1 FOR UPDATE`, id)
}

func (r *TenantRepo) get(ctx context.Context, query, id string) (*entity.Tenant, error) {
	var t entity.Tenant
	var cycle string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Status, &t.PlanSlug, &cycle,
		&t.PeriodStart, &t.PeriodEnd, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.BillingCycle = entity.BillingCycle(cycle)
	return &t, nil
}

// UpdateSubscription actualiza plan, ciclo y periodo del tenant.
func (r *TenantRepo) UpdateSubscription(ctx context.Context, t *entity.Tenant) error {
	query := `
		UPDATE tenants
		SET plan_slug = $2, billing_cycle = $3, period_start = $4, period_end = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, t.ID, t.PlanSlug, string(t.BillingCycle), t.PeriodStart, t.PeriodEnd, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tenant subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}
