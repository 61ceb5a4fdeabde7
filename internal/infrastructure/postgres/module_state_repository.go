package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var _ repository.ModuleStateRepository = (*ModuleStateRepo)(nil)

// ModuleStateRepo estados de módulo por tenant (usable con pool o tx).
type ModuleStateRepo struct {
	q Querier
}

// NewModuleStateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewModuleStateRepository(q Querier) *ModuleStateRepo {
	return &ModuleStateRepo{q: q}
}

const upsertModuleState = `
	INSERT INTO tenant_modules (tenant_id, module_id, status, access_source, quantity,
		enabled_at, expires_at, disabled_manually, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (tenant_id, module_id) DO UPDATE SET
		status = EXCLUDED.status,
		access_source = EXCLUDED.access_source,
		quantity = EXCLUDED.quantity,
		enabled_at = EXCLUDED.enabled_at,
		expires_at = EXCLUDED.expires_at,
		disabled_manually = EXCLUDED.disabled_manually,
		updated_at = EXCLUDED.updated_at`

// ListByTenant devuelve los estados persistidos del tenant.
func (r *ModuleStateRepo) ListByTenant(ctx context.Context, tenantID string) ([]entity.ModuleState, error) {
	query := `
		SELECT tenant_id, module_id, status, access_source, quantity,
			enabled_at, expires_at, disabled_manually, updated_at
		FROM tenant_modules WHERE tenant_id = $1 ORDER BY module_id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list module states: %w", err)
	}
	defer rows.Close()

	var list []entity.ModuleState
	for rows.Next() {
		var st entity.ModuleState
		var status, source string
		if err := rows.Scan(
			&st.TenantID, &st.ModuleID, &status, &source, &st.Quantity,
			&st.EnabledAt, &st.ExpiresAt, &st.DisabledManually, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan module state: %w", err)
		}
		st.Status = entity.ModuleStatus(status)
		st.AccessSource = entity.AccessSource(source)
		list = append(list, st)
	}
	return list, rows.Err()
}

// Upsert inserta o actualiza un estado.
func (r *ModuleStateRepo) Upsert(ctx context.Context, st *entity.ModuleState) error {
	if _, err := r.q.Exec(ctx, upsertModuleState, moduleStateArgs(st)...); err != nil {
		return fmt.Errorf("upsert module state: %w", err)
	}
	return nil
}

// UpsertMany persiste varios estados en un solo batch.
func (r *ModuleStateRepo) UpsertMany(ctx context.Context, states []entity.ModuleState) error {
	if len(states) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range states {
		batch.Queue(upsertModuleState, moduleStateArgs(&states[i])...)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range states {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert module states: %w", err)
		}
	}
	return nil
}

func moduleStateArgs(st *entity.ModuleState) []any {
	return []any{
		st.TenantID, st.ModuleID, string(st.Status), string(st.AccessSource), st.Quantity,
		st.EnabledAt, st.ExpiresAt, st.DisabledManually, st.UpdatedAt,
	}
}
