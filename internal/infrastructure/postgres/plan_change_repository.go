package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var _ repository.PlanChangeRepository = (*PlanChangeRepo)(nil)

// PlanChangeRepo histórico de cambios de plan (usable con pool o tx).
type PlanChangeRepo struct {
	q Querier
}

// NewPlanChangeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPlanChangeRepository(q Querier) *PlanChangeRepo {
	return &PlanChangeRepo{q: q}
}

const planChangeColumns = `id, workflow_id, tenant_id, actor_id, change_type, from_plan, to_plan,
	from_cycle, to_cycle, prorated_amount, credits_applied, credits_generated, effective_date,
	payment_reference, status, failure_reason, receipt_digest, created_at`

// Create inserta el registro; es inmutable una vez escrito.
func (r *PlanChangeRepo) Create(ctx context.Context, rec *entity.PlanChangeRecord) error {
	query := `
		INSERT INTO plan_changes (` + planChangeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.WorkflowID, rec.TenantID, rec.ActorID, string(rec.ChangeType), rec.FromPlan, rec.ToPlan,
		string(rec.FromCycle), string(rec.ToCycle), rec.ProratedAmount, rec.CreditsApplied, rec.CreditsGenerated,
		rec.EffectiveDate, rec.PaymentReference, string(rec.Status), rec.FailureReason, rec.ReceiptDigest, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: registro de cambio de plan duplicado", domain.ErrConflict)
		}
		return fmt.Errorf("insert plan change: %w", err)
	}
	return nil
}

// GetByID obtiene un registro. nil, nil si no existe.
func (r *PlanChangeRepo) GetByID(ctx context.Context, id string) (*entity.PlanChangeRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+planChangeColumns+` FROM plan_changes WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get plan change: %w", err)
	}
	list, err := scanPlanChanges(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// ListByTenant histórico del tenant, más recientes primero.
func (r *PlanChangeRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.PlanChangeRecord, error) {
	query := `SELECT ` + planChangeColumns + ` FROM plan_changes
		WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list plan changes: %w", err)
	}
	return scanPlanChanges(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanPlanChanges(rows pgxRows) ([]*entity.PlanChangeRecord, error) {
	defer rows.Close()
	var list []*entity.PlanChangeRecord
	for rows.Next() {
		var rec entity.PlanChangeRecord
		var changeType, fromCycle, toCycle, status string
		if err := rows.Scan(
			&rec.ID, &rec.WorkflowID, &rec.TenantID, &rec.ActorID, &changeType, &rec.FromPlan, &rec.ToPlan,
			&fromCycle, &toCycle, &rec.ProratedAmount, &rec.CreditsApplied, &rec.CreditsGenerated, &rec.EffectiveDate,
			&rec.PaymentReference, &status, &rec.FailureReason, &rec.ReceiptDigest, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan change: %w", err)
		}
		rec.ChangeType = entity.ChangeType(changeType)
		rec.FromCycle = entity.BillingCycle(fromCycle)
		rec.ToCycle = entity.BillingCycle(toCycle)
		rec.Status = entity.PlanChangeStatus(status)
		list = append(list, &rec)
	}
	return list, rows.Err()
}
