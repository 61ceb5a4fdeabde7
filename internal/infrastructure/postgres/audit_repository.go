package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo eventos de auditoría append-only.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserta el evento; Details se guarda como JSONB.
func (r *AuditRepo) Append(ctx context.Context, ev *entity.AuditEvent) error {
	details := ev.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	query := `
		INSERT INTO audit_events (id, action, actor_id, tenant_id, module_id, from_plan, to_plan,
			access_source, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query,
		ev.ID, ev.Action, ev.ActorID, ev.TenantID, ev.ModuleID, ev.FromPlan, ev.ToPlan,
		string(ev.AccessSource), raw, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
