package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var _ repository.CreditRepository = (*CreditRepo)(nil)

// CreditRepo ledger de créditos append-only (usable con pool o tx).
type CreditRepo struct {
	q Querier
}

// NewCreditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCreditRepository(q Querier) *CreditRepo {
	return &CreditRepo{q: q}
}

// Append inserta un movimiento. Nunca se actualiza ni se borra.
func (r *CreditRepo) Append(ctx context.Context, tx *entity.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (id, tenant_id, type, amount, reason, source_reference, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		tx.ID, tx.TenantID, string(tx.Type), tx.Amount, tx.Reason, tx.SourceReference, tx.CreatedAt, tx.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// Summary agrega los movimientos del tenant evaluando vencimientos en at.
func (r *CreditRepo) Summary(ctx context.Context, tenantID string, at time.Time) (entity.CreditSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'earned'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'earned' AND (expires_at IS NULL OR expires_at > $2)), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'spent'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expired'), 0)
		FROM credit_transactions WHERE tenant_id = $1`
	var s entity.CreditSummary
	if err := r.q.QueryRow(ctx, query, tenantID, at).Scan(&s.Earned, &s.ActiveEarned, &s.Spent, &s.Expired); err != nil {
		return entity.CreditSummary{}, fmt.Errorf("credit summary: %w", err)
	}
	return s, nil
}

// ListByTenant movimientos del tenant, más recientes primero (orden ULID).
func (r *CreditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.CreditTransaction, error) {
	query := `
		SELECT id, tenant_id, type, amount, reason, source_reference, created_at, expires_at
		FROM credit_transactions WHERE tenant_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var list []*entity.CreditTransaction
	for rows.Next() {
		var tx entity.CreditTransaction
		var typ string
		if err := rows.Scan(&tx.ID, &tx.TenantID, &typ, &tx.Amount, &tx.Reason, &tx.SourceReference, &tx.CreatedAt, &tx.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		tx.Type = entity.CreditTxType(typ)
		list = append(list, &tx)
	}
	return list, rows.Err()
}

// TenantsWithLapsedCredit tenants cuyo saldo bruto supera el crédito vigente en at.
func (r *CreditRepo) TenantsWithLapsedCredit(ctx context.Context, at time.Time) ([]string, error) {
	query := `
		SELECT tenant_id
		FROM credit_transactions
		GROUP BY tenant_id
		HAVING
			COALESCE(SUM(amount) FILTER (WHERE type = 'earned'), 0)
			- COALESCE(SUM(amount) FILTER (WHERE type IN ('spent', 'expired')), 0)
			> COALESCE(SUM(amount) FILTER (WHERE type = 'earned' AND (expires_at IS NULL OR expires_at > $1)), 0)
		ORDER BY tenant_id`
	rows, err := r.q.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("tenants with lapsed credit: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
