package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	dcredit "github.com/jhoicas/tenant-billing-api/internal/domain/credit"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// Ledger operaciones del ledger sobre un CreditRepository. No serializa por
// tenant: el caller debe invocarlo dentro de una transacción que tenga el lock
// del tenant (TenantRepository.GetForUpdate).
type Ledger struct {
	repo repository.CreditRepository
	now  func() time.Time
}

// NewLedger construye el ledger. now nil = time.Now.
func NewLedger(repo repository.CreditRepository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, now: now}
}

// Summary agregados del tenant al instante actual.
func (l *Ledger) Summary(ctx context.Context, tenantID string) (entity.CreditSummary, error) {
	s, err := l.repo.Summary(ctx, tenantID, l.now())
	if err != nil {
		return entity.CreditSummary{}, fmt.Errorf("credit summary: %w", err)
	}
	return s, nil
}

// Balance saldo disponible (nunca negativo; excluye créditos vencidos).
func (l *Ledger) Balance(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	s, err := l.Summary(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	return dcredit.Balance(s), nil
}

// LapsedAmount crédito vencido aún no registrado como expired.
func (l *Ledger) LapsedAmount(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	s, err := l.Summary(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	return dcredit.Lapsed(s), nil
}

// Earn agrega un movimiento earned. amount > 0; expiresAt, si viene, debe ser futuro.
func (l *Ledger) Earn(ctx context.Context, tenantID string, amount decimal.Decimal, reason, sourceRef string, expiresAt *time.Time) (*entity.CreditTransaction, error) {
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: el monto del crédito debe ser mayor que cero", domain.ErrInvalidInput)
	}
	now := l.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: el vencimiento del crédito debe ser futuro", domain.ErrInvalidInput)
	}
	tx := l.newTx(tenantID, entity.CreditEarned, amount, reason, sourceRef, now)
	tx.ExpiresAt = expiresAt
	if err := l.repo.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append earned: %w", err)
	}
	return tx, nil
}

// Spend consume crédito. Primero barre el crédito vencido y luego valida el
// saldo: amount > balance → ErrInsufficientCredit sin escribir nada más.
func (l *Ledger) Spend(ctx context.Context, tenantID string, amount decimal.Decimal, reason, sourceRef string) (*entity.CreditTransaction, error) {
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: el monto a consumir debe ser mayor que cero", domain.ErrInvalidInput)
	}
	if _, err := l.SweepExpired(ctx, tenantID); err != nil {
		return nil, err
	}
	balance, err := l.Balance(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: disponible %s, solicitado %s", domain.ErrInsufficientCredit, balance.StringFixed(2), amount.StringFixed(2))
	}
	tx := l.newTx(tenantID, entity.CreditSpent, amount, reason, sourceRef, l.now())
	if err := l.repo.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append spent: %w", err)
	}
	return tx, nil
}

// SweepExpired registra como expired el crédito vencido del tenant.
// Devuelve nil, nil si no hay nada que barrer.
func (l *Ledger) SweepExpired(ctx context.Context, tenantID string) (*entity.CreditTransaction, error) {
	lapsed, err := l.LapsedAmount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !lapsed.IsPositive() {
		return nil, nil
	}
	tx := l.newTx(tenantID, entity.CreditExpired, lapsed, "Vencimiento de créditos", "", l.now())
	if err := l.repo.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append expired: %w", err)
	}
	return tx, nil
}

func (l *Ledger) newTx(tenantID string, typ entity.CreditTxType, amount decimal.Decimal, reason, sourceRef string, at time.Time) *entity.CreditTransaction {
	return &entity.CreditTransaction{
		ID:              ulid.Make().String(),
		TenantID:        tenantID,
		Type:            typ,
		Amount:          amount,
		Reason:          reason,
		SourceReference: sourceRef,
		CreatedAt:       at,
	}
}
