// Package credit expone el ledger de créditos por tenant: saldo, concesiones
// manuales, consumo y barrido de vencimientos.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	dcredit "github.com/jhoicas/tenant-billing-api/internal/domain/credit"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// Service casos de uso del ledger.
type Service struct {
	txRunner  TxRunner
	credits   repository.CreditRepository
	audit     ports.AuditSink
	notifier  ports.NotificationSink
	metrics   ports.Metrics
	formatter *money.Formatter
	expiry    time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// Deps dependencias del servicio.
type Deps struct {
	TxRunner  TxRunner
	Credits   repository.CreditRepository
	Audit     ports.AuditSink
	Notifier  ports.NotificationSink
	Metrics   ports.Metrics
	Formatter *money.Formatter
	Expiry    time.Duration // vigencia por defecto de un crédito concedido
	Logger    zerolog.Logger
	Now       func() time.Time
}

// NewService construye el servicio.
func NewService(d Deps) *Service {
	s := &Service{
		txRunner:  d.TxRunner,
		credits:   d.Credits,
		audit:     d.Audit,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		formatter: d.Formatter,
		expiry:    d.Expiry,
		log:       d.Logger,
		now:       d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	if s.formatter == nil {
		s.formatter = money.NewFormatter("")
	}
	if s.expiry <= 0 {
		s.expiry = 365 * 24 * time.Hour
	}
	return s
}

// Balance saldo disponible del tenant.
func (s *Service) Balance(ctx context.Context, tenantID string) (*dto.CreditBalanceResponse, error) {
	sum, err := NewLedger(s.credits, s.now).Summary(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	balance := dcredit.Balance(sum)
	return &dto.CreditBalanceResponse{
		TenantID:  tenantID,
		Balance:   balance,
		Formatted: s.formatter.Format(balance),
		Earned:    sum.Earned,
		Spent:     sum.Spent,
		Expired:   sum.Expired,
		Lapsed:    dcredit.Lapsed(sum),
		Currency:  s.formatter.Currency(),
	}, nil
}

// AvailableCredit saldo numérico (lo usa el flujo de cambio de plan en Review).
func (s *Service) AvailableCredit(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	return NewLedger(s.credits, s.now).Balance(ctx, tenantID)
}

// Transactions lista los movimientos del tenant, más recientes primero.
func (s *Service) Transactions(ctx context.Context, tenantID string, page dto.PageRequest) (*dto.CreditTransactionListResponse, error) {
	page.DefaultPage()
	list, err := s.credits.ListByTenant(ctx, tenantID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	out := &dto.CreditTransactionListResponse{
		Items: make([]dto.CreditTransactionResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, tx := range list {
		out.Items = append(out.Items, ToTransactionResponse(tx))
	}
	return out, nil
}

// Earn concesión manual de crédito por un administrador.
func (s *Service) Earn(ctx context.Context, tenantID, actorID string, in dto.EarnCreditRequest) (*entity.CreditTransaction, error) {
	if in.Reason == "" {
		return nil, fmt.Errorf("%w: reason es obligatorio", domain.ErrInvalidInput)
	}
	if in.ExpiresInDays < 0 {
		return nil, fmt.Errorf("%w: expires_in_days no puede ser negativo", domain.ErrInvalidInput)
	}
	expiry := s.expiry
	if in.ExpiresInDays > 0 {
		expiry = time.Duration(in.ExpiresInDays) * 24 * time.Hour
	}
	expiresAt := s.now().Add(expiry)

	var earned *entity.CreditTransaction
	err := s.txRunner.RunLedger(ctx, func(tenants repository.TenantRepository, credits repository.CreditRepository) error {
		if err := lockTenant(ctx, tenants, tenantID); err != nil {
			return err
		}
		var err error
		earned, err = NewLedger(credits, s.now).Earn(ctx, tenantID, in.Amount, in.Reason, in.SourceReference, &expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CreditTransaction(string(entity.CreditEarned), earned.Amount)
	s.logAudit(ctx, entity.AuditCreditGranted, actorID, earned)
	s.notify(ctx, earned)
	return earned, nil
}

// Spend consumo manual de crédito.
func (s *Service) Spend(ctx context.Context, tenantID, actorID string, in dto.SpendCreditRequest) (*entity.CreditTransaction, error) {
	if in.Reason == "" {
		return nil, fmt.Errorf("%w: reason es obligatorio", domain.ErrInvalidInput)
	}
	var spent *entity.CreditTransaction
	err := s.txRunner.RunLedger(ctx, func(tenants repository.TenantRepository, credits repository.CreditRepository) error {
		if err := lockTenant(ctx, tenants, tenantID); err != nil {
			return err
		}
		var err error
		spent, err = NewLedger(credits, s.now).Spend(ctx, tenantID, in.Amount, in.Reason, in.SourceReference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CreditTransaction(string(entity.CreditSpent), spent.Amount)
	s.logAudit(ctx, entity.AuditCreditSpent, actorID, spent)
	return spent, nil
}

// TenantsWithLapsedCredit tenants con crédito vencido pendiente de barrer.
func (s *Service) TenantsWithLapsedCredit(ctx context.Context) ([]string, error) {
	ids, err := s.credits.TenantsWithLapsedCredit(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("tenants with lapsed credit: %w", err)
	}
	return ids, nil
}

// SweepTenant registra como expired el crédito vencido de un tenant.
// Devuelve nil, nil si no había nada que barrer.
func (s *Service) SweepTenant(ctx context.Context, tenantID string) (*entity.CreditTransaction, error) {
	var expired *entity.CreditTransaction
	err := s.txRunner.RunLedger(ctx, func(tenants repository.TenantRepository, credits repository.CreditRepository) error {
		if err := lockTenant(ctx, tenants, tenantID); err != nil {
			return err
		}
		var err error
		expired, err = NewLedger(credits, s.now).SweepExpired(ctx, tenantID)
		return err
	})
	if err != nil || expired == nil {
		return nil, err
	}
	s.metrics.CreditTransaction(string(entity.CreditExpired), expired.Amount)
	s.logAudit(ctx, entity.AuditCreditExpired, "system", expired)
	return expired, nil
}

func (s *Service) logAudit(ctx context.Context, action, actorID string, tx *entity.CreditTransaction) {
	if s.audit == nil {
		return
	}
	ev := entity.AuditEvent{
		ID:       uuid.New().String(),
		Action:   action,
		ActorID:  actorID,
		TenantID: tx.TenantID,
		Details: map[string]any{
			"transaction_id":   tx.ID,
			"amount":           tx.Amount.StringFixed(2),
			"reason":           tx.Reason,
			"source_reference": tx.SourceReference,
		},
		OccurredAt: tx.CreatedAt,
	}
	if err := s.audit.Log(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("tenant_id", tx.TenantID).Str("action", action).Msg("audit falló")
	}
}

func (s *Service) notify(ctx context.Context, tx *entity.CreditTransaction) {
	if s.notifier == nil {
		return
	}
	n := ports.Notification{
		ID:       uuid.New().String(),
		Type:     ports.NotifyCreditsEarned,
		TenantID: tx.TenantID,
		Payload: map[string]any{
			"amount":     tx.Amount.StringFixed(2),
			"formatted":  s.formatter.Format(tx.Amount),
			"reason":     tx.Reason,
			"expires_at": tx.ExpiresAt,
		},
		OccurredAt: tx.CreatedAt,
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("tenant_id", tx.TenantID).Msg("notificación de créditos no enviada")
	}
}

// lockTenant bloquea la fila del tenant para serializar las escrituras del ledger.
func lockTenant(ctx context.Context, tenants repository.TenantRepository, tenantID string) error {
	t, err := tenants.GetForUpdate(ctx, tenantID)
	if err != nil {
		return err
	}
	if t == nil {
		return domain.ErrTenantNotFound
	}
	return nil
}

// ToTransactionResponse mapea un movimiento del ledger a su DTO.
func ToTransactionResponse(tx *entity.CreditTransaction) dto.CreditTransactionResponse {
	return dto.CreditTransactionResponse{
		ID:              tx.ID,
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		Reason:          tx.Reason,
		SourceReference: tx.SourceReference,
		CreatedAt:       tx.CreatedAt,
		ExpiresAt:       tx.ExpiresAt,
	}
}
