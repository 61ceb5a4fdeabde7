package planchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	dent "github.com/jhoicas/tenant-billing-api/internal/domain/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	dplan "github.com/jhoicas/tenant-billing-api/internal/domain/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// process ejecuta Processing: cobro (si corresponde) y luego 3a–3d en una
// transacción. Deja el flujo en Payment (rechazo), Review (aborto) o Success.
func (s *Service) process(ctx context.Context, f *flow, proc dplan.ProcessingState, charge *dplan.ChargeIntent) error {
	q := proc.Quote()
	log := s.d.Logger.With().Str("tenant_id", q.TenantID).Str("workflow_id", q.WorkflowID).Logger()

	var paymentRef string
	if charge != nil && charge.Amount.IsPositive() {
		if err := s.checkQuote(ctx, q); err != nil {
			f.set(proc.ApplyFailed(err))
			s.releaseLock(ctx, f)
			return err
		}
		if err := s.checkCredit(ctx, q); err != nil {
			f.set(proc.ApplyFailed(err))
			s.releaseLock(ctx, f)
			log.Warn().Err(err).Msg("crédito cotizado ya no disponible; no se cobra")
			return err
		}
		res, err := s.d.Gateway.Charge(ctx, ports.ChargeRequest{
			TenantID:       q.TenantID,
			AmountMinor:    money.ToMinor(charge.Amount),
			Currency:       s.d.Formatter.Currency(),
			Method:         charge.Method,
			IdempotencyKey: charge.IdempotencyKey,
			Description:    fmt.Sprintf("Cambio de plan %s → %s", q.Proration.FromPlan, q.Proration.ToPlan),
		})
		if err != nil || !res.Success {
			reason := res.Message
			if err != nil {
				reason = err.Error()
			}
			perr := &domain.PaymentError{Reason: reason}
			f.set(proc.ChargeFailed(perr))
			s.d.Metrics.PaymentAttempt("declined")
			log.Warn().Str("idempotency_key", charge.IdempotencyKey).Str("reason", reason).Msg("pago rechazado")
			return perr
		}
		paymentRef = res.PaymentReference
		s.d.Metrics.PaymentAttempt("captured")
	}

	now := s.d.Now()
	receipt := q.Receipt(paymentRef, s.d.Formatter.Currency(), now)
	if s.d.Sealer != nil {
		digest, err := s.d.Sealer.Seal(receipt)
		if err != nil {
			log.Warn().Err(err).Msg("no se pudo sellar el comprobante")
		}
		receipt.Digest = digest
	}
	record := q.Record(uuid.New().String(), paymentRef, entity.PlanChangeCompleted, now)
	record.ReceiptDigest = receipt.Digest

	if err := s.apply(ctx, q, &record, now); err != nil {
		s.recordFailure(ctx, q, paymentRef, err, now)
		f.set(proc.ApplyFailed(err))
		s.releaseLock(ctx, f)
		log.Error().Err(err).Str("payment_reference", paymentRef).Msg("cambio de plan abortado")
		return err
	}

	f.set(proc.Completed(receipt, record))
	s.releaseLock(ctx, f)

	// Fuera de la transacción: nada de esto revierte el cambio.
	bg := context.WithoutCancel(ctx)
	if s.d.OnApplied != nil {
		s.d.OnApplied(q.TenantID)
	}
	s.d.Metrics.PlanChange(string(q.Proration.Type), string(entity.PlanChangeCompleted))
	s.d.Metrics.ProratedAmount(string(q.Proration.Type), q.Proration.ProratedAmount)
	if gen := q.CreditsGenerated(); gen.IsPositive() {
		s.d.Metrics.CreditTransaction(string(entity.CreditEarned), gen)
	}
	if q.CreditsToApply.IsPositive() {
		s.d.Metrics.CreditTransaction(string(entity.CreditSpent), q.CreditsToApply)
	}
	s.logAudit(bg, entity.AuditPlanChangeCompleted, record)
	s.notify(bg, q, record)
	log.Info().
		Str("change_type", string(record.ChangeType)).
		Str("charged", record.ProratedAmount.StringFixed(2)).
		Str("credits_applied", record.CreditsApplied.StringFixed(2)).
		Str("credits_generated", record.CreditsGenerated.StringFixed(2)).
		Msg("cambio de plan aplicado")
	return nil
}

// apply pasos 3a–3d en orden, todos o ninguno.
func (s *Service) apply(ctx context.Context, q dplan.Quote, record *entity.PlanChangeRecord, now time.Time) error {
	toPlan, err := s.d.Catalog.PlanBySlug(q.Proration.ToPlan)
	if err != nil {
		return err
	}
	return s.d.TxRunner.RunPlanChange(ctx, func(
		tenants repository.TenantRepository,
		modules repository.ModuleStateRepository,
		credits repository.CreditRepository,
		changes repository.PlanChangeRepository,
	) error {
		tenant, err := tenants.GetForUpdate(ctx, q.TenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domain.ErrTenantNotFound
		}
		if tenant.PlanSlug != q.Proration.FromPlan || tenant.BillingCycle != q.FromCycle {
			return fmt.Errorf("%w: la suscripción cambió desde la cotización", domain.ErrConflict)
		}

		// a. histórico
		if err := changes.Create(ctx, record); err != nil {
			return err
		}
		ledger := credit.NewLedger(credits, s.d.Now)
		// b. crédito por downgrade
		if gen := q.CreditsGenerated(); gen.IsPositive() {
			expiresAt := now.Add(s.d.CreditExpiry)
			reason := fmt.Sprintf("Crédito por cambio de %s a %s", q.Proration.FromPlan, q.Proration.ToPlan)
			if _, err := ledger.Earn(ctx, q.TenantID, gen, reason, record.ID, &expiresAt); err != nil {
				return err
			}
		}
		// c. crédito aplicado
		if q.CreditsToApply.IsPositive() {
			reason := fmt.Sprintf("Crédito aplicado al cambio a %s", q.Proration.ToPlan)
			if _, err := ledger.Spend(ctx, q.TenantID, q.CreditsToApply, reason, record.ID); err != nil {
				return err
			}
		}
		// d. entitlements y suscripción
		grants, err := modules.ListByTenant(ctx, q.TenantID)
		if err != nil {
			return err
		}
		resolved := dent.ResolveEffectiveStates(s.d.Catalog, q.TenantID, toPlan, grants, now)
		if err := modules.UpsertMany(ctx, resolved); err != nil {
			return err
		}
		tenant.PlanSlug = toPlan.Slug
		tenant.BillingCycle = q.ToCycle
		tenant.UpdatedAt = now
		return tenants.UpdateSubscription(ctx, tenant)
	})
}

// recordFailure deja constancia de un cobro capturado cuyo cambio no se aplicó.
func (s *Service) recordFailure(ctx context.Context, q dplan.Quote, paymentRef string, cause error, now time.Time) {
	bg := context.WithoutCancel(ctx)
	failed := q.Record(uuid.New().String(), paymentRef, entity.PlanChangeFailed, now)
	failed.FailureReason = cause.Error()
	s.d.Metrics.PlanChange(string(q.Proration.Type), string(entity.PlanChangeFailed))
	if paymentRef != "" {
		// Sin crédito aplicado ni generado: nada de eso llegó a confirmarse.
		failed.CreditsApplied = decimal.Zero
		failed.CreditsGenerated = decimal.Zero
		if err := s.d.Changes.Create(bg, &failed); err != nil {
			s.d.Logger.Error().Err(err).Str("tenant_id", q.TenantID).Str("payment_reference", paymentRef).
				Msg("no se pudo registrar el cambio fallido; conciliar manualmente")
		}
	}
	s.logAudit(bg, entity.AuditPlanChangeFailed, failed)
}

func (s *Service) logAudit(ctx context.Context, action string, r entity.PlanChangeRecord) {
	if s.d.Audit == nil {
		return
	}
	ev := entity.AuditEvent{
		ID:       uuid.New().String(),
		Action:   action,
		ActorID:  r.ActorID,
		TenantID: r.TenantID,
		FromPlan: r.FromPlan,
		ToPlan:   r.ToPlan,
		Details: map[string]any{
			"record_id":         r.ID,
			"workflow_id":       r.WorkflowID,
			"change_type":       string(r.ChangeType),
			"from_cycle":        string(r.FromCycle),
			"to_cycle":          string(r.ToCycle),
			"prorated_amount":   r.ProratedAmount.StringFixed(2),
			"credits_applied":   r.CreditsApplied.StringFixed(2),
			"credits_generated": r.CreditsGenerated.StringFixed(2),
			"payment_reference": r.PaymentReference,
			"status":            string(r.Status),
			"failure_reason":    r.FailureReason,
		},
		OccurredAt: r.CreatedAt,
	}
	if err := s.d.Audit.Log(ctx, ev); err != nil {
		s.d.Logger.Error().Err(err).Str("tenant_id", r.TenantID).Str("action", action).Msg("audit falló")
	}
}

func (s *Service) notify(ctx context.Context, q dplan.Quote, r entity.PlanChangeRecord) {
	if s.d.Notifier == nil {
		return
	}
	events := []ports.Notification{{
		ID:       uuid.New().String(),
		Type:     ports.NotifyPlanChange,
		TenantID: r.TenantID,
		Payload: map[string]any{
			"record_id":   r.ID,
			"change_type": string(r.ChangeType),
			"from_plan":   r.FromPlan,
			"to_plan":     r.ToPlan,
			"charged":     s.d.Formatter.Format(r.ProratedAmount),
			"effective":   r.EffectiveDate,
		},
		OccurredAt: r.CreatedAt,
	}}
	if gen := q.CreditsGenerated(); gen.IsPositive() {
		events = append(events, ports.Notification{
			ID:       uuid.New().String(),
			Type:     ports.NotifyCreditsEarned,
			TenantID: r.TenantID,
			Payload: map[string]any{
				"record_id":  r.ID,
				"amount":     gen.StringFixed(2),
				"formatted":  s.d.Formatter.Format(gen),
				"expires_at": r.CreatedAt.Add(s.d.CreditExpiry),
			},
			OccurredAt: r.CreatedAt,
		})
	}
	for _, n := range events {
		if err := s.d.Notifier.Send(ctx, n); err != nil {
			s.d.Logger.Warn().Err(err).Str("tenant_id", r.TenantID).Str("type", string(n.Type)).Msg("notificación no enviada")
		}
	}
}
