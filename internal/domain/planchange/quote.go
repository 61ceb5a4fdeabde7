// Package planchange modela el flujo de cambio de plan como una máquina de
// estados pura: Review → Payment → Processing → Success, con Processing →
// Payment (reintento de pago) y Processing → Review (aborto) como únicos
// retrocesos. Las transiciones devuelven el siguiente estado y los efectos a
// ejecutar; quien ejecuta los efectos es la capa de aplicación.
package planchange

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// QuoteInput datos para cotizar un cambio de plan en Review.
type QuoteInput struct {
	WorkflowID      string
	TenantID        string
	ActorID         string
	FromCycle       entity.BillingCycle
	ToCycle         entity.BillingCycle
	Proration       entity.ProrationResult
	UseCredit       bool
	AvailableCredit decimal.Decimal
	CreatedAt       time.Time
}

// Quote parte inmutable del flujo, calculada en Review.
type Quote struct {
	QuoteInput
	CreditsToApply decimal.Decimal
	FinalAmount    decimal.Decimal
}

// NewQuote calcula:
//
//	creditsToApply = min(availableCredit, max(0, prorated))  si el tenant usa crédito
//	finalAmount    = max(0, prorated − creditsToApply)
func NewQuote(in QuoteInput) Quote {
	q := Quote{QuoteInput: in, CreditsToApply: decimal.Zero}
	owed := money.Max(decimal.Zero, in.Proration.ProratedAmount)
	if in.UseCredit {
		q.CreditsToApply = money.Round(money.Min(money.Max(decimal.Zero, in.AvailableCredit), owed))
	}
	q.FinalAmount = money.Round(money.Max(decimal.Zero, in.Proration.ProratedAmount.Sub(q.CreditsToApply)))
	return q
}

// IsDowngrade informa si el cambio baja de plan.
func (q Quote) IsDowngrade() bool {
	return q.Proration.Type == entity.ChangeDowngrade
}

// NeedsPayment informa si el flujo debe pasar por Payment.
func (q Quote) NeedsPayment() bool {
	return !q.IsDowngrade() && q.FinalAmount.IsPositive()
}

// ChargedAmount monto que se cobra: finalAmount (0 en downgrades).
func (q Quote) ChargedAmount() decimal.Decimal {
	if q.IsDowngrade() {
		return decimal.Zero
	}
	return q.FinalAmount
}

// CreditsGenerated créditos que genera un downgrade con prorrateo negativo.
func (q Quote) CreditsGenerated() decimal.Decimal {
	if !q.IsDowngrade() || !q.Proration.ProratedAmount.IsNegative() {
		return decimal.Zero
	}
	return q.Proration.ProratedAmount.Abs()
}

// Receipt arma el comprobante: el desglose del prorrateo más la línea de
// crédito aplicado; Total = finalAmount.
func (q Quote) Receipt(paymentRef, currency string, issuedAt time.Time) entity.Receipt {
	lines := make([]entity.ReceiptLine, 0, len(q.Proration.Breakdown)+1)
	for _, l := range q.Proration.Breakdown {
		amount := l.Amount
		if l.Type == entity.LineCredit {
			amount = amount.Neg()
		}
		lines = append(lines, entity.ReceiptLine{Description: l.Description, Amount: amount})
	}
	if q.CreditsToApply.IsPositive() {
		lines = append(lines, entity.ReceiptLine{Description: "Créditos aplicados", Amount: q.CreditsToApply.Neg()})
	}
	return entity.Receipt{
		WorkflowID:       q.WorkflowID,
		TenantID:         q.TenantID,
		FromPlan:         q.Proration.FromPlan,
		ToPlan:           q.Proration.ToPlan,
		Lines:            lines,
		Total:            q.ChargedAmount(),
		Currency:         currency,
		PaymentReference: paymentRef,
		IssuedAt:         issuedAt,
	}
}

// Record construye el PlanChangeRecord del flujo.
func (q Quote) Record(id, paymentRef string, status entity.PlanChangeStatus, at time.Time) entity.PlanChangeRecord {
	return entity.PlanChangeRecord{
		ID:               id,
		WorkflowID:       q.WorkflowID,
		TenantID:         q.TenantID,
		ActorID:          q.ActorID,
		ChangeType:       q.Proration.Type,
		FromPlan:         q.Proration.FromPlan,
		ToPlan:           q.Proration.ToPlan,
		FromCycle:        q.FromCycle,
		ToCycle:          q.ToCycle,
		ProratedAmount:   q.ChargedAmount(),
		CreditsApplied:   q.CreditsToApply,
		CreditsGenerated: q.CreditsGenerated(),
		EffectiveDate:    at,
		PaymentReference: paymentRef,
		Status:           status,
		CreatedAt:        at,
	}
}
