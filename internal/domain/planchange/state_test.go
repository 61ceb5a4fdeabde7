package planchange_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog/catalogtest"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/proration"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func quote(changeType entity.ChangeType, prorated, available string, useCredit bool) planchange.Quote {
	return planchange.NewQuote(planchange.QuoteInput{
		WorkflowID: "wf-1",
		TenantID:   "tenant-1",
		Proration: entity.ProrationResult{
			Type:           changeType,
			FromPlan:       "starter",
			ToPlan:         "professional",
			ProratedAmount: d(prorated),
			Breakdown: []entity.BreakdownLine{
				{Description: "crédito", Amount: d("48.50"), Type: entity.LineCredit},
				{Description: "cargo", Amount: d("168.50"), Type: entity.LineCharge},
			},
		},
		UseCredit:       useCredit,
		AvailableCredit: d(available),
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Cotización
// ──────────────────────────────────────────────────────────────────────────────

func TestNewQuote_UpgradeConCredito(t *testing.T) {
	q := quote(entity.ChangeUpgrade, "120.00", "50.00", true)
	assert.True(t, d("50.00").Equal(q.CreditsToApply))
	assert.True(t, d("70.00").Equal(q.FinalAmount))
	assert.True(t, q.NeedsPayment())
}

func TestNewQuote_SinOptarPorCredito(t *testing.T) {
	q := quote(entity.ChangeUpgrade, "120.00", "50.00", false)
	assert.True(t, q.CreditsToApply.IsZero())
	assert.True(t, d("120.00").Equal(q.FinalAmount))
}

func TestNewQuote_CreditoCubreTodo(t *testing.T) {
	q := quote(entity.ChangeUpgrade, "40.00", "50.00", true)
	assert.True(t, d("40.00").Equal(q.CreditsToApply), "nunca se aplica más de lo adeudado")
	assert.True(t, q.FinalAmount.IsZero())
	assert.False(t, q.NeedsPayment())
}

func TestNewQuote_Downgrade(t *testing.T) {
	q := quote(entity.ChangeDowngrade, "-66.67", "10.00", true)
	assert.True(t, q.CreditsToApply.IsZero(), "un downgrade no consume créditos")
	assert.True(t, q.FinalAmount.IsZero())
	assert.True(t, d("66.67").Equal(q.CreditsGenerated()))
	assert.True(t, q.ChargedAmount().IsZero())
}

func TestQuote_Receipt(t *testing.T) {
	q := quote(entity.ChangeUpgrade, "120.00", "50.00", true)
	r := q.Receipt("pay_123", "BRL", time.Now())

	require.Len(t, r.Lines, 3)
	assert.True(t, d("-48.50").Equal(r.Lines[0].Amount), "la línea de crédito va en negativo")
	assert.True(t, d("168.50").Equal(r.Lines[1].Amount))
	assert.Equal(t, "Créditos aplicados", r.Lines[2].Description)
	assert.True(t, d("-50.00").Equal(r.Lines[2].Amount))
	assert.True(t, d("70.00").Equal(r.Total))
	assert.Equal(t, "pay_123", r.PaymentReference)
}

func TestQuote_ReceiptCuadraConElTotal(t *testing.T) {
	at := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	res, err := proration.NewCalculator(catalogtest.Standard(), func() time.Time { return at }).
		CalculatePlanChange("starter", "professional", entity.SubscriptionPeriod{
			StartDate: at.AddDate(0, 0, -10), EndDate: at.AddDate(0, 0, 20), Cycle: entity.CycleMonthly,
		})
	require.NoError(t, err)

	q := planchange.NewQuote(planchange.QuoteInput{
		WorkflowID: "wf-1", TenantID: "tenant-1", Proration: res,
		UseCredit: true, AvailableCredit: d("10.00"), CreatedAt: at,
	})
	r := q.Receipt("pay_1", "BRL", at)

	sum := decimal.Zero
	for _, l := range r.Lines {
		sum = sum.Add(l.Amount)
	}
	assert.True(t, d("56.67").Equal(r.Total))
	assert.True(t, r.Total.Equal(sum), "las líneas suman %s", sum)
}

func TestQuote_Record(t *testing.T) {
	at := time.Now()
	q := quote(entity.ChangeDowngrade, "-66.67", "0", false)
	rec := q.Record("rec-1", "", entity.PlanChangeCompleted, at)

	assert.Equal(t, entity.PlanChangeCompleted, rec.Status)
	assert.True(t, rec.ProratedAmount.IsZero())
	assert.True(t, d("66.67").Equal(rec.CreditsGenerated))
	assert.Equal(t, "wf-1", rec.WorkflowID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transiciones
// ──────────────────────────────────────────────────────────────────────────────

func TestReview_DowngradeSaltaAProcessing(t *testing.T) {
	next, eff := planchange.Start(quote(entity.ChangeDowngrade, "-66.67", "0", false)).Proceed()
	assert.Equal(t, planchange.StepProcessing, next.Step())
	assert.True(t, eff.Apply)
	assert.Nil(t, eff.Charge)
}

func TestReview_MontoCeroSaltaAProcessing(t *testing.T) {
	next, eff := planchange.Start(quote(entity.ChangeUpgrade, "40.00", "50.00", true)).Proceed()
	assert.Equal(t, planchange.StepProcessing, next.Step())
	assert.Nil(t, eff.Charge)
}

func TestFlujoCompleto_ConReintentoDePago(t *testing.T) {
	review := planchange.Start(quote(entity.ChangeUpgrade, "120.00", "50.00", true))
	next, eff := review.Proceed()
	require.Equal(t, planchange.StepPayment, next.Step())
	assert.False(t, eff.Apply)
	assert.True(t, planchange.InFlight(next))

	payment := next.(planchange.PaymentState)

	_, _, err := payment.Submit(entity.PaymentMethod{Kind: "cash"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	st, eff, err := payment.Submit(entity.PaymentMethod{Kind: entity.PaymentCard, Token: "tok_1"})
	require.NoError(t, err)
	require.NotNil(t, eff.Charge)
	assert.True(t, d("70.00").Equal(eff.Charge.Amount), "se cobra exactamente finalAmount")
	assert.Equal(t, "wf-1:1", eff.Charge.IdempotencyKey)

	processing := st.(planchange.ProcessingState)
	declined := &domain.PaymentError{Reason: "fondos insuficientes"}
	back := processing.ChargeFailed(declined)
	assert.Equal(t, planchange.StepPayment, back.Step())
	assert.True(t, errors.Is(back.Err(), domain.ErrPaymentDeclined))

	st, eff, err = back.Submit(entity.PaymentMethod{Kind: entity.PaymentPix})
	require.NoError(t, err)
	assert.Equal(t, "wf-1:2", eff.Charge.IdempotencyKey, "cada intento tiene su propia llave")

	q := st.Quote()
	done := st.(planchange.ProcessingState).Completed(q.Receipt("pay_2", "BRL", time.Now()), q.Record("r", "pay_2", entity.PlanChangeCompleted, time.Now()))
	assert.Equal(t, planchange.StepSuccess, done.Step())
	assert.False(t, planchange.InFlight(done))
	assert.False(t, planchange.CanDiscard(done))
	assert.Equal(t, "pay_2", done.Receipt().PaymentReference)
}

func TestProcessing_AbortaAReview(t *testing.T) {
	next, _ := planchange.Start(quote(entity.ChangeDowngrade, "-66.67", "0", false)).Proceed()
	review := next.(planchange.ProcessingState).ApplyFailed(errors.New("db caída"))
	assert.Equal(t, planchange.StepReview, review.Step())
	assert.EqualError(t, review.Err(), "db caída")
	assert.True(t, planchange.CanDiscard(review))
}

func TestAbortoAReview_NoRepiteLlavesDeIdempotencia(t *testing.T) {
	seen := map[string]bool{}
	submit := func(p planchange.PaymentState, token string) planchange.ProcessingState {
		t.Helper()
		st, eff, err := p.Submit(entity.PaymentMethod{Kind: entity.PaymentCard, Token: token})
		require.NoError(t, err)
		require.NotNil(t, eff.Charge)
		assert.False(t, seen[eff.Charge.IdempotencyKey], "llave repetida %s", eff.Charge.IdempotencyKey)
		seen[eff.Charge.IdempotencyKey] = true
		return st.(planchange.ProcessingState)
	}

	next, _ := planchange.Start(quote(entity.ChangeUpgrade, "120.00", "0", false)).Proceed()
	processing := submit(next.(planchange.PaymentState), "decline_1")
	payment := processing.ChargeFailed(&domain.PaymentError{Reason: "rechazada"})

	processing = submit(payment, "tok_ok")
	review := processing.ApplyFailed(errors.New("fallo al aplicar"))

	next, _ = review.Proceed()
	require.Equal(t, planchange.StepPayment, next.Step())
	assert.Equal(t, 2, next.(planchange.PaymentState).Attempts(), "el aborto conserva los intentos previos")

	processing = submit(next.(planchange.PaymentState), "tok_ok")
	assert.Equal(t, 3, processing.Attempt())
	assert.Len(t, seen, 3)
}
