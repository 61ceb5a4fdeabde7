package planchange_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/application/apptest"
	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog/catalogtest"
	dent "github.com/jhoicas/tenant-billing-api/internal/domain/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/lock"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

var now = time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type sealer struct{}

func (sealer) Seal(r entity.Receipt) (string, error) { return "digest-" + r.WorkflowID, nil }

type renderer struct{}

func (renderer) RenderReceipt(_ context.Context, r entity.Receipt) ([]byte, error) {
	return []byte("%PDF " + r.WorkflowID), nil
}

type fixture struct {
	catalog  *catalog.Catalog
	store    *apptest.Store
	gateway  *apptest.Gateway
	notifier *apptest.Notifier
	locker   ports.TenantLocker
	applied  []string
	svc      *planchange.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  catalogtest.Standard(),
		store:    apptest.NewStore(),
		gateway:  &apptest.Gateway{},
		notifier: &apptest.Notifier{},
		locker:   lock.NewMemoryLocker(),
	}
	f.svc = f.newService()
	return f
}

func (f *fixture) newService() *planchange.Service {
	return planchange.NewService(planchange.Deps{
		Catalog:      f.catalog,
		TxRunner:     f.store,
		Tenants:      f.store.Tenants(),
		Modules:      f.store.Modules(),
		Credits:      f.store.Credits(),
		Changes:      f.store.PlanChanges(),
		Gateway:      f.gateway,
		Notifier:     f.notifier,
		Audit:        apptest.AuditSink{Store: f.store},
		Locker:       f.locker,
		Sealer:       sealer{},
		Renderer:     renderer{},
		Formatter:    money.NewFormatter("BRL"),
		CreditExpiry: 365 * 24 * time.Hour,
		OnApplied:    func(id string) { f.applied = append(f.applied, id) },
		Now:          func() time.Time { return now },
	})
}

// tenant en plan con periodo mensual de elapsed+remaining días.
func (f *fixture) tenant(t *testing.T, planSlug string, elapsed, remaining int) {
	t.Helper()
	f.store.PutTenant(entity.Tenant{
		ID:           "t1",
		Name:         "Acme",
		Status:       entity.TenantActive,
		PlanSlug:     planSlug,
		BillingCycle: entity.CycleMonthly,
		PeriodStart:  now.AddDate(0, 0, -elapsed),
		PeriodEnd:    now.AddDate(0, 0, remaining),
	})
	plan, err := f.catalog.PlanBySlug(planSlug)
	require.NoError(t, err)
	states := dent.ResolveEffectiveStates(f.catalog, "t1", plan, nil, now.AddDate(0, 0, -elapsed))
	require.NoError(t, f.store.Modules().UpsertMany(context.Background(), states))
}

func (f *fixture) grantCredit(t *testing.T, amount string) {
	t.Helper()
	exp := now.AddDate(0, 6, 0)
	_, err := credit.NewLedger(f.store.Credits(), func() time.Time { return now }).
		Earn(context.Background(), "t1", d(amount), "bono", "", &exp)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := credit.NewLedger(f.store.Credits(), func() time.Time { return now }).Balance(context.Background(), "t1")
	require.NoError(t, err)
	return b
}

func card(token string) dto.SubmitPaymentRequest {
	return dto.SubmitPaymentRequest{Kind: "card", Token: token, HolderName: "Ana"}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios completos
// ──────────────────────────────────────────────────────────────────────────────

func TestDowngrade_GeneraCreditoSinPago(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "professional", 10, 20)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	require.NoError(t, err)
	assert.Equal(t, "review", view.Step)
	assert.Equal(t, "downgrade", view.Proration.Type)
	assert.True(t, d("-66.67").Equal(view.Proration.ProratedAmount))
	assert.False(t, view.NeedsPayment)
	assert.ElementsMatch(t, []string{"crm", "chat"}, view.ModuleChanges.Deactivated)

	view, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step, "el downgrade salta Payment")
	require.NotNil(t, view.Receipt)
	assert.True(t, view.Receipt.Total.IsZero())
	assert.Empty(t, f.gateway.Requests())

	txs := f.store.CreditTxs("t1")
	require.Len(t, txs, 1)
	assert.Equal(t, entity.CreditEarned, txs[0].Type)
	assert.True(t, d("66.67").Equal(txs[0].Amount))
	require.NotNil(t, txs[0].ExpiresAt)
	assert.Equal(t, now.Add(365*24*time.Hour), *txs[0].ExpiresAt)

	records := f.store.Changes("t1")
	require.Len(t, records, 1)
	assert.Equal(t, entity.PlanChangeCompleted, records[0].Status)
	assert.True(t, records[0].ProratedAmount.IsZero())
	assert.True(t, d("66.67").Equal(records[0].CreditsGenerated))
	assert.Equal(t, txs[0].SourceReference, records[0].ID)
	assert.Equal(t, "digest-"+view.WorkflowID, records[0].ReceiptDigest)

	tenant, _ := f.store.Tenant("t1")
	assert.Equal(t, "starter", tenant.PlanSlug)
	crm, _ := f.store.ModuleState("t1", "crm")
	assert.Equal(t, entity.ModuleInactive, crm.Status)

	types := []ports.NotificationType{}
	for _, n := range f.notifier.Sent() {
		types = append(types, n.Type)
	}
	assert.Equal(t, []ports.NotificationType{ports.NotifyPlanChange, ports.NotifyCreditsEarned}, types)

	events := f.store.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditPlanChangeCompleted, events[0].Action)
	assert.Equal(t, "admin", events[0].ActorID)
	assert.Equal(t, []string{"t1"}, f.applied)
}

func TestUpgradeConCredito_CobraDiferencia(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 21, 9)
	f.grantCredit(t, "50.00")
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise", UseCredit: true})
	require.NoError(t, err)
	assert.True(t, d("120.00").Equal(view.Proration.ProratedAmount))
	assert.True(t, d("50.00").Equal(view.CreditsToApply))
	assert.True(t, d("70.00").Equal(view.FinalAmount))

	view, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "payment", view.Step)

	before := f.balance(t)
	view, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)

	reqs := f.gateway.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(7000), reqs[0].AmountMinor)
	assert.Equal(t, "BRL", reqs[0].Currency)
	assert.Equal(t, view.WorkflowID+":1", reqs[0].IdempotencyKey)

	assert.True(t, before.Sub(d("50.00")).Equal(f.balance(t)))
	txs := f.store.CreditTxs("t1")
	require.Len(t, txs, 2)
	assert.Equal(t, entity.CreditSpent, txs[1].Type)
	assert.True(t, d("50.00").Equal(txs[1].Amount))

	records := f.store.Changes("t1")
	require.Len(t, records, 1)
	assert.True(t, d("70.00").Equal(records[0].ProratedAmount))
	assert.True(t, d("50.00").Equal(records[0].CreditsApplied))
	assert.Equal(t, "pay_"+view.WorkflowID+":1", records[0].PaymentReference)

	require.NotNil(t, view.Receipt)
	assert.True(t, d("70.00").Equal(view.Receipt.Total))
	last := view.Receipt.Lines[len(view.Receipt.Lines)-1]
	assert.True(t, d("-50.00").Equal(last.Amount), "la última línea es el crédito aplicado")

	crm, _ := f.store.ModuleState("t1", "crm")
	assert.Equal(t, entity.ModuleActive, crm.Status)
}

func TestUpgrade_CreditoCubreTodoSinPago(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	f.grantCredit(t, "80.00")
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional", UseCredit: true})
	require.NoError(t, err)
	assert.True(t, d("50.00").Equal(view.CreditsToApply))
	assert.True(t, view.FinalAmount.IsZero())

	view, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)
	assert.Empty(t, f.gateway.Requests())
	assert.True(t, d("30.00").Equal(f.balance(t)))
}

func TestCambioDeCiclo_Lateral(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "enterprise", 10, 20)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise", ToCycle: "yearly"})
	require.NoError(t, err)
	assert.Equal(t, "lateral", view.Proration.Type)
	assert.True(t, view.Proration.ProratedAmount.IsZero())

	view, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)
	tenant, _ := f.store.Tenant("t1")
	assert.Equal(t, entity.CycleYearly, tenant.BillingCycle)
}

// ──────────────────────────────────────────────────────────────────────────────
// Pago
// ──────────────────────────────────────────────────────────────────────────────

func TestPagoRechazado_VuelveAPaymentYReintenta(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	view, err := f.svc.SubmitPayment(ctx, "t1", card("decline_card"))
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)
	var perr *domain.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Tarjeta rechazada por el emisor", perr.Reason)

	assert.Equal(t, "payment", view.Step)
	require.NotNil(t, view.Error)
	assert.Equal(t, "PAYMENT_DECLINED", view.Error.Code)
	assert.Empty(t, f.store.Changes("t1"), "un rechazo no registra nada")
	tenant, _ := f.store.Tenant("t1")
	assert.Equal(t, "starter", tenant.PlanSlug)

	view, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)

	reqs := f.gateway.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, view.WorkflowID+":1", reqs[0].IdempotencyKey)
	assert.Equal(t, view.WorkflowID+":2", reqs[1].IdempotencyKey)
	assert.Equal(t, int64(5000), reqs[1].AmountMinor)
}

func TestSubmitPayment_DescriptorIncompleto(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, "t1", dto.SubmitPaymentRequest{Kind: "boleto"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	cur, err := f.svc.Current(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "payment", cur.Step)
	assert.Empty(t, f.gateway.Requests())
}

func TestSubmitPayment_FueraDePayment(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ──────────────────────────────────────────────────────────────────────────────
// Atomicidad
// ──────────────────────────────────────────────────────────────────────────────

func TestFalloAlAplicar_AbortaAReviewSinEfectos(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 21, 9)
	f.grantCredit(t, "50.00")
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise", UseCredit: true})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	f.store.UpsertModulesErr = errors.New("disco lleno")
	view, err := f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.Error(t, err)
	assert.Equal(t, "review", view.Step)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Message, "disco lleno")

	assert.Len(t, f.store.CreditTxs("t1"), 1, "el spent se revierte")
	assert.True(t, d("50.00").Equal(f.balance(t)))
	tenant, _ := f.store.Tenant("t1")
	assert.Equal(t, "starter", tenant.PlanSlug)

	records := f.store.Changes("t1")
	require.Len(t, records, 1, "solo queda el registro fallido para conciliar el cobro")
	assert.Equal(t, entity.PlanChangeFailed, records[0].Status)
	assert.NotEmpty(t, records[0].PaymentReference)
	assert.Contains(t, records[0].FailureReason, "disco lleno")

	f.store.UpsertModulesErr = nil
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err, "el aborto libera el lock del tenant")
}

func TestAbortoTrasCobro_ReintentoUsaLlaveNueva(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, "t1", card("decline_card"))
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)

	f.store.UpsertModulesErr = errors.New("disco lleno")
	view, err := f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.Error(t, err)
	require.Equal(t, "review", view.Step)
	f.store.UpsertModulesErr = nil

	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	view, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)

	reqs := f.gateway.Requests()
	require.Len(t, reqs, 3)
	keys := map[string]bool{}
	for _, r := range reqs {
		keys[r.IdempotencyKey] = true
	}
	assert.Len(t, keys, 3, "ningún intento reutiliza una llave de idempotencia")
	assert.Equal(t, view.WorkflowID+":3", reqs[2].IdempotencyKey)

	records := f.store.Changes("t1")
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].PaymentReference, records[1].PaymentReference)
}

func TestCreditoGastadoAntesDelPago_NoCobra(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	f.grantCredit(t, "20.00")
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional", UseCredit: true})
	require.NoError(t, err)
	require.True(t, d("20.00").Equal(view.CreditsToApply))
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	_, err = credit.NewLedger(f.store.Credits(), func() time.Time { return now }).
		Spend(ctx, "t1", d("20.00"), "ajuste manual", "")
	require.NoError(t, err)

	view, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.ErrorIs(t, err, domain.ErrInsufficientCredit)
	assert.Equal(t, "review", view.Step)
	require.NotNil(t, view.Error)
	assert.Equal(t, "INSUFFICIENT_CREDIT", view.Error.Code)

	assert.Empty(t, f.gateway.Requests(), "no se cobra si el crédito cotizado ya no está")
	assert.Empty(t, f.store.Changes("t1"))
	tenant, _ := f.store.Tenant("t1")
	assert.Equal(t, "starter", tenant.PlanSlug)

	require.NoError(t, f.svc.Discard(ctx, "t1"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Exclusividad
// ──────────────────────────────────────────────────────────────────────────────

func TestExclusividad_MismoProceso(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	_, err = f.svc.ProceedToPayment(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrChangeAlreadyInProgress)
	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise"})
	assert.ErrorIs(t, err, domain.ErrChangeAlreadyInProgress)

	require.NoError(t, f.svc.Discard(ctx, "t1"))
	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err, "descartar libera el lock")
}

func TestExclusividad_DuranteProcessing(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	f.gateway.Block = make(chan struct{})
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var submitErr error
	go func() {
		defer wg.Done()
		_, submitErr = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	}()
	require.Eventually(t, func() bool { return len(f.gateway.Requests()) == 1 }, time.Second, 5*time.Millisecond)

	cur, err := f.svc.Current(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "processing", cur.Step)

	_, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	assert.ErrorIs(t, err, domain.ErrChangeAlreadyInProgress)
	assert.ErrorIs(t, f.svc.Discard(ctx, "t1"), domain.ErrChangeAlreadyInProgress)

	close(f.gateway.Block)
	wg.Wait()
	require.NoError(t, submitErr)
	assert.Len(t, f.gateway.Requests(), 1, "nunca se cobra dos veces")
}

func TestExclusividad_EntreInstancias(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	other := f.newService()
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	_, err = other.Start(ctx, "t1", "otro", dto.StartPlanChangeRequest{ToPlan: "enterprise"})
	require.NoError(t, err)
	_, err = other.ProceedToPayment(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrChangeAlreadyInProgress)

	_, err = f.svc.SubmitPayment(ctx, "t1", card("tok_ok"))
	require.NoError(t, err)
	_, err = other.ProceedToPayment(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrConflict, "la cotización del otro quedó obsoleta")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo de vida
// ──────────────────────────────────────────────────────────────────────────────

func TestFinish_DescartaYPermiteNuevoCambio(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "professional", 10, 20)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	pdf, err := f.svc.Receipt(ctx, "t1")
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "%PDF")
	assert.ErrorIs(t, f.svc.Discard(ctx, "t1"), domain.ErrInvalidTransition)

	view, err := f.svc.Finish(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "success", view.Step)

	_, err = f.svc.Current(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNoActiveChange)
	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "free"})
	require.NoError(t, err)
}

func TestFlujosTerminados_NoQuedanEnMemoria(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "professional", 10, 20)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "nope", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	require.ErrorIs(t, err, domain.ErrTenantNotFound)
	assert.Equal(t, 0, f.svc.FlowCount(), "un Start fallido no deja entrada")

	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.FlowCount())
	require.NoError(t, f.svc.Discard(ctx, "t1"))
	assert.Equal(t, 0, f.svc.FlowCount())

	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.svc.FlowCount())
}

func TestStart_Validaciones(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "platinum"})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	_, err = f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional", ToCycle: "weekly"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.Start(ctx, "nope", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNoActiveChange)
}

func TestStart_ReemplazaReview(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "professional"})
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "enterprise"})
	require.NoError(t, err)
	assert.NotEqual(t, first.WorkflowID, second.WorkflowID)

	cur, err := f.svc.Current(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", cur.Proration.ToPlan)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "professional", 10, 20)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "t1", "admin", dto.StartPlanChangeRequest{ToPlan: "starter"})
	require.NoError(t, err)
	_, err = f.svc.ProceedToPayment(ctx, "t1")
	require.NoError(t, err)

	hist, err := f.svc.History(ctx, "t1", dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "completed", hist.Items[0].Status)
	assert.Equal(t, 20, hist.Page.Limit)
}

// ──────────────────────────────────────────────────────────────────────────────
// Preview
// ──────────────────────────────────────────────────────────────────────────────

func TestPreviewProration(t *testing.T) {
	f := newFixture(t)
	f.tenant(t, "starter", 15, 15)
	ctx := context.Background()

	resp, err := f.svc.PreviewProration(ctx, "t1", dto.ProrationPreviewRequest{ToPlan: "professional"})
	require.NoError(t, err)
	assert.True(t, d("50.00").Equal(resp.ProratedAmount))
	assert.Len(t, resp.Breakdown, 2)
	assert.Contains(t, resp.Summary, "R$")

	start, end := now, now
	_, err = f.svc.PreviewProration(ctx, "t1", dto.ProrationPreviewRequest{ToPlan: "professional", PeriodStart: &start, PeriodEnd: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidProrationInput)
}
