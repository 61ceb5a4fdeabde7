package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/application/apptest"
	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog/catalogtest"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store       *apptest.Store
	svc         *entitlement.Service
	invalidated []string
}

func newFixture(t *testing.T, plan string) *fixture {
	t.Helper()
	f := &fixture{store: apptest.NewStore()}
	f.svc = entitlement.NewService(entitlement.Deps{
		Catalog:  catalogtest.Standard(),
		TxRunner: f.store,
		Tenants:  f.store.Tenants(),
		Modules:  f.store.Modules(),
		Audit:    apptest.AuditSink{Store: f.store},
		OnChange: func(id string) { f.invalidated = append(f.invalidated, id) },
		Now:      func() time.Time { return now },
	})
	err := f.svc.Provision(context.Background(), entity.Tenant{
		ID:           "t1",
		Name:         "Acme",
		PlanSlug:     plan,
		BillingCycle: entity.CycleMonthly,
		PeriodStart:  now.AddDate(0, 0, -9),
		PeriodEnd:    now.AddDate(0, 0, 21),
	})
	require.NoError(t, err)
	return f
}

func enabled(t *testing.T, f *fixture, moduleID string) bool {
	t.Helper()
	ok, err := f.svc.IsModuleEnabled(context.Background(), "t1", moduleID)
	require.NoError(t, err)
	return ok
}

// ──────────────────────────────────────────────────────────────────────────────
// Provision / States
// ──────────────────────────────────────────────────────────────────────────────

func TestProvision_CoreYPlan(t *testing.T) {
	f := newFixture(t, "starter")

	assert.True(t, enabled(t, f, "dashboard"))
	assert.True(t, enabled(t, f, "tickets"))
	assert.True(t, enabled(t, f, "calendar"))
	assert.False(t, enabled(t, f, "crm"))

	st, ok := f.store.ModuleState("t1", "tickets")
	require.True(t, ok)
	assert.Equal(t, entity.SourcePlan, st.AccessSource)
	assert.Equal(t, []string{"t1"}, f.invalidated)
}

func TestProvision_Duplicado(t *testing.T) {
	f := newFixture(t, "starter")
	err := f.svc.Provision(context.Background(), entity.Tenant{
		ID: "t1", PlanSlug: "starter", BillingCycle: entity.CycleMonthly,
		PeriodStart: now, PeriodEnd: now.AddDate(0, 1, 0),
	})
	assert.Error(t, err)
}

func TestStates_ListaTodoElCatalogo(t *testing.T) {
	f := newFixture(t, "starter")
	resp, err := f.svc.States(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "starter", resp.Plan)
	assert.Len(t, resp.Modules, len(catalogtest.Modules()))
	for _, m := range resp.Modules {
		if m.IsCore {
			assert.True(t, m.Enabled, m.ModuleID)
		}
	}
}

func TestIsModuleEnabled_ModuloDesconocido(t *testing.T) {
	f := newFixture(t, "starter")
	_, err := f.svc.IsModuleEnabled(context.Background(), "t1", "nope")
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestStates_TenantInexistente(t *testing.T) {
	f := newFixture(t, "starter")
	_, err := f.svc.States(context.Background(), "otro")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// CanEnable / Enable
// ──────────────────────────────────────────────────────────────────────────────

func TestCanEnable_DependenciaFaltante(t *testing.T) {
	f := newFixture(t, "starter")
	resp, err := f.svc.CanEnableModule(context.Background(), "t1", "chat")
	require.NoError(t, err)
	assert.False(t, resp.CanEnable)
	assert.Equal(t, "DEPENDENCY_UNSATISFIED", resp.Code)
	assert.Equal(t, []string{"crm"}, resp.Missing)
	assert.NotEmpty(t, resp.Reason)
}

func TestCanEnable_PlanInsuficiente(t *testing.T) {
	f := newFixture(t, "professional")
	_, err := f.svc.EnableModule(context.Background(), "t1", "admin", "crm", dto.EnableModuleRequest{})
	require.NoError(t, err)

	resp, err := f.svc.CanEnableModule(context.Background(), "t1", "ai_insights")
	require.NoError(t, err)
	assert.True(t, resp.CanEnable)

	g := newFixture(t, "starter")
	_, err = g.svc.EnableModule(context.Background(), "t1", "admin", "crm", dto.EnableModuleRequest{})
	require.NoError(t, err)
	resp, err = g.svc.CanEnableModule(context.Background(), "t1", "ai_insights")
	require.NoError(t, err)
	assert.False(t, resp.CanEnable)
	assert.Equal(t, "PLAN_INELIGIBLE", resp.Code)
}

func TestEnable_GatingPorDependencia(t *testing.T) {
	f := newFixture(t, "starter")
	ctx := context.Background()

	_, err := f.svc.EnableModule(ctx, "t1", "admin", "chat", dto.EnableModuleRequest{AccessSource: "addon"})
	assert.ErrorIs(t, err, domain.ErrDependencyUnsatisfied)
	assert.False(t, enabled(t, f, "chat"))

	_, err = f.svc.EnableModule(ctx, "t1", "admin", "crm", dto.EnableModuleRequest{AccessSource: "addon"})
	require.NoError(t, err)
	view, err := f.svc.EnableModule(ctx, "t1", "admin", "chat", dto.EnableModuleRequest{AccessSource: "addon"})
	require.NoError(t, err)
	assert.True(t, view.Enabled)
	assert.Equal(t, "addon", view.AccessSource)
}

func TestEnable_ForceOmiteValidacion(t *testing.T) {
	f := newFixture(t, "starter")
	view, err := f.svc.EnableModule(context.Background(), "t1", "admin", "chat", dto.EnableModuleRequest{Force: true})
	require.NoError(t, err)
	assert.True(t, view.Enabled)
	assert.Equal(t, "manual", view.AccessSource)

	events := f.store.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditModuleEnabled, events[0].Action)
	assert.Equal(t, "chat", events[0].ModuleID)
	assert.Equal(t, true, events[0].Details["forced"])
}

func TestEnable_FuenteInvalida(t *testing.T) {
	f := newFixture(t, "starter")
	for _, src := range []string{"plan", "core", "gratis"} {
		_, err := f.svc.EnableModule(context.Background(), "t1", "admin", "crm", dto.EnableModuleRequest{AccessSource: src})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, src)
	}
}

func TestEnable_TrialUsaDiasDelCatalogo(t *testing.T) {
	f := newFixture(t, "professional")
	view, err := f.svc.EnableModule(context.Background(), "t1", "admin", "whatsapp", dto.EnableModuleRequest{AccessSource: "trial"})
	require.NoError(t, err)
	require.NotNil(t, view.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 14), *view.ExpiresAt)
	assert.Equal(t, 1, view.Quantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// Disable / Quantity
// ──────────────────────────────────────────────────────────────────────────────

func TestDisable_CoreProtegido(t *testing.T) {
	f := newFixture(t, "starter")
	_, err := f.svc.DisableModule(context.Background(), "t1", "admin", "dashboard")
	assert.ErrorIs(t, err, domain.ErrCoreModuleProtected)
	assert.True(t, enabled(t, f, "dashboard"))
	assert.Empty(t, f.store.AuditEvents())
}

func TestDisable_NoCascada(t *testing.T) {
	f := newFixture(t, "professional")
	ctx := context.Background()
	require.True(t, enabled(t, f, "chat"))

	view, err := f.svc.DisableModule(ctx, "t1", "admin", "crm")
	require.NoError(t, err)
	assert.False(t, view.Enabled)
	assert.True(t, view.DisabledManually)
	assert.True(t, enabled(t, f, "chat"), "los dependientes quedan habilitados")

	events := f.store.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditModuleDisabled, events[0].Action)
}

func TestUpdateQuantity_Clamp(t *testing.T) {
	f := newFixture(t, "professional")
	ctx := context.Background()
	_, err := f.svc.EnableModule(ctx, "t1", "admin", "whatsapp", dto.EnableModuleRequest{AccessSource: "addon"})
	require.NoError(t, err)

	resp, err := f.svc.UpdateModuleQuantity(ctx, "t1", "admin", "whatsapp", 50)
	require.NoError(t, err)
	assert.True(t, resp.Changed)
	assert.Equal(t, 10, resp.Module.Quantity)

	resp, err = f.svc.UpdateModuleQuantity(ctx, "t1", "admin", "whatsapp", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Module.Quantity)
}

func TestUpdateQuantity_NoOp(t *testing.T) {
	f := newFixture(t, "professional")
	ctx := context.Background()

	resp, err := f.svc.UpdateModuleQuantity(ctx, "t1", "admin", "whatsapp", 3)
	require.NoError(t, err)
	assert.False(t, resp.Changed, "módulo no habilitado")

	resp, err = f.svc.UpdateModuleQuantity(ctx, "t1", "admin", "crm", 3)
	require.NoError(t, err)
	assert.False(t, resp.Changed, "módulo sin precio por unidad")
	assert.Empty(t, f.store.AuditEvents())
}

// ──────────────────────────────────────────────────────────────────────────────
// Preview
// ──────────────────────────────────────────────────────────────────────────────

func TestPreview_NoPersiste(t *testing.T) {
	f := newFixture(t, "professional")
	ctx := context.Background()

	resp, err := f.svc.Preview(ctx, "t1", "starter")
	require.NoError(t, err)
	byID := map[string]dto.ModuleStateResponse{}
	for _, m := range resp.Modules {
		byID[m.ModuleID] = m
	}
	assert.False(t, byID["crm"].Enabled)
	assert.True(t, byID["tickets"].Enabled)

	assert.True(t, enabled(t, f, "crm"), "el preview no escribe")
}

func TestPreview_PlanDesconocido(t *testing.T) {
	f := newFixture(t, "starter")
	_, err := f.svc.Preview(context.Background(), "t1", "platinum")
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}
