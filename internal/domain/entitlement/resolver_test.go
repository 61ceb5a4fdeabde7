package entitlement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog/catalogtest"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

const tenantID = "tenant-1"

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newResolver(t *testing.T, planSlug string, states ...entity.ModuleState) (*entitlement.Resolver, *catalog.Catalog) {
	t.Helper()
	c := catalogtest.Standard()
	plan, err := c.PlanBySlug(planSlug)
	require.NoError(t, err)
	return entitlement.NewResolver(c, tenantID, plan, states,
		entitlement.WithClock(func() time.Time { return fixedNow })), c
}

func active(moduleID string, source entity.AccessSource) entity.ModuleState {
	at := fixedNow.Add(-24 * time.Hour)
	return entity.ModuleState{TenantID: tenantID, ModuleID: moduleID, Status: entity.ModuleActive, AccessSource: source, EnabledAt: &at}
}

func stateOf(states []entity.ModuleState, moduleID string) entity.ModuleState {
	for _, s := range states {
		if s.ModuleID == moduleID {
			return s
		}
	}
	return entity.ModuleState{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────────────────────────────────

func TestCore_SiempreHabilitadoYProtegido(t *testing.T) {
	inactiveCore := entity.ModuleState{TenantID: tenantID, ModuleID: "dashboard", Status: entity.ModuleInactive}
	r, _ := newResolver(t, "free", inactiveCore)

	assert.True(t, r.IsModuleEnabled("dashboard"), "un core está habilitado aunque el estado guardado diga inactive")
	assert.True(t, r.IsModuleEnabled("users"))

	_, err := r.DisableModule("dashboard")
	assert.True(t, errors.Is(err, domain.ErrCoreModuleProtected))
	assert.True(t, r.IsModuleEnabled("dashboard"))
}

func TestIsModuleEnabled_Desconocido(t *testing.T) {
	r, _ := newResolver(t, "starter")
	assert.False(t, r.IsModuleEnabled("ghost"))
}

func TestIsModuleEnabled_TrialVencido(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	st := active("reports", entity.SourceTrial)
	st.ExpiresAt = &past
	r, _ := newResolver(t, "starter", st)

	assert.False(t, r.IsModuleEnabled("reports"), "un trial vencido no habilita el módulo")
}

// ──────────────────────────────────────────────────────────────────────────────
// Dependencias y elegibilidad
// ──────────────────────────────────────────────────────────────────────────────

func TestCanEnable_DependenciaDeshabilitadaLuegoHabilitada(t *testing.T) {
	r, _ := newResolver(t, "starter")

	err := r.CanEnableModule("chat")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDependencyUnsatisfied))
	var depErr *domain.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, []string{"crm"}, depErr.Missing)

	_, err = r.EnableModule("crm", entity.SourceManual, nil)
	require.NoError(t, err)

	assert.NoError(t, r.CanEnableModule("chat"), "con la dependencia activa se puede habilitar")
}

func TestCanEnable_PlanInelegible(t *testing.T) {
	r, _ := newResolver(t, "starter", active("crm", entity.SourceManual))

	err := r.CanEnableModule("ai_insights")
	assert.True(t, errors.Is(err, domain.ErrPlanIneligible))

	rPro, _ := newResolver(t, "professional", active("crm", entity.SourcePlan))
	assert.NoError(t, rPro.CanEnableModule("ai_insights"))
}

func TestCanEnable_ModuloConPrecioIgnoraPlanMinimo(t *testing.T) {
	r, _ := newResolver(t, "starter")
	assert.NoError(t, r.CanEnableModule("reports"), "un add-on comprable no exige el plan mínimo")
}

func TestCanEnable_ModuloDesconocido(t *testing.T) {
	r, _ := newResolver(t, "starter")
	assert.True(t, errors.Is(r.CanEnableModule("ghost"), domain.ErrModuleNotFound))
}

// ──────────────────────────────────────────────────────────────────────────────
// Enable / Disable / Quantity
// ──────────────────────────────────────────────────────────────────────────────

func TestEnableModule_PorUnidadCantidadUnoYTrial(t *testing.T) {
	r, _ := newResolver(t, "professional")

	st, err := r.EnableModule("whatsapp", entity.SourceTrial, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.ModuleActive, st.Status)
	assert.Equal(t, 1, st.Quantity)
	require.NotNil(t, st.EnabledAt)
	assert.True(t, fixedNow.Equal(*st.EnabledAt))
	require.NotNil(t, st.ExpiresAt, "trial sin vencimiento explícito usa trialDays")
	assert.True(t, fixedNow.AddDate(0, 0, 14).Equal(*st.ExpiresAt))
}

func TestEnableModule_NoRevalida(t *testing.T) {
	r, _ := newResolver(t, "starter")

	st, err := r.EnableModule("ai_insights", entity.SourceManual, nil)
	require.NoError(t, err, "override de administrador: no revalida dependencias ni plan")
	assert.Equal(t, entity.ModuleActive, st.Status)
	assert.True(t, r.IsModuleEnabled("ai_insights"))
}

func TestEnableModule_FuenteInvalida(t *testing.T) {
	r, _ := newResolver(t, "starter")
	_, err := r.EnableModule("crm", entity.AccessSource("gift"), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestDisableModule_ConservaFuenteYCantidadSinCascada(t *testing.T) {
	wa := active("whatsapp", entity.SourceAddon)
	wa.Quantity = 3
	r, _ := newResolver(t, "professional", active("crm", entity.SourcePlan), active("chat", entity.SourcePlan), wa)

	st, err := r.DisableModule("chat")
	require.NoError(t, err)
	assert.Equal(t, entity.ModuleInactive, st.Status)
	assert.Equal(t, entity.SourcePlan, st.AccessSource)
	assert.True(t, st.DisabledManually)

	assert.True(t, r.IsModuleEnabled("whatsapp"), "los dependientes no se deshabilitan en cascada")

	st, err = r.DisableModule("whatsapp")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Quantity)
	assert.Equal(t, entity.SourceAddon, st.AccessSource)
}

func TestUpdateModuleQuantity_Clamp(t *testing.T) {
	r, _ := newResolver(t, "professional", active("crm", entity.SourcePlan), active("chat", entity.SourcePlan))
	_, err := r.EnableModule("whatsapp", entity.SourceAddon, nil)
	require.NoError(t, err)

	st, changed, err := r.UpdateModuleQuantity("whatsapp", 50)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 10, st.Quantity, "limitado a maxUnits")

	st, changed, err = r.UpdateModuleQuantity("whatsapp", 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, st.Quantity, "mínimo 1")

	_, changed, err = r.UpdateModuleQuantity("whatsapp", 1)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateModuleQuantity_NoOp(t *testing.T) {
	r, _ := newResolver(t, "professional", active("crm", entity.SourcePlan))

	_, changed, err := r.UpdateModuleQuantity("crm", 5)
	require.NoError(t, err)
	assert.False(t, changed, "crm no se cobra por unidad")

	_, changed, err = r.UpdateModuleQuantity("whatsapp", 5)
	require.NoError(t, err)
	assert.False(t, changed, "whatsapp no está habilitado")
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveEffectiveStates
// ──────────────────────────────────────────────────────────────────────────────

func TestResolve_DowngradeDesactivaYConservaConcesiones(t *testing.T) {
	wa := active("whatsapp", entity.SourceAddon)
	wa.Quantity = 2
	r, c := newResolver(t, "professional",
		active("tickets", entity.SourcePlan),
		active("crm", entity.SourcePlan),
		active("chat", entity.SourcePlan),
		wa,
	)
	starter, _ := c.PlanBySlug("starter")

	states := r.ResolveEffectiveStates(starter)
	require.Len(t, states, len(c.Modules()))

	assert.Equal(t, entity.ModuleActive, stateOf(states, "dashboard").Status)
	assert.Equal(t, entity.SourceCore, stateOf(states, "dashboard").AccessSource)
	assert.Equal(t, entity.ModuleActive, stateOf(states, "tickets").Status)

	crm := stateOf(states, "crm")
	assert.Equal(t, entity.ModuleInactive, crm.Status, "crm pierde la inclusión de plan")
	assert.Equal(t, entity.SourcePlan, crm.AccessSource, "se conserva la fuente para reactivar")

	assert.Equal(t, entity.ModuleActive, stateOf(states, "whatsapp").Status, "el add-on es independiente del plan")
	assert.Equal(t, 2, stateOf(states, "whatsapp").Quantity)

	assert.False(t, r.IsModuleEnabled("crm"))
	assert.Equal(t, "starter", r.Plan().Slug)
}

func TestResolve_UpgradeActivaModulosDelPlanSalvoDeshabilitados(t *testing.T) {
	disabledCalendar := entity.ModuleState{
		TenantID: tenantID, ModuleID: "calendar", Status: entity.ModuleInactive,
		AccessSource: entity.SourcePlan, DisabledManually: true,
	}
	c := catalogtest.Standard()
	ent, _ := c.PlanBySlug("enterprise")

	states := entitlement.ResolveEffectiveStates(c, tenantID, ent, []entity.ModuleState{disabledCalendar}, fixedNow)

	crm := stateOf(states, "crm")
	assert.Equal(t, entity.ModuleActive, crm.Status)
	assert.Equal(t, entity.SourcePlan, crm.AccessSource)
	require.NotNil(t, crm.EnabledAt)

	assert.Equal(t, entity.ModuleActive, stateOf(states, "ai_insights").Status, "incluido por includedInPlans")
	assert.Equal(t, entity.ModuleInactive, stateOf(states, "calendar").Status, "deshabilitado explícitamente")
	assert.Equal(t, entity.ModuleInactive, stateOf(states, "reports").Status)
}

func TestResolve_ConcesionVencidaSeDesactiva(t *testing.T) {
	past := fixedNow.Add(-time.Minute)
	trial := active("reports", entity.SourceTrial)
	trial.ExpiresAt = &past
	c := catalogtest.Standard()
	starter, _ := c.PlanBySlug("starter")

	states := entitlement.ResolveEffectiveStates(c, tenantID, starter, []entity.ModuleState{trial}, fixedNow)

	assert.Equal(t, entity.ModuleInactive, stateOf(states, "reports").Status)
	assert.Equal(t, entity.SourceTrial, stateOf(states, "reports").AccessSource)
}

func TestResolve_TrialIncluidoPorElNuevoPlanPasaAPlan(t *testing.T) {
	expires := fixedNow.AddDate(0, 0, 5)
	trial := active("crm", entity.SourceTrial)
	trial.ExpiresAt = &expires
	r, c := newResolver(t, "starter", trial)
	professional, _ := c.PlanBySlug("professional")

	states := r.ResolveEffectiveStates(professional)

	crm := stateOf(states, "crm")
	assert.Equal(t, entity.ModuleActive, crm.Status)
	assert.Equal(t, entity.SourcePlan, crm.AccessSource)
	assert.Nil(t, crm.ExpiresAt, "el plan no vence con el trial")

	later := fixedNow.AddDate(0, 0, 10)
	after := entitlement.NewResolver(c, tenantID, professional, states,
		entitlement.WithClock(func() time.Time { return later }))
	assert.True(t, after.IsModuleEnabled("crm"), "pasado el vencimiento del trial el plan lo sigue incluyendo")
}

func TestEnableModule_ConcesionSobreModuloDelPlanNoLoDegrada(t *testing.T) {
	r, _ := newResolver(t, "professional", active("crm", entity.SourcePlan))

	for _, src := range []entity.AccessSource{entity.SourceTrial, entity.SourceAddon} {
		exp := fixedNow.AddDate(0, 0, 3)
		st, err := r.EnableModule("crm", src, &exp)
		require.NoError(t, err)
		assert.Equal(t, entity.SourcePlan, st.AccessSource, src)
		assert.Nil(t, st.ExpiresAt, src)
	}
	assert.True(t, r.IsModuleEnabled("crm"))
}
