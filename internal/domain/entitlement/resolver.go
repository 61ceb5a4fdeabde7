// Package entitlement decide qué módulos puede usar un tenant: fuente de acceso
// (core, plan, add-on, manual, trial), dependencias y límites por unidad.
//
// El Resolver trabaja en memoria sobre los estados de un solo tenant; la
// persistencia y la serialización por tenant son responsabilidad del caller.
package entitlement

import (
	"fmt"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// Resolver entitlements de un tenant bajo su plan actual.
type Resolver struct {
	catalog  *catalog.Catalog
	tenantID string
	plan     *entity.Plan
	states   map[string]*entity.ModuleState
	now      func() time.Time
}

// Option configura el Resolver.
type Option func(*Resolver)

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver construye el resolver con los estados persistidos del tenant.
func NewResolver(c *catalog.Catalog, tenantID string, plan *entity.Plan, states []entity.ModuleState, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:  c,
		tenantID: tenantID,
		plan:     plan,
		states:   make(map[string]*entity.ModuleState, len(states)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range states {
		r.states[states[i].ModuleID] = states[i].Clone()
	}
	return r
}

// Plan devuelve el plan con el que se evalúa.
func (r *Resolver) Plan() *entity.Plan { return r.plan }

// IsModuleEnabled es true si el módulo es core o su estado está activo y sin vencer.
func (r *Resolver) IsModuleEnabled(moduleID string) bool {
	def, err := r.catalog.Module(moduleID)
	if err != nil {
		return false
	}
	if def.IsCore {
		return true
	}
	return r.states[moduleID].IsActive(r.now())
}

// CanEnableModule valida dependencias y elegibilidad de plan. nil = se puede habilitar.
// Devuelve *domain.DependencyError (envuelve ErrDependencyUnsatisfied) o ErrPlanIneligible.
func (r *Resolver) CanEnableModule(moduleID string) error {
	def, err := r.catalog.Module(moduleID)
	if err != nil {
		return err
	}
	if def.IsCore {
		return nil
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !r.IsModuleEnabled(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &domain.DependencyError{ModuleID: moduleID, Missing: missing}
	}

	// Un módulo con precio propio se puede comprar aunque el plan no alcance el mínimo.
	if req := def.PlanRequirement; req != nil && req.MinPlan != "" && def.Pricing == nil {
		minPlan, err := r.catalog.PlanByID(req.MinPlan)
		if err != nil {
			return err
		}
		if r.plan == nil || minPlan.SortOrder > r.plan.SortOrder {
			return fmt.Errorf("%w: %s requiere el plan %s o superior", domain.ErrPlanIneligible, def.Name, minPlan.Name)
		}
	}
	return nil
}

// EnableModule activa el módulo con la fuente dada. No revalida CanEnableModule
// (permite overrides de administrador). expiresAt solo aplica a trial/addon; un
// trial sin vencimiento explícito usa los trialDays del catálogo. Si el plan
// actual incluye el módulo la fuente resultante es plan, sin vencimiento.
func (r *Resolver) EnableModule(moduleID string, source entity.AccessSource, expiresAt *time.Time) (entity.ModuleState, error) {
	def, err := r.catalog.Module(moduleID)
	if err != nil {
		return entity.ModuleState{}, err
	}
	if !source.Valid() {
		return entity.ModuleState{}, fmt.Errorf("%w: fuente de acceso %q", domain.ErrInvalidInput, source)
	}

	// Un módulo incluido en el plan queda con fuente plan: una concesión
	// temporal no puede degradarlo a algo que vence.
	if r.catalog.PlanIncludes(r.plan, moduleID) {
		source = entity.SourcePlan
		expiresAt = nil
	}

	now := r.now()
	st := r.stateFor(moduleID)
	st.Status = entity.ModuleActive
	st.AccessSource = source
	st.EnabledAt = &now
	st.DisabledManually = false
	st.ExpiresAt = nil
	switch {
	case expiresAt != nil && (source == entity.SourceTrial || source == entity.SourceAddon):
		exp := *expiresAt
		st.ExpiresAt = &exp
	case source == entity.SourceTrial && def.Pricing != nil && def.Pricing.TrialDays > 0:
		exp := now.AddDate(0, 0, def.Pricing.TrialDays)
		st.ExpiresAt = &exp
	}
	if def.IsUnitPriced() && st.Quantity < 1 {
		st.Quantity = 1
	}
	st.UpdatedAt = now
	return *st.Clone(), nil
}

// DisableModule marca el módulo como inactivo conservando fuente y cantidad.
// No deshabilita en cascada a los dependientes.
func (r *Resolver) DisableModule(moduleID string) (entity.ModuleState, error) {
	def, err := r.catalog.Module(moduleID)
	if err != nil {
		return entity.ModuleState{}, err
	}
	if def.IsCore {
		return entity.ModuleState{}, fmt.Errorf("%w: %s", domain.ErrCoreModuleProtected, def.Name)
	}
	st := r.stateFor(moduleID)
	st.Status = entity.ModuleInactive
	st.DisabledManually = true
	st.UpdatedAt = r.now()
	return *st.Clone(), nil
}

// UpdateModuleQuantity ajusta la cantidad al rango [1, maxUnits]. No hace nada
// (changed=false) si el módulo no está habilitado o no se cobra por unidad.
func (r *Resolver) UpdateModuleQuantity(moduleID string, quantity int) (st entity.ModuleState, changed bool, err error) {
	def, err := r.catalog.Module(moduleID)
	if err != nil {
		return entity.ModuleState{}, false, err
	}
	cur := r.stateFor(moduleID)
	if !def.IsUnitPriced() || !r.IsModuleEnabled(moduleID) {
		return *cur.Clone(), false, nil
	}
	q := ClampQuantity(def, quantity)
	if cur.Quantity == q {
		return *cur.Clone(), false, nil
	}
	cur.Quantity = q
	cur.UpdatedAt = r.now()
	return *cur.Clone(), true, nil
}

// ClampQuantity limita quantity a [1, maxUnits] (maxUnits 0 = sin tope).
func ClampQuantity(def *entity.ModuleDefinition, quantity int) int {
	if quantity < 1 {
		quantity = 1
	}
	if def.Pricing != nil && def.Pricing.MaxUnits > 0 && quantity > def.Pricing.MaxUnits {
		quantity = def.Pricing.MaxUnits
	}
	return quantity
}

// States devuelve el estado efectivo de cada módulo del catálogo; los core
// siempre aparecen activos.
func (r *Resolver) States() []entity.ModuleState {
	out := make([]entity.ModuleState, 0, len(r.catalog.Modules()))
	for _, def := range r.catalog.Modules() {
		st := r.states[def.ID].Clone()
		if st == nil {
			st = &entity.ModuleState{TenantID: r.tenantID, ModuleID: def.ID, Status: entity.ModuleInactive}
		}
		if def.IsCore {
			st.Status = entity.ModuleActive
			st.AccessSource = entity.SourceCore
		}
		out = append(out, *st)
	}
	return out
}

// ResolveEffectiveStates recalcula los estados bajo plan y los adopta como
// estado actual del resolver.
func (r *Resolver) ResolveEffectiveStates(plan *entity.Plan) []entity.ModuleState {
	grants := make([]entity.ModuleState, 0, len(r.states))
	for _, st := range r.states {
		grants = append(grants, *st)
	}
	resolved := ResolveEffectiveStates(r.catalog, r.tenantID, plan, grants, r.now())
	r.plan = plan
	r.states = make(map[string]*entity.ModuleState, len(resolved))
	for i := range resolved {
		r.states[resolved[i].ModuleID] = resolved[i].Clone()
	}
	return resolved
}

func (r *Resolver) stateFor(moduleID string) *entity.ModuleState {
	st, ok := r.states[moduleID]
	if !ok {
		st = &entity.ModuleState{TenantID: r.tenantID, ModuleID: moduleID, Status: entity.ModuleInactive}
		r.states[moduleID] = st
	}
	return st
}

// ResolveEffectiveStates calcula, para cada módulo del catálogo, si debe estar
// activo dado (a) el flag core, (b) la inclusión en plan y (c) concesiones
// explícitas vigentes. Los módulos que pierden plan y concesión pasan a
// inactive conservando sus datos; los que el plan incluye y no fueron
// deshabilitados explícitamente se activan con fuente plan.
func ResolveEffectiveStates(c *catalog.Catalog, tenantID string, plan *entity.Plan, grants []entity.ModuleState, now time.Time) []entity.ModuleState {
	current := make(map[string]entity.ModuleState, len(grants))
	for _, g := range grants {
		current[g.ModuleID] = g
	}

	out := make([]entity.ModuleState, 0, len(c.Modules()))
	for _, def := range c.Modules() {
		st, ok := current[def.ID]
		if !ok {
			st = entity.ModuleState{TenantID: tenantID, ModuleID: def.ID, Status: entity.ModuleInactive}
		}
		st = *st.Clone()
		st.TenantID = tenantID
		wasActive := st.IsActive(now)

		switch {
		case def.IsCore:
			st.Status = entity.ModuleActive
			st.AccessSource = entity.SourceCore
			st.ExpiresAt = nil
			st.DisabledManually = false
		case c.PlanIncludes(plan, def.ID) && !st.DisabledManually:
			st.Status = entity.ModuleActive
			st.AccessSource = entity.SourcePlan
			st.ExpiresAt = nil
		case wasActive && st.AccessSource.IsGrant():
			// Concesión explícita vigente: independiente del plan.
		default:
			st.Status = entity.ModuleInactive
		}

		if st.Status == entity.ModuleActive {
			if !wasActive || st.EnabledAt == nil {
				t := now
				st.EnabledAt = &t
			}
			if def.IsUnitPriced() && st.Quantity < 1 {
				st.Quantity = 1
			}
		}
		if st.Status != current[def.ID].Status || st.AccessSource != current[def.ID].AccessSource || !ok {
			st.UpdatedAt = now
		}
		out = append(out, st)
	}
	return out
}
