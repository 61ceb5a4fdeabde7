// Package catalog contiene el registro de solo lectura de módulos y planes.
// Se construye una vez al arrancar y se comparte entre goroutines sin locks.
package catalog

import (
	"fmt"
	"sort"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// Catalog registro inmutable de ModuleDefinition y Plan.
type Catalog struct {
	modules     map[string]*entity.ModuleDefinition
	moduleOrder []string
	plans       map[string]*entity.Plan // por slug
	plansByID   map[string]*entity.Plan
	planOrder   []string // slugs por SortOrder
}

// New valida y construye el catálogo. Rechaza ids duplicados, dependencias o
// planes desconocidos y ciclos de dependencias.
func New(plans []entity.Plan, modules []entity.ModuleDefinition) (*Catalog, error) {
	c := &Catalog{
		modules:   make(map[string]*entity.ModuleDefinition, len(modules)),
		plans:     make(map[string]*entity.Plan, len(plans)),
		plansByID: make(map[string]*entity.Plan, len(plans)),
	}

	for i := range plans {
		p := plans[i]
		if p.ID == "" || p.Slug == "" {
			return nil, fmt.Errorf("catalog: plan sin id o slug")
		}
		if _, dup := c.plans[p.Slug]; dup {
			return nil, fmt.Errorf("catalog: plan duplicado %q", p.Slug)
		}
		if _, dup := c.plansByID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: id de plan duplicado %q", p.ID)
		}
		if p.BasePrice.IsNegative() {
			return nil, fmt.Errorf("catalog: plan %q con precio negativo", p.Slug)
		}
		c.plans[p.Slug] = &p
		c.plansByID[p.ID] = &p
		c.planOrder = append(c.planOrder, p.Slug)
	}
	sort.SliceStable(c.planOrder, func(i, j int) bool {
		return c.plans[c.planOrder[i]].SortOrder < c.plans[c.planOrder[j]].SortOrder
	})

	for i := range modules {
		m := modules[i]
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: módulo sin id")
		}
		if _, dup := c.modules[m.ID]; dup {
			return nil, fmt.Errorf("catalog: módulo duplicado %q", m.ID)
		}
		c.modules[m.ID] = &m
		c.moduleOrder = append(c.moduleOrder, m.ID)
	}

	for _, id := range c.moduleOrder {
		m := c.modules[id]
		for _, dep := range m.Dependencies {
			if _, ok := c.modules[dep]; !ok {
				return nil, fmt.Errorf("catalog: %q depende de módulo desconocido %q", id, dep)
			}
		}
		if r := m.PlanRequirement; r != nil {
			if r.MinPlan != "" {
				if _, ok := c.plansByID[r.MinPlan]; !ok {
					return nil, fmt.Errorf("catalog: %q exige plan mínimo desconocido %q", id, r.MinPlan)
				}
			}
			for _, planID := range r.IncludedInPlans {
				if _, ok := c.plansByID[planID]; !ok {
					return nil, fmt.Errorf("catalog: %q incluido en plan desconocido %q", id, planID)
				}
			}
		}
		if m.Pricing != nil && m.Pricing.MaxUnits < 0 {
			return nil, fmt.Errorf("catalog: %q con maxUnits negativo", id)
		}
	}
	for _, p := range c.plans {
		for _, mod := range p.Modules {
			if _, ok := c.modules[mod]; !ok {
				return nil, fmt.Errorf("catalog: plan %q incluye módulo desconocido %q", p.Slug, mod)
			}
		}
	}

	if err := c.checkCycles(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkCycles recorre el grafo de dependencias en DFS con colores.
func (c *Catalog) checkCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(c.modules))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range c.modules[id].Dependencies {
			switch color[dep] {
			case gray:
				return fmt.Errorf("catalog: ciclo de dependencias entre %q y %q", id, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, id := range c.moduleOrder {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Module busca un módulo por id.
func (c *Catalog) Module(id string) (*entity.ModuleDefinition, error) {
	m, ok := c.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}
	return m, nil
}

// Modules devuelve todos los módulos en el orden de declaración.
func (c *Catalog) Modules() []*entity.ModuleDefinition {
	out := make([]*entity.ModuleDefinition, 0, len(c.moduleOrder))
	for _, id := range c.moduleOrder {
		out = append(out, c.modules[id])
	}
	return out
}

// PlanBySlug busca un plan por slug.
func (c *Catalog) PlanBySlug(slug string) (*entity.Plan, error) {
	p, ok := c.plans[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, slug)
	}
	return p, nil
}

// PlanByID busca un plan por id.
func (c *Catalog) PlanByID(id string) (*entity.Plan, error) {
	p, ok := c.plansByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, id)
	}
	return p, nil
}

// Plans devuelve los planes ordenados por SortOrder.
func (c *Catalog) Plans() []*entity.Plan {
	out := make([]*entity.Plan, 0, len(c.planOrder))
	for _, slug := range c.planOrder {
		out = append(out, c.plans[slug])
	}
	return out
}

// PlanIncludes informa si el plan incluye el módulo, ya sea por la lista del
// plan o por la regla includedInPlans del módulo.
func (c *Catalog) PlanIncludes(plan *entity.Plan, moduleID string) bool {
	if plan == nil {
		return false
	}
	if plan.Includes(moduleID) {
		return true
	}
	m, ok := c.modules[moduleID]
	return ok && m.IncludedIn(plan.ID)
}
