// Package catalog carga el catálogo de planes y módulos desde YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// File estructura del archivo YAML.
type File struct {
	Version string       `yaml:"version"`
	Plans   []PlanFile   `yaml:"plans"`
	Modules []ModuleFile `yaml:"modules"`
}

// PlanFile plan en YAML. Los montos van como string para no pasar por float.
type PlanFile struct {
	ID        string            `yaml:"id"`
	Slug      string            `yaml:"slug"`
	Name      string            `yaml:"name"`
	SortOrder int               `yaml:"sort_order"`
	BasePrice string            `yaml:"base_price"`
	Prices    map[string]string `yaml:"prices"`
	Modules   []string          `yaml:"modules"`
}

// ModuleFile módulo en YAML.
type ModuleFile struct {
	ID              string               `yaml:"id"`
	Name            string               `yaml:"name"`
	Category        string               `yaml:"category"`
	Core            bool                 `yaml:"core"`
	Dependencies    []string             `yaml:"dependencies"`
	Pricing         *PricingFile         `yaml:"pricing"`
	PlanRequirement *PlanRequirementFile `yaml:"plan_requirement"`
}

// PricingFile precio de un módulo vendible por separado.
type PricingFile struct {
	MonthlyPrice string `yaml:"monthly_price"`
	PerUnit      bool   `yaml:"per_unit"`
	UnitName     string `yaml:"unit_name"`
	MaxUnits     int    `yaml:"max_units"`
	TrialDays    int    `yaml:"trial_days"`
}

// PlanRequirementFile restricción por plan.
type PlanRequirementFile struct {
	MinPlan         string   `yaml:"min_plan"`
	IncludedInPlans []string `yaml:"included_in_plans"`
}

// Default devuelve el catálogo embebido.
func Default() (*catalog.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load lee el catálogo de path; path vacío usa el embebido.
func Load(path string) (*catalog.Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: leer %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodifica el YAML y construye el catálogo validado.
func Parse(raw []byte) (*catalog.Catalog, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: YAML inválido: %w", err)
	}
	plans, err := toPlans(f.Plans)
	if err != nil {
		return nil, err
	}
	modules, err := toModules(f.Modules)
	if err != nil {
		return nil, err
	}
	return catalog.New(plans, modules)
}

func toPlans(in []PlanFile) ([]entity.Plan, error) {
	plans := make([]entity.Plan, 0, len(in))
	for _, p := range in {
		base, err := parseAmount(p.BasePrice, "plan "+p.ID+" base_price")
		if err != nil {
			return nil, err
		}
		var prices map[entity.BillingCycle]decimal.Decimal
		if len(p.Prices) > 0 {
			prices = make(map[entity.BillingCycle]decimal.Decimal, len(p.Prices))
			for cycle, raw := range p.Prices {
				c := entity.BillingCycle(cycle)
				if !c.Valid() {
					return nil, fmt.Errorf("catalog: plan %s: ciclo desconocido %q", p.ID, cycle)
				}
				amount, err := parseAmount(raw, "plan "+p.ID+" prices."+cycle)
				if err != nil {
					return nil, err
				}
				prices[c] = amount
			}
		}
		plans = append(plans, entity.Plan{
			ID:        p.ID,
			Slug:      p.Slug,
			Name:      p.Name,
			SortOrder: p.SortOrder,
			BasePrice: base,
			Prices:    prices,
			Modules:   p.Modules,
		})
	}
	return plans, nil
}

func toModules(in []ModuleFile) ([]entity.ModuleDefinition, error) {
	modules := make([]entity.ModuleDefinition, 0, len(in))
	for _, m := range in {
		def := entity.ModuleDefinition{
			ID:           m.ID,
			Name:         m.Name,
			Category:     entity.ModuleCategory(m.Category),
			IsCore:       m.Core,
			Dependencies: m.Dependencies,
		}
		if m.Pricing != nil {
			price, err := parseAmount(m.Pricing.MonthlyPrice, "módulo "+m.ID+" monthly_price")
			if err != nil {
				return nil, err
			}
			def.Pricing = &entity.ModulePricing{
				MonthlyPrice: price,
				PerUnit:      m.Pricing.PerUnit,
				UnitName:     m.Pricing.UnitName,
				MaxUnits:     m.Pricing.MaxUnits,
				TrialDays:    m.Pricing.TrialDays,
			}
		}
		if m.PlanRequirement != nil {
			def.PlanRequirement = &entity.PlanRequirement{
				MinPlan:         m.PlanRequirement.MinPlan,
				IncludedInPlans: m.PlanRequirement.IncludedInPlans,
			}
		}
		modules = append(modules, def)
	}
	return modules, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: %s: monto inválido %q", field, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("catalog: %s: monto negativo", field)
	}
	return d, nil
}
