// Package catalogtest expone un catálogo de ejemplo para pruebas.
package catalogtest

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// IDs de planes del catálogo de pruebas.
const (
	PlanFree         = "plan_free"
	PlanStarter      = "plan_starter"
	PlanProfessional = "plan_professional"
	PlanEnterprise   = "plan_enterprise"
)

// Plans devuelve free(0) < starter(97) < professional(197) < enterprise(497).
func Plans() []entity.Plan {
	return []entity.Plan{
		{ID: PlanFree, Slug: "free", Name: "Free", SortOrder: 0, BasePrice: decimal.Zero},
		{ID: PlanStarter, Slug: "starter", Name: "Starter", SortOrder: 1, BasePrice: decimal.NewFromInt(97),
			Modules: []string{"tickets", "calendar"}},
		{ID: PlanProfessional, Slug: "professional", Name: "Professional", SortOrder: 2, BasePrice: decimal.NewFromInt(197),
			Modules: []string{"tickets", "calendar", "crm", "chat"}},
		{ID: PlanEnterprise, Slug: "enterprise", Name: "Enterprise", SortOrder: 3, BasePrice: decimal.NewFromInt(497),
			Prices:  map[entity.BillingCycle]decimal.Decimal{entity.CycleYearly: decimal.NewFromInt(4970)},
			Modules: []string{"tickets", "calendar", "crm", "chat"}},
	}
}

// Modules devuelve los módulos del catálogo de pruebas.
func Modules() []entity.ModuleDefinition {
	return []entity.ModuleDefinition{
		{ID: "dashboard", Name: "Dashboard", Category: entity.CategoryCore, IsCore: true},
		{ID: "users", Name: "Usuarios y roles", Category: entity.CategoryCore, IsCore: true},
		{ID: "tickets", Name: "Soporte", Category: entity.CategoryOperations},
		{ID: "calendar", Name: "Calendario", Category: entity.CategoryOperations},
		{ID: "crm", Name: "CRM", Category: entity.CategorySales},
		{ID: "chat", Name: "Chat", Category: entity.CategoryCommunication, Dependencies: []string{"crm"}},
		{ID: "ai_insights", Name: "IA Insights", Category: entity.CategoryIntelligence,
			Dependencies:    []string{"crm"},
			PlanRequirement: &entity.PlanRequirement{MinPlan: PlanProfessional, IncludedInPlans: []string{PlanEnterprise}}},
		{ID: "whatsapp", Name: "WhatsApp", Category: entity.CategoryCommunication,
			Dependencies: []string{"chat"},
			Pricing: &entity.ModulePricing{MonthlyPrice: decimal.RequireFromString("49.90"), PerUnit: true,
				UnitName: "número", MaxUnits: 10, TrialDays: 14}},
		{ID: "reports", Name: "Reportes avanzados", Category: entity.CategoryIntelligence,
			Pricing:         &entity.ModulePricing{MonthlyPrice: decimal.RequireFromString("29.90")},
			PlanRequirement: &entity.PlanRequirement{MinPlan: PlanProfessional}},
	}
}

// Standard construye el catálogo de pruebas; entra en pánico si es inválido.
func Standard() *catalog.Catalog {
	c, err := catalog.New(Plans(), Modules())
	if err != nil {
		panic(err)
	}
	return c
}
