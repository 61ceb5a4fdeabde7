package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// CatalogHandler expone el catálogo de planes y módulos (solo lectura).
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler construye el handler.
func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// ListPlans godoc
// @Summary      Listar planes
// @Description  Planes del catálogo ordenados por nivel (sort_order).
// @Tags         catalog
// @Produce      json
// @Security     Bearer
// @Success      200  {array}   dto.PlanResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/catalog/plans [get]
func (h *CatalogHandler) ListPlans(c *fiber.Ctx) error {
	plans := h.catalog.Plans()
	out := make([]dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	return c.JSON(out)
}

// ListModules godoc
// @Summary      Listar módulos
// @Description  Definiciones de módulos: dependencias, precio de add-on y requisito de plan.
// @Tags         catalog
// @Produce      json
// @Security     Bearer
// @Success      200  {array}   dto.ModuleDefinitionResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/catalog/modules [get]
func (h *CatalogHandler) ListModules(c *fiber.Ctx) error {
	mods := h.catalog.Modules()
	out := make([]dto.ModuleDefinitionResponse, 0, len(mods))
	for _, m := range mods {
		out = append(out, toModuleResponse(m))
	}
	return c.JSON(out)
}

func toPlanResponse(p *entity.Plan) dto.PlanResponse {
	r := dto.PlanResponse{
		ID:        p.ID,
		Slug:      p.Slug,
		Name:      p.Name,
		SortOrder: p.SortOrder,
		BasePrice: p.BasePrice,
		Modules:   append([]string{}, p.Modules...),
	}
	if len(p.Prices) > 0 {
		r.Prices = make(map[string]decimal.Decimal, len(p.Prices))
		for cycle, price := range p.Prices {
			r.Prices[string(cycle)] = price
		}
	}
	return r
}

func toModuleResponse(m *entity.ModuleDefinition) dto.ModuleDefinitionResponse {
	r := dto.ModuleDefinitionResponse{
		ID:           m.ID,
		Name:         m.Name,
		Category:     string(m.Category),
		IsCore:       m.IsCore,
		Dependencies: m.Dependencies,
	}
	if p := m.Pricing; p != nil {
		price := p.MonthlyPrice
		r.MonthlyPrice = &price
		r.PerUnit = p.PerUnit
		r.UnitName = p.UnitName
		r.MaxUnits = p.MaxUnits
		r.TrialDays = p.TrialDays
	}
	if req := m.PlanRequirement; req != nil {
		r.MinPlan = req.MinPlan
		r.IncludedInPlans = req.IncludedInPlans
	}
	return r
}
