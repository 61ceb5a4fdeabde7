package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/application/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Catalog      *catalog.Catalog
	Entitlements *entitlement.Service
	Credits      *credit.Service
	PlanChanges  *planchange.Service
	// Checker gate de módulos (caché); nil = Entitlements directo.
	Checker   ModuleChecker
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token; el tenant
// sale siempre del token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	admin := RequireRole(jwt.RoleTenantAdmin, jwt.RoleSuperAdmin)
	superAdmin := RequireRole(jwt.RoleSuperAdmin)

	// Catálogo
	catalogHandler := NewCatalogHandler(deps.Catalog)
	cat := api.Group("/catalog")
	cat.Get("/plans", catalogHandler.ListPlans)
	cat.Get("/modules", catalogHandler.ListModules)

	// Entitlements (resolve antes de /:moduleId)
	entHandler := NewEntitlementHandler(deps.Entitlements, deps.Checker)
	ent := api.Group("/entitlements")
	ent.Get("/", entHandler.List)
	ent.Get("/resolve", entHandler.Resolve)
	ent.Get("/:moduleId", entHandler.IsEnabled)
	ent.Get("/:moduleId/can-enable", entHandler.CanEnable)
	ent.Post("/:moduleId/enable", admin, entHandler.Enable)
	ent.Post("/:moduleId/disable", admin, entHandler.Disable)
	ent.Put("/:moduleId/quantity", admin, entHandler.UpdateQuantity)

	// Prorrateo y cambio de plan
	pcHandler := NewPlanChangeHandler(deps.PlanChanges)
	api.Post("/proration/preview", pcHandler.PreviewProration)

	pc := api.Group("/plan-changes")
	pc.Get("/history", pcHandler.History)
	pc.Post("/", admin, pcHandler.Start)
	pc.Get("/current", pcHandler.Current)
	pc.Post("/current/proceed", admin, pcHandler.Proceed)
	pc.Post("/current/payment", admin, pcHandler.SubmitPayment)
	pc.Post("/current/finish", admin, pcHandler.Finish)
	pc.Delete("/current", admin, pcHandler.Discard)
	pc.Get("/current/receipt.pdf", pcHandler.Receipt)

	// Créditos
	creditHandler := NewCreditHandler(deps.Credits)
	cr := api.Group("/credits")
	cr.Get("/balance", creditHandler.Balance)
	cr.Get("/transactions", creditHandler.Transactions)
	cr.Post("/earn", superAdmin, creditHandler.Earn)
	cr.Post("/spend", superAdmin, creditHandler.Spend)
}
