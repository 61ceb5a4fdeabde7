package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
)

// ModuleChecker contrato mínimo del gate de módulos. Lo implementan
// *entitlement.Service y la caché *cache.EntitlementCache.
type ModuleChecker interface {
	IsModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error)
}

// RequireModule devuelve un middleware Fiber que verifica si el tenant del token JWT
// tiene el módulo habilitado. Debe usarse DESPUÉS de AuthMiddleware.
//
// Comportamiento:
//   - 403 Forbidden → módulo no habilitado o vencido.
//   - 503 Service Unavailable → fallo de infraestructura al consultar.
//   - Sin tenant_id en el contexto responde 401.
func RequireModule(moduleID string, checker ModuleChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "tenant_id no encontrado en el token",
			})
		}

		enabled, err := checker.IsModuleEnabled(c.UserContext(), tenantID, moduleID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "MODULE_CHECK_FAILED",
				Message: "no se pudo verificar el módulo, intente más tarde",
			})
		}
		if !enabled {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "MODULE_DISABLED",
				Message: "el módulo '" + moduleID + "' no está habilitado para este tenant",
			})
		}
		return c.Next()
	}
}
