package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/pkg/jwt"
)

// EntitlementHandler estado y administración de módulos del tenant del token.
type EntitlementHandler struct {
	svc     *entitlement.Service
	checker ModuleChecker
}

// NewEntitlementHandler construye el handler. checker resuelve GET /:moduleId
// (normalmente la caché); si es nil se consulta el servicio.
func NewEntitlementHandler(svc *entitlement.Service, checker ModuleChecker) *EntitlementHandler {
	if checker == nil {
		checker = svc
	}
	return &EntitlementHandler{svc: svc, checker: checker}
}

// List godoc
// @Summary      Estado efectivo de los módulos
// @Tags         entitlements
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  dto.EntitlementListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/entitlements [get]
func (h *EntitlementHandler) List(c *fiber.Ctx) error {
	out, err := h.svc.States(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// IsEnabled godoc
// @Summary      ¿Módulo habilitado?
// @Description  Respuesta del gate: habilitado y no vencido.
// @Tags         entitlements
// @Produce      json
// @Security     Bearer
// @Param        moduleId  path      string  true  "ID del módulo"
// @Success      200       {object}  dto.ModuleEnabledResponse
// @Router       /api/entitlements/{moduleId} [get]
func (h *EntitlementHandler) IsEnabled(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	enabled, err := h.checker.IsModuleEnabled(c.UserContext(), GetTenantID(c), moduleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ModuleEnabledResponse{ModuleID: moduleID, Enabled: enabled})
}

// CanEnable godoc
// @Summary      ¿Se puede activar el módulo?
// @Description  Evalúa dependencias y requisito de plan sin modificar nada.
// @Tags         entitlements
// @Produce      json
// @Security     Bearer
// @Param        moduleId  path      string  true  "ID del módulo"
// @Success      200       {object}  dto.CanEnableResponse
// @Failure      404       {object}  dto.ErrorResponse
// @Router       /api/entitlements/{moduleId}/can-enable [get]
func (h *EntitlementHandler) CanEnable(c *fiber.Ctx) error {
	out, err := h.svc.CanEnableModule(c.UserContext(), GetTenantID(c), c.Params("moduleId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Enable godoc
// @Summary      Activar módulo
// @Description  Activa un módulo como addon, manual o trial. force=true omite las validaciones (solo super_admin).
// @Tags         entitlements
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        moduleId  path      string                   true   "ID del módulo"
// @Param        body      body      dto.EnableModuleRequest  false  "Origen y vencimiento"
// @Success      200       {object}  dto.ModuleStateResponse
// @Failure      403       {object}  dto.ErrorResponse
// @Failure      422       {object}  dto.ErrorResponse
// @Router       /api/entitlements/{moduleId}/enable [post]
func (h *EntitlementHandler) Enable(c *fiber.Ctx) error {
	var in dto.EnableModuleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	if in.Force && GetRole(c) != jwt.RoleSuperAdmin {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "force requiere rol super_admin"})
	}
	out, err := h.svc.EnableModule(c.UserContext(), GetTenantID(c), GetUserID(c), c.Params("moduleId"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Disable godoc
// @Summary      Desactivar módulo
// @Description  Los módulos core no se pueden desactivar.
// @Tags         entitlements
// @Produce      json
// @Security     Bearer
// @Param        moduleId  path      string  true  "ID del módulo"
// @Success      200       {object}  dto.ModuleStateResponse
// @Failure      422       {object}  dto.ErrorResponse
// @Router       /api/entitlements/{moduleId}/disable [post]
func (h *EntitlementHandler) Disable(c *fiber.Ctx) error {
	out, err := h.svc.DisableModule(c.UserContext(), GetTenantID(c), GetUserID(c), c.Params("moduleId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// UpdateQuantity godoc
// @Summary      Cambiar cantidad de un módulo por unidad
// @Tags         entitlements
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        moduleId  path      string                     true  "ID del módulo"
// @Param        body      body      dto.UpdateQuantityRequest  true  "Cantidad"
// @Success      200       {object}  dto.UpdateQuantityResponse
// @Failure      400       {object}  dto.ErrorResponse
// @Router       /api/entitlements/{moduleId}/quantity [put]
func (h *EntitlementHandler) UpdateQuantity(c *fiber.Ctx) error {
	var in dto.UpdateQuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.svc.UpdateModuleQuantity(c.UserContext(), GetTenantID(c), GetUserID(c), c.Params("moduleId"), in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Resolve godoc
// @Summary      Previsualizar estados con otro plan
// @Description  Estados efectivos que tendría el tenant si estuviera en el plan indicado.
// @Tags         entitlements
// @Produce      json
// @Security     Bearer
// @Param        plan  query     string  true  "Slug del plan"
// @Success      200   {object}  dto.EntitlementListResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/entitlements/resolve [get]
func (h *EntitlementHandler) Resolve(c *fiber.Ctx) error {
	slug := c.Query("plan")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetro plan requerido"})
	}
	out, err := h.svc.Preview(c.UserContext(), GetTenantID(c), slug)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
