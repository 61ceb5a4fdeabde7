package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
)

// PlanChangeHandler flujo de cambio de plan y prorrateo.
type PlanChangeHandler struct {
	svc *planchange.Service
}

// NewPlanChangeHandler construye el handler.
func NewPlanChangeHandler(svc *planchange.Service) *PlanChangeHandler {
	return &PlanChangeHandler{svc: svc}
}

// PreviewProration godoc
// @Summary      Simular prorrateo
// @Description  Calcula el prorrateo sobre el periodo actual del tenant o sobre el periodo indicado.
// @Tags         proration
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      dto.ProrationPreviewRequest  true  "Planes y periodo"
// @Success      200   {object}  dto.ProrationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/proration/preview [post]
func (h *PlanChangeHandler) PreviewProration(c *fiber.Ctx) error {
	var in dto.ProrationPreviewRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.svc.PreviewProration(c.UserContext(), GetTenantID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Start godoc
// @Summary      Iniciar cambio de plan
// @Description  Crea el flujo en Review con el prorrateo y los créditos aplicables.
// @Tags         plan-changes
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      dto.StartPlanChangeRequest  true  "Plan destino"
// @Success      201   {object}  dto.PlanChangeView
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/plan-changes [post]
func (h *PlanChangeHandler) Start(c *fiber.Ctx) error {
	var in dto.StartPlanChangeRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.svc.Start(c.UserContext(), GetTenantID(c), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Current godoc
// @Summary      Flujo en curso
// @Tags         plan-changes
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  dto.PlanChangeView
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/plan-changes/current [get]
func (h *PlanChangeHandler) Current(c *fiber.Ctx) error {
	out, err := h.svc.Current(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Proceed godoc
// @Summary      Confirmar revisión
// @Description  Review → Payment; sin monto a cobrar aplica el cambio directamente.
// @Tags         plan-changes
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  dto.PlanChangeView
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/plan-changes/current/proceed [post]
func (h *PlanChangeHandler) Proceed(c *fiber.Ctx) error {
	out, err := h.svc.ProceedToPayment(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// SubmitPayment godoc
// @Summary      Enviar pago
// @Description  Un pago rechazado deja el flujo en Payment con el error para reintentar.
// @Tags         plan-changes
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      dto.SubmitPaymentRequest  true  "Método de pago"
// @Success      200   {object}  dto.PlanChangeView
// @Failure      402   {object}  dto.PlanChangeView
// @Router       /api/plan-changes/current/payment [post]
func (h *PlanChangeHandler) SubmitPayment(c *fiber.Ctx) error {
	var in dto.SubmitPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.svc.SubmitPayment(c.UserContext(), GetTenantID(c), in)
	if errors.Is(err, domain.ErrPaymentDeclined) && out != nil {
		// el flujo sigue en Payment; la vista lleva el motivo para reintentar
		return c.Status(fiber.StatusPaymentRequired).JSON(out)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Finish godoc
// @Summary      Cerrar flujo
// @Description  Success → Done; libera el flujo del tenant.
// @Tags         plan-changes
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  dto.PlanChangeView
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/plan-changes/current/finish [post]
func (h *PlanChangeHandler) Finish(c *fiber.Ctx) error {
	out, err := h.svc.Finish(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Discard godoc
// @Summary      Descartar flujo
// @Tags         plan-changes
// @Security     Bearer
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/plan-changes/current [delete]
func (h *PlanChangeHandler) Discard(c *fiber.Ctx) error {
	if err := h.svc.Discard(c.UserContext(), GetTenantID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Receipt godoc
// @Summary      Comprobante PDF
// @Description  Comprobante del cambio aplicado, con el digest sellado.
// @Tags         plan-changes
// @Produce      application/pdf
// @Security     Bearer
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/plan-changes/current/receipt.pdf [get]
func (h *PlanChangeHandler) Receipt(c *fiber.Ctx) error {
	pdf, err := h.svc.Receipt(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="comprobante.pdf"`)
	return c.Send(pdf)
}

// History godoc
// @Summary      Historial de cambios de plan
// @Tags         plan-changes
// @Produce      json
// @Security     Bearer
// @Param        limit   query     int  false  "Máximo 100"
// @Param        offset  query     int  false  "Desplazamiento"
// @Success      200     {object}  dto.PlanChangeHistoryResponse
// @Router       /api/plan-changes/history [get]
func (h *PlanChangeHandler) History(c *fiber.Ctx) error {
	out, err := h.svc.History(c.UserContext(), GetTenantID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
