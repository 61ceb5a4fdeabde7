package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
)

// CreditHandler saldo y movimientos del ledger de créditos.
type CreditHandler struct {
	svc *credit.Service
}

// NewCreditHandler construye el handler.
func NewCreditHandler(svc *credit.Service) *CreditHandler {
	return &CreditHandler{svc: svc}
}

// Balance godoc
// @Summary      Saldo de créditos
// @Tags         credits
// @Produce      json
// @Security     Bearer
// @Success      200  {object}  dto.CreditBalanceResponse
// @Router       /api/credits/balance [get]
func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	out, err := h.svc.Balance(c.UserContext(), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Transactions godoc
// @Summary      Movimientos de créditos
// @Tags         credits
// @Produce      json
// @Security     Bearer
// @Param        limit   query     int  false  "Máximo 100"
// @Param        offset  query     int  false  "Desplazamiento"
// @Success      200     {object}  dto.CreditTransactionListResponse
// @Router       /api/credits/transactions [get]
func (h *CreditHandler) Transactions(c *fiber.Ctx) error {
	out, err := h.svc.Transactions(c.UserContext(), GetTenantID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Earn godoc
// @Summary      Conceder créditos
// @Description  Concesión manual (super_admin).
// @Tags         credits
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      dto.EarnCreditRequest  true  "Monto y motivo"
// @Success      201   {object}  dto.CreditTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/credits/earn [post]
func (h *CreditHandler) Earn(c *fiber.Ctx) error {
	var in dto.EarnCreditRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	tx, err := h.svc.Earn(c.UserContext(), GetTenantID(c), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(credit.ToTransactionResponse(tx))
}

// Spend godoc
// @Summary      Consumir créditos
// @Tags         credits
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body      dto.SpendCreditRequest  true  "Monto y motivo"
// @Success      201   {object}  dto.CreditTransactionResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/credits/spend [post]
func (h *CreditHandler) Spend(c *fiber.Ctx) error {
	var in dto.SpendCreditRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	tx, err := h.svc.Spend(c.UserContext(), GetTenantID(c), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(credit.ToTransactionResponse(tx))
}
