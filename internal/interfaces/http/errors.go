package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
)

// statusByCode status HTTP por código de error de dominio.
var statusByCode = map[string]int{
	"DEPENDENCY_UNSATISFIED":     fiber.StatusUnprocessableEntity,
	"PLAN_INELIGIBLE":            fiber.StatusUnprocessableEntity,
	"CORE_MODULE_PROTECTED":      fiber.StatusUnprocessableEntity,
	"INSUFFICIENT_CREDIT":        fiber.StatusUnprocessableEntity,
	"CHANGE_ALREADY_IN_PROGRESS": fiber.StatusConflict,
	"PAYMENT_DECLINED":           fiber.StatusPaymentRequired,
	"INVALID_PRORATION_INPUT":    fiber.StatusBadRequest,
	"INVALID_TRANSITION":         fiber.StatusConflict,
	"NO_ACTIVE_CHANGE":           fiber.StatusNotFound,
	"NOT_FOUND":                  fiber.StatusNotFound,
	"VALIDATION":                 fiber.StatusBadRequest,
	"CONFLICT":                   fiber.StatusConflict,
	"UNAUTHORIZED":               fiber.StatusUnauthorized,
	"FORBIDDEN":                  fiber.StatusForbidden,
}

// respondError traduce un error de la capa de aplicación a {code, message}.
// Los errores que no son de dominio se registran y se responden como 500 sin detalle.
func respondError(c *fiber.Ctx, err error) error {
	code := domain.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("tenant_id", GetTenantID(c)).
			Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno, intente más tarde"})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

// pageFromQuery lee limit/offset de la query.
func pageFromQuery(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	p.DefaultPage()
	return p
}
