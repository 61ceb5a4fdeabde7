package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// HTTPRecorder métricas por request.
type HTTPRecorder interface {
	HTTPRequest(method, path string, status int, d time.Duration)
}

// RequestLogger registra cada request con zerolog y, si hay recorder, sus métricas.
// La ruta registrada es la del router (/api/entitlements/:moduleId), no la URL.
func RequestLogger(log zerolog.Logger, rec HTTPRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// El ErrorHandler de Fiber fija el status después; aquí se resuelve antes para el log.
			if e, ok := err.(*fiber.Error); ok {
				c.Status(e.Code)
			} else {
				c.Status(fiber.StatusInternalServerError)
			}
		}
		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		if rec != nil {
			rec.HTTPRequest(c.Method(), route, status, elapsed)
		}

		ev := log.Info()
		if status >= 500 {
			ev = log.Error().Err(err)
		} else if status >= 400 {
			ev = log.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Str("tenant_id", GetTenantID(c)).
			Msg("http")
		return err
	}
}
