// Package payment contiene las pasarelas de pago del servicio.
package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

// DeclinePrefix: los tokens que empiezan así son rechazados por la pasarela simulada.
const DeclinePrefix = "decline"

var _ ports.PaymentGateway = (*SimulatedGateway)(nil)

// SimulatedGateway pasarela para desarrollo. Aprueba todo salvo tokens "decline*"
// y responde lo mismo ante la misma clave de idempotencia.
type SimulatedGateway struct {
	log  zerolog.Logger
	mu   sync.Mutex
	seen map[string]ports.ChargeResult
}

// NewSimulatedGateway construye la pasarela simulada.
func NewSimulatedGateway(log zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{log: log, seen: make(map[string]ports.ChargeResult)}
}

// Charge simula el cobro.
func (g *SimulatedGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ChargeResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.seen[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return res, nil
	}

	var res ports.ChargeResult
	switch {
	case req.AmountMinor <= 0:
		res = ports.ChargeResult{Message: "monto inválido"}
	case strings.HasPrefix(strings.ToLower(req.Method.Token), DeclinePrefix):
		res = ports.ChargeResult{Message: "Tarjeta rechazada por el emisor"}
	default:
		res = ports.ChargeResult{Success: true, PaymentReference: "sim_" + uuid.NewString()}
	}
	if req.IdempotencyKey != "" {
		g.seen[req.IdempotencyKey] = res
	}

	g.log.Info().
		Str("tenant_id", req.TenantID).
		Int64("amount_minor", req.AmountMinor).
		Str("currency", req.Currency).
		Str("method", string(req.Method.Kind)).
		Bool("success", res.Success).
		Msg("cobro simulado")
	return res, nil
}
