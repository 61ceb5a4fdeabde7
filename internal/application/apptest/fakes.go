package apptest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

var (
	errDuplicate = errors.New("apptest: registro duplicado")
	errMissing   = errors.New("apptest: registro inexistente")
)

// AuditSink guarda los eventos en el Store (mismo contrato que el sink de PostgreSQL).
type AuditSink struct{ Store *Store }

func (a AuditSink) Log(ctx context.Context, ev entity.AuditEvent) error {
	return a.Store.Audit().Append(ctx, &ev)
}

// Notifier registra las notificaciones enviadas; Err simula un destino caído.
type Notifier struct {
	mu   sync.Mutex
	sent []ports.Notification
	Err  error
}

func (n *Notifier) Send(_ context.Context, msg ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent copia de las notificaciones enviadas.
func (n *Notifier) Sent() []ports.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.Notification(nil), n.sent...)
}

// Gateway pasarela falsa: rechaza tokens que empiezan con "decline".
// Block, si no es nil, detiene Charge hasta que se cierre.
type Gateway struct {
	mu       sync.Mutex
	requests []ports.ChargeRequest
	Block    chan struct{}
	Err      error
}

func (g *Gateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	block, fail := g.Block, g.Err
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ports.ChargeResult{}, ctx.Err()
		}
	}
	if fail != nil {
		return ports.ChargeResult{}, fail
	}
	if strings.HasPrefix(req.Method.Token, "decline") {
		return ports.ChargeResult{Success: false, Message: "Tarjeta rechazada por el emisor"}, nil
	}
	return ports.ChargeResult{Success: true, PaymentReference: "pay_" + req.IdempotencyKey}, nil
}

// Requests copia de los cobros solicitados.
func (g *Gateway) Requests() []ports.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.ChargeRequest(nil), g.requests...)
}
