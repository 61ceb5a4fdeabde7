package ports

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// ChargeRequest solicitud de cobro. El monto va en unidades menores (centavos).
type ChargeRequest struct {
	TenantID       string
	AmountMinor    int64
	Currency       string
	Method         entity.PaymentMethod
	IdempotencyKey string // <workflowID>:<intento>
	Description    string
}

// ChargeResult respuesta de la pasarela. Success=false con Message = rechazo.
type ChargeResult struct {
	Success          bool
	PaymentReference string
	Message          string
}

// PaymentGateway puerto hacia la pasarela de pagos. Nunca se reintenta
// automáticamente: un rechazo devuelve el flujo a Payment.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}
