package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanChangeStatus estado final de un cambio de plan registrado.
type PlanChangeStatus string

const (
	PlanChangeCompleted PlanChangeStatus = "completed"
	PlanChangeFailed    PlanChangeStatus = "failed"
)

// PlanChangeRecord histórico inmutable de un cambio de plan.
type PlanChangeRecord struct {
	ID               string
	WorkflowID       string
	TenantID         string
	ActorID          string
	ChangeType       ChangeType
	FromPlan         string
	ToPlan           string
	FromCycle        BillingCycle
	ToCycle          BillingCycle
	ProratedAmount   decimal.Decimal // monto efectivamente cobrado (0 en downgrades)
	CreditsApplied   decimal.Decimal
	CreditsGenerated decimal.Decimal
	EffectiveDate    time.Time
	PaymentReference string
	Status           PlanChangeStatus
	FailureReason    string
	ReceiptDigest    string // huella del comprobante canónico
	CreatedAt        time.Time
}

// ReceiptLine línea del comprobante. Amount con signo: negativo = descuento/crédito.
type ReceiptLine struct {
	Description string
	Amount      decimal.Decimal
}

// Receipt comprobante que se entrega al finalizar el cambio de plan.
type Receipt struct {
	WorkflowID       string
	TenantID         string
	FromPlan         string
	ToPlan           string
	Lines            []ReceiptLine
	Total            decimal.Decimal // = finalAmount
	Currency         string
	PaymentReference string
	IssuedAt         time.Time
	Digest           string
}
