package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditTxType tipo de movimiento del ledger de créditos.
type CreditTxType string

const (
	CreditEarned  CreditTxType = "earned"
	CreditSpent   CreditTxType = "spent"
	CreditExpired CreditTxType = "expired"
)

// CreditTransaction movimiento append-only del ledger. Amount siempre es una
// magnitud positiva; el efecto sobre el saldo lo da Type.
type CreditTransaction struct {
	ID              string // ULID: el orden lexicográfico es el orden del ledger
	TenantID        string
	Type            CreditTxType
	Amount          decimal.Decimal
	Reason          string
	SourceReference string
	CreatedAt       time.Time
	ExpiresAt       *time.Time // solo earned
}

// CreditSummary agregados del ledger de un tenant en un instante dado.
type CreditSummary struct {
	Earned       decimal.Decimal // todos los earned
	ActiveEarned decimal.Decimal // earned sin vencer (ExpiresAt nil o futuro)
	Spent        decimal.Decimal
	Expired      decimal.Decimal
}
