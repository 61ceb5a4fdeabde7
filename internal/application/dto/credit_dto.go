package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditBalanceResponse saldo de créditos del tenant.
type CreditBalanceResponse struct {
	TenantID  string          `json:"tenant_id"`
	Balance   decimal.Decimal `json:"balance"`
	Formatted string          `json:"formatted"`
	Earned    decimal.Decimal `json:"earned"`
	Spent     decimal.Decimal `json:"spent"`
	Expired   decimal.Decimal `json:"expired"`
	Lapsed    decimal.Decimal `json:"lapsed"` // vencido pendiente de barrido
	Currency  string          `json:"currency"`
}

// EarnCreditRequest body para POST /api/credits/earn (concesión manual).
type EarnCreditRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	SourceReference string          `json:"source_reference,omitempty"`
	ExpiresInDays   int             `json:"expires_in_days,omitempty"` // 0 = vigencia por defecto
}

// SpendCreditRequest body para POST /api/credits/spend.
type SpendCreditRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	SourceReference string          `json:"source_reference,omitempty"`
}

// CreditTransactionResponse movimiento del ledger.
type CreditTransactionResponse struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	SourceReference string          `json:"source_reference,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

// CreditTransactionListResponse página de movimientos.
type CreditTransactionListResponse struct {
	Items []CreditTransactionResponse `json:"items"`
	Page  PageResponse                `json:"page"`
}
