// Package credit contiene la aritmética del ledger de créditos.
//
// El ledger solo registra un saldo agregado (sin asignación FIFO):
//
//	raw          = Σearned − Σspent − Σexpired
//	activeEarned = Σearned con ExpiresAt nulo o futuro
//	balance      = min(raw, activeEarned), nunca negativo
//	lapsed       = max(0, raw − activeEarned)
//
// El barrido de vencimientos convierte lapsed en una transacción expired, tras
// lo cual raw == balance.
package credit

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// Raw saldo bruto sin considerar vencimientos.
func Raw(s entity.CreditSummary) decimal.Decimal {
	return s.Earned.Sub(s.Spent).Sub(s.Expired)
}

// Balance saldo disponible.
func Balance(s entity.CreditSummary) decimal.Decimal {
	return money.Max(decimal.Zero, money.Min(Raw(s), s.ActiveEarned))
}

// Lapsed monto vencido pendiente de registrar como expired.
func Lapsed(s entity.CreditSummary) decimal.Decimal {
	return money.Max(decimal.Zero, Raw(s).Sub(s.ActiveEarned))
}
