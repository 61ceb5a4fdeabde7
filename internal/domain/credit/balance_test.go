package credit_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/tenant-billing-api/internal/domain/credit"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBalance_SinVencimientos(t *testing.T) {
	s := entity.CreditSummary{Earned: d("100"), ActiveEarned: d("100"), Spent: d("30")}
	assert.True(t, d("70").Equal(credit.Balance(s)))
	assert.True(t, credit.Lapsed(s).IsZero())
}

func TestBalance_CreditoVencidoSinBarrer(t *testing.T) {
	// earned 100 (vencido) + 50 (vigente), gastado 30: el gasto consume primero lo que vence.
	s := entity.CreditSummary{Earned: d("150"), ActiveEarned: d("50"), Spent: d("30")}
	assert.True(t, d("50").Equal(credit.Balance(s)))
	assert.True(t, d("70").Equal(credit.Lapsed(s)))

	swept := s
	swept.Expired = credit.Lapsed(s)
	assert.True(t, credit.Balance(s).Equal(credit.Balance(swept)), "el barrido no cambia el saldo visible")
	assert.True(t, credit.Lapsed(swept).IsZero(), "el barrido es idempotente")
	assert.True(t, credit.Raw(swept).Equal(credit.Balance(swept)))
}

func TestBalance_NuncaNegativo(t *testing.T) {
	s := entity.CreditSummary{Earned: d("10"), ActiveEarned: d("0"), Spent: d("10")}
	assert.True(t, credit.Balance(s).IsZero())
	assert.True(t, credit.Lapsed(s).IsZero())
}
