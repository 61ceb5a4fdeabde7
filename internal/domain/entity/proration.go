package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeType clasificación del cambio de plan por SortOrder.
type ChangeType string

const (
	ChangeUpgrade   ChangeType = "upgrade"
	ChangeDowngrade ChangeType = "downgrade"
	ChangeLateral   ChangeType = "lateral"
)

// LineType naturaleza de una línea del desglose.
type LineType string

const (
	LineCharge LineType = "charge"
	LineCredit LineType = "credit"
)

// BreakdownLine línea del desglose de prorrateo.
type BreakdownLine struct {
	Description string
	Amount      decimal.Decimal // magnitud; el signo lo da Type
	Type        LineType
}

// ProrationResult resultado del cálculo de prorrateo.
// ProratedAmount > 0: el tenant debe; < 0: el tenant recibe crédito.
type ProrationResult struct {
	Type            ChangeType
	FromPlan        string
	ToPlan          string
	ProratedAmount  decimal.Decimal
	RemainingDays   int
	CycleDays       int
	Breakdown       []BreakdownLine
	NextBillingDate time.Time
}
