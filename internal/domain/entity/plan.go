package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle ciclo de facturación de una suscripción.
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// Months cantidad de meses que cubre el ciclo.
func (c BillingCycle) Months() int {
	switch c {
	case CycleQuarterly:
		return 3
	case CycleYearly:
		return 12
	default:
		return 1
	}
}

// Valid informa si el ciclo es conocido.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleQuarterly || c == CycleYearly
}

// Plan plan de suscripción del catálogo. SortOrder define el orden total
// usado para clasificar upgrade/downgrade.
type Plan struct {
	ID        string
	Slug      string
	Name      string
	SortOrder int
	BasePrice decimal.Decimal                  // precio mensual
	Prices    map[BillingCycle]decimal.Decimal // precios explícitos por ciclo (opcional)
	Modules   []string                         // módulos incluidos
}

// PriceFor devuelve el precio del plan para un ciclo completo.
// Sin precio explícito se usa BasePrice × meses del ciclo.
func (p *Plan) PriceFor(cycle BillingCycle) decimal.Decimal {
	if price, ok := p.Prices[cycle]; ok {
		return price
	}
	return p.BasePrice.Mul(decimal.NewFromInt(int64(cycle.Months())))
}

// Includes informa si la lista de módulos del plan contiene moduleID.
func (p *Plan) Includes(moduleID string) bool {
	for _, m := range p.Modules {
		if m == moduleID {
			return true
		}
	}
	return false
}

// SubscriptionPeriod periodo vigente. EndDate es exclusivo y es el próximo instante de renovación.
type SubscriptionPeriod struct {
	StartDate time.Time
	EndDate   time.Time
	Cycle     BillingCycle
}

// Valid informa si StartDate < EndDate.
func (p SubscriptionPeriod) Valid() bool {
	return p.StartDate.Before(p.EndDate)
}
