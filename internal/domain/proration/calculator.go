// Package proration calcula el ajuste monetario de un cambio de plan a mitad
// de ciclo. Trabaja en unidades mayores (ej. reales) con shopspring/decimal.
package proration

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

const day = 24 * time.Hour

// Calculator calculadora de prorrateo sobre el catálogo de planes.
type Calculator struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewCalculator construye la calculadora. now nil = time.Now.
func NewCalculator(c *catalog.Catalog, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{catalog: c, now: now}
}

// DaysBetween días completos entre a y b (truncado hacia abajo). Negativo si b < a.
func DaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// CalculatePlanChange calcula el prorrateo de fromSlug a toSlug en el periodo dado.
//
//	dailyRate = precio del ciclo / cycleDays
//	unusedCredit = dailyRateFrom × remainingDays
//	newCharge    = dailyRateTo × remainingDays
//	prorated     = round(newCharge − unusedCredit)
//
// La fecha de renovación nunca se mueve: NextBillingDate = period.EndDate.
func (c *Calculator) CalculatePlanChange(fromSlug, toSlug string, period entity.SubscriptionPeriod) (entity.ProrationResult, error) {
	if !period.Valid() {
		return entity.ProrationResult{}, fmt.Errorf("%w: la fecha de inicio debe ser anterior a la de fin", domain.ErrInvalidProrationInput)
	}
	cycleDays := DaysBetween(period.StartDate, period.EndDate)
	if cycleDays < 1 {
		return entity.ProrationResult{}, fmt.Errorf("%w: el periodo debe cubrir al menos un día", domain.ErrInvalidProrationInput)
	}
	from, err := c.catalog.PlanBySlug(fromSlug)
	if err != nil {
		return entity.ProrationResult{}, err
	}
	to, err := c.catalog.PlanBySlug(toSlug)
	if err != nil {
		return entity.ProrationResult{}, err
	}

	remainingDays := DaysBetween(c.now(), period.EndDate)
	if remainingDays < 0 {
		remainingDays = 0
	}
	if remainingDays > cycleDays {
		remainingDays = cycleDays
	}

	result := entity.ProrationResult{
		Type:            classify(from, to),
		FromPlan:        from.Slug,
		ToPlan:          to.Slug,
		ProratedAmount:  decimal.Zero,
		RemainingDays:   remainingDays,
		CycleDays:       cycleDays,
		NextBillingDate: period.EndDate,
	}
	if result.Type == entity.ChangeLateral || remainingDays == 0 {
		return result, nil
	}

	// precio × días / cycleDays evita arrastrar el error de dividir primero.
	remaining := decimal.NewFromInt(int64(remainingDays))
	cycle := decimal.NewFromInt(int64(cycleDays))
	unusedCredit := from.PriceFor(period.Cycle).Mul(remaining).Div(cycle)
	newCharge := to.PriceFor(period.Cycle).Mul(remaining).Div(cycle)

	result.ProratedAmount = money.Round(newCharge.Sub(unusedCredit))
	result.Breakdown = []entity.BreakdownLine{
		{
			Description: fmt.Sprintf("Crédito por %d días no utilizados del plan %s", remainingDays, from.Name),
			Amount:      money.Round(unusedCredit),
			Type:        entity.LineCredit,
		},
		{
			Description: fmt.Sprintf("Cargo por %d días del plan %s", remainingDays, to.Name),
			Amount:      money.Round(newCharge),
			Type:        entity.LineCharge,
		},
	}
	// Las líneas se redondean por separado; el ajuste hace que cargo − crédito
	// sume exactamente proratedAmount.
	if diff := result.ProratedAmount.Sub(result.Breakdown[1].Amount.Sub(result.Breakdown[0].Amount)); !diff.IsZero() {
		adj := entity.BreakdownLine{Description: "Ajuste por redondeo", Amount: diff, Type: entity.LineCharge}
		if diff.IsNegative() {
			adj.Amount = diff.Abs()
			adj.Type = entity.LineCredit
		}
		result.Breakdown = append(result.Breakdown, adj)
	}
	return result, nil
}

func classify(from, to *entity.Plan) entity.ChangeType {
	switch {
	case to.SortOrder > from.SortOrder:
		return entity.ChangeUpgrade
	case to.SortOrder < from.SortOrder:
		return entity.ChangeDowngrade
	default:
		return entity.ChangeLateral
	}
}
