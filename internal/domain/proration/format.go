package proration

import (
	"fmt"
	"strings"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// FormatPlanChangeResult resumen legible del prorrateo. Solo presentación.
func FormatPlanChangeResult(r entity.ProrationResult, f *money.Formatter) string {
	var sb strings.Builder
	switch r.Type {
	case entity.ChangeUpgrade:
		sb.WriteString(fmt.Sprintf("Upgrade de %s a %s", r.FromPlan, r.ToPlan))
	case entity.ChangeDowngrade:
		sb.WriteString(fmt.Sprintf("Downgrade de %s a %s", r.FromPlan, r.ToPlan))
	default:
		sb.WriteString(fmt.Sprintf("Cambio de %s a %s", r.FromPlan, r.ToPlan))
	}

	switch {
	case r.ProratedAmount.IsPositive():
		sb.WriteString(": " + f.Format(r.ProratedAmount) + " a pagar")
	case r.ProratedAmount.IsNegative():
		sb.WriteString(": " + f.Format(r.ProratedAmount.Abs()) + " en créditos")
	default:
		sb.WriteString(": sin ajuste en este ciclo")
	}
	if r.CycleDays > 0 {
		sb.WriteString(fmt.Sprintf(" (%d de %d días restantes)", r.RemainingDays, r.CycleDays))
	}
	sb.WriteString(". Próxima facturación: " + r.NextBillingDate.Format("02/01/2006") + ".")
	for _, l := range r.Breakdown {
		sign := ""
		if l.Type == entity.LineCredit {
			sign = "-"
		}
		sb.WriteString("\n  " + l.Description + ": " + sign + f.Format(l.Amount))
	}
	return sb.String()
}
