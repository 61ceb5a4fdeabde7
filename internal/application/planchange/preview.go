package planchange

import (
	"context"
	"fmt"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/proration"
)

// PreviewProration calcula el prorrateo sin abrir un flujo. Por defecto usa el
// plan y el periodo vigentes del tenant; from_plan y el periodo explícito los reemplazan.
func (s *Service) PreviewProration(ctx context.Context, tenantID string, in dto.ProrationPreviewRequest) (*dto.ProrationResponse, error) {
	if in.ToPlan == "" {
		return nil, fmt.Errorf("%w: to_plan es obligatorio", domain.ErrInvalidInput)
	}
	tenant, err := s.d.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrTenantNotFound
	}

	from := tenant.PlanSlug
	if in.FromPlan != "" {
		from = in.FromPlan
	}
	period := tenant.Period()
	if in.PeriodStart != nil || in.PeriodEnd != nil {
		if in.PeriodStart == nil || in.PeriodEnd == nil {
			return nil, fmt.Errorf("%w: period_start y period_end van juntos", domain.ErrInvalidProrationInput)
		}
		period = entity.SubscriptionPeriod{StartDate: *in.PeriodStart, EndDate: *in.PeriodEnd, Cycle: tenant.BillingCycle}
	}
	if in.Cycle != "" {
		period.Cycle = entity.BillingCycle(in.Cycle)
		if !period.Cycle.Valid() {
			return nil, fmt.Errorf("%w: ciclo %q", domain.ErrInvalidInput, in.Cycle)
		}
	}

	result, err := proration.NewCalculator(s.d.Catalog, s.d.Now).CalculatePlanChange(from, in.ToPlan, period)
	if err != nil {
		return nil, err
	}
	resp := s.prorationResponse(result)
	return &resp, nil
}
