package planchange

import (
	"context"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	dent "github.com/jhoicas/tenant-billing-api/internal/domain/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	dplan "github.com/jhoicas/tenant-billing-api/internal/domain/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/proration"
)

// moduleChanges módulos que se activan o desactivan al pasar a toPlan.
func (s *Service) moduleChanges(ctx context.Context, tenantID string, toPlan *entity.Plan, now time.Time) (dto.ModuleChangesResponse, error) {
	out := dto.ModuleChangesResponse{Activated: []string{}, Deactivated: []string{}}
	if s.d.Modules == nil {
		return out, nil
	}
	current, err := s.d.Modules.ListByTenant(ctx, tenantID)
	if err != nil {
		return out, err
	}
	before := make(map[string]bool, len(current))
	for i := range current {
		before[current[i].ModuleID] = current[i].IsActive(now)
	}
	for _, st := range dent.ResolveEffectiveStates(s.d.Catalog, tenantID, toPlan, current, now) {
		after := st.IsActive(now)
		switch {
		case after && !before[st.ModuleID]:
			out.Activated = append(out.Activated, st.ModuleID)
		case !after && before[st.ModuleID]:
			out.Deactivated = append(out.Deactivated, st.ModuleID)
		}
	}
	return out, nil
}

func (s *Service) view(f *flow) *dto.PlanChangeView {
	f.mu.RLock()
	state, changes := f.state, f.modules
	f.mu.RUnlock()
	if state == nil {
		return nil
	}

	q := state.Quote()
	v := &dto.PlanChangeView{
		WorkflowID:       q.WorkflowID,
		TenantID:         q.TenantID,
		Step:             string(state.Step()),
		Proration:        s.prorationResponse(q.Proration),
		FromCycle:        string(q.FromCycle),
		ToCycle:          string(q.ToCycle),
		UseCredit:        q.UseCredit,
		AvailableCredit:  q.AvailableCredit,
		CreditsToApply:   q.CreditsToApply,
		CreditsGenerated: q.CreditsGenerated(),
		FinalAmount:      q.ChargedAmount(),
		NeedsPayment:     q.NeedsPayment(),
		ModuleChanges:    &changes,
	}
	if err := state.Err(); err != nil {
		v.Error = &dto.ErrorResponse{Code: domain.Code(err), Message: err.Error()}
		if v.Error.Code == "" {
			v.Error.Code = "INTERNAL"
		}
	}
	switch st := state.(type) {
	case dplan.PaymentState:
		v.PaymentAttempts = st.Attempts()
	case dplan.ProcessingState:
		v.PaymentAttempts = st.Attempt()
	case dplan.SuccessState:
		r := toReceiptResponse(st.Receipt())
		v.Receipt = &r
	}
	return v
}

func (s *Service) prorationResponse(r entity.ProrationResult) dto.ProrationResponse {
	out := dto.ProrationResponse{
		Type:            string(r.Type),
		FromPlan:        r.FromPlan,
		ToPlan:          r.ToPlan,
		ProratedAmount:  r.ProratedAmount,
		RemainingDays:   r.RemainingDays,
		CycleDays:       r.CycleDays,
		Breakdown:       make([]dto.BreakdownLineResponse, 0, len(r.Breakdown)),
		NextBillingDate: r.NextBillingDate,
		Summary:         proration.FormatPlanChangeResult(r, s.d.Formatter),
	}
	for _, l := range r.Breakdown {
		out.Breakdown = append(out.Breakdown, dto.BreakdownLineResponse{
			Description: l.Description,
			Amount:      l.Amount,
			Type:        string(l.Type),
		})
	}
	return out
}

func toReceiptResponse(r entity.Receipt) dto.ReceiptResponse {
	out := dto.ReceiptResponse{
		WorkflowID:       r.WorkflowID,
		FromPlan:         r.FromPlan,
		ToPlan:           r.ToPlan,
		Lines:            make([]dto.ReceiptLineResponse, 0, len(r.Lines)),
		Total:            r.Total,
		Currency:         r.Currency,
		PaymentReference: r.PaymentReference,
		IssuedAt:         r.IssuedAt,
		Digest:           r.Digest,
	}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, dto.ReceiptLineResponse{Description: l.Description, Amount: l.Amount})
	}
	return out
}

func toRecordResponse(r *entity.PlanChangeRecord) dto.PlanChangeRecordResponse {
	return dto.PlanChangeRecordResponse{
		ID:               r.ID,
		WorkflowID:       r.WorkflowID,
		ChangeType:       string(r.ChangeType),
		FromPlan:         r.FromPlan,
		ToPlan:           r.ToPlan,
		FromCycle:        string(r.FromCycle),
		ToCycle:          string(r.ToCycle),
		ProratedAmount:   r.ProratedAmount,
		CreditsApplied:   r.CreditsApplied,
		CreditsGenerated: r.CreditsGenerated,
		EffectiveDate:    r.EffectiveDate,
		PaymentReference: r.PaymentReference,
		Status:           string(r.Status),
		FailureReason:    r.FailureReason,
		ReceiptDigest:    r.ReceiptDigest,
	}
}
