package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProrationPreviewRequest body para POST /api/proration/preview.
// Sin periodo explícito se usa el periodo vigente del tenant.
type ProrationPreviewRequest struct {
	FromPlan    string     `json:"from_plan,omitempty"`
	ToPlan      string     `json:"to_plan"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	Cycle       string     `json:"cycle,omitempty"`
}

// BreakdownLineResponse línea del desglose del prorrateo.
type BreakdownLineResponse struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"` // charge | credit
}

// ProrationResponse resultado de calculatePlanChange.
type ProrationResponse struct {
	Type            string                  `json:"type"`
	FromPlan        string                  `json:"from_plan"`
	ToPlan          string                  `json:"to_plan"`
	ProratedAmount  decimal.Decimal         `json:"prorated_amount"`
	RemainingDays   int                     `json:"remaining_days"`
	CycleDays       int                     `json:"cycle_days"`
	Breakdown       []BreakdownLineResponse `json:"breakdown"`
	NextBillingDate time.Time               `json:"next_billing_date"`
	Summary         string                  `json:"summary"`
}

// StartPlanChangeRequest body para POST /api/plan-changes.
type StartPlanChangeRequest struct {
	ToPlan    string `json:"to_plan"`
	ToCycle   string `json:"to_cycle,omitempty"` // vacío = ciclo actual
	UseCredit bool   `json:"use_credit"`
}

// SubmitPaymentRequest body para POST /api/plan-changes/current/payment.
type SubmitPaymentRequest struct {
	Kind       string `json:"kind"` // card | pix | boleto
	Token      string `json:"token,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`
}

// ReceiptLineResponse línea del comprobante.
type ReceiptLineResponse struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReceiptResponse comprobante del cambio de plan.
type ReceiptResponse struct {
	WorkflowID       string                `json:"workflow_id"`
	FromPlan         string                `json:"from_plan"`
	ToPlan           string                `json:"to_plan"`
	Lines            []ReceiptLineResponse `json:"lines"`
	Total            decimal.Decimal       `json:"total"`
	Currency         string                `json:"currency"`
	PaymentReference string                `json:"payment_reference,omitempty"`
	IssuedAt         time.Time             `json:"issued_at"`
	Digest           string                `json:"digest,omitempty"`
}

// ModuleChangesResponse módulos que el cambio activa o desactiva.
type ModuleChangesResponse struct {
	Activated   []string `json:"activated"`
	Deactivated []string `json:"deactivated"`
}

// PlanChangeView estado actual del flujo para la UI: {state, receipt|error}.
type PlanChangeView struct {
	WorkflowID       string                 `json:"workflow_id"`
	TenantID         string                 `json:"tenant_id"`
	Step             string                 `json:"step"`
	Proration        ProrationResponse      `json:"proration"`
	FromCycle        string                 `json:"from_cycle"`
	ToCycle          string                 `json:"to_cycle"`
	UseCredit        bool                   `json:"use_credit"`
	AvailableCredit  decimal.Decimal        `json:"available_credit"`
	CreditsToApply   decimal.Decimal        `json:"credits_to_apply"`
	CreditsGenerated decimal.Decimal        `json:"credits_generated"`
	FinalAmount      decimal.Decimal        `json:"final_amount"`
	NeedsPayment     bool                   `json:"needs_payment"`
	PaymentAttempts  int                    `json:"payment_attempts"`
	ModuleChanges    *ModuleChangesResponse `json:"module_changes,omitempty"`
	Error            *ErrorResponse         `json:"error,omitempty"`
	Receipt          *ReceiptResponse       `json:"receipt,omitempty"`
}

// PlanChangeRecordResponse registro histórico.
type PlanChangeRecordResponse struct {
	ID               string          `json:"id"`
	WorkflowID       string          `json:"workflow_id"`
	ChangeType       string          `json:"change_type"`
	FromPlan         string          `json:"from_plan"`
	ToPlan           string          `json:"to_plan"`
	FromCycle        string          `json:"from_cycle"`
	ToCycle          string          `json:"to_cycle"`
	ProratedAmount   decimal.Decimal `json:"prorated_amount"`
	CreditsApplied   decimal.Decimal `json:"credits_applied"`
	CreditsGenerated decimal.Decimal `json:"credits_generated"`
	EffectiveDate    time.Time       `json:"effective_date"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Status           string          `json:"status"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	ReceiptDigest    string          `json:"receipt_digest,omitempty"`
}

// PlanChangeHistoryResponse página del histórico.
type PlanChangeHistoryResponse struct {
	Items []PlanChangeRecordResponse `json:"items"`
	Page  PageResponse               `json:"page"`
}

// PlanResponse plan del catálogo.
type PlanResponse struct {
	ID        string                     `json:"id"`
	Slug      string                     `json:"slug"`
	Name      string                     `json:"name"`
	SortOrder int                        `json:"sort_order"`
	BasePrice decimal.Decimal            `json:"base_price"`
	Prices    map[string]decimal.Decimal `json:"prices,omitempty"`
	Modules   []string                   `json:"modules"`
}

// ModuleDefinitionResponse módulo del catálogo.
type ModuleDefinitionResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	IsCore          bool             `json:"is_core"`
	Dependencies    []string         `json:"dependencies,omitempty"`
	MonthlyPrice    *decimal.Decimal `json:"monthly_price,omitempty"`
	PerUnit         bool             `json:"per_unit,omitempty"`
	UnitName        string           `json:"unit_name,omitempty"`
	MaxUnits        int              `json:"max_units,omitempty"`
	TrialDays       int              `json:"trial_days,omitempty"`
	MinPlan         string           `json:"min_plan,omitempty"`
	IncludedInPlans []string         `json:"included_in_plans,omitempty"`
}
