package entity

import "time"

// Estados de un tenant.
const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
	TenantCanceled  = "canceled"
)

// Tenant organización cliente del SaaS con su suscripción vigente.
type Tenant struct {
	ID           string
	Name         string
	Status       string
	PlanSlug     string
	BillingCycle BillingCycle
	PeriodStart  time.Time
	PeriodEnd    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Period devuelve el periodo de suscripción vigente.
func (t *Tenant) Period() SubscriptionPeriod {
	return SubscriptionPeriod{StartDate: t.PeriodStart, EndDate: t.PeriodEnd, Cycle: t.BillingCycle}
}
