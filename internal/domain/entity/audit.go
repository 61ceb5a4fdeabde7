package entity

import "time"

// Acciones auditadas.
const (
	AuditModuleEnabled         = "module.enabled"
	AuditModuleDisabled        = "module.disabled"
	AuditModuleQuantityUpdated = "module.quantity_updated"
	AuditPlanChangeCompleted   = "plan_change.completed"
	AuditPlanChangeFailed      = "plan_change.failed"
	AuditCreditGranted         = "credit.granted"
	AuditCreditSpent           = "credit.spent"
	AuditCreditExpired         = "credit.expired"
)

// AuditEvent evento de auditoría append-only.
type AuditEvent struct {
	ID           string
	Action       string
	ActorID      string
	TenantID     string
	ModuleID     string
	FromPlan     string
	ToPlan       string
	AccessSource AccessSource
	Details      map[string]any
	OccurredAt   time.Time
}
