package ports

import (
	"context"
	"time"
)

// NotificationType tipo de evento notificado al tenant.
type NotificationType string

const (
	NotifyPlanChange    NotificationType = "plan_change"
	NotifyCreditsEarned NotificationType = "credits_earned"
)

// Notification evento a despachar.
type Notification struct {
	ID         string
	Type       NotificationType
	TenantID   string
	Payload    map[string]any
	OccurredAt time.Time
}

// NotificationSink destino de notificaciones. Para el flujo es fire-and-forget:
// un fallo al notificar no revierte los efectos financieros.
type NotificationSink interface {
	Send(ctx context.Context, n Notification) error
}
