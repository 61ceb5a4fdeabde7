package repository

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// AuditRepository almacén append-only de eventos de auditoría.
type AuditRepository interface {
	Append(ctx context.Context, event *entity.AuditEvent) error
}
