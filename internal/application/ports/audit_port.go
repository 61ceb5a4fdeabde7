package ports

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// AuditSink registro de auditoría append-only.
type AuditSink interface {
	Log(ctx context.Context, event entity.AuditEvent) error
}
