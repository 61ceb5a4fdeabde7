package ports

import (
	"context"
	"errors"
)

// ErrLockHeld otro proceso tiene el lock del tenant.
var ErrLockHeld = errors.New("lock del tenant ocupado")

// Lock lock adquirido; Release es idempotente.
type Lock interface {
	Release(ctx context.Context) error
}

// TenantLocker garantiza a lo sumo un cambio de plan en curso por tenant.
// Acquire no bloquea: devuelve ErrLockHeld si ya está tomado.
type TenantLocker interface {
	Acquire(ctx context.Context, tenantID string) (Lock, error)
}
