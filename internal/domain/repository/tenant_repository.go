package repository

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// TenantRepository define el puerto de persistencia para la suscripción del tenant (DIP).
// La implementación vive en infrastructure.
type TenantRepository interface {
	Create(ctx context.Context, tenant *entity.Tenant) error
	// GetByID devuelve nil, nil si el tenant no existe.
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
	// GetForUpdate bloquea la fila del tenant (SELECT ... FOR UPDATE). Dentro de
	// una transacción serializa toda escritura por tenant.
	GetForUpdate(ctx context.Context, id string) (*entity.Tenant, error)
	UpdateSubscription(ctx context.Context, tenant *entity.Tenant) error
}
