package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/application/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// Ensure TxRunner implementa los TxRunner de la capa de aplicación.
var (
	_ credit.TxRunner      = (*TxRunner)(nil)
	_ entitlement.TxRunner = (*TxRunner)(nil)
	_ planchange.TxRunner  = (*TxRunner)(nil)
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// run inicia una transacción, ejecuta fn y hace Commit o Rollback.
func (r *TxRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunLedger transacción con tenants y ledger de créditos.
func (r *TxRunner) RunLedger(ctx context.Context, fn func(
	tenants repository.TenantRepository,
	credits repository.CreditRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewTenantRepository(tx), NewCreditRepository(tx))
	})
}

// RunEntitlements transacción con tenants y estados de módulo.
func (r *TxRunner) RunEntitlements(ctx context.Context, fn func(
	tenants repository.TenantRepository,
	modules repository.ModuleStateRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewTenantRepository(tx), NewModuleStateRepository(tx))
	})
}

// RunPlanChange transacción de los pasos 3a–3d del cambio de plan.
func (r *TxRunner) RunPlanChange(ctx context.Context, fn func(
	tenants repository.TenantRepository,
	modules repository.ModuleStateRepository,
	credits repository.CreditRepository,
	changes repository.PlanChangeRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewTenantRepository(tx), NewModuleStateRepository(tx), NewCreditRepository(tx), NewPlanChangeRepository(tx))
	})
}
