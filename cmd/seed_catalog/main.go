// seed_catalog valida el catálogo configurado y aprovisiona un tenant de demostración
// con los módulos de su plan. Imprime un JWT de tenant_admin para probar la API.
//
// Uso: go run ./cmd/seed_catalog [tenant-id] [plan-slug]
// Por defecto: tenant "demo" en el plan "starter".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	infracatalog "github.com/jhoicas/tenant-billing-api/internal/infrastructure/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/postgres"
	"github.com/jhoicas/tenant-billing-api/pkg/config"
	"github.com/jhoicas/tenant-billing-api/pkg/jwt"
	"github.com/jhoicas/tenant-billing-api/pkg/logger"
)

func main() {
	tenantID, planSlug := "demo", "starter"
	if len(os.Args) > 1 {
		tenantID = os.Args[1]
	}
	if len(os.Args) > 2 {
		planSlug = os.Args[2]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	cat, err := infracatalog.Load(cfg.Billing.CatalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catálogo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Catálogo válido: %d planes, %d módulos\n", len(cat.Plans()), len(cat.Modules()))
	for _, p := range cat.Plans() {
		fmt.Printf("  %-14s %-12s %s\n", p.ID, p.Slug, p.BasePrice.StringFixed(2))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Migraciones: %v\n", err)
		os.Exit(1)
	}

	svc := entitlement.NewService(entitlement.Deps{
		Catalog:  cat,
		TxRunner: postgres.NewTxRunner(pool),
		Tenants:  postgres.NewTenantRepository(pool),
		Modules:  postgres.NewModuleStateRepository(pool),
		Logger:   log.Component("seed"),
	})

	now := time.Now().UTC()
	err = svc.Provision(ctx, entity.Tenant{
		ID:           tenantID,
		Name:         "Tenant " + tenantID,
		PlanSlug:     planSlug,
		BillingCycle: entity.CycleMonthly,
		PeriodStart:  now,
		PeriodEnd:    now.AddDate(0, 1, 0),
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		fmt.Printf("El tenant %s ya existe; no se modifica\n", tenantID)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Aprovisionar: %v\n", err)
		os.Exit(1)
	default:
		fmt.Printf("Tenant %s aprovisionado en el plan %s\n", tenantID, planSlug)
	}

	if cfg.JWT.Secret == "" {
		return
	}
	token, err := jwt.Generate(cfg.JWT.Secret, "seed", tenantID, jwt.RoleTenantAdmin, cfg.JWT.Issuer, cfg.JWT.Expiration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JWT: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Authorization: Bearer %s\n", token)
}
