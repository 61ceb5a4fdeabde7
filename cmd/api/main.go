// @title        Tenant Billing API
// @version      1.0
// @description  Entitlements de módulos, créditos y cambios de plan con prorrateo por tenant.
// @BasePath     /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	_ "github.com/jhoicas/tenant-billing-api/docs"
	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/application/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	infraaudit "github.com/jhoicas/tenant-billing-api/internal/infrastructure/audit"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/cache"
	infracatalog "github.com/jhoicas/tenant-billing-api/internal/infrastructure/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/lock"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/metrics"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/notification"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/payment"
	infrapdf "github.com/jhoicas/tenant-billing-api/internal/infrastructure/pdf"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/postgres"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/receipt"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/tenant-billing-api/internal/interfaces/http"
	"github.com/jhoicas/tenant-billing-api/pkg/config"
	"github.com/jhoicas/tenant-billing-api/pkg/logger"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("currency", cfg.Billing.Currency).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	cat, err := infracatalog.Load(cfg.Billing.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Billing.CatalogPath).Msg("catálogo inválido")
	}

	tenantRepo := postgres.NewTenantRepository(pool)
	moduleRepo := postgres.NewModuleStateRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	changeRepo := postgres.NewPlanChangeRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	formatter := money.NewFormatter(cfg.Billing.Currency)
	prom := metrics.New(nil)
	auditSink := infraaudit.NewMultiSink(
		infraaudit.NewLogSink(log.Component("audit")),
		infraaudit.NewStoreSink(auditRepo),
	)

	// Notificaciones: webhook firmado si hay URL; si no, solo log.
	var sink ports.NotificationSink = notification.NewLogSink(log.Component("notification"))
	if cfg.Notification.WebhookURL != "" {
		sink = notification.NewWebhookSink(cfg.Notification.WebhookURL, cfg.Notification.WebhookSecret, 10*time.Second)
	}
	retry := notification.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Notification.MaxRetries
	dispatcher := notification.NewDispatcher(sink, notification.Options{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		Retry:     retry,
		Logger:    log.Component("notification"),
	})
	dispatcher.Start(ctx)

	// Exclusividad del cambio de plan: Redis entre instancias, memoria en una sola.
	var locker ports.TenantLocker = lock.NewMemoryLocker()
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
	}

	var gateway ports.PaymentGateway
	switch cfg.Payment.Mode {
	case "http":
		gateway = payment.NewHTTPGateway(cfg.Payment.APIURL, cfg.Payment.APIKey, cfg.Payment.Timeout)
	default:
		gateway = payment.NewSimulatedGateway(log.Component("payment"))
	}

	entitlementSvc := entitlement.NewService(entitlement.Deps{
		Catalog:  cat,
		TxRunner: txRunner,
		Tenants:  tenantRepo,
		Modules:  moduleRepo,
		Audit:    auditSink,
		Metrics:  prom,
		Logger:   log.Component("entitlement"),
	})
	gate := cache.NewEntitlementCache(entitlementSvc, cfg.Entitlement.CacheSize, cfg.Entitlement.CacheTTL, prom)
	entitlementSvc.SetOnChange(gate.Invalidate)

	creditSvc := credit.NewService(credit.Deps{
		TxRunner:  txRunner,
		Credits:   creditRepo,
		Audit:     auditSink,
		Notifier:  dispatcher,
		Metrics:   prom,
		Formatter: formatter,
		Expiry:    cfg.Billing.CreditExpiry(),
		Logger:    log.Component("credit"),
	})

	planChangeSvc := planchange.NewService(planchange.Deps{
		Catalog:      cat,
		TxRunner:     txRunner,
		Tenants:      tenantRepo,
		Modules:      moduleRepo,
		Credits:      creditRepo,
		Changes:      changeRepo,
		Gateway:      gateway,
		Notifier:     dispatcher,
		Audit:        auditSink,
		Locker:       locker,
		Sealer:       receipt.NewSealer(),
		Renderer:     infrapdf.NewMarotoReceiptRenderer(cfg.App.Name, formatter),
		Metrics:      prom,
		Formatter:    formatter,
		CreditExpiry: cfg.Billing.CreditExpiry(),
		OnApplied:    gate.Invalidate,
		Logger:       log.Component("planchange"),
	})

	// Barrido periódico de créditos vencidos.
	sched := scheduler.New(log.Component("scheduler"))
	sweep := scheduler.NewCreditSweepJob(creditSvc, cfg.Billing.CreditSweepWorker, log.Component("credit_sweep"), prom)
	if err := sched.AddCreditSweep(cfg.Billing.CreditSweepCron, sweep); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Billing.CreditSweepCron).Msg("programar barrido de créditos")
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.Component("http"), prom))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Tenant Billing API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(prom.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Catalog:      cat,
		Entitlements: entitlementSvc,
		Credits:      creditSvc,
		PlanChanges:  planChangeSvc,
		Checker:      gate,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	sched.Stop(shutdownCtx)
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cierre del dispatcher de notificaciones")
	}
	stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info().Msg("aplicación detenida")
}
