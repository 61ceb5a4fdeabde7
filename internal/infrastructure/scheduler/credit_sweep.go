// Package scheduler ejecuta los jobs periódicos del servicio.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// CreditSweeper operaciones del ledger que usa el barrido.
type CreditSweeper interface {
	TenantsWithLapsedCredit(ctx context.Context) ([]string, error)
	SweepTenant(ctx context.Context, tenantID string) (*entity.CreditTransaction, error)
}

// SweepRecorder métricas del barrido.
type SweepRecorder interface {
	CreditSweep(swept, failed int, d time.Duration)
}

// SweepResult resumen de una ejecución.
type SweepResult struct {
	Tenants int
	Swept   int
	Failed  int
}

// CreditSweepJob registra como expired el crédito vencido de todos los tenants.
type CreditSweepJob struct {
	sweeper  CreditSweeper
	workers  int
	log      zerolog.Logger
	recorder SweepRecorder
	timeout  time.Duration

	mu      sync.Mutex
	running bool
}

// NewCreditSweepJob construye el job. workers <= 0 usa 4.
func NewCreditSweepJob(sweeper CreditSweeper, workers int, log zerolog.Logger, recorder SweepRecorder) *CreditSweepJob {
	if workers <= 0 {
		workers = 4
	}
	return &CreditSweepJob{
		sweeper:  sweeper,
		workers:  workers,
		log:      log,
		recorder: recorder,
		timeout:  10 * time.Minute,
	}
}

// Run barre todos los tenants con crédito vencido en paralelo acotado.
// Un tenant que falla no detiene a los demás. Si ya hay una ejecución en curso, no hace nada.
func (j *CreditSweepJob) Run(ctx context.Context) (SweepResult, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.log.Warn().Msg("barrido de créditos ya en curso, se omite")
		return SweepResult{}, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	ids, err := j.sweeper.TenantsWithLapsedCredit(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("credit sweep: listar tenants: %w", err)
	}

	res := SweepResult{Tenants: len(ids)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)
	for _, id := range ids {
		tenantID := id
		g.Go(func() error {
			tx, err := j.sweeper.SweepTenant(gctx, tenantID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				j.log.Error().Err(err).Str("tenant_id", tenantID).Msg("fallo al barrer créditos vencidos")
				return nil
			}
			if tx != nil {
				res.Swept++
				j.log.Info().Str("tenant_id", tenantID).Str("amount", tx.Amount.StringFixed(2)).Msg("crédito vencido registrado")
			}
			return nil
		})
	}
	_ = g.Wait()

	if j.recorder != nil {
		j.recorder.CreditSweep(res.Swept, res.Failed, time.Since(start))
	}
	j.log.Info().Int("tenants", res.Tenants).Int("swept", res.Swept).Int("failed", res.Failed).
		Dur("elapsed", time.Since(start)).Msg("barrido de créditos finalizado")
	return res, ctx.Err()
}

// Scheduler envoltorio de cron con los jobs del servicio.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// New construye el scheduler. Los jobs reciben un ctx que se cancela en Stop.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log:  log,
		ctx:  ctx,
		stop: cancel,
	}
}

// AddCreditSweep programa el barrido con una expresión cron (o @hourly, @every 30m).
func (s *Scheduler) AddCreditSweep(spec string, job *CreditSweepJob) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, job.timeout)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("barrido de créditos")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: programación inválida %q: %w", spec, err)
	}
	s.log.Info().Str("schedule", spec).Msg("barrido de créditos programado")
	return nil
}

// Start arranca el cron en background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancela los jobs en curso y espera a que terminen o venza ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapta zerolog a cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
