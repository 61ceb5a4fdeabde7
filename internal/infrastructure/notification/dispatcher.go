// Package notification despacha notificaciones a los tenants de forma
// asíncrona: cola acotada, workers y reintentos con backoff exponencial.
package notification

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

// ErrQueueFull la cola está llena; la notificación se descarta.
var ErrQueueFull = errors.New("notification: cola llena")

// ErrClosed el dispatcher ya fue cerrado.
var ErrClosed = errors.New("notification: dispatcher cerrado")

// RetryConfig backoff exponencial: delay = Initial * Multiplier^(intento-1), tope MaxDelay.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig valores por defecto.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     2 * time.Minute,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 1.0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Delay espera antes del reintento número attempt (1 = primer reintento).
func (c RetryConfig) Delay(attempt int) time.Duration {
	c = c.normalized()
	if attempt <= 1 {
		return c.InitialDelay
	}
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// Options configuración del dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	Retry     RetryConfig
	Logger    zerolog.Logger
}

var _ ports.NotificationSink = (*Dispatcher)(nil)

// Dispatcher implementa ports.NotificationSink encolando y entregando al sink
// subyacente en background. Send nunca bloquea al llamador.
type Dispatcher struct {
	sink  ports.NotificationSink
	retry RetryConfig
	log   zerolog.Logger
	queue chan ports.Notification

	workers int
	mu      sync.RWMutex
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher construye el dispatcher. Llamar Start para lanzar los workers.
func NewDispatcher(sink ports.NotificationSink, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Dispatcher{
		sink:    sink,
		retry:   opts.Retry.normalized(),
		log:     opts.Logger,
		queue:   make(chan ports.Notification, opts.QueueSize),
		workers: opts.Workers,
	}
}

// Start lanza los workers. Terminan cuando ctx se cancela o al llamar Close.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
}

// Send encola la notificación.
func (d *Dispatcher) Send(_ context.Context, n ports.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.log.Warn().Str("tenant_id", n.TenantID).Str("type", string(n.Type)).Msg("cola de notificaciones llena, se descarta")
		return ErrQueueFull
	}
}

// Close deja de aceptar notificaciones, drena la cola y espera a los workers.
// Si ctx vence antes, cancela los reintentos pendientes.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(ctx, n)
	}
	d.log.Debug().Int("worker", id).Msg("worker de notificaciones detenido")
}

// deliver entrega con reintentos. Tras MaxAttempts la notificación se pierde (solo log).
func (d *Dispatcher) deliver(ctx context.Context, n ports.Notification) {
	log := d.log.With().Str("notification_id", n.ID).Str("tenant_id", n.TenantID).Str("type", string(n.Type)).Logger()
	for attempt := 1; ; attempt++ {
		err := d.sink.Send(ctx, n)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("notificación entregada tras reintento")
			}
			return
		}
		if attempt >= d.retry.MaxAttempts {
			log.Error().Err(err).Int("attempts", attempt).Msg("notificación descartada: reintentos agotados")
			return
		}
		delay := d.retry.Delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("fallo al notificar")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Warn().Msg("notificación cancelada durante reintento")
			return
		case <-t.C:
		}
	}
}
