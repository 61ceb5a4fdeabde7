// Package audit implementa los destinos del registro de auditoría.
package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

var (
	_ ports.AuditSink = (*LogSink)(nil)
	_ ports.AuditSink = (*StoreSink)(nil)
	_ ports.AuditSink = (*MultiSink)(nil)
)

// LogSink escribe cada evento como una línea estructurada.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink construye el sink.
func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

// Log registra el evento.
func (s *LogSink) Log(_ context.Context, ev entity.AuditEvent) error {
	e := s.log.Info().
		Str("audit_id", ev.ID).
		Str("action", ev.Action).
		Str("actor_id", ev.ActorID).
		Str("tenant_id", ev.TenantID).
		Time("occurred_at", ev.OccurredAt)
	if ev.ModuleID != "" {
		e = e.Str("module_id", ev.ModuleID)
	}
	if ev.FromPlan != "" || ev.ToPlan != "" {
		e = e.Str("from_plan", ev.FromPlan).Str("to_plan", ev.ToPlan)
	}
	if ev.AccessSource != entity.SourceNone {
		e = e.Str("access_source", string(ev.AccessSource))
	}
	if len(ev.Details) > 0 {
		e = e.Interface("details", ev.Details)
	}
	e.Msg("audit")
	return nil
}

// StoreSink persiste el evento en el repositorio de auditoría.
type StoreSink struct {
	repo repository.AuditRepository
}

// NewStoreSink construye el sink.
func NewStoreSink(repo repository.AuditRepository) *StoreSink { return &StoreSink{repo: repo} }

// Log persiste el evento.
func (s *StoreSink) Log(ctx context.Context, ev entity.AuditEvent) error {
	return s.repo.Append(ctx, &ev)
}

// MultiSink escribe en todos los destinos de forma síncrona.
// Un destino caído no impide escribir en los demás.
type MultiSink struct {
	sinks []ports.AuditSink
}

// NewMultiSink construye el sink compuesto.
func NewMultiSink(sinks ...ports.AuditSink) *MultiSink { return &MultiSink{sinks: sinks} }

// Log devuelve la unión de los errores de cada destino.
func (m *MultiSink) Log(ctx context.Context, ev entity.AuditEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Log(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
