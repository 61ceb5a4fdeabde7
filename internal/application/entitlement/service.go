// Package entitlement expone las operaciones sobre los módulos de un tenant:
// consulta, habilitación manual, deshabilitación y cantidades por unidad.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	dent "github.com/jhoicas/tenant-billing-api/internal/domain/entitlement"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// Service casos de uso de entitlements.
type Service struct {
	catalog  *catalog.Catalog
	txRunner TxRunner
	tenants  repository.TenantRepository
	modules  repository.ModuleStateRepository
	audit    ports.AuditSink
	metrics  ports.Metrics
	onChange func(tenantID string)
	log      zerolog.Logger
	now      func() time.Time
}

// Deps dependencias del servicio.
type Deps struct {
	Catalog  *catalog.Catalog
	TxRunner TxRunner
	Tenants  repository.TenantRepository
	Modules  repository.ModuleStateRepository
	Audit    ports.AuditSink
	Metrics  ports.Metrics
	// OnChange se invoca tras cada escritura confirmada (invalidación de caché).
	OnChange func(tenantID string)
	Logger   zerolog.Logger
	Now      func() time.Time
}

// NewService construye el servicio.
func NewService(d Deps) *Service {
	s := &Service{
		catalog:  d.Catalog,
		txRunner: d.TxRunner,
		tenants:  d.Tenants,
		modules:  d.Modules,
		audit:    d.Audit,
		metrics:  d.Metrics,
		onChange: d.OnChange,
		log:      d.Logger,
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	return s
}

// SetOnChange registra el callback de invalidación (lo usa la caché del gate).
func (s *Service) SetOnChange(fn func(tenantID string)) { s.onChange = fn }

// States estado efectivo de todos los módulos del catálogo para el tenant.
func (s *Service) States(ctx context.Context, tenantID string) (*dto.EntitlementListResponse, error) {
	r, err := s.load(ctx, s.tenants, s.modules, tenantID)
	if err != nil {
		return nil, err
	}
	return &dto.EntitlementListResponse{
		TenantID: tenantID,
		Plan:     r.Plan().Slug,
		Modules:  s.views(r.States()),
	}, nil
}

// IsModuleEnabled true si el módulo es core o está activo y sin vencer.
func (s *Service) IsModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error) {
	if _, err := s.catalog.Module(moduleID); err != nil {
		return false, err
	}
	r, err := s.load(ctx, s.tenants, s.modules, tenantID)
	if err != nil {
		return false, err
	}
	return r.IsModuleEnabled(moduleID), nil
}

// CanEnableModule evalúa dependencias y elegibilidad. Un módulo inexistente es error;
// una regla incumplida es una respuesta con CanEnable=false y el motivo.
func (s *Service) CanEnableModule(ctx context.Context, tenantID, moduleID string) (*dto.CanEnableResponse, error) {
	r, err := s.load(ctx, s.tenants, s.modules, tenantID)
	if err != nil {
		return nil, err
	}
	out := &dto.CanEnableResponse{ModuleID: moduleID, CanEnable: true}
	err = r.CanEnableModule(moduleID)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, domain.ErrModuleNotFound):
		return nil, err
	}
	out.CanEnable = false
	out.Reason = err.Error()
	var depErr *domain.DependencyError
	switch {
	case errors.As(err, &depErr):
		out.Code = "DEPENDENCY_UNSATISFIED"
		out.Missing = depErr.Missing
	case errors.Is(err, domain.ErrPlanIneligible):
		out.Code = "PLAN_INELIGIBLE"
	default:
		return nil, err
	}
	return out, nil
}

// EnableModule habilitación explícita (addon, manual o trial). Sin Force valida
// antes con CanEnableModule; con Force es un override de administrador.
func (s *Service) EnableModule(ctx context.Context, tenantID, actorID, moduleID string, in dto.EnableModuleRequest) (*dto.ModuleStateResponse, error) {
	source := entity.AccessSource(in.AccessSource)
	if source == entity.SourceNone {
		source = entity.SourceManual
	}
	if !source.IsGrant() {
		return nil, fmt.Errorf("%w: access_source debe ser addon, manual o trial", domain.ErrInvalidInput)
	}

	var st entity.ModuleState
	var view dto.ModuleStateResponse
	err := s.txRunner.RunEntitlements(ctx, func(tenants repository.TenantRepository, modules repository.ModuleStateRepository) error {
		r, err := s.loadForUpdate(ctx, tenants, modules, tenantID)
		if err != nil {
			return err
		}
		if !in.Force {
			if err := r.CanEnableModule(moduleID); err != nil {
				return err
			}
		}
		st, err = r.EnableModule(moduleID, source, in.ExpiresAt)
		if err != nil {
			return err
		}
		view = s.view(st)
		return modules.Upsert(ctx, &st)
	})
	if err != nil {
		return nil, err
	}

	s.changed(tenantID)
	s.metrics.ModuleToggle("enable")
	s.logAudit(ctx, entity.AuditModuleEnabled, actorID, st, map[string]any{"forced": in.Force})
	s.log.Info().Str("tenant_id", tenantID).Str("module_id", moduleID).Str("access_source", string(source)).Bool("forced", in.Force).Msg("módulo habilitado")
	return &view, nil
}

// DisableModule deshabilita un módulo no core. Los dependientes no se tocan.
func (s *Service) DisableModule(ctx context.Context, tenantID, actorID, moduleID string) (*dto.ModuleStateResponse, error) {
	var st entity.ModuleState
	var view dto.ModuleStateResponse
	err := s.txRunner.RunEntitlements(ctx, func(tenants repository.TenantRepository, modules repository.ModuleStateRepository) error {
		r, err := s.loadForUpdate(ctx, tenants, modules, tenantID)
		if err != nil {
			return err
		}
		st, err = r.DisableModule(moduleID)
		if err != nil {
			return err
		}
		view = s.view(st)
		return modules.Upsert(ctx, &st)
	})
	if err != nil {
		return nil, err
	}

	s.changed(tenantID)
	s.metrics.ModuleToggle("disable")
	s.logAudit(ctx, entity.AuditModuleDisabled, actorID, st, nil)
	s.log.Info().Str("tenant_id", tenantID).Str("module_id", moduleID).Msg("módulo deshabilitado")
	return &view, nil
}

// UpdateModuleQuantity ajusta la cantidad de un módulo por unidad a [1, maxUnits].
func (s *Service) UpdateModuleQuantity(ctx context.Context, tenantID, actorID, moduleID string, quantity int) (*dto.UpdateQuantityResponse, error) {
	var (
		st      entity.ModuleState
		changed bool
		view    dto.ModuleStateResponse
	)
	err := s.txRunner.RunEntitlements(ctx, func(tenants repository.TenantRepository, modules repository.ModuleStateRepository) error {
		r, err := s.loadForUpdate(ctx, tenants, modules, tenantID)
		if err != nil {
			return err
		}
		st, changed, err = r.UpdateModuleQuantity(moduleID, quantity)
		if err != nil {
			return err
		}
		view = s.view(st)
		if !changed {
			return nil
		}
		return modules.Upsert(ctx, &st)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.changed(tenantID)
		s.logAudit(ctx, entity.AuditModuleQuantityUpdated, actorID, st, map[string]any{"requested": quantity, "quantity": st.Quantity})
	}
	return &dto.UpdateQuantityResponse{Module: view, Changed: changed}, nil
}

// Preview calcula los estados efectivos bajo otro plan sin persistir nada.
func (s *Service) Preview(ctx context.Context, tenantID, planSlug string) (*dto.EntitlementListResponse, error) {
	r, err := s.load(ctx, s.tenants, s.modules, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.catalog.PlanBySlug(planSlug)
	if err != nil {
		return nil, err
	}
	resolved := r.ResolveEffectiveStates(plan)
	return &dto.EntitlementListResponse{TenantID: tenantID, Plan: plan.Slug, Modules: s.views(resolved)}, nil
}

// Provision da de alta un tenant con los módulos core y los de su plan.
func (s *Service) Provision(ctx context.Context, tenant entity.Tenant) error {
	plan, err := s.catalog.PlanBySlug(tenant.PlanSlug)
	if err != nil {
		return err
	}
	if !tenant.Period().Valid() {
		return fmt.Errorf("%w: periodo de suscripción inválido", domain.ErrInvalidInput)
	}
	now := s.now()
	if tenant.Status == "" {
		tenant.Status = entity.TenantActive
	}
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	err = s.txRunner.RunEntitlements(ctx, func(tenants repository.TenantRepository, modules repository.ModuleStateRepository) error {
		if err := tenants.Create(ctx, &tenant); err != nil {
			return err
		}
		states := dent.ResolveEffectiveStates(s.catalog, tenant.ID, plan, nil, now)
		return modules.UpsertMany(ctx, states)
	})
	if err != nil {
		return err
	}
	s.changed(tenant.ID)
	s.log.Info().Str("tenant_id", tenant.ID).Str("plan", plan.Slug).Msg("tenant aprovisionado")
	return nil
}

func (s *Service) load(ctx context.Context, tenants repository.TenantRepository, modules repository.ModuleStateRepository, tenantID string) (*dent.Resolver, error) {
	t, err := tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.resolver(ctx, modules, t)
}

func (s *Service) loadForUpdate(ctx context.Context, tenants repository.TenantRepository, modules repository.ModuleStateRepository, tenantID string) (*dent.Resolver, error) {
	t, err := tenants.GetForUpdate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.resolver(ctx, modules, t)
}

func (s *Service) resolver(ctx context.Context, modules repository.ModuleStateRepository, t *entity.Tenant) (*dent.Resolver, error) {
	if t == nil {
		return nil, domain.ErrTenantNotFound
	}
	plan, err := s.catalog.PlanBySlug(t.PlanSlug)
	if err != nil {
		return nil, err
	}
	states, err := modules.ListByTenant(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return dent.NewResolver(s.catalog, t.ID, plan, states, dent.WithClock(s.now)), nil
}

func (s *Service) views(states []entity.ModuleState) []dto.ModuleStateResponse {
	out := make([]dto.ModuleStateResponse, 0, len(states))
	for _, st := range states {
		out = append(out, s.view(st))
	}
	return out
}

func (s *Service) view(st entity.ModuleState) dto.ModuleStateResponse {
	v := dto.ModuleStateResponse{
		ModuleID:         st.ModuleID,
		Enabled:          st.IsActive(s.now()),
		Status:           string(st.Status),
		AccessSource:     string(st.AccessSource),
		Quantity:         st.Quantity,
		EnabledAt:        st.EnabledAt,
		ExpiresAt:        st.ExpiresAt,
		DisabledManually: st.DisabledManually,
	}
	if def, err := s.catalog.Module(st.ModuleID); err == nil {
		v.Name = def.Name
		v.Category = string(def.Category)
		v.IsCore = def.IsCore
		if def.IsCore {
			v.Enabled = true
		}
	}
	return v
}

func (s *Service) changed(tenantID string) {
	if s.onChange != nil {
		s.onChange(tenantID)
	}
}

func (s *Service) logAudit(ctx context.Context, action, actorID string, st entity.ModuleState, details map[string]any) {
	if s.audit == nil {
		return
	}
	ev := entity.AuditEvent{
		ID:           uuid.New().String(),
		Action:       action,
		ActorID:      actorID,
		TenantID:     st.TenantID,
		ModuleID:     st.ModuleID,
		AccessSource: st.AccessSource,
		Details:      details,
		OccurredAt:   s.now(),
	}
	if err := s.audit.Log(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("tenant_id", st.TenantID).Str("module_id", st.ModuleID).Msg("audit falló")
	}
}
