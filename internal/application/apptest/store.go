// Package apptest implementa en memoria los repositorios y puertos que usan
// los servicios de aplicación, para tests sin PostgreSQL.
package apptest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	dcredit "github.com/jhoicas/tenant-billing-api/internal/domain/credit"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
)

// Store base de datos en memoria. Las transacciones se serializan y se
// revierten restaurando una copia del estado si fn devuelve error.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tenants map[string]entity.Tenant
	modules map[string]map[string]entity.ModuleState
	credits []entity.CreditTransaction
	changes []entity.PlanChangeRecord
	audit   []entity.AuditEvent

	// Fallas inyectables.
	UpsertModulesErr error
	CreateChangeErr  error
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]entity.Tenant),
		modules: make(map[string]map[string]entity.ModuleState),
	}
}

type snapshot struct {
	tenants map[string]entity.Tenant
	modules map[string]map[string]entity.ModuleState
	credits []entity.CreditTransaction
	changes []entity.PlanChangeRecord
	audit   []entity.AuditEvent
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		tenants: make(map[string]entity.Tenant, len(s.tenants)),
		modules: make(map[string]map[string]entity.ModuleState, len(s.modules)),
		credits: append([]entity.CreditTransaction(nil), s.credits...),
		changes: append([]entity.PlanChangeRecord(nil), s.changes...),
		audit:   append([]entity.AuditEvent(nil), s.audit...),
	}
	for k, v := range s.tenants {
		snap.tenants[k] = v
	}
	for tenant, states := range s.modules {
		m := make(map[string]entity.ModuleState, len(states))
		for id, st := range states {
			m[id] = *st.Clone()
		}
		snap.modules[tenant] = m
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = snap.tenants
	s.modules = snap.modules
	s.credits = snap.credits
	s.changes = snap.changes
	s.audit = snap.audit
}

func (s *Store) run(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ── TxRunner ─────────────────────────────────────────────────────────────────

// RunLedger implementa credit.TxRunner.
func (s *Store) RunLedger(ctx context.Context, fn func(repository.TenantRepository, repository.CreditRepository) error) error {
	return s.run(func() error { return fn(s.Tenants(), s.Credits()) })
}

// RunEntitlements implementa entitlement.TxRunner.
func (s *Store) RunEntitlements(ctx context.Context, fn func(repository.TenantRepository, repository.ModuleStateRepository) error) error {
	return s.run(func() error { return fn(s.Tenants(), s.Modules()) })
}

// RunPlanChange implementa planchange.TxRunner.
func (s *Store) RunPlanChange(ctx context.Context, fn func(
	repository.TenantRepository,
	repository.ModuleStateRepository,
	repository.CreditRepository,
	repository.PlanChangeRepository,
) error) error {
	return s.run(func() error { return fn(s.Tenants(), s.Modules(), s.Credits(), s.PlanChanges()) })
}

// ── Accesos directos para tests ──────────────────────────────────────────────

// Tenants repositorio de tenants.
func (s *Store) Tenants() repository.TenantRepository { return tenantRepo{s} }

// Modules repositorio de estados de módulo.
func (s *Store) Modules() repository.ModuleStateRepository { return moduleRepo{s} }

// Credits repositorio del ledger.
func (s *Store) Credits() repository.CreditRepository { return creditRepo{s} }

// PlanChanges repositorio del histórico.
func (s *Store) PlanChanges() repository.PlanChangeRepository { return changeRepo{s} }

// Audit repositorio de auditoría.
func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

// PutTenant inserta o reemplaza un tenant.
func (s *Store) PutTenant(t entity.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

// Tenant devuelve una copia del tenant.
func (s *Store) Tenant(id string) (entity.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	return t, ok
}

// CreditTxs copia de los movimientos del ledger de un tenant en orden de inserción.
func (s *Store) CreditTxs(tenantID string) []entity.CreditTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.CreditTransaction
	for _, tx := range s.credits {
		if tx.TenantID == tenantID {
			out = append(out, tx)
		}
	}
	return out
}

// Changes copia del histórico de un tenant.
func (s *Store) Changes(tenantID string) []entity.PlanChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.PlanChangeRecord
	for _, r := range s.changes {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out
}

// ModuleState estado persistido de un módulo.
func (s *Store) ModuleState(tenantID, moduleID string) (entity.ModuleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.modules[tenantID][moduleID]
	return st, ok
}

// ── Repositorios ─────────────────────────────────────────────────────────────

type tenantRepo struct{ s *Store }

func (r tenantRepo) Create(_ context.Context, t *entity.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[t.ID]; ok {
		return errDuplicate
	}
	r.s.tenants[t.ID] = *t
	return nil
}

func (r tenantRepo) GetByID(_ context.Context, id string) (*entity.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r tenantRepo) GetForUpdate(ctx context.Context, id string) (*entity.Tenant, error) {
	return r.GetByID(ctx, id)
}

func (r tenantRepo) UpdateSubscription(_ context.Context, t *entity.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tenants[t.ID]
	if !ok {
		return errMissing
	}
	cur.PlanSlug = t.PlanSlug
	cur.BillingCycle = t.BillingCycle
	cur.PeriodStart = t.PeriodStart
	cur.PeriodEnd = t.PeriodEnd
	cur.UpdatedAt = t.UpdatedAt
	r.s.tenants[t.ID] = cur
	return nil
}

type moduleRepo struct{ s *Store }

func (r moduleRepo) ListByTenant(_ context.Context, tenantID string) ([]entity.ModuleState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.ModuleState, 0, len(r.s.modules[tenantID]))
	for _, st := range r.s.modules[tenantID] {
		out = append(out, *st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (r moduleRepo) Upsert(ctx context.Context, st *entity.ModuleState) error {
	return r.UpsertMany(ctx, []entity.ModuleState{*st})
}

func (r moduleRepo) UpsertMany(_ context.Context, states []entity.ModuleState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.UpsertModulesErr != nil {
		return r.s.UpsertModulesErr
	}
	for _, st := range states {
		m := r.s.modules[st.TenantID]
		if m == nil {
			m = make(map[string]entity.ModuleState)
			r.s.modules[st.TenantID] = m
		}
		m[st.ModuleID] = *st.Clone()
	}
	return nil
}

type creditRepo struct{ s *Store }

func (r creditRepo) Append(_ context.Context, tx *entity.CreditTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.credits = append(r.s.credits, *tx)
	return nil
}

func (r creditRepo) Summary(_ context.Context, tenantID string, at time.Time) (entity.CreditSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return summarize(r.s.credits, tenantID, at), nil
}

func (r creditRepo) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*entity.CreditTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.CreditTransaction
	for i := len(r.s.credits) - 1; i >= 0; i-- {
		if r.s.credits[i].TenantID == tenantID {
			tx := r.s.credits[i]
			out = append(out, &tx)
		}
	}
	return page(out, limit, offset), nil
}

func (r creditRepo) TenantsWithLapsedCredit(_ context.Context, at time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, tx := range r.s.credits {
		if seen[tx.TenantID] {
			continue
		}
		seen[tx.TenantID] = true
		if dcredit.Lapsed(summarize(r.s.credits, tx.TenantID, at)).IsPositive() {
			out = append(out, tx.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func summarize(txs []entity.CreditTransaction, tenantID string, at time.Time) entity.CreditSummary {
	s := entity.CreditSummary{Earned: decimal.Zero, ActiveEarned: decimal.Zero, Spent: decimal.Zero, Expired: decimal.Zero}
	for _, tx := range txs {
		if tx.TenantID != tenantID {
			continue
		}
		switch tx.Type {
		case entity.CreditEarned:
			s.Earned = s.Earned.Add(tx.Amount)
			if tx.ExpiresAt == nil || tx.ExpiresAt.After(at) {
				s.ActiveEarned = s.ActiveEarned.Add(tx.Amount)
			}
		case entity.CreditSpent:
			s.Spent = s.Spent.Add(tx.Amount)
		case entity.CreditExpired:
			s.Expired = s.Expired.Add(tx.Amount)
		}
	}
	return s
}

type changeRepo struct{ s *Store }

func (r changeRepo) Create(_ context.Context, rec *entity.PlanChangeRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.CreateChangeErr != nil {
		return r.s.CreateChangeErr
	}
	r.s.changes = append(r.s.changes, *rec)
	return nil
}

func (r changeRepo) GetByID(_ context.Context, id string) (*entity.PlanChangeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rec := range r.s.changes {
		if rec.ID == id {
			c := rec
			return &c, nil
		}
	}
	return nil, nil
}

func (r changeRepo) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*entity.PlanChangeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.PlanChangeRecord
	for i := len(r.s.changes) - 1; i >= 0; i-- {
		if r.s.changes[i].TenantID == tenantID {
			c := r.s.changes[i]
			out = append(out, &c)
		}
	}
	return page(out, limit, offset), nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, ev *entity.AuditEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *ev)
	return nil
}

// AuditEvents copia de los eventos de auditoría registrados.
func (s *Store) AuditEvents() []entity.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.AuditEvent(nil), s.audit...)
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
