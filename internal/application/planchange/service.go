// Package planchange orquesta el flujo de cambio de plan de un tenant:
// Review → Payment → Processing → Success. Las transiciones son las del
// paquete de dominio; aquí se ejecutan sus efectos (cobro, transacción,
// notificaciones) y se garantiza un único cambio en curso por tenant.
package planchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/credit"
	"github.com/jhoicas/tenant-billing-api/internal/application/dto"
	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/catalog"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	dplan "github.com/jhoicas/tenant-billing-api/internal/domain/planchange"
	"github.com/jhoicas/tenant-billing-api/internal/domain/proration"
	"github.com/jhoicas/tenant-billing-api/internal/domain/repository"
	"github.com/jhoicas/tenant-billing-api/pkg/money"
)

// Deps dependencias del servicio.
type Deps struct {
	Catalog   *catalog.Catalog
	TxRunner  TxRunner
	Tenants   repository.TenantRepository
	Modules   repository.ModuleStateRepository
	Credits   repository.CreditRepository
	Changes   repository.PlanChangeRepository
	Gateway   ports.PaymentGateway
	Notifier  ports.NotificationSink
	Audit     ports.AuditSink
	Locker    ports.TenantLocker
	Sealer    ports.ReceiptSealer
	Renderer  ports.ReceiptRenderer
	Metrics   ports.Metrics
	Formatter *money.Formatter
	// CreditExpiry vigencia de los créditos generados por downgrade.
	CreditExpiry time.Duration
	// OnApplied se invoca tras confirmar la transacción (invalidación de caché).
	OnApplied func(tenantID string)
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service flujo de cambio de plan. Guarda en memoria un flujo por tenant.
type Service struct {
	d Deps

	mu    sync.Mutex
	flows map[string]*flow
}

// flow instancia del flujo de un tenant. op serializa las transiciones (se toma
// con TryLock: una segunda petición concurrente recibe ErrChangeAlreadyInProgress);
// mu protege state para lecturas durante Processing.
type flow struct {
	tenantID string
	op       sync.Mutex

	mu    sync.RWMutex
	state dplan.State
	lock  ports.Lock
	// módulos que el cambio activa/desactiva, calculado en Review.
	modules dto.ModuleChangesResponse
}

func (f *flow) current() dplan.State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *flow) set(s dplan.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// NewService construye el servicio.
func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = ports.NopMetrics{}
	}
	if d.Formatter == nil {
		d.Formatter = money.NewFormatter("")
	}
	if d.CreditExpiry <= 0 {
		d.CreditExpiry = 365 * 24 * time.Hour
	}
	return &Service{d: d, flows: make(map[string]*flow)}
}

// Start abre un flujo en Review con la cotización del cambio. Reemplaza un
// flujo previo en Review o Success; con uno en Payment o Processing falla con
// ErrChangeAlreadyInProgress.
func (s *Service) Start(ctx context.Context, tenantID, actorID string, in dto.StartPlanChangeRequest) (*dto.PlanChangeView, error) {
	if in.ToPlan == "" {
		return nil, fmt.Errorf("%w: to_plan es obligatorio", domain.ErrInvalidInput)
	}

	f, err := s.claim(tenantID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if f.current() == nil {
			s.drop(f)
		}
		f.op.Unlock()
	}()
	if dplan.InFlight(f.current()) {
		return nil, domain.ErrChangeAlreadyInProgress
	}

	tenant, err := s.d.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrTenantNotFound
	}
	toCycle := tenant.BillingCycle
	if in.ToCycle != "" {
		toCycle = entity.BillingCycle(in.ToCycle)
		if !toCycle.Valid() {
			return nil, fmt.Errorf("%w: ciclo %q", domain.ErrInvalidInput, in.ToCycle)
		}
	}
	toPlan, err := s.d.Catalog.PlanBySlug(in.ToPlan)
	if err != nil {
		return nil, err
	}
	if toPlan.Slug == tenant.PlanSlug && toCycle == tenant.BillingCycle {
		return nil, fmt.Errorf("%w: el tenant ya está en el plan %s", domain.ErrInvalidInput, toPlan.Name)
	}

	now := s.d.Now()
	result, err := proration.NewCalculator(s.d.Catalog, s.d.Now).CalculatePlanChange(tenant.PlanSlug, toPlan.Slug, tenant.Period())
	if err != nil {
		return nil, err
	}
	available, err := credit.NewLedger(s.d.Credits, s.d.Now).Balance(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	changes, err := s.moduleChanges(ctx, tenantID, toPlan, now)
	if err != nil {
		return nil, err
	}

	q := dplan.NewQuote(dplan.QuoteInput{
		WorkflowID:      uuid.New().String(),
		TenantID:        tenantID,
		ActorID:         actorID,
		FromCycle:       tenant.BillingCycle,
		ToCycle:         toCycle,
		Proration:       result,
		UseCredit:       in.UseCredit,
		AvailableCredit: available,
		CreatedAt:       now,
	})

	f.mu.Lock()
	f.state = dplan.Start(q)
	f.lock = nil
	f.modules = changes
	f.mu.Unlock()

	s.d.Logger.Info().
		Str("tenant_id", tenantID).
		Str("workflow_id", q.WorkflowID).
		Str("from_plan", result.FromPlan).
		Str("to_plan", result.ToPlan).
		Str("prorated_amount", result.ProratedAmount.StringFixed(2)).
		Msg("cambio de plan en revisión")
	return s.view(f), nil
}

// ProceedToPayment confirma la revisión. Toma el lock del tenant; un downgrade
// o un monto final 0 se procesa de inmediato y el flujo termina en Success.
func (s *Service) ProceedToPayment(ctx context.Context, tenantID string) (*dto.PlanChangeView, error) {
	f, err := s.acquire(tenantID)
	if err != nil {
		return nil, err
	}
	defer f.op.Unlock()

	review, ok := f.current().(dplan.ReviewState)
	if !ok {
		if dplan.InFlight(f.current()) {
			return nil, domain.ErrChangeAlreadyInProgress
		}
		return nil, fmt.Errorf("%w: solo se puede confirmar desde review", domain.ErrInvalidTransition)
	}

	if err := s.checkQuote(ctx, review.Quote()); err != nil {
		return nil, err
	}
	lock, err := s.d.Locker.Acquire(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ports.ErrLockHeld) {
			return nil, domain.ErrChangeAlreadyInProgress
		}
		return nil, fmt.Errorf("acquire tenant lock: %w", err)
	}
	f.mu.Lock()
	f.lock = lock
	f.mu.Unlock()

	next, eff := review.Proceed()
	f.set(next)
	if proc, ok := next.(dplan.ProcessingState); ok && eff.Apply {
		err = s.process(ctx, f, proc, eff.Charge)
	}
	return s.view(f), err
}

// SubmitPayment recibe el medio de pago y ejecuta Processing. Un rechazo de la
// pasarela deja el flujo en Payment con el error adjunto y lo devuelve.
func (s *Service) SubmitPayment(ctx context.Context, tenantID string, in dto.SubmitPaymentRequest) (*dto.PlanChangeView, error) {
	f, err := s.acquire(tenantID)
	if err != nil {
		return nil, err
	}
	defer f.op.Unlock()

	payment, ok := f.current().(dplan.PaymentState)
	if !ok {
		return nil, fmt.Errorf("%w: el flujo no está esperando un pago", domain.ErrInvalidTransition)
	}
	method := entity.PaymentMethod{
		Kind:       entity.PaymentMethodKind(in.Kind),
		Token:      in.Token,
		HolderName: in.HolderName,
		TaxID:      in.TaxID,
	}
	next, eff, err := payment.Submit(method)
	if err != nil {
		return nil, err
	}
	f.set(next)
	err = s.process(ctx, f, next.(dplan.ProcessingState), eff.Charge)
	return s.view(f), err
}

// Finish reconoce el Success y descarta el flujo.
func (s *Service) Finish(ctx context.Context, tenantID string) (*dto.PlanChangeView, error) {
	f, err := s.acquire(tenantID)
	if err != nil {
		return nil, err
	}
	defer f.op.Unlock()

	if _, ok := f.current().(dplan.SuccessState); !ok {
		return nil, fmt.Errorf("%w: el cambio de plan no ha terminado", domain.ErrInvalidTransition)
	}
	v := s.view(f)
	s.drop(f)
	return v, nil
}

// Discard cancela el flujo antes de Processing sin efectos.
func (s *Service) Discard(ctx context.Context, tenantID string) error {
	f, err := s.acquire(tenantID)
	if err != nil {
		return err
	}
	defer f.op.Unlock()

	if !dplan.CanDiscard(f.current()) {
		return fmt.Errorf("%w: solo se puede descartar en review o payment", domain.ErrInvalidTransition)
	}
	s.releaseLock(ctx, f)
	s.drop(f)
	s.d.Logger.Info().Str("tenant_id", tenantID).Msg("cambio de plan descartado")
	return nil
}

// Current estado actual del flujo del tenant.
func (s *Service) Current(ctx context.Context, tenantID string) (*dto.PlanChangeView, error) {
	f := s.lookup(tenantID)
	if f == nil || f.current() == nil {
		return nil, domain.ErrNoActiveChange
	}
	return s.view(f), nil
}

// Receipt PDF del comprobante de un flujo en Success.
func (s *Service) Receipt(ctx context.Context, tenantID string) ([]byte, error) {
	f := s.lookup(tenantID)
	if f == nil || f.current() == nil {
		return nil, domain.ErrNoActiveChange
	}
	success, ok := f.current().(dplan.SuccessState)
	if !ok {
		return nil, fmt.Errorf("%w: el comprobante se emite al terminar el cambio", domain.ErrInvalidTransition)
	}
	if s.d.Renderer == nil {
		return nil, fmt.Errorf("%w: generador de comprobantes no configurado", domain.ErrNotFound)
	}
	return s.d.Renderer.RenderReceipt(ctx, success.Receipt())
}

// History histórico de cambios del tenant, más recientes primero.
func (s *Service) History(ctx context.Context, tenantID string, page dto.PageRequest) (*dto.PlanChangeHistoryResponse, error) {
	page.DefaultPage()
	list, err := s.d.Changes.ListByTenant(ctx, tenantID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list plan changes: %w", err)
	}
	out := &dto.PlanChangeHistoryResponse{
		Items: make([]dto.PlanChangeRecordResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, r := range list {
		out.Items = append(out.Items, toRecordResponse(r))
	}
	return out, nil
}

// checkCredit verifica que el saldo siga cubriendo el crédito cotizado. Se
// valida antes del cobro: el paso 3c no debe fallar con un pago ya capturado.
func (s *Service) checkCredit(ctx context.Context, q dplan.Quote) error {
	if !q.CreditsToApply.IsPositive() {
		return nil
	}
	balance, err := credit.NewLedger(s.d.Credits, s.d.Now).Balance(ctx, q.TenantID)
	if err != nil {
		return err
	}
	if q.CreditsToApply.GreaterThan(balance) {
		return fmt.Errorf("%w: disponible %s, cotizado %s; vuelva a iniciar el cambio",
			domain.ErrInsufficientCredit, balance.StringFixed(2), q.CreditsToApply.StringFixed(2))
	}
	return nil
}

// checkQuote verifica que el tenant siga en el plan cotizado.
func (s *Service) checkQuote(ctx context.Context, q dplan.Quote) error {
	tenant, err := s.d.Tenants.GetByID(ctx, q.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return domain.ErrTenantNotFound
	}
	if tenant.PlanSlug != q.Proration.FromPlan || tenant.BillingCycle != q.FromCycle {
		return fmt.Errorf("%w: la suscripción cambió desde la cotización; vuelva a iniciar el cambio", domain.ErrConflict)
	}
	return nil
}

func (s *Service) lookup(tenantID string) *flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[tenantID]
}

// claim devuelve el flujo del tenant (creándolo si no existe) con op tomado.
// Si la entrada fue retirada del mapa mientras se esperaba, reintenta con la nueva.
func (s *Service) claim(tenantID string) (*flow, error) {
	for {
		s.mu.Lock()
		f, ok := s.flows[tenantID]
		if !ok {
			f = &flow{tenantID: tenantID}
			s.flows[tenantID] = f
		}
		s.mu.Unlock()

		if !f.op.TryLock() {
			return nil, domain.ErrChangeAlreadyInProgress
		}
		if s.lookup(tenantID) == f {
			return f, nil
		}
		f.op.Unlock()
	}
}

// acquire devuelve el flujo del tenant con op tomado.
func (s *Service) acquire(tenantID string) (*flow, error) {
	f := s.lookup(tenantID)
	if f == nil {
		return nil, domain.ErrNoActiveChange
	}
	if !f.op.TryLock() {
		return nil, domain.ErrChangeAlreadyInProgress
	}
	if f.current() == nil {
		f.op.Unlock()
		return nil, domain.ErrNoActiveChange
	}
	return f, nil
}

// drop vacía el flujo y retira su entrada del mapa. Se llama con op tomado;
// claim detecta un puntero retirado y no lo reutiliza.
func (s *Service) drop(f *flow) {
	f.mu.Lock()
	f.state = nil
	f.modules = dto.ModuleChangesResponse{}
	f.mu.Unlock()

	s.mu.Lock()
	if s.flows[f.tenantID] == f {
		delete(s.flows, f.tenantID)
	}
	s.mu.Unlock()
}

func (s *Service) releaseLock(ctx context.Context, f *flow) {
	f.mu.Lock()
	lock := f.lock
	f.lock = nil
	f.mu.Unlock()
	if lock == nil {
		return
	}
	if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
		s.d.Logger.Warn().Err(err).Msg("no se pudo liberar el lock del tenant")
	}
}
