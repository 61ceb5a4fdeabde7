package planchange

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/domain"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// Step nombre del estado.
type Step string

const (
	StepReview     Step = "review"
	StepPayment    Step = "payment"
	StepProcessing Step = "processing"
	StepSuccess    Step = "success"
)

// State unión etiquetada de los estados del flujo.
type State interface {
	Step() Step
	Quote() Quote
	// Err error adjunto al volver a un estado interactivo; nil si no hay.
	Err() error
	isState()
}

// ChargeIntent cobro que debe ejecutar Processing.
type ChargeIntent struct {
	Amount         decimal.Decimal
	Method         entity.PaymentMethod
	IdempotencyKey string
}

// Effects efectos que la transición pide ejecutar.
type Effects struct {
	Charge *ChargeIntent // nil = sin cobro
	Apply  bool          // aplicar efectos financieros y de entitlements (3a–3d)
}

// ── Review ────────────────────────────────────────────────────────────────────

// ReviewState estado inicial: el usuario revisa el prorrateo. attempt conserva
// los intentos de cobro previos a un aborto para no repetir claves de idempotencia.
type ReviewState struct {
	quote   Quote
	attempt int
	err     error
}

// Start crea el estado inicial del flujo.
func Start(q Quote) ReviewState { return ReviewState{quote: q} }

func (s ReviewState) Step() Step   { return StepReview }
func (s ReviewState) Quote() Quote { return s.quote }
func (s ReviewState) Err() error   { return s.err }
func (ReviewState) isState()       {}

// Proceed confirma la revisión. Downgrades o finalAmount 0 saltan directo a
// Processing sin cobro; el resto pasa a Payment.
func (s ReviewState) Proceed() (State, Effects) {
	if !s.quote.NeedsPayment() {
		return ProcessingState{quote: s.quote, attempt: s.attempt}, Effects{Apply: true}
	}
	return PaymentState{quote: s.quote, attempt: s.attempt}, Effects{}
}

// ── Payment ───────────────────────────────────────────────────────────────────

// PaymentState espera el medio de pago.
type PaymentState struct {
	quote   Quote
	attempt int
	err     error
}

func (s PaymentState) Step() Step   { return StepPayment }
func (s PaymentState) Quote() Quote { return s.quote }
func (s PaymentState) Err() error   { return s.err }
func (PaymentState) isState()       {}

// Attempts intentos de cobro realizados.
func (s PaymentState) Attempts() int { return s.attempt }

// Submit recibe el medio de pago y pasa a Processing con un cobro por finalAmount.
// Un descriptor incompleto deja el flujo en Payment.
func (s PaymentState) Submit(m entity.PaymentMethod) (State, Effects, error) {
	if msg := m.Validate(); msg != "" {
		return s, Effects{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	}
	attempt := s.attempt + 1
	next := ProcessingState{quote: s.quote, method: &m, attempt: attempt}
	return next, Effects{
		Charge: &ChargeIntent{
			Amount:         s.quote.FinalAmount,
			Method:         m,
			IdempotencyKey: s.quote.WorkflowID + ":" + strconv.Itoa(attempt),
		},
		Apply: true,
	}, nil
}

// ── Processing ────────────────────────────────────────────────────────────────

// ProcessingState único estado con efectos (cobro + aplicación).
type ProcessingState struct {
	quote   Quote
	method  *entity.PaymentMethod
	attempt int
}

func (s ProcessingState) Step() Step   { return StepProcessing }
func (s ProcessingState) Quote() Quote { return s.quote }
func (s ProcessingState) Err() error   { return nil }
func (ProcessingState) isState()       {}

// Attempt número del último intento de cobro (0 si nunca hubo cobro).
func (s ProcessingState) Attempt() int { return s.attempt }

// ChargeFailed vuelve a Payment con el error de la pasarela.
func (s ProcessingState) ChargeFailed(err error) PaymentState {
	return PaymentState{quote: s.quote, attempt: s.attempt, err: err}
}

// ApplyFailed aborta a Review con el error adjunto.
func (s ProcessingState) ApplyFailed(err error) ReviewState {
	return ReviewState{quote: s.quote, attempt: s.attempt, err: err}
}

// Completed termina el flujo con el comprobante y el registro histórico.
func (s ProcessingState) Completed(receipt entity.Receipt, record entity.PlanChangeRecord) SuccessState {
	return SuccessState{quote: s.quote, receipt: receipt, record: record}
}

// ── Success ───────────────────────────────────────────────────────────────────

// SuccessState estado terminal.
type SuccessState struct {
	quote   Quote
	receipt entity.Receipt
	record  entity.PlanChangeRecord
}

func (s SuccessState) Step() Step   { return StepSuccess }
func (s SuccessState) Quote() Quote { return s.quote }
func (s SuccessState) Err() error   { return nil }
func (SuccessState) isState()       {}

// Receipt comprobante del cambio.
func (s SuccessState) Receipt() entity.Receipt { return s.receipt }

// Record registro histórico escrito.
func (s SuccessState) Record() entity.PlanChangeRecord { return s.record }

// ── Helpers ───────────────────────────────────────────────────────────────────

// InFlight informa si el estado bloquea otro cambio para el tenant.
func InFlight(s State) bool {
	if s == nil {
		return false
	}
	step := s.Step()
	return step == StepPayment || step == StepProcessing
}

// CanDiscard informa si el flujo se puede descartar sin efectos (antes de Processing).
func CanDiscard(s State) bool {
	if s == nil {
		return false
	}
	step := s.Step()
	return step == StepReview || step == StepPayment
}
