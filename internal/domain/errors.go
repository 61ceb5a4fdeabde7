package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	ErrTenantNotFound = errors.New("tenant no encontrado")
	ErrModuleNotFound = errors.New("módulo no encontrado en el catálogo")
	ErrPlanNotFound   = errors.New("plan no encontrado en el catálogo")

	// Entitlements
	ErrDependencyUnsatisfied = errors.New("dependencias del módulo no habilitadas")
	ErrPlanIneligible        = errors.New("el plan actual no permite habilitar el módulo")
	ErrCoreModuleProtected   = errors.New("los módulos core no se pueden deshabilitar")

	// Créditos y cambio de plan
	ErrInsufficientCredit      = errors.New("crédito insuficiente")
	ErrChangeAlreadyInProgress = errors.New("ya existe un cambio de plan en curso para este tenant")
	ErrPaymentDeclined         = errors.New("pago rechazado por la pasarela")
	ErrInvalidProrationInput   = errors.New("periodo de suscripción inválido para prorrateo")
	ErrInvalidTransition       = errors.New("transición inválida para el estado actual del cambio de plan")
	ErrNoActiveChange          = errors.New("no hay un cambio de plan en curso")
)

// DependencyError detalla qué dependencias faltan. Envuelve ErrDependencyUnsatisfied.
type DependencyError struct {
	ModuleID string
	Missing  []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s requiere %s", ErrDependencyUnsatisfied, e.ModuleID, strings.Join(e.Missing, ", "))
}

func (e *DependencyError) Unwrap() error { return ErrDependencyUnsatisfied }

// PaymentError conserva el mensaje devuelto por la pasarela. Envuelve ErrPaymentDeclined.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string {
	if e.Reason == "" {
		return ErrPaymentDeclined.Error()
	}
	return ErrPaymentDeclined.Error() + ": " + e.Reason
}

func (e *PaymentError) Unwrap() error { return ErrPaymentDeclined }

// Code devuelve el código estable de un error de dominio ("" si no es de dominio).
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDependencyUnsatisfied):
		return "DEPENDENCY_UNSATISFIED"
	case errors.Is(err, ErrPlanIneligible):
		return "PLAN_INELIGIBLE"
	case errors.Is(err, ErrCoreModuleProtected):
		return "CORE_MODULE_PROTECTED"
	case errors.Is(err, ErrInsufficientCredit):
		return "INSUFFICIENT_CREDIT"
	case errors.Is(err, ErrChangeAlreadyInProgress):
		return "CHANGE_ALREADY_IN_PROGRESS"
	case errors.Is(err, ErrPaymentDeclined):
		return "PAYMENT_DECLINED"
	case errors.Is(err, ErrInvalidProrationInput):
		return "INVALID_PRORATION_INPUT"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrNoActiveChange):
		return "NO_ACTIVE_CHANGE"
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "VALIDATION"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	}
	return ""
}
