package ports

import "github.com/shopspring/decimal"

// Metrics métricas de negocio del motor de suscripciones.
type Metrics interface {
	PlanChange(changeType, status string)
	ProratedAmount(changeType string, amount decimal.Decimal)
	PaymentAttempt(result string)
	CreditTransaction(txType string, amount decimal.Decimal)
	ModuleToggle(action string)
}

// NopMetrics implementación vacía.
type NopMetrics struct{}

func (NopMetrics) PlanChange(string, string)                 {}
func (NopMetrics) ProratedAmount(string, decimal.Decimal)    {}
func (NopMetrics) PaymentAttempt(string)                     {}
func (NopMetrics) CreditTransaction(string, decimal.Decimal) {}
func (NopMetrics) ModuleToggle(string)                       {}
