// Package metrics expone las métricas Prometheus del servicio.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

const namespace = "tenant_billing"

var _ ports.Metrics = (*Prometheus)(nil)

// Prometheus métricas de negocio, HTTP, caché y jobs.
type Prometheus struct {
	registry *prometheus.Registry

	// Negocio
	planChangesTotal    *prometheus.CounterVec
	proratedAmount      *prometheus.HistogramVec
	paymentAttempts     *prometheus.CounterVec
	creditTxTotal       *prometheus.CounterVec
	creditAmountTotal   *prometheus.CounterVec
	moduleTogglesTotal  *prometheus.CounterVec
	entitlementLookups  *prometheus.CounterVec
	creditSweepTenants  *prometheus.CounterVec
	creditSweepDuration prometheus.Histogram

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New crea y registra las métricas. registry nil crea uno nuevo con
// los collectors de Go y del proceso.
func New(registry *prometheus.Registry) *Prometheus {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := &Prometheus{
		registry: registry,
		planChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_changes_total",
			Help:      "Cambios de plan por tipo y resultado",
		}, []string{"type", "status"}),
		proratedAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prorated_amount",
			Help:      "Valor absoluto del prorrateo aplicado (unidad mayor)",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"type"}),
		paymentAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_attempts_total",
			Help:      "Intentos de cobro por resultado",
		}, []string{"result"}),
		creditTxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_transactions_total",
			Help:      "Movimientos del ledger de créditos por tipo",
		}, []string{"type"}),
		creditAmountTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_amount_total",
			Help:      "Monto acumulado de movimientos de crédito por tipo",
		}, []string{"type"}),
		moduleTogglesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_toggles_total",
			Help:      "Habilitaciones y deshabilitaciones manuales de módulos",
		}, []string{"action"}),
		entitlementLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_cache_lookups_total",
			Help:      "Consultas al gate de módulos por resultado de caché",
		}, []string{"result"}),
		creditSweepTenants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_sweep_tenants_total",
			Help:      "Tenants procesados por el barrido de créditos vencidos",
		}, []string{"result"}),
		creditSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "credit_sweep_duration_seconds",
			Help:      "Duración de cada barrido de créditos vencidos",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests HTTP",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duración de requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(
		m.planChangesTotal,
		m.proratedAmount,
		m.paymentAttempts,
		m.creditTxTotal,
		m.creditAmountTotal,
		m.moduleTogglesTotal,
		m.entitlementLookups,
		m.creditSweepTenants,
		m.creditSweepDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// Registry registro subyacente.
func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

// Handler handler HTTP de exposición.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ── ports.Metrics ─────────────────────────────────────────────────────────────

func (m *Prometheus) PlanChange(changeType, status string) {
	m.planChangesTotal.WithLabelValues(changeType, status).Inc()
}

func (m *Prometheus) ProratedAmount(changeType string, amount decimal.Decimal) {
	m.proratedAmount.WithLabelValues(changeType).Observe(amount.Abs().InexactFloat64())
}

func (m *Prometheus) PaymentAttempt(result string) {
	m.paymentAttempts.WithLabelValues(result).Inc()
}

func (m *Prometheus) CreditTransaction(txType string, amount decimal.Decimal) {
	m.creditTxTotal.WithLabelValues(txType).Inc()
	m.creditAmountTotal.WithLabelValues(txType).Add(amount.Abs().InexactFloat64())
}

func (m *Prometheus) ModuleToggle(action string) {
	m.moduleTogglesTotal.WithLabelValues(action).Inc()
}

// ── Infraestructura ───────────────────────────────────────────────────────────

// EntitlementLookup cuenta aciertos y fallos de la caché de entitlements.
func (m *Prometheus) EntitlementLookup(hit bool) {
	if hit {
		m.entitlementLookups.WithLabelValues("hit").Inc()
		return
	}
	m.entitlementLookups.WithLabelValues("miss").Inc()
}

// CreditSweep registra un barrido: tenants procesados, fallidos y duración.
func (m *Prometheus) CreditSweep(swept, failed int, d time.Duration) {
	m.creditSweepTenants.WithLabelValues("swept").Add(float64(swept))
	m.creditSweepTenants.WithLabelValues("failed").Add(float64(failed))
	m.creditSweepDuration.Observe(d.Seconds())
}

// HTTPRequest registra una request. path debe ser la ruta del router, no la URL.
func (m *Prometheus) HTTPRequest(method, path string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
