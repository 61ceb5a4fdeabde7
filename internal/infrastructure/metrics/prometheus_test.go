package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/metrics"
)

func TestPrometheus_RegistraMetricasDeNegocio(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.PlanChange("upgrade", "completed")
	m.PlanChange("upgrade", "completed")
	m.PaymentAttempt("declined")
	m.CreditTransaction("earned", decimal.RequireFromString("66.67"))
	m.ModuleToggle("enable")
	m.EntitlementLookup(true)
	m.EntitlementLookup(false)
	m.CreditSweep(3, 1, 10*time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "tenant_billing_plan_changes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expected := `
# HELP tenant_billing_payment_attempts_total Intentos de cobro por resultado
# TYPE tenant_billing_payment_attempts_total counter
tenant_billing_payment_attempts_total{result="declined"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tenant_billing_payment_attempts_total"))
}

func TestPrometheus_HandlerExpone(t *testing.T) {
	m := metrics.New(nil)
	m.HTTPRequest("GET", "/api/credits/balance", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `tenant_billing_http_requests_total{method="GET",path="/api/credits/balance",status="200"} 1`)
}
