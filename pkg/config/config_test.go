package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_ValoresPorDefecto(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "BRL", cfg.Billing.Currency)
	assert.Equal(t, 365*24*time.Hour, cfg.Billing.CreditExpiry())
	assert.Equal(t, "simulated", cfg.Payment.Mode)
	assert.Equal(t, 15*time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, 30*time.Second, cfg.Entitlement.CacheTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestFromViper_EnvComoTexto(t *testing.T) {
	v := viper.New()
	v.Set("CURRENCY", "usd")
	v.Set("CREDIT_EXPIRY_DAYS", "30")
	v.Set("HTTP_PORT", " 9090 ")
	v.Set("DB_MAX_CONNS", "no-numero")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Billing.Currency)
	assert.Equal(t, 30*24*time.Hour, cfg.Billing.CreditExpiry())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 25, cfg.DB.MaxConns, "un entero inválido usa el valor por defecto")
}

func TestFromViper_Validaciones(t *testing.T) {
	cases := map[string]map[string]any{
		"vigencia cero":         {"CREDIT_EXPIRY_DAYS": 0},
		"moneda inválida":       {"CURRENCY": "REAL"},
		"pasarela desconocida":  {"PAYMENT_MODE": "stripe"},
		"pasarela http sin url": {"PAYMENT_MODE": "http"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			for k, val := range values {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "billing", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/billing?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
