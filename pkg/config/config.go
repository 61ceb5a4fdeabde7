package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración del servicio (Viper: env y opcionalmente archivo).
type Config struct {
	App          AppConfig
	DB           DBConfig
	JWT          JWTConfig
	HTTP         HTTPConfig
	Redis        RedisConfig
	Billing      BillingConfig
	Payment      PaymentConfig
	Notification NotificationConfig
	Entitlement  EntitlementConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
}

// ConnectionString devuelve DATABASE_URL si está definido; si no, el DSN construido.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig configuración del lock distribuido. URL vacía = lock en memoria.
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

// BillingConfig reglas de facturación: moneda, catálogo y vigencia de créditos.
type BillingConfig struct {
	Currency          string // ISO 4217
	CatalogPath       string // vacío = catálogo embebido
	CreditExpiryDays  int
	CreditSweepCron   string
	CreditSweepWorker int
}

// CreditExpiry devuelve la vigencia de un crédito generado por downgrade.
func (c BillingConfig) CreditExpiry() time.Duration {
	return time.Duration(c.CreditExpiryDays) * 24 * time.Hour
}

// PaymentConfig selecciona la pasarela de pagos.
type PaymentConfig struct {
	Mode    string // simulated | http
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// NotificationConfig despacho de notificaciones (fire-and-forget).
type NotificationConfig struct {
	WebhookURL    string
	WebhookSecret string // firma HMAC-SHA256 del cuerpo; vacío = sin firma
	MaxRetries    int
	Workers       int
	QueueSize     int
}

// EntitlementConfig caché del gate de módulos.
type EntitlementConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

// Load lee la configuración desde variables de entorno (y opcionalmente archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, REDIS_URL, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // opcional

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // opcional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "tenant-billing-api"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "tenant_billing"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 25),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "tenant-billing-api"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			URL:     getString(v, "REDIS_URL", ""),
			LockTTL: time.Duration(getInt(v, "LOCK_TTL_SECONDS", 900)) * time.Second,
		},
		Billing: BillingConfig{
			Currency:          strings.ToUpper(getString(v, "CURRENCY", "BRL")),
			CatalogPath:       getString(v, "CATALOG_PATH", ""),
			CreditExpiryDays:  getInt(v, "CREDIT_EXPIRY_DAYS", 365),
			CreditSweepCron:   getString(v, "CREDIT_SWEEP_SCHEDULE", "@hourly"),
			CreditSweepWorker: getInt(v, "CREDIT_SWEEP_WORKERS", 4),
		},
		Payment: PaymentConfig{
			Mode:    getString(v, "PAYMENT_MODE", "simulated"),
			APIURL:  getString(v, "PAYMENT_API_URL", ""),
			APIKey:  getString(v, "PAYMENT_API_KEY", ""),
			Timeout: time.Duration(getInt(v, "PAYMENT_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Notification: NotificationConfig{
			WebhookURL:    getString(v, "NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret: getString(v, "NOTIFY_WEBHOOK_SECRET", ""),
			MaxRetries:    getInt(v, "NOTIFY_MAX_RETRIES", 5),
			Workers:       getInt(v, "NOTIFY_WORKERS", 2),
			QueueSize:     getInt(v, "NOTIFY_QUEUE_SIZE", 256),
		},
		Entitlement: EntitlementConfig{
			CacheTTL:  time.Duration(getInt(v, "ENTITLEMENT_CACHE_TTL_SECONDS", 30)) * time.Second,
			CacheSize: getInt(v, "ENTITLEMENT_CACHE_SIZE", 4096),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Billing.CreditExpiryDays <= 0 {
		return fmt.Errorf("config: CREDIT_EXPIRY_DAYS debe ser mayor que cero")
	}
	if len(c.Billing.Currency) != 3 {
		return fmt.Errorf("config: CURRENCY debe ser un código ISO 4217 (%q)", c.Billing.Currency)
	}
	switch c.Payment.Mode {
	case "simulated":
	case "http":
		if c.Payment.APIURL == "" {
			return fmt.Errorf("config: PAYMENT_API_URL es obligatorio con PAYMENT_MODE=http")
		}
	default:
		return fmt.Errorf("config: PAYMENT_MODE desconocido %q", c.Payment.Mode)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	switch v.Get(key).(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return def
		}
		return n
	default:
		return v.GetInt(key)
	}
}
