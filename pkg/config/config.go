package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	Coupons      CouponsConfig
	GCP          GCPConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if cfg.Cart.NeedsDB() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if cfg.Cart.RemoteBackend == RemoteBackendFirestore && strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return nil, fmt.Errorf("%s is required when the firestore remote backend is enabled", EnvGCPProjectID)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"STOREFRONT_DB_CONNECT_TIMEOUT" default:"5s"`
	// Statements slower than this are logged at warn level. Zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether any redis connection details were supplied.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	// Only used when minting tokens for local development.
	ExpirationMinutes int           `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"STOREFRONT_JWT_LEEWAY" default:"30s"`
}

// CartConfig holds pricing constants and backend selection for the cart store.
type CartConfig struct {
	TaxRate               float64       `envconfig:"STOREFRONT_CART_TAX_RATE" default:"0.08"`
	FreeShippingThreshold float64       `envconfig:"STOREFRONT_CART_FREE_SHIPPING_THRESHOLD" default:"50"`
	FlatShippingFee       float64       `envconfig:"STOREFRONT_CART_FLAT_SHIPPING_FEE" default:"5.99"`
	LocalTTL              time.Duration `envconfig:"STOREFRONT_CART_LOCAL_TTL" default:"720h"`
	IdleTTL               time.Duration `envconfig:"STOREFRONT_CART_IDLE_TTL" default:"30m"`
	SweepInterval         time.Duration `envconfig:"STOREFRONT_CART_SWEEP_INTERVAL" default:"1m"`
	LocalBackend          string        `envconfig:"STOREFRONT_LOCAL_BACKEND" default:"redis"`
	RemoteBackend         string        `envconfig:"STOREFRONT_REMOTE_BACKEND" default:"postgres"`
}

// NeedsDB reports whether a SQL database must be configured.
func (c CartConfig) NeedsDB() bool {
	return strings.EqualFold(c.RemoteBackend, RemoteBackendPostgres)
}

func (c *CartConfig) validate() error {
	c.LocalBackend = strings.ToLower(strings.TrimSpace(c.LocalBackend))
	c.RemoteBackend = strings.ToLower(strings.TrimSpace(c.RemoteBackend))

	switch c.LocalBackend {
	case LocalBackendRedis, LocalBackendMemory:
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvLocalBackend, LocalBackendRedis, LocalBackendMemory)
	}
	switch c.RemoteBackend {
	case RemoteBackendPostgres, RemoteBackendFirestore, RemoteBackendNone:
	default:
		return fmt.Errorf("%s must be one of %q, %q or %q", EnvRemoteBackend, RemoteBackendPostgres, RemoteBackendFirestore, RemoteBackendNone)
	}
	if c.TaxRate < 0 {
		return fmt.Errorf("%s must be non-negative", EnvCartTaxRate)
	}
	if c.FreeShippingThreshold < 0 || c.FlatShippingFee < 0 {
		return fmt.Errorf("shipping settings must be non-negative")
	}
	return nil
}

type CouponsConfig struct {
	// FallbackFile optionally replaces the built-in demo coupon table.
	FallbackFile string `envconfig:"STOREFRONT_COUPON_FALLBACK_FILE"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
