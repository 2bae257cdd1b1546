package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "HOSTELPAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "HOSTELPAY_DB_DSN"
	EnvDBHost = "HOSTELPAY_DB_HOST"
	EnvDBUser = "HOSTELPAY_DB_USER"
	EnvDBName = "HOSTELPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App             AppConfig
	DB              DBConfig
	Redis           RedisConfig
	JWT             JWTConfig
	Password        PasswordConfig
	PublicRateLimit PublicRateLimitConfig
	FeatureFlags    FeatureFlagsConfig
	Paycashless     PaycashlessConfig
	Payment         PaymentConfig
	Webhook         WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HOSTELPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"HOSTELPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOSTELPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOSTELPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HOSTELPAY_DB_DSN"`
	Driver string `envconfig:"HOSTELPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOSTELPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"HOSTELPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOSTELPAY_DB_USER"`
	LegacyPassword string `envconfig:"HOSTELPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOSTELPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOSTELPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOSTELPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOSTELPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOSTELPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOSTELPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOSTELPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOSTELPAY_REDIS_ADDR"`
	Password     string        `envconfig:"HOSTELPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOSTELPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOSTELPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOSTELPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOSTELPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOSTELPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOSTELPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HOSTELPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HOSTELPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HOSTELPAY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HOSTELPAY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HOSTELPAY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HOSTELPAY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HOSTELPAY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HOSTELPAY_ARGON_KEY_LEN" default:"32"`
}

type PublicRateLimitConfig struct {
	CheckStatusWindow     time.Duration `envconfig:"HOSTELPAY_RATE_LIMIT_CHECK_STATUS_WINDOW" default:"1m"`
	CheckStatusEmailLimit int           `envconfig:"HOSTELPAY_RATE_LIMIT_CHECK_STATUS_EMAIL_LIMIT" default:"10"`
	CheckStatusIPLimit    int           `envconfig:"HOSTELPAY_RATE_LIMIT_CHECK_STATUS_IP_LIMIT" default:"30"`
	LoginWindow           time.Duration `envconfig:"HOSTELPAY_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit       int           `envconfig:"HOSTELPAY_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"HOSTELPAY_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOSTELPAY_AUTO_MIGRATE" default:"false"`
}

type PaycashlessConfig struct {
	APIKey        string `envconfig:"HOSTELPAY_PAYCASHLESS_API_KEY"`
	SigningSecret string `envconfig:"HOSTELPAY_PAYCASHLESS_SECRET"`
	BaseURL       string `envconfig:"HOSTELPAY_PAYCASHLESS_BASE_URL" default:"https://api.paycashless.com"`
	CallbackURL   string `envconfig:"HOSTELPAY_PAYCASHLESS_CALLBACK_URL"`
	ReturnURL     string `envconfig:"HOSTELPAY_PAYCASHLESS_RETURN_URL"`
}

// PaymentConfig carries the global accommodation fee as a business rule.
// The fee amount is the source of truth for status derivation, not per-row
// amount_to_pay values.
type PaymentConfig struct {
	FeeAmount      int64  `envconfig:"HOSTELPAY_PAYMENT_FEE_AMOUNT" default:"219000"`
	Currency       string `envconfig:"HOSTELPAY_PAYMENT_CURRENCY" default:"NGN"`
	InvoiceDueDays int    `envconfig:"HOSTELPAY_PAYMENT_INVOICE_DUE_DAYS" default:"14"`
	SyncLimit      int    `envconfig:"HOSTELPAY_PAYMENT_SYNC_LIMIT" default:"100"`
}

// Fee returns the configured accommodation fee as a decimal amount.
func (p PaymentConfig) Fee() decimal.Decimal {
	return decimal.NewFromInt(p.FeeAmount)
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"HOSTELPAY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
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
