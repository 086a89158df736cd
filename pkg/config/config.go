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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payment      PaymentConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

type RateLimitConfig struct {
	WriteWindow time.Duration `envconfig:"BULKQUOTE_RATE_LIMIT_WRITE_WINDOW" default:"1m"`
	WriteLimit  int64         `envconfig:"BULKQUOTE_RATE_LIMIT_WRITE_LIMIT" default:"60"`
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
	Env          string `envconfig:"BULKQUOTE_APP_ENV" required:"true"`
	Port         string `envconfig:"BULKQUOTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BULKQUOTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BULKQUOTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BULKQUOTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BULKQUOTE_DB_DSN"`
	Driver string `envconfig:"BULKQUOTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BULKQUOTE_DB_HOST"`
	LegacyPort     int    `envconfig:"BULKQUOTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BULKQUOTE_DB_USER"`
	LegacyPassword string `envconfig:"BULKQUOTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BULKQUOTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BULKQUOTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BULKQUOTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BULKQUOTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BULKQUOTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BULKQUOTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BULKQUOTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BULKQUOTE_REDIS_ADDR"`
	Password     string        `envconfig:"BULKQUOTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BULKQUOTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BULKQUOTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BULKQUOTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BULKQUOTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BULKQUOTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BULKQUOTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BULKQUOTE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BULKQUOTE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BULKQUOTE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BULKQUOTE_AUTO_MIGRATE" default:"false"`
}

// PaymentConfig tunes the charge retry loop and the acceptance session.
type PaymentConfig struct {
	SessionTTL       time.Duration `envconfig:"BULKQUOTE_PAYMENT_SESSION_TTL" default:"15m"`
	ChargeAttempts   int           `envconfig:"BULKQUOTE_PAYMENT_CHARGE_ATTEMPTS" default:"4"`
	ChargeBackoff    time.Duration `envconfig:"BULKQUOTE_PAYMENT_CHARGE_BACKOFF" default:"500ms"`
	ChargeBackoffMax time.Duration `envconfig:"BULKQUOTE_PAYMENT_CHARGE_BACKOFF_MAX" default:"8s"`
	ChargeTimeout    time.Duration `envconfig:"BULKQUOTE_PAYMENT_CHARGE_TIMEOUT" default:"30s"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"BULKQUOTE_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"BULKQUOTE_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"BULKQUOTE_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"BULKQUOTE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"BULKQUOTE_PUBSUB_DOMAIN_TOPIC" default:"bq-domain-events"`
	DomainSubscription string `envconfig:"BULKQUOTE_PUBSUB_DOMAIN_SUBSCRIPTION" default:"bq-domain-events-notify"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BULKQUOTE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"BULKQUOTE_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"BULKQUOTE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"BULKQUOTE_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"BULKQUOTE_CRON_INTERVAL" default:"5m"`
	LockTTL          time.Duration `envconfig:"BULKQUOTE_CRON_LOCK_TTL" default:"10m"`
	ReconcileGrace   time.Duration `envconfig:"BULKQUOTE_RECONCILE_GRACE" default:"2m"`
	OfferExpiryGrace time.Duration `envconfig:"BULKQUOTE_OFFER_EXPIRY_GRACE" default:"24h"`
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
