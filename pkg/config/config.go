package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PUMPMUSIC"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "PUMPMUSIC_APP_ENV"
	EnvPort     = "PUMPMUSIC_APP_PORT"
	EnvDBDSN    = "PUMPMUSIC_DB_DSN"
	EnvDBHost   = "PUMPMUSIC_DB_HOST"
	EnvDBUser   = "PUMPMUSIC_DB_USER"
	EnvDBName   = "PUMPMUSIC_DB_NAME"
	EnvRedisURL = "PUMPMUSIC_REDIS_URL"

	EnvJWTSecret  = "PUMPMUSIC_JWT_SECRET"
	EnvJWTIssuer  = "PUMPMUSIC_JWT_ISSUER"
	EnvJWTExpMins = "PUMPMUSIC_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "PUMPMUSIC_GCP_PROJECT_ID"
	EnvPubSubEventsTopic = "PUMPMUSIC_PUBSUB_EVENTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Generation   GenerationConfig
	Tokens       TokensConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Worker       WorkerConfig
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
	Env          string `envconfig:"PUMPMUSIC_APP_ENV" required:"true"`
	Port         string `envconfig:"PUMPMUSIC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PUMPMUSIC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PUMPMUSIC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PUMPMUSIC_DB_DSN"`
	Driver string `envconfig:"PUMPMUSIC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PUMPMUSIC_DB_HOST"`
	LegacyPort     int    `envconfig:"PUMPMUSIC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PUMPMUSIC_DB_USER"`
	LegacyPassword string `envconfig:"PUMPMUSIC_DB_PASSWORD"`
	LegacyName     string `envconfig:"PUMPMUSIC_DB_NAME"`
	LegacySSLMode  string `envconfig:"PUMPMUSIC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PUMPMUSIC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PUMPMUSIC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PUMPMUSIC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PUMPMUSIC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PUMPMUSIC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PUMPMUSIC_REDIS_ADDR"`
	Password     string        `envconfig:"PUMPMUSIC_REDIS_PASSWORD"`
	DB           int           `envconfig:"PUMPMUSIC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PUMPMUSIC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PUMPMUSIC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PUMPMUSIC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PUMPMUSIC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PUMPMUSIC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PUMPMUSIC_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PUMPMUSIC_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PUMPMUSIC_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PUMPMUSIC_AUTO_MIGRATE" default:"false"`
}

// GenerationConfig bounds the external provider call and the recovery sweep.
type GenerationConfig struct {
	ProviderBaseURL string        `envconfig:"PUMPMUSIC_GENERATION_PROVIDER_BASE_URL"`
	ProviderAPIKey  string        `envconfig:"PUMPMUSIC_GENERATION_PROVIDER_API_KEY"`
	ProviderTimeout time.Duration `envconfig:"PUMPMUSIC_GENERATION_PROVIDER_TIMEOUT" default:"90s"`
	SweepGrace      time.Duration `envconfig:"PUMPMUSIC_GENERATION_SWEEP_GRACE" default:"10m"`
	IdempotencyTTL  time.Duration `envconfig:"PUMPMUSIC_GENERATION_IDEMPOTENCY_TTL" default:"24h"`
	MaxPromptLen    int           `envconfig:"PUMPMUSIC_GENERATION_MAX_PROMPT_LEN" default:"500"`
	MaxTitleLen     int           `envconfig:"PUMPMUSIC_GENERATION_MAX_TITLE_LEN" default:"100"`
}

// TokensConfig controls account seeding.
type TokensConfig struct {
	SignupGrant int `envconfig:"PUMPMUSIC_TOKENS_SIGNUP_GRANT" default:"5"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PUMPMUSIC_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PUMPMUSIC_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"PUMPMUSIC_PUBSUB_EVENTS_TOPIC" default:"pm-domain-events"`
}

type OutboxConfig struct {
	BatchSize   int `envconfig:"PUMPMUSIC_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	MaxAttempts int `envconfig:"PUMPMUSIC_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WorkerConfig struct {
	Interval time.Duration `envconfig:"PUMPMUSIC_WORKER_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"PUMPMUSIC_WORKER_LOCK_TTL" default:"5m"`
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
