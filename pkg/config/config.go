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
	Orders       OrdersConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Reconcile    ReconcileConfig
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
	Env          string `envconfig:"VENTIA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENTIA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VENTIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENTIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENTIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENTIA_DB_DSN"`
	Driver string `envconfig:"VENTIA_DB_DRIVER" default:"postgres"`

	// UseSQLite swaps the dialector for local development without postgres.
	UseSQLite bool `envconfig:"VENTIA_DB_USE_SQLITE" default:"false"`

	LegacyHost     string `envconfig:"VENTIA_DB_HOST"`
	LegacyPort     int    `envconfig:"VENTIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENTIA_DB_USER"`
	LegacyPassword string `envconfig:"VENTIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENTIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENTIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENTIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENTIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENTIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENTIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Serializable transactions are aborted at this deadline and surfaced
	// as TRANSACTION_FAILED.
	TxTimeout    time.Duration `envconfig:"VENTIA_DB_TX_TIMEOUT" default:"15s"`
	TxMaxRetries int           `envconfig:"VENTIA_DB_TX_MAX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENTIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENTIA_REDIS_ADDR"`
	Password     string        `envconfig:"VENTIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENTIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENTIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENTIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENTIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENTIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENTIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type OrdersConfig struct {
	NumberPrefix      string `envconfig:"VENTIA_ORDER_NUMBER_PREFIX" default:"ORD-"`
	NumberWidth       int    `envconfig:"VENTIA_ORDER_NUMBER_WIDTH" default:"6"`
	NumberMaxAttempts int    `envconfig:"VENTIA_ORDER_NUMBER_MAX_ATTEMPTS" default:"5"`
}

type IdempotencyConfig struct {
	CreateTTL time.Duration `envconfig:"VENTIA_IDEMPOTENCY_CREATE_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENTIA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENTIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENTIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENTIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"VENTIA_PUBSUB_NOTIFICATION_TOPIC" default:"vt-notification-events"`
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"VENTIA_RECONCILE_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"VENTIA_RECONCILE_LOCK_TTL" default:"50m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.UseSQLite {
		db.DSN = "file:ventia.db?cache=shared"
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
