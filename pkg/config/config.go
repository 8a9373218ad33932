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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Notifier     NotifierConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KHATABOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"KHATABOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KHATABOOK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"KHATABOOK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"KHATABOOK_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"KHATABOOK_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KHATABOOK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KHATABOOK_DB_DSN"`
	Driver string `envconfig:"KHATABOOK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KHATABOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"KHATABOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KHATABOOK_DB_USER"`
	LegacyPassword string `envconfig:"KHATABOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"KHATABOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"KHATABOOK_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"KHATABOOK_SQLITE_PATH" default:"khatabook.db"`

	MaxOpenConns    int           `envconfig:"KHATABOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KHATABOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KHATABOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KHATABOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"KHATABOOK_DB_SLOW_QUERY" default:"500ms"`
	TxAttempts      int           `envconfig:"KHATABOOK_DB_TX_ATTEMPTS" default:"3"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"KHATABOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KHATABOOK_REDIS_ADDR"`
	Password     string        `envconfig:"KHATABOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"KHATABOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KHATABOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KHATABOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KHATABOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KHATABOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KHATABOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"KHATABOOK_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"KHATABOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"KHATABOOK_JWT_EXPIRATION_MINUTES" required:"true"`
	Leeway            time.Duration `envconfig:"KHATABOOK_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KHATABOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KHATABOOK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KHATABOOK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KHATABOOK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KHATABOOK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"KHATABOOK_PUBSUB_ORDERS_TOPIC" default:"kb-order-events"`
	PaymentsTopic string `envconfig:"KHATABOOK_PUBSUB_PAYMENTS_TOPIC" default:"kb-payment-events"`
}

// OutboxConfig tunes the relay that moves notifier events to pubsub.
type OutboxConfig struct {
	BatchSize      int  `envconfig:"KHATABOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int  `envconfig:"KHATABOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int  `envconfig:"KHATABOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	OrderByOrderID bool `envconfig:"KHATABOOK_OUTBOX_ORDER_BY_ORDER_ID" default:"true"`

	MetricsAddr string `envconfig:"KHATABOOK_OUTBOX_METRICS_ADDR"`
}

// SettlementConfig bounds the courier payment-change negotiation.
type SettlementConfig struct {
	ChangeRequestTTL  time.Duration `envconfig:"KHATABOOK_SETTLEMENT_CHANGE_REQUEST_TTL" default:"24h"`
	MaxChangeRequests int           `envconfig:"KHATABOOK_SETTLEMENT_MAX_CHANGE_REQUESTS" default:"3"`
}

type NotifierConfig struct {
	ChannelPrefix string `envconfig:"KHATABOOK_NOTIFIER_CHANNEL_PREFIX" default:"notify"`
	InboxEnabled  bool   `envconfig:"KHATABOOK_NOTIFIER_INBOX_ENABLED" default:"true"`
	RedisEnabled  bool   `envconfig:"KHATABOOK_NOTIFIER_REDIS_ENABLED" default:"true"`
}

// RateLimitConfig caps mutating API calls per user. A zero limit disables it.
type RateLimitConfig struct {
	WriteLimit  int           `envconfig:"KHATABOOK_RATE_LIMIT_WRITES" default:"120"`
	WriteWindow time.Duration `envconfig:"KHATABOOK_RATE_LIMIT_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"KHATABOOK_CRON_INTERVAL" default:"15m"`
	NotificationRetentionDays int           `envconfig:"KHATABOOK_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"KHATABOOK_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays          int           `envconfig:"KHATABOOK_CRON_DLQ_RETENTION_DAYS" default:"90"`
	DailyJobInterval          time.Duration `envconfig:"KHATABOOK_CRON_DAILY_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
	}
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
