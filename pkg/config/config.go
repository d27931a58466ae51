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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Gamification GamificationConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	AMQP         AMQPConfig
	Relay        RelayConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Relay.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CASHSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"CASHSTORE_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"CASHSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASHSTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CASHSTORE_SERVICE_KIND" default:"gamification-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"CASHSTORE_DB_DSN"`
	Driver string `envconfig:"CASHSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CASHSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"CASHSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CASHSTORE_DB_USER"`
	LegacyPassword string `envconfig:"CASHSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CASHSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CASHSTORE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CASHSTORE_SQLITE_PATH" default:"cashstore.db"`

	MaxOpenConns    int           `envconfig:"CASHSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CASHSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CASHSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASHSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CASHSTORE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASHSTORE_REDIS_URL"`
	Address      string        `envconfig:"CASHSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"CASHSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASHSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASHSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASHSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASHSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASHSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASHSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CASHSTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CASHSTORE_AUTO_MIGRATE" default:"false"`
}

// EventingConfig tunes the in-process activity bus.
type EventingConfig struct {
	Workers         int           `envconfig:"CASHSTORE_EVENTING_WORKERS" default:"8"`
	QueueSize       int           `envconfig:"CASHSTORE_EVENTING_QUEUE_SIZE" default:"1024"`
	HandlerTimeout  time.Duration `envconfig:"CASHSTORE_EVENTING_HANDLER_TIMEOUT" default:"10s"`
	DrainTimeout    time.Duration `envconfig:"CASHSTORE_EVENTING_DRAIN_TIMEOUT" default:"30s"`
	ProcessedTTL    time.Duration `envconfig:"CASHSTORE_EVENTING_PROCESSED_TTL" default:"72h"`
	ActivityLogging bool          `envconfig:"CASHSTORE_EVENTING_ACTIVITY_LOG" default:"true"`
}

type GamificationConfig struct {
	LearningFloorRatio  float64       `envconfig:"CASHSTORE_LEARNING_FLOOR_RATIO" default:"0.3"`
	LeaderboardCacheTTL time.Duration `envconfig:"CASHSTORE_LEADERBOARD_CACHE_TTL" default:"15m"`
	LedgerBestEffort    bool          `envconfig:"CASHSTORE_LEDGER_BEST_EFFORT" default:"false"`
	ReconcileBatchSize  int           `envconfig:"CASHSTORE_RECONCILE_BATCH_SIZE" default:"200"`
	ReconcileLookback   time.Duration `envconfig:"CASHSTORE_RECONCILE_LOOKBACK" default:"26h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CASHSTORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ActivityTopic string        `envconfig:"CASHSTORE_PUBSUB_ACTIVITY_TOPIC" default:"cs-activity-events"`
	BatchDelay    time.Duration `envconfig:"CASHSTORE_PUBSUB_BATCH_DELAY" default:"10ms"`
	BatchCount    int           `envconfig:"CASHSTORE_PUBSUB_BATCH_COUNT" default:"100"`
}

type AMQPConfig struct {
	URL        string `envconfig:"CASHSTORE_AMQP_URL"`
	Exchange   string `envconfig:"CASHSTORE_AMQP_EXCHANGE" default:"cs.activity"`
	RoutingKey string `envconfig:"CASHSTORE_AMQP_ROUTING_KEY" default:"activity"`
}

// RelayConfig selects where emitted activity events are mirrored.
type RelayConfig struct {
	Driver  string        `envconfig:"CASHSTORE_RELAY_DRIVER" default:"none"`
	Timeout time.Duration `envconfig:"CASHSTORE_RELAY_TIMEOUT" default:"5s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"CASHSTORE_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"CASHSTORE_CRON_LOCK_TTL" default:"2h"`
	JobTimeout            time.Duration `envconfig:"CASHSTORE_CRON_JOB_TIMEOUT" default:"30m"`
	ActivityRetentionDays int           `envconfig:"CASHSTORE_ACTIVITY_RETENTION_DAYS" default:"90"`
}

func (r RelayConfig) validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(r.Driver)) {
	case "", RelayDriverNone:
		return nil
	case RelayDriverPubSub:
		if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when relay driver is %s", EnvGCPProjectID, RelayDriverPubSub)
		}
		return nil
	case RelayDriverAMQP:
		if strings.TrimSpace(cfg.AMQP.URL) == "" {
			return fmt.Errorf("%s is required when relay driver is %s", EnvAMQPURL, RelayDriverAMQP)
		}
		return nil
	default:
		return fmt.Errorf("unsupported relay driver %q", r.Driver)
	}
}

// NormalizedDriver returns the lower-cased relay driver, defaulting to none.
func (r RelayConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(r.Driver))
	if driver == "" {
		return RelayDriverNone
	}
	return driver
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
