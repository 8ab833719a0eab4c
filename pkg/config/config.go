package config

import (
	"fmt"
	"net/url"
	"sort"
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
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Courier      CourierConfig
	Commission   CommissionConfig
	Ledger       LedgerConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Courier.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DROPSHIP_APP_ENV" required:"true"`
	Port         string `envconfig:"DROPSHIP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DROPSHIP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DROPSHIP_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"DROPSHIP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"DROPSHIP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DROPSHIP_DB_DSN"`
	Driver string `envconfig:"DROPSHIP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DROPSHIP_DB_HOST"`
	Port     int    `envconfig:"DROPSHIP_DB_PORT" default:"5432"`
	User     string `envconfig:"DROPSHIP_DB_USER"`
	Password string `envconfig:"DROPSHIP_DB_PASSWORD"`
	Name     string `envconfig:"DROPSHIP_DB_NAME"`
	SSLMode  string `envconfig:"DROPSHIP_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"DROPSHIP_SQLITE_PATH" default:"dropship.db"`

	MaxOpenConns    int           `envconfig:"DROPSHIP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DROPSHIP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DROPSHIP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DROPSHIP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DROPSHIP_REDIS_URL"`
	Address      string        `envconfig:"DROPSHIP_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"DROPSHIP_REDIS_PASSWORD"`
	DB           int           `envconfig:"DROPSHIP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DROPSHIP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DROPSHIP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DROPSHIP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DROPSHIP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DROPSHIP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"DROPSHIP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DROPSHIP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DROPSHIP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DROPSHIP_AUTO_MIGRATE" default:"false"`
}

// IdempotencyConfig sets how long Idempotency-Key replays are stored. Critical
// routes move money or stock and keep their keys longer.
type IdempotencyConfig struct {
	DefaultTTL  time.Duration `envconfig:"DROPSHIP_IDEMPOTENCY_TTL" default:"24h"`
	CriticalTTL time.Duration `envconfig:"DROPSHIP_IDEMPOTENCY_CRITICAL_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"DROPSHIP_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"DROPSHIP_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic      string        `envconfig:"DROPSHIP_PUBSUB_ORDERS_TOPIC" default:"dropship-order-events"`
	FulfillmentTopic string        `envconfig:"DROPSHIP_PUBSUB_FULFILLMENT_TOPIC" default:"dropship-fulfillment-events"`
	LedgerTopic      string        `envconfig:"DROPSHIP_PUBSUB_LEDGER_TOPIC" default:"dropship-ledger-events"`
	PublishTimeout   time.Duration `envconfig:"DROPSHIP_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
	// CreateTopics creates missing topics on boot instead of failing. Meant
	// for local runs against the emulator.
	CreateTopics     bool          `envconfig:"DROPSHIP_PUBSUB_CREATE_TOPICS" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DROPSHIP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DROPSHIP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DROPSHIP_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// Ordering publishes with the aggregate id as ordering key, so every
	// event of one sub-order reaches subscribers in emit order.
	Ordering    bool   `envconfig:"DROPSHIP_OUTBOX_ORDERING" default:"true"`
	MetricsAddr string `envconfig:"DROPSHIP_OUTBOX_METRICS_ADDR" default:":9091"`
}

// CourierConfig holds the courier account, transport settings and the
// courier status code tables used to classify tracking updates.
type CourierConfig struct {
	BaseURL            string        `envconfig:"DROPSHIP_COURIER_BASE_URL" default:"https://ws.courier.example/ShippingAPI.V2/Shipping/Service_1_0.svc/json"`
	TrackingBaseURL    string        `envconfig:"DROPSHIP_COURIER_TRACKING_BASE_URL" default:"https://ws.courier.example/ShippingAPI.V2/Tracking/Service_1_0.svc/json"`
	Username           string        `envconfig:"DROPSHIP_COURIER_USERNAME"`
	Password           string        `envconfig:"DROPSHIP_COURIER_PASSWORD"`
	AccountNumber      string        `envconfig:"DROPSHIP_COURIER_ACCOUNT_NUMBER"`
	AccountPin         string        `envconfig:"DROPSHIP_COURIER_ACCOUNT_PIN"`
	AccountEntity      string        `envconfig:"DROPSHIP_COURIER_ACCOUNT_ENTITY"`
	AccountCountryCode string        `envconfig:"DROPSHIP_COURIER_ACCOUNT_COUNTRY_CODE"`
	Timeout            time.Duration `envconfig:"DROPSHIP_COURIER_TIMEOUT" default:"20s"`
	Timezone           string        `envconfig:"DROPSHIP_COURIER_TIMEZONE" default:"UTC"`
	WebhookSecret      string        `envconfig:"DROPSHIP_COURIER_WEBHOOK_SECRET"`
	ReplayTTL          time.Duration `envconfig:"DROPSHIP_COURIER_WEBHOOK_REPLAY_TTL" default:"72h"`
	MaxConcurrentCalls int           `envconfig:"DROPSHIP_COURIER_MAX_CONCURRENT_CALLS" default:"4"`
	Currency           string        `envconfig:"DROPSHIP_COURIER_CURRENCY" default:"TND"`

	RecordCreatedCodes []string `envconfig:"DROPSHIP_COURIER_RECORD_CREATED_CODES" default:"SH014"`
	DeliveredCodes     []string `envconfig:"DROPSHIP_COURIER_DELIVERED_CODES" default:"SH005,SH006,SH007"`
	ReturnedCodes      []string `envconfig:"DROPSHIP_COURIER_RETURNED_CODES" default:"SH069,SH070"`
}

// Location resolves the timezone used for the pickup cutoff.
func (c CourierConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvCourierTimezone, name, err)
	}
	return loc, nil
}

type CommissionConfig struct {
	SellerShare             string `envconfig:"DROPSHIP_COMMISSION_SELLER_SHARE" default:"0.9"`
	SingleSupplierSurcharge string `envconfig:"DROPSHIP_COMMISSION_SINGLE_SUPPLIER_SURCHARGE" default:"8"`
	PerSupplierSurcharge    string `envconfig:"DROPSHIP_COMMISSION_PER_SUPPLIER_SURCHARGE" default:"7"`
	ReturnPenalty           string `envconfig:"DROPSHIP_COMMISSION_RETURN_PENALTY" default:"3"`
}

type LedgerConfig struct {
	MinWithdraw string `envconfig:"DROPSHIP_LEDGER_MIN_WITHDRAW" default:"50"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"DROPSHIP_CRON_INTERVAL" default:"15m"`
	TrackingBatchSize     int           `envconfig:"DROPSHIP_CRON_TRACKING_BATCH_SIZE" default:"50"`
	NotificationRetention time.Duration `envconfig:"DROPSHIP_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"DROPSHIP_CRON_OUTBOX_RETENTION" default:"168h"`
	PurgeBatchSize        int           `envconfig:"DROPSHIP_CRON_PURGE_BATCH_SIZE" default:"1000"`
}

// IsSQLite reports whether the embedded sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
