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
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Razorpay     RazorpayConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Email        EmailConfig
	Jobs         JobsConfig
	Idempotency  IdempotencyConfig
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
	Env          string `envconfig:"QUICKKART_APP_ENV" required:"true"`
	Port         string `envconfig:"QUICKKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QUICKKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QUICKKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"QUICKKART_DB_DSN"`

	LegacyHost     string `envconfig:"QUICKKART_DB_HOST"`
	LegacyPort     int    `envconfig:"QUICKKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUICKKART_DB_USER"`
	LegacyPassword string `envconfig:"QUICKKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUICKKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUICKKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUICKKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QUICKKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QUICKKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUICKKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QUICKKART_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"QUICKKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUICKKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUICKKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUICKKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUICKKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"QUICKKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"QUICKKART_JWT_ISSUER" default:"quickkart"`
	ExpirationMinutes int    `envconfig:"QUICKKART_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"QUICKKART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"QUICKKART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"QUICKKART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"QUICKKART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"QUICKKART_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QUICKKART_AUTO_MIGRATE" default:"false"`
	// PubSubNotifications routes notifications through Pub/Sub instead of the log dispatcher.
	PubSubNotifications bool `envconfig:"QUICKKART_FEATURE_PUBSUB_NOTIFICATIONS" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"QUICKKART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"QUICKKART_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"QUICKKART_RAZORPAY_KEY_SECRET" required:"true"`
	BaseURL   string `envconfig:"QUICKKART_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Currency  string `envconfig:"QUICKKART_RAZORPAY_CURRENCY" default:"INR"`
}

type GoogleMapsConfig struct {
	APIKey     string        `envconfig:"QUICKKART_GOOGLE_MAPS_API_KEY"`
	ETATimeout time.Duration `envconfig:"QUICKKART_GOOGLE_MAPS_ETA_TIMEOUT" default:"2s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"QUICKKART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"QUICKKART_PUBSUB_NOTIFICATION_TOPIC" default:"qk-notifications"`
}

type EmailConfig struct {
	DefaultFrom string   `envconfig:"QUICKKART_EMAIL_FROM" default:"orders@quickkart.local"`
	AdminEmails []string `envconfig:"QUICKKART_ADMIN_EMAILS"`
}

type JobsConfig struct {
	LockTTL      time.Duration `envconfig:"QUICKKART_JOBS_LOCK_TTL" default:"10m"`
	CartIdleTTL  time.Duration `envconfig:"QUICKKART_JOBS_CART_IDLE_TTL" default:"60m"`
	MetricsAddr  string        `envconfig:"QUICKKART_JOBS_METRICS_ADDR"`
	BatchTimeout time.Duration `envconfig:"QUICKKART_JOBS_BATCH_TIMEOUT" default:"15m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"QUICKKART_IDEMPOTENCY_TTL" default:"24h"`
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
