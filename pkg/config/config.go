package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Chat          ChatConfig
	Alerts        AlertsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	GoogleMaps    GoogleMapsConfig
	Eventing      EventingConfig
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
	Env          string `envconfig:"VILLAGELINK_APP_ENV" required:"true"`
	Port         string `envconfig:"VILLAGELINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VILLAGELINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VILLAGELINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VILLAGELINK_DB_DSN"`
	Driver string `envconfig:"VILLAGELINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VILLAGELINK_DB_HOST"`
	LegacyPort     int    `envconfig:"VILLAGELINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VILLAGELINK_DB_USER"`
	LegacyPassword string `envconfig:"VILLAGELINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"VILLAGELINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"VILLAGELINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VILLAGELINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VILLAGELINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VILLAGELINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VILLAGELINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VILLAGELINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VILLAGELINK_REDIS_ADDR"`
	Password     string        `envconfig:"VILLAGELINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"VILLAGELINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VILLAGELINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VILLAGELINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VILLAGELINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VILLAGELINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VILLAGELINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VILLAGELINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VILLAGELINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VILLAGELINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VILLAGELINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VILLAGELINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VILLAGELINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VILLAGELINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VILLAGELINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VILLAGELINK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"VILLAGELINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"VILLAGELINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"VILLAGELINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VILLAGELINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VILLAGELINK_AUTO_MIGRATE" default:"false"`
}

type ChatConfig struct {
	// PageSize is the number of rows per history/backfill page.
	PageSize int `envconfig:"VILLAGELINK_CHAT_PAGE_SIZE" default:"20"`
	// MaxContentLen caps message length; longer bodies are rejected.
	MaxContentLen int `envconfig:"VILLAGELINK_CHAT_MAX_CONTENT_LEN" default:"4000"`
	// ClientSendBuffer is the per-connection outbound event buffer.
	ClientSendBuffer int `envconfig:"VILLAGELINK_CHAT_CLIENT_SEND_BUFFER" default:"64"`
}

type AlertsConfig struct {
	PurgeInterval         time.Duration `envconfig:"VILLAGELINK_ALERTS_PURGE_INTERVAL" default:"1h"`
	NotificationRetention int           `envconfig:"VILLAGELINK_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VILLAGELINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VILLAGELINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VILLAGELINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	MessageTopic        string `envconfig:"VILLAGELINK_PUBSUB_MESSAGE_TOPIC" default:"vl-message-events"`
	MessageSubscription string `envconfig:"VILLAGELINK_PUBSUB_MESSAGE_SUBSCRIPTION" required:"true"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"VILLAGELINK_GOOGLE_MAPS_API_KEY"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"VILLAGELINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%s is required when the sqlite driver is selected", EnvDBDSN)
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
		Path:   "/" + db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
