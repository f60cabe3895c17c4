package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by StoreConfig.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Admission    AdmissionConfig
	Notifier     NotifierConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the access request storage backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup pings while the database boots.
	ConnectAttempts int
	ApplicationName string
}

// SQLiteConfig holds the on-disk database location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled bool
	// URL, when set, takes precedence over Addr, Password and DB.
	URL               string
	Addr              string
	Password          string
	DB                int
	DialTimeoutMillis int
	Channel           string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// LoginAttemptsPerMinute bounds password guesses per operator.
	LoginAttemptsPerMinute int
	// Operators maps username to bcrypt hash.
	Operators map[string]string
}

// AdmissionConfig tunes the submission throttle and the placeholder identity.
type AdmissionConfig struct {
	MaxPendingPerIdentity int
	PlaceholderFirstName  string
	PlaceholderLastName   string
}

// NotifierConfig tunes status observation.
type NotifierConfig struct {
	PollIntervalMillis int
	MaxWaitSeconds     int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	operators, err := parseOperators(os.Getenv("AUTH_OPERATORS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_OPERATORS: %w", err)
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	switch driver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", driver)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "access-gate"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: driver,
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			ApplicationName: getEnv("APP_NAME", "access-gate"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "./data/access-gate.db"),
		},
		Redis: RedisConfig{
			Enabled:           getEnvAsBool("REDIS_ENABLED", false),
			URL:               os.Getenv("REDIS_URL"),
			Addr:              getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:          os.Getenv("REDIS_PASSWORD"),
			DB:                redisDB,
			DialTimeoutMillis: getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 2000),
			Channel:           getEnv("REDIS_EVENTS_CHANNEL", "access-gate:events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginAttemptsPerMinute: getEnvAsInt("AUTH_LOGIN_ATTEMPTS_PER_MINUTE", 5),
			Operators:              operators,
		},
		Admission: AdmissionConfig{
			MaxPendingPerIdentity: getEnvAsInt("ADMISSION_MAX_PENDING_PER_IDENTITY", 3),
			PlaceholderFirstName:  getEnv("ADMISSION_PLACEHOLDER_FIRST_NAME", "ავტომატური"),
			PlaceholderLastName:   getEnv("ADMISSION_PLACEHOLDER_LAST_NAME", "მოთხოვნა"),
		},
		Notifier: NotifierConfig{
			PollIntervalMillis: getEnvAsInt("NOTIFIER_POLL_INTERVAL_MS", 2000),
			MaxWaitSeconds:     getEnvAsInt("NOTIFIER_MAX_WAIT_SECONDS", 60),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the polling cadence, defaulting to two seconds.
func (n NotifierConfig) PollInterval() time.Duration {
	if n.PollIntervalMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(n.PollIntervalMillis) * time.Millisecond
}

// MaxWait caps how long a single watch request may block.
func (n NotifierConfig) MaxWait() time.Duration {
	if n.MaxWaitSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(n.MaxWaitSeconds) * time.Second
}

// parseOperators reads "user:hash,user2:hash2". Hashes contain '$' but never ','
// or ':' so a single split per entry is enough.
func parseOperators(raw string) (map[string]string, error) {
	operators := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return operators, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		hash = strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("malformed operator entry %q", entry)
		}
		operators[name] = hash
	}
	return operators, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
