package app

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	OtpBackendStore = "store"
	OtpBackendRedis = "redis"

	NotifierLog   = "log"
	NotifierLive  = "live"
	NotifierQueue = "queue"
)

type Config struct {
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired code sweep interval (default: 10m)
	OtpRetention         time.Duration // How long expired codes are kept (default: 1h)

	DatabaseDriver string // sqlite or mongo (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./auth.db)
	MongoURI       string
	MongoDatabase  string // (default: admitgate)

	OtpBackend    string // store or redis (default: store)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PepperFile    string        // Pepper for password and code hashing (default: ./pepper)
	SessionSecret string        // HS256 secret, at least 32 bytes; generated per process outside prod
	SessionIssuer string        // (default: admitgate)
	SessionTTL    time.Duration // (default: 24h)

	OtpPhoneTTL            time.Duration // (default: 90s)
	OtpEmailTTL            time.Duration // (default: 180s)
	OtpMaxAttempts         int           // 0 disables the limit
	OtpDeliveryTimeout     time.Duration // (default: 10s)
	DefaultCountryCode     string        // for national phone numbers (default: 84)
	RegisterRequireCode    bool          // register consumes the code itself
	BootstrapAdmin         string        // phone or email of the first admin, optional
	BootstrapAdminPassword string        // generated and logged once when empty

	Notifier     string // log, live or queue (default: log)
	SMSAPIURL    string
	SMSAPIKey    string
	SMSSender    string
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AMQPURL      string
	AMQPQueue    string

	RateLimitStrict   httpx.RateLimitConfig
	RateLimitModerate httpx.RateLimitConfig
	RateLimitPublic   httpx.RateLimitConfig
	TrustProxy        bool
}

// LoadConfig reads an optional .env file (ENV_FILE overrides the path), then
// the environment, and validates the result. Real environment variables win
// over the file.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(getEnvOrDefault("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := configFromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func configFromEnv() Config {
	return Config{
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", service.DefaultHousekeepingInterval),
		OtpRetention:         getEnvDurationOrDefault("OTP_RETENTION", service.DefaultOtpRetention),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("AUTH_DATABASE_DRIVER", DriverSQLite)),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  getEnvOrDefault("MONGO_DATABASE", "admitgate"),

		OtpBackend:    strings.ToLower(getEnvOrDefault("OTP_BACKEND", OtpBackendStore)),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("REDIS_PREFIX", "admitgate:"),

		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionIssuer: getEnvOrDefault("SESSION_ISSUER", "admitgate"),
		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", jwtx.DefaultSessionTTL),

		OtpPhoneTTL:            getEnvDurationOrDefault("OTP_PHONE_TTL", service.DefaultPhoneOtpTTL),
		OtpEmailTTL:            getEnvDurationOrDefault("OTP_EMAIL_TTL", service.DefaultEmailOtpTTL),
		OtpMaxAttempts:         getEnvIntOrDefault("OTP_MAX_ATTEMPTS", 0),
		OtpDeliveryTimeout:     getEnvDurationOrDefault("OTP_DELIVERY_TIMEOUT", service.DefaultDeliveryTimeout),
		DefaultCountryCode:     strings.TrimPrefix(getEnvOrDefault("DEFAULT_COUNTRY_CODE", domain.DefaultCountryCode), "+"),
		RegisterRequireCode:    getEnvBoolOrDefault("REGISTER_REQUIRE_CODE", false),
		BootstrapAdmin:         os.Getenv("BOOTSTRAP_ADMIN"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		Notifier:     strings.ToLower(getEnvOrDefault("NOTIFIER", NotifierLog)),
		SMSAPIURL:    os.Getenv("SMS_API_URL"),
		SMSAPIKey:    os.Getenv("SMS_API_KEY"),
		SMSSender:    os.Getenv("SMS_SENDER"),
		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPQueue:    os.Getenv("AMQP_QUEUE"),

		RateLimitStrict:   getEnvRateLimit("STRICT", httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}),
		RateLimitModerate: getEnvRateLimit("MODERATE", httpx.RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}),
		RateLimitPublic:   getEnvRateLimit("PUBLIC", httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}),
		TrustProxy:        getEnvBoolOrDefault("TRUST_PROXY", false),
	}
}

var countryCodeRe = regexp.MustCompile(`^[1-9]\d{0,2}$`)

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Port <= 0 || c.Port > 65535 {
		bad("PORT %d out of range", c.Port)
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			bad("AUTH_DATABASE_FILE is required for sqlite")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			bad("MONGO_URI is required for mongo")
		}
	default:
		bad("AUTH_DATABASE_DRIVER %q is not sqlite or mongo", c.DatabaseDriver)
	}

	switch c.OtpBackend {
	case OtpBackendStore:
	case OtpBackendRedis:
		if c.RedisAddr == "" {
			bad("REDIS_ADDR is required for the redis otp backend")
		}
	default:
		bad("OTP_BACKEND %q is not store or redis", c.OtpBackend)
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < jwtx.MinSecretLength {
		bad("SESSION_SECRET must be at least %d bytes", jwtx.MinSecretLength)
	}
	if c.SessionSecret == "" && c.IsProd() {
		bad("SESSION_SECRET is required in prod")
	}
	if c.SessionTTL <= 0 {
		bad("SESSION_TTL must be positive")
	}
	if c.OtpPhoneTTL <= 0 || c.OtpEmailTTL <= 0 {
		bad("OTP_PHONE_TTL and OTP_EMAIL_TTL must be positive")
	}
	if c.OtpMaxAttempts < 0 {
		bad("OTP_MAX_ATTEMPTS must not be negative")
	}
	if !countryCodeRe.MatchString(c.DefaultCountryCode) {
		bad("DEFAULT_COUNTRY_CODE %q is not a calling code", c.DefaultCountryCode)
	}

	if c.BootstrapAdmin != "" {
		if _, err := c.BootstrapIdentity(); err != nil {
			bad("BOOTSTRAP_ADMIN: %w", err)
		}
	}

	switch c.Notifier {
	case NotifierLog:
		if c.IsProd() {
			bad("NOTIFIER=log writes codes to the log and is refused in prod")
		}
	case NotifierLive:
		if c.SMSAPIURL == "" && c.SMTPAddr == "" {
			bad("NOTIFIER=live needs SMS_API_URL or SMTP_ADDR")
		}
		if c.SMTPAddr != "" && c.SMTPFrom == "" {
			bad("SMTP_FROM is required with SMTP_ADDR")
		}
	case NotifierQueue:
		if c.AMQPURL == "" {
			bad("AMQP_URL is required for NOTIFIER=queue")
		}
	default:
		bad("NOTIFIER %q is not log, live or queue", c.Notifier)
	}

	return errors.Join(errs...)
}

func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }

// BootstrapIdentity parses BootstrapAdmin; values containing "@" are emails.
func (c Config) BootstrapIdentity() (domain.Identity, error) {
	kind := domain.KindPhone
	if strings.Contains(c.BootstrapAdmin, "@") {
		kind = domain.KindEmail
	}
	return domain.ParseIdentity(kind, c.BootstrapAdmin, c.DefaultCountryCode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvRateLimit reads RATELIMIT_{prefix}_{REQUESTS,WINDOW,BURST}.
// RATELIMIT_{prefix}_REQUESTS=0 disables the profile.
func getEnvRateLimit(prefix string, def httpx.RateLimitConfig) httpx.RateLimitConfig {
	cfg := def
	cfg.RequestsPerWindow = getEnvIntOrDefault("RATELIMIT_"+prefix+"_REQUESTS", def.RequestsPerWindow)
	cfg.Window = getEnvDurationOrDefault("RATELIMIT_"+prefix+"_WINDOW", def.Window)
	cfg.Burst = getEnvIntOrDefault("RATELIMIT_"+prefix+"_BURST", def.Burst)
	return cfg
}
