package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config chứa toàn bộ application configuration
// Struct này được populate từ environment variables
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	PhonePe   PhonePeConfig
	Webhook   WebhookConfig
	Redirect  RedirectConfig
	Replay    ReplayConfig
	RateLimit RateLimitConfig
	Razorpay  RazorpayConfig
	MinIO     MinIOConfig
	SMTP      SMTPConfig
	Jobs      JobConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string

	// NonProduction must be set explicitly before any insecure switch is honoured.
	NonProduction bool

	// TrustedProxies are the IPs/CIDRs allowed to set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Pool
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// Connect retry
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

// =====================================================
// PHONEPE CONFIGURATION
// =====================================================

type PhonePeConfig struct {
	ClientID      string
	ClientSecret  string
	ClientVersion string
	AuthURL       string        // OAuth token host
	APIURL        string        // checkout API host
	RedirectURL   string        // where the gateway sends the buyer back (our redirect endpoint)
	ExpireAfter   int           // seconds a created payment stays payable
	Timeout       time.Duration // per request
}

type WebhookConfig struct {
	// Secret is the shared HMAC key. Empty means credentials are not provisioned yet.
	Secret string

	// SkipVerification is a development switch, refused unless App.NonProduction is set.
	SkipVerification bool

	// AllowedCIDRs restricts the webhook origin. Empty list accepts any origin.
	AllowedCIDRs []string

	// TrustEmbeddedOnUpstreamFailure lets a completed-order webhook fall back to its
	// own payment details when the live status query fails.
	TrustEmbeddedOnUpstreamFailure bool
}

type RedirectConfig struct {
	SuccessURL string
	PendingURL string
	FailureURL string
}

type ReplayConfig struct {
	Retention time.Duration // how long a delivery id is remembered
	MaxSkew   time.Duration // events older than this are stale
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	ConfirmAmount bool // cross-check the amount pairing with Orders API
}

type MinIOConfig struct {
	Endpoint  string // localhost:9000
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Enabled   bool
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	OpsInbox string
	Enabled  bool
}

type JobConfig struct {
	StaleSweepCron  string
	StalePendingAge time.Duration
	StaleSweepBatch int
	NotifyMaxRetry  int
}

type WorkerConfig struct {
	Concurrency int
	HealthPort  string
}

// Load đọc config từ environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:          getEnv("APP_NAME", "Payment Reconciler"),
			Environment:   getEnv("APP_ENV", "development"),
			Port:          getEnv("APP_PORT", "8080"),
			Version:       getEnv("APP_VERSION", "1.0.0"),
			NonProduction:  getEnvBool("NON_PRODUCTION", false),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "payments"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNECTIONS", 25),
			MinConns: getEnvInt("DB_MIN_CONNECTIONS", 2),

			MaxConnLifetime:   getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:   getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			HealthCheckPeriod: getEnvDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			MaxRetries:        getEnvInt("DB_MAX_RETRIES", 5),
			RetryDelay:        getEnvDuration("DB_RETRY_DELAY", time.Second),
			ConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 60),
		},
		PhonePe: PhonePeConfig{
			ClientID:      getEnv("PHONEPE_CLIENT_ID", ""),
			ClientSecret:  getEnv("PHONEPE_CLIENT_SECRET", ""),
			ClientVersion: getEnv("PHONEPE_CLIENT_VERSION", "1"),
			AuthURL:       getEnv("PHONEPE_AUTH_URL", "https://api-preprod.phonepe.com/apis/pg-sandbox"),
			APIURL:        getEnv("PHONEPE_API_URL", "https://api-preprod.phonepe.com/apis/pg-sandbox"),
			RedirectURL:   getEnv("PHONEPE_REDIRECT_URL", "http://localhost:8080/api/v1/payments/redirect"),
			ExpireAfter:   getEnvInt("PHONEPE_EXPIRE_AFTER_SECONDS", 1200),
			Timeout:       getEnvDuration("PHONEPE_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:                         getEnv("WEBHOOK_SECRET", ""),
			SkipVerification:               getEnvBool("WEBHOOK_SKIP_VERIFICATION", false),
			AllowedCIDRs:                   getEnvList("WEBHOOK_ALLOWED_CIDRS"),
			TrustEmbeddedOnUpstreamFailure: getEnvBool("WEBHOOK_TRUST_EMBEDDED_ON_UPSTREAM_FAILURE", true),
		},
		Redirect: RedirectConfig{
			SuccessURL: getEnv("REDIRECT_SUCCESS_URL", "http://localhost:3000/order-confirmation"),
			PendingURL: getEnv("REDIRECT_PENDING_URL", "http://localhost:3000/checkout"),
			FailureURL: getEnv("REDIRECT_FAILURE_URL", "http://localhost:3000/checkout"),
		},
		Replay: ReplayConfig{
			Retention: getEnvDuration("REPLAY_RETENTION", 48*time.Hour),
			MaxSkew:   getEnvDuration("REPLAY_MAX_SKEW", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Razorpay: RazorpayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			ConfirmAmount: getEnvBool("RAZORPAY_CONFIRM_AMOUNT", true),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "payment-webhooks"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Enabled:   getEnvBool("MINIO_ENABLED", false),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "1025"),
			From:     getEnv("SMTP_FROM", "payments@localhost"),
			OpsInbox: getEnv("SMTP_OPS_INBOX", "ops@localhost"),
			Enabled:  getEnvBool("SMTP_ENABLED", true),
		},
		Jobs: JobConfig{
			StaleSweepCron:  getEnv("JOB_STALE_SWEEP_CRON", "*/10 * * * *"),
			StalePendingAge: getEnvDuration("JOB_STALE_PENDING_AGE", 15*time.Minute),
			StaleSweepBatch: getEnvInt("JOB_STALE_SWEEP_BATCH", 100),
			NotifyMaxRetry:  getEnvInt("JOB_NOTIFY_MAX_RETRY", 5),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
			HealthPort:  getEnv("WORKER_HEALTH_PORT", "9999"),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// Validate kiểm tra config có hợp lệ không
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
	}

	// The signature bypass needs both the flag and an explicit non-production marker,
	// and never applies to a production environment.
	if c.Webhook.SkipVerification {
		if !c.App.NonProduction || c.App.Environment == "production" {
			return fmt.Errorf("WEBHOOK_SKIP_VERIFICATION requires NON_PRODUCTION=true outside production")
		}
	}

	for _, p := range c.App.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %q is neither an IP nor a CIDR", p)
		}
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Redirect,
		validation.Field(&c.Redirect.SuccessURL, validation.Required, is.URL),
		validation.Field(&c.Redirect.PendingURL, validation.Required, is.URL),
		validation.Field(&c.Redirect.FailureURL, validation.Required, is.URL),
	); err != nil {
		return fmt.Errorf("redirect: %w", err)
	}

	if err := validation.ValidateStruct(&c.Replay,
		validation.Field(&c.Replay.Retention, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.Replay.MaxSkew, validation.Required, validation.Min(time.Minute)),
	); err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// IsProduction reports whether the service runs with production guarantees.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
