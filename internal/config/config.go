package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Session    SessionConfig    `mapstructure:"session"`
	Drafts     DraftsConfig     `mapstructure:"drafts"`
	Probe      ProbeConfig      `mapstructure:"probe"`
	Submit     SubmitConfig     `mapstructure:"submit"`
	Attachment AttachmentConfig `mapstructure:"attachment"`
	Contact    ContactConfig    `mapstructure:"contact"`
	Worker     WorkerConfig     `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
	// MetricsSecret guards /metrics when set.
	MetricsSecret string `mapstructure:"metrics_secret"`
}

// UpstreamConfig locates the external portfolio service.
type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	TokenHeader string        `mapstructure:"token_header"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains the Redis connection used for session state and the task queue.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for the attachment staging bucket.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// SessionConfig controls the browser session cookie and stored tokens.
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	TTL          time.Duration `mapstructure:"ttl"`

	// Login attempts per client IP per hour, and the failure count that
	// locks an email for LoginLockTTL.
	LoginRateLimit     int           `mapstructure:"login_rate_limit"`
	LoginLockThreshold int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL       time.Duration `mapstructure:"login_lock_ttl"`
}

// DraftsConfig controls form draft retention.
type DraftsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ProbeConfig tunes the portfolio existence probe.
type ProbeConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	// Wait bounds how long GET /portfolio/status blocks for a result.
	Wait time.Duration `mapstructure:"wait"`
}

// SubmitConfig tunes the submission payload.
type SubmitConfig struct {
	WireCompatible bool `mapstructure:"wire_compatible"`
}

// AttachmentConfig controls PDF intake.
type AttachmentConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
	// ClamdAddress enables virus scanning, e.g. tcp://clamav:3310.
	ClamdAddress string `mapstructure:"clamd_address"`
	// StagedMaxAge is how long an uploaded PDF may stay staged before the
	// worker's sweep removes it. Must not be shorter than the draft TTL.
	StagedMaxAge time.Duration `mapstructure:"staged_max_age"`
}

// ContactConfig limits the public contact relay.
type ContactConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// WorkerConfig contains asynq server settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// MetricsPort serves /metrics from the worker; 0 disables it.
	MetricsPort int `mapstructure:"metrics_port"`
}

// LoadDotEnv loads a local .env file into the environment when one exists.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("upstream.base_url", "http://localhost:5000")
	v.SetDefault("upstream.token_header", "x-auth-token")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "portfolio-attachments")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("session.cookie_name", "portfolio_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", "168h")
	v.SetDefault("session.login_rate_limit", 10)
	v.SetDefault("session.login_lock_threshold", 5)
	v.SetDefault("session.login_lock_ttl", "15m")
	v.SetDefault("drafts.ttl", "24h")
	v.SetDefault("probe.debounce", "300ms")
	v.SetDefault("probe.wait", "5s")
	v.SetDefault("submit.wire_compatible", true)
	v.SetDefault("attachment.max_bytes", 10<<20)
	v.SetDefault("attachment.staged_max_age", "168h")
	v.SetDefault("contact.rate_limit", 5)
	v.SetDefault("contact.rate_window", "1h")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.metrics_port", 9091)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                     "API_PORT",
		"api.metrics_secret":           "METRICS_SECRET",
		"upstream.base_url":            "PORTFOLIO_API_URL",
		"upstream.token_header":        "PORTFOLIO_TOKEN_HEADER",
		"upstream.timeout":             "PORTFOLIO_API_TIMEOUT",
		"redis.host":                   "REDIS_HOST",
		"redis.port":                   "REDIS_PORT",
		"redis.password":               "REDIS_PASSWORD",
		"redis.db":                     "REDIS_DB",
		"minio.endpoint":               "MINIO_ENDPOINT",
		"minio.public_endpoint":        "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":          "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":      "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                "MINIO_USE_SSL",
		"minio.bucket":                 "MINIO_BUCKET",
		"minio.region":                 "MINIO_REGION",
		"minio.bucket_lookup":          "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":     "MINIO_AUTO_CREATE_BUCKET",
		"session.cookie_name":          "SESSION_COOKIE_NAME",
		"session.cookie_secure":        "SESSION_COOKIE_SECURE",
		"session.ttl":                  "SESSION_TTL",
		"session.login_rate_limit":     "LOGIN_RATE_LIMIT_PER_HOUR",
		"session.login_lock_threshold": "LOGIN_LOCK_THRESHOLD",
		"session.login_lock_ttl":       "LOGIN_LOCK_TTL",
		"drafts.ttl":                   "DRAFT_TTL",
		"probe.debounce":               "PROBE_DEBOUNCE",
		"probe.wait":                   "PROBE_WAIT",
		"submit.wire_compatible":       "SUBMIT_WIRE_COMPATIBLE",
		"attachment.max_bytes":         "ATTACHMENT_MAX_BYTES",
		"attachment.clamd_address":     "CLAMD_ADDRESS",
		"attachment.staged_max_age":    "ATTACHMENT_STAGED_MAX_AGE",
		"contact.rate_limit":           "CONTACT_RATE_LIMIT",
		"contact.rate_window":          "CONTACT_RATE_WINDOW",
		"worker.concurrency":           "WORKER_CONCURRENCY",
		"worker.metrics_port":          "WORKER_METRICS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if u, err := url.Parse(cfg.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("portfolio api url %q is invalid", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout <= 0 {
		return errors.New("portfolio api timeout must be positive")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Session.CookieName == "" {
		return errors.New("session cookie name is required")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if cfg.Session.LoginRateLimit <= 0 || cfg.Session.LoginLockThreshold <= 0 || cfg.Session.LoginLockTTL <= 0 {
		return errors.New("login limits must be positive")
	}
	if cfg.Drafts.TTL <= 0 {
		return errors.New("draft ttl must be positive")
	}
	if cfg.Probe.Debounce < 0 {
		return errors.New("probe debounce must not be negative")
	}
	if cfg.Attachment.MaxBytes <= 0 {
		return errors.New("attachment max bytes must be positive")
	}
	if cfg.Attachment.StagedMaxAge < cfg.Drafts.TTL {
		return errors.New("attachment staged max age must not be shorter than the draft ttl")
	}
	if cfg.Contact.RateLimit <= 0 || cfg.Contact.RateWindow <= 0 {
		return errors.New("contact rate limit and window must be positive")
	}
	return nil
}
