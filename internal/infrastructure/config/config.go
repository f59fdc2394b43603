package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Trade       TradeConfig
	Idempotency IdempotencyConfig
	Scheduler   SchedulerConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string // file path or ":memory:" for sqlite
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// TradeConfig holds sale settings
type TradeConfig struct {
	EditWindow     time.Duration
	InvoicePrefix  string
	DefaultVATRate decimal.Decimal
}

// IdempotencyConfig holds payment replay cache settings
type IdempotencyConfig struct {
	CacheTTL     time.Duration
	CacheBackend string // redis, memory
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled                bool
	ReconciliationInterval time.Duration
	LockSweepInterval      time.Duration
	LockTTL                time.Duration
}

// TelemetryConfig controls span and metric export. SamplingRatio applies to
// root spans.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP/gRPC host:port
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool // plaintext gRPC
	DBTraceEnabled    bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
}

// Load reads config.toml from the working directory or /app, then lets
// POS_-prefixed environment variables override it (POS_DATABASE_PASSWORD
// sets database.password). Unset keys fall back to defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Trade: TradeConfig{
			EditWindow:    v.GetDuration("trade.edit_window"),
			InvoicePrefix: v.GetString("trade.invoice_prefix"),
		},
		Idempotency: IdempotencyConfig{
			CacheTTL:     v.GetDuration("idempotency.cache_ttl"),
			CacheBackend: v.GetString("idempotency.cache_backend"),
		},
		Scheduler: SchedulerConfig{
			Enabled:                v.GetBool("scheduler.enabled"),
			ReconciliationInterval: v.GetDuration("scheduler.reconciliation_interval"),
			LockSweepInterval:      v.GetDuration("scheduler.lock_sweep_interval"),
			LockTTL:                v.GetDuration("scheduler.lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_tracing"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}

	if raw := strings.TrimSpace(v.GetString("trade.default_vat_rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("trade.default_vat_rate: %w", err)
		}
		cfg.Trade.DefaultVATRate = rate
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// defaults apply to every key the config file and environment leave unset
var defaults = map[string]any{
	"app.name":                          "poscore",
	"app.env":                           "development",
	"app.port":                          "8080",
	"database.driver":                   "postgres",
	"database.host":                     "localhost",
	"database.port":                     5432,
	"database.user":                     "postgres",
	"database.dbname":                   "pos",
	"database.sslmode":                  "disable",
	"database.max_open_conns":           25,
	"database.max_idle_conns":           5,
	"database.conn_max_lifetime":        60,
	"database.conn_max_idle_time":       30,
	"database.log_level":                "warn",
	"database.slow_threshold":           200 * time.Millisecond,
	"redis.host":                        "localhost",
	"redis.port":                        6379,
	"jwt.issuer":                        "poscore",
	"jwt.access_token_expiration":       12 * time.Hour,
	"log.level":                         "info",
	"log.format":                        "console",
	"log.output":                        "stdout",
	"http.read_timeout":                 15 * time.Second,
	"http.write_timeout":                15 * time.Second,
	"http.idle_timeout":                 60 * time.Second,
	"http.request_timeout":              10 * time.Second,
	"http.max_header_bytes":             1 << 20,
	"trade.edit_window":                 48 * time.Hour,
	"trade.invoice_prefix":              "INV-",
	"idempotency.cache_ttl":             24 * time.Hour,
	"idempotency.cache_backend":         "memory",
	"scheduler.reconciliation_interval": time.Hour,
	"scheduler.lock_sweep_interval":     5 * time.Minute,
	"scheduler.lock_ttl":                time.Minute,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "poscore",
	"telemetry.metrics_interval":        time.Minute,
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Idempotency.CacheBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("idempotency.cache_backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("idempotency.cache_backend must be redis or memory, got %q", c.Idempotency.CacheBackend)
	}

	if c.Trade.EditWindow < 0 {
		return fmt.Errorf("trade.edit_window cannot be negative")
	}
	if c.Trade.DefaultVATRate.IsNegative() || c.Trade.DefaultVATRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("trade.default_vat_rate must be between 0 and 1")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver cannot be sqlite in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// IsSQLite reports whether the sqlite driver is configured
func (d *DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}
