package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the process-wide, read-only configuration.
type Config struct {
	Env           string
	AppName       string
	HTTPAddr      string
	PublicBaseURL string
	LogLevel      string

	Database DatabaseConfig
	Redis    RedisConfig
	Vault    VaultConfig
	Payments PaymentsConfig

	WebhookRetentionDays int
	WebhookPruneInterval time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type VaultConfig struct {
	Provider string
	AESKey   string
}

// PaymentsConfig tunes outbound provider calls.
type PaymentsConfig struct {
	HTTPTimeout        time.Duration
	ReadRetries        int
	TokenRefreshMargin time.Duration
	// BaseURLs overrides provider API hosts, keyed by provider id.
	BaseURLs map[string]string
}

// providerURLKeys maps provider ids to their override variables.
var providerURLKeys = map[string]string{
	"paystack":     "PAYSTACK_BASE_URL",
	"flutterwave":  "FLUTTERWAVE_BASE_URL",
	"mpesa":        "MPESA_BASE_URL",
	"airtel_money": "AIRTEL_BASE_URL",
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env:           strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		AppName:       v.GetString("APP_NAME"),
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")), "/"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Vault: VaultConfig{
			Provider: v.GetString("VAULT_PROVIDER"),
			AESKey:   v.GetString("VAULT_AES_KEY"),
		},
		Payments: PaymentsConfig{
			HTTPTimeout:        v.GetDuration("PAYMENT_HTTP_TIMEOUT"),
			ReadRetries:        v.GetInt("PAYMENT_READ_RETRIES"),
			TokenRefreshMargin: v.GetDuration("PAYMENT_TOKEN_REFRESH_MARGIN"),
			BaseURLs:           map[string]string{},
		},
		WebhookRetentionDays: v.GetInt("WEBHOOK_RETENTION_DAYS"),
		WebhookPruneInterval: v.GetDuration("WEBHOOK_PRUNE_INTERVAL"),
	}

	for provider, key := range providerURLKeys {
		if url := strings.TrimRight(strings.TrimSpace(v.GetString(key)), "/"); url != "" {
			cfg.Payments.BaseURLs[provider] = url
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_NAME", "chapchap")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("VAULT_PROVIDER", "aes")

	v.SetDefault("PAYMENT_HTTP_TIMEOUT", 15*time.Second)
	v.SetDefault("PAYMENT_READ_RETRIES", 2)
	v.SetDefault("PAYMENT_TOKEN_REFRESH_MARGIN", 60*time.Second)

	v.SetDefault("WEBHOOK_RETENTION_DAYS", 90)
	v.SetDefault("WEBHOOK_PRUNE_INTERVAL", 24*time.Hour)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if strings.TrimSpace(c.Vault.AESKey) == "" {
		errs = append(errs, errors.New("VAULT_AES_KEY is required"))
	}
	if c.Payments.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_HTTP_TIMEOUT must be positive"))
	}
	if c.Payments.ReadRetries < 0 {
		errs = append(errs, errors.New("PAYMENT_READ_RETRIES must not be negative"))
	}
	if c.Payments.TokenRefreshMargin < 0 {
		errs = append(errs, errors.New("PAYMENT_TOKEN_REFRESH_MARGIN must not be negative"))
	}
	return errors.Join(errs...)
}
