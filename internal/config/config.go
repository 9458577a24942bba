package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the server needs, resolved from config.yaml plus
// ORG_-prefixed environment overrides (ORG_HTTP_ADDR, ORG_DATABASE_URL, ...).
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	RedisAddr          string
	RedisChannelPrefix string

	StoreTimeout      time.Duration
	AuditQueueSize    int
	EventQueueSize    int
	ShutdownTimeout   time.Duration
	DevelopmentLogger bool

	AuthzMode          string
	AuthzModelPath     string
	AuthzPolicyPath    string
	AuthzAllowDisabled bool

	PolicyRulesPath string
}

func defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		RedisChannelPrefix: "org.changes",
		StoreTimeout:       5 * time.Second,
		AuditQueueSize:     256,
		EventQueueSize:     1024,
		ShutdownTimeout:    10 * time.Second,
		AuthzMode:          "enforce",
	}
}

// Load reads config.yaml from configPath. A missing file is fine; defaults
// and environment variables carry a dev setup.
func Load(configPath string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("ORG")

	v.BindEnv("http.addr", "ORG_HTTP_ADDR")
	v.BindEnv("database.url", "ORG_DATABASE_URL")
	v.BindEnv("redis.addr", "ORG_REDIS_ADDR")
	v.BindEnv("redis.channel_prefix", "ORG_REDIS_CHANNEL_PREFIX")
	v.BindEnv("store.timeout", "ORG_STORE_TIMEOUT")
	v.BindEnv("authz.mode", "ORG_AUTHZ_MODE")
	v.BindEnv("authz.model_path", "ORG_AUTHZ_MODEL_PATH")
	v.BindEnv("authz.policy_path", "ORG_AUTHZ_POLICY_PATH")
	v.BindEnv("authz.allow_disabled", "ORG_AUTHZ_ALLOW_DISABLED")
	v.BindEnv("policy.rules_path", "ORG_POLICY_RULES_PATH")
	v.BindEnv("log.development", "ORG_LOG_DEVELOPMENT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if v.IsSet("http.addr") {
		cfg.HTTPAddr = v.GetString("http.addr")
	}
	if v.IsSet("database.url") {
		cfg.DatabaseURL = v.GetString("database.url")
	}
	if v.IsSet("redis.addr") {
		cfg.RedisAddr = v.GetString("redis.addr")
	}
	if v.IsSet("redis.channel_prefix") {
		cfg.RedisChannelPrefix = v.GetString("redis.channel_prefix")
	}
	if v.IsSet("store.timeout") {
		cfg.StoreTimeout = v.GetDuration("store.timeout")
	}
	if v.IsSet("store.audit_queue_size") {
		cfg.AuditQueueSize = v.GetInt("store.audit_queue_size")
	}
	if v.IsSet("store.event_queue_size") {
		cfg.EventQueueSize = v.GetInt("store.event_queue_size")
	}
	if v.IsSet("http.shutdown_timeout") {
		cfg.ShutdownTimeout = v.GetDuration("http.shutdown_timeout")
	}
	if v.IsSet("authz.mode") {
		cfg.AuthzMode = v.GetString("authz.mode")
	}
	if v.IsSet("authz.model_path") {
		cfg.AuthzModelPath = v.GetString("authz.model_path")
	}
	if v.IsSet("authz.policy_path") {
		cfg.AuthzPolicyPath = v.GetString("authz.policy_path")
	}
	if v.IsSet("authz.allow_disabled") {
		cfg.AuthzAllowDisabled = v.GetBool("authz.allow_disabled")
	}
	if v.IsSet("policy.rules_path") {
		cfg.PolicyRulesPath = v.GetString("policy.rules_path")
	}
	if v.IsSet("log.development") {
		cfg.DevelopmentLogger = v.GetBool("log.development")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	return nil
}
