package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	JWT       JWTConfig        `mapstructure:"jwt"`
	Security  SecurityConfig   `mapstructure:"security"`
	Engine    EngineConfig     `mapstructure:"engine"`
	Emit      EmitConfig       `mapstructure:"emit"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
	Operators []OperatorConfig `mapstructure:"operators"`
	Emitters  []EmitterConfig  `mapstructure:"emitters"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"` // audit trail sink is optional
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type SecurityConfig struct {
	EncryptionKey  string        `mapstructure:"encryption_key"`  // 32-byte hex-encoded key for AES-256
	TimestampDrift time.Duration `mapstructure:"timestamp_drift"` // max clock skew on signed emission requests
	NonceTTL       time.Duration `mapstructure:"nonce_ttl"`
}

// EngineConfig carries the delivery-engine defaults applied to subscriptions
// that omit a policy field.
type EngineConfig struct {
	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RetryDelayMax     time.Duration `mapstructure:"retry_delay_max"`
	ResponseBodyLimit int64         `mapstructure:"response_body_limit"` // bytes of subscriber response kept per attempt
}

type EmitConfig struct {
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// OperatorConfig provisions one administrative credential.
type OperatorConfig struct {
	KeyID      string `mapstructure:"key_id"`
	APIKeyHash string `mapstructure:"api_key_hash"` // Argon2id encoded hash
}

// EmitterConfig provisions one event-emitting service credential.
type EmitterConfig struct {
	Name         string `mapstructure:"name"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKeyEnc string `mapstructure:"secret_key_enc"` // AES-256-GCM encrypted
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PWE_ (Payment Webhook Engine).
// Nested keys use underscore: PWE_REDIS_HOST, PWE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "webhook_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "payment-webhook-engine")
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.timestamp_drift", "60s")
	v.SetDefault("security.nonce_ttl", "120s")
	v.SetDefault("engine.delivery_timeout", "30s")
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.retry_delay_base", "1s")
	v.SetDefault("engine.retry_delay_max", "60s")
	v.SetDefault("engine.response_body_limit", 64*1024)
	v.SetDefault("emit.idempotency_ttl", "24h")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PWE_REDIS_HOST -> redis.host
	v.SetEnvPrefix("PWE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the invariants the composition root depends on. Load does
// not call it, so tests can inspect raw defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("jwt.expiry must be positive")
	}
	key, err := hex.DecodeString(c.Security.EncryptionKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("security.encryption_key must be 64 hex chars (32 bytes)")
	}
	if c.Security.TimestampDrift <= 0 {
		return fmt.Errorf("security.timestamp_drift must be positive")
	}
	if c.Security.NonceTTL <= 0 {
		return fmt.Errorf("security.nonce_ttl must be positive")
	}
	if c.Engine.DeliveryTimeout <= 0 {
		return fmt.Errorf("engine.delivery_timeout must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}
	if c.Engine.RetryDelayBase <= 0 {
		return fmt.Errorf("engine.retry_delay_base must be positive")
	}
	if c.Engine.RetryDelayMax <= 0 {
		return fmt.Errorf("engine.retry_delay_max must be positive")
	}
	if c.Engine.ResponseBodyLimit <= 0 {
		return fmt.Errorf("engine.response_body_limit must be positive")
	}
	if c.Emit.IdempotencyTTL <= 0 {
		return fmt.Errorf("emit.idempotency_ttl must be positive")
	}
	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required when database.enabled")
	}
	for i, op := range c.Operators {
		if op.KeyID == "" || op.APIKeyHash == "" {
			return fmt.Errorf("operators[%d]: key_id and api_key_hash are required", i)
		}
	}
	for i, em := range c.Emitters {
		if em.Name == "" || em.AccessKey == "" || em.SecretKeyEnc == "" {
			return fmt.Errorf("emitters[%d]: name, access_key and secret_key_enc are required", i)
		}
	}
	return nil
}
