package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all configuration for the credentials module.
type Config struct {
	// MongoDB Configuration
	MongoDBURI   string `env:"MONGODB_URI,required"`
	DatabaseName string `env:"DATABASE_NAME" envDefault:"storage_gateway_db"`

	// Token vault key: 64 hex characters (32 bytes) used to encrypt access
	// and refresh tokens at rest.
	VaultKeyHex string `env:"TOKEN_VAULT_KEY,required"`

	// Gateway JWT Configuration (bearer credentials issued by the gateway)
	JWTSecretKey   string        `env:"JWT_SECRET_KEY,required"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"storage-gateway"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`

	// Session resolver configuration
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"sg_session"`
	SessionKeyPrefix  string        `env:"SESSION_KEY_PREFIX" envDefault:"gateway:session:"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Redis Configuration (session store)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// ResolverOrder fixes the auth resolution precedence. Configuration-
	// driven, not load-order-driven, so behavior is deterministic across
	// restarts.
	ResolverOrder []string `env:"RESOLVER_ORDER" envSeparator:"," envDefault:"bearer,session,cookie"`
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load credentials configuration from environment: %w", err)
	}

	if cfg.MongoDBURI == "" {
		return nil, errors.New("mongodb_uri is required")
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("jwt_secret_key is required")
	}
	if _, err := cfg.VaultKey(); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if len(cfg.ResolverOrder) == 0 {
		return nil, errors.New("resolver_order must name at least one resolver")
	}

	return cfg, nil
}

// VaultKey decodes the at-rest encryption key
func (c *Config) VaultKey() ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(c.VaultKeyHex)
	if err != nil {
		return key, errors.New("token_vault_key must be hex-encoded")
	}
	if len(raw) != 32 {
		return key, errors.New("token_vault_key must decode to exactly 32 bytes")
	}
	copy(key[:], raw)
	return key, nil
}
