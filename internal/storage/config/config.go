package config

import (
	"fmt"
	"os"

	"storage-gateway/internal/storage/domain/model"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
)

// Config holds configuration for the storage module
type Config struct {
	// ProvidersFile points to the TOML file declaring the provider set.
	// Empty means no file-based providers; registration then happens in code.
	ProvidersFile string `env:"PROVIDERS_FILE" envDefault:""`

	// AuditStreamKey is the Redis stream audit events are appended to
	AuditStreamKey string `env:"AUDIT_STREAM_KEY" envDefault:"gateway:audit"`

	// AuditStreamMaxLen caps the audit stream length (approximate trim)
	AuditStreamMaxLen int64 `env:"AUDIT_STREAM_MAXLEN" envDefault:"100000"`
}

// providersFile is the TOML document shape: a list of provider tables
type providersFile struct {
	Providers []model.ProviderDescriptor `toml:"providers"`
}

// LoadConfig loads storage module configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load storage configuration from environment: %w", err)
	}
	return cfg, nil
}

// LoadProviders parses provider descriptors from a TOML file and validates
// each one. The file is the single declarative source for the provider set.
func LoadProviders(path string) ([]model.ProviderDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file %s: %w", path, err)
	}
	return ParseProviders(data)
}

// ParseProviders parses provider descriptors from TOML bytes
func ParseProviders(data []byte) ([]model.ProviderDescriptor, error) {
	var doc providersFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	for i := range doc.Providers {
		if err := doc.Providers[i].Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Providers, nil
}
