package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storage-gateway/internal/credentials"
	credconfig "storage-gateway/internal/credentials/config"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage"
	"storage-gateway/internal/storage/adapter/credbridge"
	storageconfig "storage-gateway/internal/storage/config"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container wires the gateway modules with proper lifecycle management.
// Storage and credentials reference each other (drivers refresh tokens,
// tokens unlock drivers), so the token provider is late-bound.
type Container struct {
	mu sync.RWMutex

	StorageModule     *storage.Module
	CredentialsModule *credentials.Module

	MongoDB     *mongo.Database
	RedisClient *redis.Client

	CredentialsConfig *credconfig.Config
	StorageConfig     *storageconfig.Config

	Logger logger.Logger
	Bus    eventbus.EventBusInterface

	tokens *lazyTokenProvider
}

// lazyTokenProvider defers token manager binding until the credentials
// module exists. Every call before Bind fails loudly.
type lazyTokenProvider struct {
	mu       sync.RWMutex
	delegate storageTokenProvider
}

type storageTokenProvider interface {
	Acquire(ctx context.Context, provider, accountID string) (string, error)
	Disconnect(ctx context.Context, provider, accountID string) error
}

func (l *lazyTokenProvider) Bind(delegate storageTokenProvider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegate = delegate
}

func (l *lazyTokenProvider) get() (storageTokenProvider, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.delegate == nil {
		return nil, fmt.Errorf("token provider not bound; credentials module not initialized")
	}
	return l.delegate, nil
}

func (l *lazyTokenProvider) Acquire(ctx context.Context, provider, accountID string) (string, error) {
	delegate, err := l.get()
	if err != nil {
		return "", err
	}
	return delegate.Acquire(ctx, provider, accountID)
}

func (l *lazyTokenProvider) Disconnect(ctx context.Context, provider, accountID string) error {
	delegate, err := l.get()
	if err != nil {
		return err
	}
	return delegate.Disconnect(ctx, provider, accountID)
}

// NewContainer creates a new DI container
func NewContainer() *Container {
	return &Container{
		tokens: &lazyTokenProvider{},
	}
}

// InitializeStorage initializes the storage module. Providers register on
// the module afterward, before InitializeCredentials.
func (c *Container) InitializeStorage(cfg *storageconfig.Config, redisClient *redis.Client, bus eventbus.EventBusInterface, log logger.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if log == nil {
		log = logger.NewLogger()
	}
	c.Logger = log
	c.Bus = bus
	c.RedisClient = redisClient
	c.StorageConfig = cfg

	module, err := storage.NewModule(cfg, c.tokens, redisClient, bus, log)
	if err != nil {
		return fmt.Errorf("failed to create storage module: %w", err)
	}

	c.StorageModule = module
	return nil
}

// InitializeCredentials initializes the credentials module against the
// storage registry and binds the token provider the storage module uses.
func (c *Container) InitializeCredentials(mongoDB *mongo.Database, cfg *credconfig.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.StorageModule == nil {
		return fmt.Errorf("storage module must be initialized before credentials module")
	}
	if mongoDB == nil {
		return fmt.Errorf("MongoDB must be initialized before credentials module")
	}

	c.MongoDB = mongoDB
	c.CredentialsConfig = cfg

	registry := c.StorageModule.Registry()
	refreshers := credbridge.NewDriverRefresherRegistry(registry)

	module, err := credentials.NewModule(mongoDB, c.RedisClient, cfg, refreshers, registry, c.Bus, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create credentials module: %w", err)
	}

	c.CredentialsModule = module
	c.tokens.Bind(module.TokenManager())
	return nil
}

// GetStorageModule returns the storage module instance
func (c *Container) GetStorageModule() *storage.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.StorageModule
}

// GetCredentialsModule returns the credentials module instance
func (c *Container) GetCredentialsModule() *credentials.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CredentialsModule
}

// HealthCheck verifies the container's backing services
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.MongoDB != nil {
		if err := c.MongoDB.Client().Ping(ctx, nil); err != nil {
			return fmt.Errorf("MongoDB health check failed: %w", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("Redis health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup drops module references in reverse initialization order. The
// backing clients (Mongo, Redis) are owned and closed by main.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CredentialsModule = nil
	c.StorageModule = nil
	return nil
}

// Close gracefully shuts down all services in the container with timeout
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil && c.Logger != nil {
		c.Logger.Warnf("cleanup errors occurred: %v", err)
	}
	return nil
}
