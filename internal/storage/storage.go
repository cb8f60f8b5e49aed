// Package storage owns the provider registry, folder classification,
// canonical normalization and the composed gateway API.
package storage

import (
	"fmt"
	"time"

	credusecase "storage-gateway/internal/credentials/usecase"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"
	storagehttp "storage-gateway/internal/storage/adapter/http"
	"storage-gateway/internal/storage/adapter/persistence"
	"storage-gateway/internal/storage/config"
	"storage-gateway/internal/storage/domain/model"
	"storage-gateway/internal/storage/domain/repository"
	"storage-gateway/internal/storage/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Module represents the complete storage module
type Module struct {
	registry   *usecase.Registry
	classifier *usecase.Classifier
	normalizer *usecase.Normalizer
	gateway    *usecase.GatewayUsecase
	audit      *persistence.RedisAuditStore
	config     *config.Config
	log        logger.Logger
}

// NewModule wires the storage module. The token provider comes from the
// credentials module; providers register afterward via RegisterProvider.
func NewModule(
	cfg *config.Config,
	tokens usecase.TokenProvider,
	redisClient *redis.Client,
	bus eventbus.EventBusInterface,
	log logger.Logger,
) (*Module, error) {
	if log == nil {
		log = logger.NewLogger()
	}

	registry := usecase.NewRegistry(log)
	classifier, err := usecase.NewClassifier(log, bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	normalizer := usecase.NewNormalizer(classifier)
	gateway := usecase.NewGatewayUsecase(registry, tokens, normalizer, bus, log)

	var audit *persistence.RedisAuditStore
	if redisClient != nil {
		audit = persistence.NewRedisAuditStore(redisClient, cfg.AuditStreamKey, cfg.AuditStreamMaxLen, log)
		audit.SubscribeAll(bus)
	}

	return &Module{
		registry:   registry,
		classifier: classifier,
		normalizer: normalizer,
		gateway:    gateway,
		audit:      audit,
		config:     cfg,
		log:        log,
	}, nil
}

// RegisterProvider registers a descriptor with its driver and compiles the
// descriptor's classification rule. Any failure here is fatal at startup.
func (m *Module) RegisterProvider(desc *model.ProviderDescriptor, driver repository.Driver) error {
	if err := m.registry.Register(desc, driver); err != nil {
		return err
	}
	if err := m.classifier.CompileRule(desc); err != nil {
		return err
	}
	return nil
}

// RegisterRoutes mounts the gateway REST surface
func (m *Module) RegisterRoutes(
	router fiber.Router,
	manager credusecase.TokenManagerInterface,
	chain *credusecase.ResolverChain,
	sessions storagehttp.SessionStore,
	sessionCookieName string,
	sessionTTL time.Duration,
) {
	auth := storagehttp.NewAuthMiddleware(chain, sessionCookieName)
	handler := storagehttp.NewGatewayHTTPHandler(
		m.gateway,
		manager,
		sessions,
		sessionCookieName,
		sessionTTL,
		m.log,
	)
	handler.SetupRoutes(router, auth)
}

// Registry returns the provider registry, which also serves as the
// credential module's provider policy.
func (m *Module) Registry() *usecase.Registry {
	return m.registry
}

// Gateway returns the composed gateway usecase
func (m *Module) Gateway() usecase.GatewayUsecaseInterface {
	return m.gateway
}

// Audit returns the audit store, or nil when Redis is not configured
func (m *Module) Audit() *persistence.RedisAuditStore {
	return m.audit
}
