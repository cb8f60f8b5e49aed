// Package credentials owns external-account storage and the credential
// lifecycle: resolving which account a request refers to, handing out
// currently valid access tokens, and refreshing them transparently.
package credentials

import (
	"fmt"

	"storage-gateway/internal/credentials/adapter/persistence/mongodb"
	"storage-gateway/internal/credentials/adapter/resolver"
	"storage-gateway/internal/credentials/adapter/security"
	"storage-gateway/internal/credentials/config"
	"storage-gateway/internal/credentials/domain/repository"
	"storage-gateway/internal/credentials/usecase"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Module represents the complete credentials module
type Module struct {
	accounts repository.AccountRepository
	tokenSvc repository.TokenService
	manager  *usecase.TokenManager
	chain    *usecase.ResolverChain
	sessions *resolver.SessionResolver
	config   *config.Config
}

// NewModule wires the credentials module. Refresher lookup and expiry policy
// come from the caller because providers register elsewhere.
func NewModule(
	db *mongo.Database,
	redisClient *redis.Client,
	cfg *config.Config,
	refreshers repository.RefresherRegistry,
	policy repository.ProviderPolicy,
	bus eventbus.EventBusInterface,
	log logger.Logger,
) (*Module, error) {
	vaultKey, err := cfg.VaultKey()
	if err != nil {
		return nil, err
	}

	accounts, err := mongodb.NewMongoAccountRepository(db, security.NewVault(vaultKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create account repository: %w", err)
	}

	tokenSvc, err := security.NewJWTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	manager := usecase.NewTokenManager(accounts, refreshers, policy, bus, log)

	sessions := resolver.NewSessionResolver(redisClient, cfg.SessionKeyPrefix)
	chain, err := buildChain(cfg, tokenSvc, sessions, log)
	if err != nil {
		return nil, err
	}

	return &Module{
		accounts: accounts,
		tokenSvc: tokenSvc,
		manager:  manager,
		chain:    chain,
		sessions: sessions,
		config:   cfg,
	}, nil
}

// buildChain assembles resolvers in the configured precedence order
func buildChain(
	cfg *config.Config,
	tokenSvc repository.TokenService,
	sessions *resolver.SessionResolver,
	log logger.Logger,
) (*usecase.ResolverChain, error) {
	available := map[string]usecase.Resolver{
		"bearer":  resolver.NewBearerResolver(tokenSvc),
		"session": sessions,
		"cookie":  resolver.NewCookieResolver(tokenSvc, cfg.SessionCookieName),
	}

	resolvers := make([]usecase.Resolver, 0, len(cfg.ResolverOrder))
	for _, name := range cfg.ResolverOrder {
		r, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown resolver %q in resolver order", name)
		}
		resolvers = append(resolvers, r)
	}

	return usecase.NewResolverChain(log, resolvers...), nil
}

// TokenManager returns the credential lifecycle manager
func (m *Module) TokenManager() usecase.TokenManagerInterface {
	return m.manager
}

// ResolverChain returns the auth resolution chain
func (m *Module) ResolverChain() *usecase.ResolverChain {
	return m.chain
}

// TokenService returns the gateway bearer token service
func (m *Module) TokenService() repository.TokenService {
	return m.tokenSvc
}

// Sessions returns the session store used by the session resolver
func (m *Module) Sessions() *resolver.SessionResolver {
	return m.sessions
}

// Config returns the module configuration
func (m *Module) Config() *config.Config {
	return m.config
}
