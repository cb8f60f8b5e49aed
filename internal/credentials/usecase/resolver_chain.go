package usecase

import (
	"context"

	"storage-gateway/internal/credentials/domain/model"
	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/shared/logger"
)

// Resolver is one credential-fetch strategy. Fetch returns (nil, nil) when
// the resolver has nothing to offer for this request, letting the chain
// continue. A resolver may block on I/O (session store, database); the
// chain awaits it before moving on.
type Resolver interface {
	Name() string
	Fetch(ctx context.Context, rc *model.RequestContext) (*model.Credential, error)
}

// ResolverChain tries a prioritized, ordered set of resolvers. The order is
// configuration-driven, fixed at construction, and never parallelized:
// a higher-priority resolver's empty result must not race a lower-priority
// resolver's success.
type ResolverChain struct {
	resolvers []Resolver
	log       logger.Logger
}

// NewResolverChain creates a chain over the given resolvers, in priority
// order. The chain itself is stateless.
func NewResolverChain(log logger.Logger, resolvers ...Resolver) *ResolverChain {
	if log == nil {
		log = logger.NewLogger()
	}
	return &ResolverChain{
		resolvers: resolvers,
		log:       log.WithComponent("resolver_chain"),
	}
}

// Resolve invokes each resolver in order and short-circuits on the first
// non-nil credential. If every resolver declines, resolution fails with
// NO_CREDENTIAL. A resolver error aborts the chain immediately so that
// precedence stays deterministic.
func (c *ResolverChain) Resolve(ctx context.Context, rc *model.RequestContext) (*model.Credential, error) {
	if rc == nil {
		return nil, apperrors.NewValidationError("request context is required")
	}

	for _, resolver := range c.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cred, err := resolver.Fetch(ctx, rc)
		if err != nil {
			c.log.Errorf("resolver %s failed: %v", resolver.Name(), err)
			return nil, err
		}
		if cred != nil {
			cred.Source = resolver.Name()
			c.log.Debugf("resolver %s produced credential for provider %s", resolver.Name(), cred.Provider)
			return cred, nil
		}
	}

	return nil, apperrors.NewNoCredentialError()
}

// Resolvers returns the configured resolver names, in evaluation order
func (c *ResolverChain) Resolvers() []string {
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}
