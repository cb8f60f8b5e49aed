package usecase

import (
	"context"

	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage/domain/model"
	"storage-gateway/internal/storage/domain/repository"
)

// TokenProvider is the slice of the credential module the gateway needs: a
// currently valid access token per account, and revocation on disconnect.
type TokenProvider interface {
	Acquire(ctx context.Context, provider, accountID string) (string, error)
	Disconnect(ctx context.Context, provider, accountID string) error
}

// GatewayUsecaseInterface defines the composed gateway API
type GatewayUsecaseInterface interface {
	GetMetadata(ctx context.Context, provider, accountID, path string) (*model.CanonicalMetadata, error)
	ListRevisions(ctx context.Context, provider, accountID, path string) ([]*model.CanonicalRevision, error)
	Upload(ctx context.Context, provider, accountID, path string, content []byte) (*model.CanonicalMetadata, error)
	Disconnect(ctx context.Context, provider, accountID string) error
	ListProviders() []*model.ProviderDescriptor
}

// GatewayUsecase composes registry, credential lifecycle, drivers and
// normalization into the uniform metadata/IO contract. Every failure it
// returns is taxonomy-typed; raw driver errors never escape uncategorized.
type GatewayUsecase struct {
	registry   *Registry
	tokens     TokenProvider
	normalizer *Normalizer
	bus        eventbus.EventBusInterface
	log        logger.Logger
}

// NewGatewayUsecase creates the composed gateway
func NewGatewayUsecase(
	registry *Registry,
	tokens TokenProvider,
	normalizer *Normalizer,
	bus eventbus.EventBusInterface,
	log logger.Logger,
) *GatewayUsecase {
	if log == nil {
		log = logger.NewLogger()
	}
	return &GatewayUsecase{
		registry:   registry,
		tokens:     tokens,
		normalizer: normalizer,
		bus:        bus,
		log:        log.WithComponent("gateway"),
	}
}

// GetMetadata returns canonical metadata for the entity at path
func (uc *GatewayUsecase) GetMetadata(ctx context.Context, provider, accountID, path string) (*model.CanonicalMetadata, error) {
	desc, driver, token, err := uc.prepare(ctx, provider, accountID)
	if err != nil {
		return nil, err
	}

	raw, err := driver.FetchMetadata(ctx, accountID, token, path)
	if err != nil {
		return nil, apperrors.Wrap(err, provider)
	}
	if raw == nil {
		return nil, apperrors.NewProviderProtocolError(provider, nil).WithDetail("path", path)
	}

	meta := uc.normalizer.Metadata(ctx, desc, raw)
	uc.publishFetched(ctx, provider, accountID, path, "metadata")
	return meta, nil
}

// ListRevisions returns the canonical revision history for the file at path
func (uc *GatewayUsecase) ListRevisions(ctx context.Context, provider, accountID, path string) ([]*model.CanonicalRevision, error) {
	desc, driver, token, err := uc.prepare(ctx, provider, accountID)
	if err != nil {
		return nil, err
	}
	if !desc.HasCapability(model.CapabilityRevisions) {
		return nil, apperrors.NewValidationError("provider does not expose revision history").WithProvider(provider)
	}

	raws, err := driver.FetchRevisions(ctx, accountID, token, path)
	if err != nil {
		return nil, apperrors.Wrap(err, provider)
	}

	revisions := make([]*model.CanonicalRevision, 0, len(raws))
	for i := range raws {
		revisions = append(revisions, uc.normalizer.Revision(provider, &raws[i]))
	}
	uc.publishFetched(ctx, provider, accountID, path, "revisions")
	return revisions, nil
}

// Upload stores content at path. The size check against the provider's
// declared maximum happens before any transfer is attempted.
func (uc *GatewayUsecase) Upload(ctx context.Context, provider, accountID, path string, content []byte) (*model.CanonicalMetadata, error) {
	desc, err := uc.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	if !desc.HasCapability(model.CapabilityUpload) {
		return nil, apperrors.NewValidationError("provider does not accept uploads").WithProvider(provider)
	}
	if desc.MaxUploadSize > 0 && int64(len(content)) > desc.MaxUploadSize {
		return nil, apperrors.NewEntityTooLargeError(provider, int64(len(content)), desc.MaxUploadSize)
	}

	driver, err := uc.registry.DriverFor(provider)
	if err != nil {
		return nil, err
	}
	sink, ok := driver.(repository.UploadSink)
	if !ok {
		return nil, apperrors.NewValidationError("provider driver does not implement uploads").WithProvider(provider)
	}

	token, err := uc.tokens.Acquire(ctx, provider, accountID)
	if err != nil {
		return nil, err
	}

	raw, err := sink.Upload(ctx, accountID, token, path, content)
	if err != nil {
		return nil, apperrors.Wrap(err, provider)
	}

	return uc.normalizer.Metadata(ctx, desc, raw), nil
}

// Disconnect revokes the account's credential and removes it
func (uc *GatewayUsecase) Disconnect(ctx context.Context, provider, accountID string) error {
	if _, err := uc.registry.Get(provider); err != nil {
		return err
	}
	if err := uc.tokens.Disconnect(ctx, provider, accountID); err != nil {
		return err
	}
	if uc.bus != nil {
		uc.bus.PublishAndForget(ctx, eventbus.NewBasicEventWithSource(
			eventbus.EventTypeAccountDisconnected,
			map[string]interface{}{"provider": provider, "account_id": accountID},
			"gateway",
		))
	}
	return nil
}

// ListProviders returns the registered provider descriptors
func (uc *GatewayUsecase) ListProviders() []*model.ProviderDescriptor {
	return uc.registry.List()
}

// prepare resolves descriptor, driver and a valid token for one operation
func (uc *GatewayUsecase) prepare(ctx context.Context, provider, accountID string) (*model.ProviderDescriptor, repository.Driver, string, error) {
	desc, err := uc.registry.Get(provider)
	if err != nil {
		return nil, nil, "", err
	}
	driver, err := uc.registry.DriverFor(provider)
	if err != nil {
		return nil, nil, "", err
	}
	token, err := uc.tokens.Acquire(ctx, provider, accountID)
	if err != nil {
		return nil, nil, "", err
	}
	return desc, driver, token, nil
}

// publishFetched emits an entity access event for the audit stream
func (uc *GatewayUsecase) publishFetched(ctx context.Context, provider, accountID, path, operation string) {
	if uc.bus == nil {
		return
	}
	uc.bus.PublishAndForget(ctx, eventbus.NewBasicEventWithSource(
		eventbus.EventTypeEntityFetched,
		map[string]interface{}{
			"provider":   provider,
			"account_id": accountID,
			"path":       path,
			"operation":  operation,
		},
		"gateway",
	))
}
