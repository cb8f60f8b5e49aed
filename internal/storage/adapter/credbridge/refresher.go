// Package credbridge adapts registered storage drivers into the credential
// module's refresher contract. The bridge keeps the dependency one-way: the
// credential module sees interfaces, never drivers.
package credbridge

import (
	"context"

	credmodel "storage-gateway/internal/credentials/domain/model"
	credrepo "storage-gateway/internal/credentials/domain/repository"
	"storage-gateway/internal/storage/domain/repository"
	"storage-gateway/internal/storage/usecase"
)

// DriverRefresherRegistry resolves refreshers out of the provider registry
type DriverRefresherRegistry struct {
	registry *usecase.Registry
}

// NewDriverRefresherRegistry creates the bridge over a provider registry
func NewDriverRefresherRegistry(registry *usecase.Registry) *DriverRefresherRegistry {
	return &DriverRefresherRegistry{registry: registry}
}

// RefresherFor returns a refresher backed by the provider's driver
func (b *DriverRefresherRegistry) RefresherFor(provider string) (credrepo.TokenRefresher, bool) {
	driver, err := b.registry.DriverFor(provider)
	if err != nil {
		return nil, false
	}
	return &driverRefresher{registry: b.registry, provider: provider, driver: driver}, true
}

// driverRefresher runs one provider's refresh call and applies the
// descriptor's declared token lifetime when the backend omits one.
type driverRefresher struct {
	registry *usecase.Registry
	provider string
	driver   repository.Driver
}

func (r *driverRefresher) Refresh(ctx context.Context, account *credmodel.ExternalAccount) (*credmodel.RefreshedToken, error) {
	result, err := r.driver.RefreshToken(ctx, account.AccountID, account.RefreshToken)
	if err != nil {
		return nil, err
	}

	expiresIn := result.ExpiresIn
	if expiresIn == 0 {
		if desc, descErr := r.registry.Get(r.provider); descErr == nil {
			expiresIn = desc.ExpiresIn.Std()
		}
	}

	return &credmodel.RefreshedToken{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		IssuedAt:     result.IssuedAt,
		ExpiresIn:    expiresIn,
	}, nil
}
