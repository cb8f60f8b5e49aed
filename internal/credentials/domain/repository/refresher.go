package repository

import (
	"context"
	"time"

	"storage-gateway/internal/credentials/domain/model"
)

// TokenRefresher performs the backend refresh call for one provider. The
// storage module bridges its drivers into this interface so the credential
// module stays ignorant of driver wiring.
type TokenRefresher interface {
	Refresh(ctx context.Context, account *model.ExternalAccount) (*model.RefreshedToken, error)
}

// RefresherRegistry resolves the refresher for a provider short name
type RefresherRegistry interface {
	RefresherFor(provider string) (TokenRefresher, bool)
}

// ProviderPolicy exposes per-provider token lifecycle configuration.
// Lead time is how long before declared expiry a token is proactively
// refreshed; it is configuration, never hardcoded.
type ProviderPolicy interface {
	RefreshLeadTime(provider string) time.Duration
}
