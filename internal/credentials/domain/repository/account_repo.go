package repository

import (
	"context"
	"errors"

	"storage-gateway/internal/credentials/domain/model"
)

// ErrAccountNotFound is returned when no account exists for a
// (provider, account id) pair.
var ErrAccountNotFound = errors.New("external account not found")

// AccountRepository persists ExternalAccount records. Implementations must
// enforce uniqueness of (provider, account_id) and are expected to encrypt
// token material at rest.
type AccountRepository interface {
	Create(ctx context.Context, account *model.ExternalAccount) error
	Get(ctx context.Context, provider, accountID string) (*model.ExternalAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error)

	// UpdateToken applies a refresh outcome to the stored account. Only the
	// token manager calls this, and it serializes calls per account.
	UpdateToken(ctx context.Context, provider, accountID string, token *model.RefreshedToken) error

	// Delete removes the account on explicit disconnect
	Delete(ctx context.Context, provider, accountID string) error
}
