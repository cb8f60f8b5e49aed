package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CredentialState is the derived lifecycle state of an account's token.
// It is computed from timestamps at read time; only the token manager
// drives transitions.
type CredentialState string

const (
	StateValid         CredentialState = "valid"
	StateNearingExpiry CredentialState = "nearing-expiry"
	StateExpired       CredentialState = "expired"
	StateRefreshing    CredentialState = "refreshing"
	StateRefreshFailed CredentialState = "refresh-failed"
)

// ExternalAccount is one authenticated identity on one backend. The pair
// (Provider, AccountID) is unique. Token and timestamp fields are mutated
// only by the token manager on refresh, or destroyed on disconnect.
type ExternalAccount struct {
	ObjectID     primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Provider     string             `json:"provider" bson:"provider"`
	AccountID    string             `json:"accountId" bson:"account_id"`
	UserID       string             `json:"userId,omitempty" bson:"user_id,omitempty"`
	DisplayName  string             `json:"displayName,omitempty" bson:"display_name,omitempty"`
	AccessToken  string             `json:"-" bson:"access_token"`
	RefreshToken string             `json:"-" bson:"refresh_token,omitempty"`
	Scopes       []string           `json:"scopes,omitempty" bson:"scopes,omitempty"`

	// IssuedAt and ExpiresIn describe the current access token. ExpiresIn 0
	// is the sentinel for tokens that never expire.
	IssuedAt      time.Time     `json:"issued_at" bson:"issued_at"`
	ExpiresIn     time.Duration `json:"expires_in" bson:"expires_in"`
	LastRefreshed time.Time     `json:"last_refreshed,omitempty" bson:"last_refreshed,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Key identifies the account for locking and single-flight purposes
func (a *ExternalAccount) Key() string {
	return a.Provider + "/" + a.AccountID
}

// ExpiresAt returns the declared expiry instant, or the zero time for
// non-expiring tokens.
func (a *ExternalAccount) ExpiresAt() time.Time {
	if a.ExpiresIn == 0 {
		return time.Time{}
	}
	return a.IssuedAt.Add(a.ExpiresIn)
}

// StateAt computes the timestamp-derived credential state at the given
// instant using the provider's refresh lead time. The refreshing and
// refresh-failed states are runtime overlays owned by the token manager.
func (a *ExternalAccount) StateAt(now time.Time, lead time.Duration) CredentialState {
	if a.ExpiresIn == 0 {
		return StateValid
	}
	expiry := a.IssuedAt.Add(a.ExpiresIn)
	if !now.Before(expiry) {
		return StateExpired
	}
	if lead > 0 && !now.Before(expiry.Add(-lead)) {
		return StateNearingExpiry
	}
	return StateValid
}

// RefreshedToken is the outcome of a successful token refresh, applied to
// the account by the token manager.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresIn    time.Duration
}
