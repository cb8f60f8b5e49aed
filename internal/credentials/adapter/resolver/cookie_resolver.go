package resolver

import (
	"context"
	"time"

	"storage-gateway/internal/credentials/domain/model"
	"storage-gateway/internal/credentials/domain/repository"
)

// CookieResolver extracts a gateway JWT from a named cookie. Lowest-
// priority resolver in the default chain: browsers that hold neither a
// bearer header nor a live session may still carry the auth cookie.
type CookieResolver struct {
	tokens     repository.TokenService
	cookieName string
}

// NewCookieResolver creates a cookie-token resolver
func NewCookieResolver(tokens repository.TokenService, cookieName string) *CookieResolver {
	return &CookieResolver{tokens: tokens, cookieName: cookieName}
}

// Name identifies the resolver in configuration and logs
func (r *CookieResolver) Name() string {
	return "cookie"
}

// Fetch resolves the credential carried by the auth cookie
func (r *CookieResolver) Fetch(ctx context.Context, rc *model.RequestContext) (*model.Credential, error) {
	token := rc.Cookie(r.cookieName)
	if token == "" {
		return nil, nil
	}

	claims, err := r.tokens.ValidateToken(ctx, token)
	if err != nil {
		return nil, nil
	}

	return &model.Credential{
		Provider:  claims.Provider,
		AccountID: claims.AccountID,
		UserID:    claims.UserID,
	}, nil
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
