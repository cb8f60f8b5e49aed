package resolver

import (
	"context"
	"strings"

	"storage-gateway/internal/credentials/domain/model"
	"storage-gateway/internal/credentials/domain/repository"
)

// BearerResolver extracts a gateway-issued JWT from the Authorization
// header. An absent or non-bearer header is a decline, not an error; a
// present but invalid token is also a decline so lower-priority resolvers
// can still apply.
type BearerResolver struct {
	tokens repository.TokenService
}

// NewBearerResolver creates a bearer-token resolver
func NewBearerResolver(tokens repository.TokenService) *BearerResolver {
	return &BearerResolver{tokens: tokens}
}

// Name identifies the resolver in configuration and logs
func (r *BearerResolver) Name() string {
	return "bearer"
}

// Fetch resolves the credential carried by a Bearer authorization header
func (r *BearerResolver) Fetch(ctx context.Context, rc *model.RequestContext) (*model.Credential, error) {
	header := rc.AuthorizationHeader
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}

	claims, err := r.tokens.ValidateToken(ctx, strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, nil
	}

	return &model.Credential{
		Provider:  claims.Provider,
		AccountID: claims.AccountID,
		UserID:    claims.UserID,
	}, nil
}
