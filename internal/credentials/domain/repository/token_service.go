package repository

import (
	"context"

	"storage-gateway/internal/credentials/domain/model"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the gateway's own bearer tokens, which
// carry a resolved (provider, account) identity.
type TokenService interface {
	GenerateToken(ctx context.Context, cred *model.Credential) (string, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents gateway JWT claims
type Claims struct {
	Provider  string `json:"provider"`
	AccountID string `json:"accountId"`
	UserID    string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}
