package http

import (
	"context"

	credmodel "storage-gateway/internal/credentials/domain/model"
	credusecase "storage-gateway/internal/credentials/usecase"
	"storage-gateway/internal/shared/contextkeys"
	apperrors "storage-gateway/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// AuthMiddleware authenticates gateway requests through the resolver chain
type AuthMiddleware struct {
	chain             *credusecase.ResolverChain
	sessionCookieName string
}

// NewAuthMiddleware creates the resolver-chain middleware
func NewAuthMiddleware(chain *credusecase.ResolverChain, sessionCookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		chain:             chain,
		sessionCookieName: sessionCookieName,
	}
}

// CORS middleware for browser clients
func (m *AuthMiddleware) CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

// RequestID middleware
func (m *AuthMiddleware) RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		ContextKey: string(contextkeys.RequestIDKey),
	})
}

// Resolve runs the resolver chain, checks the credential against the account
// named by the route, and injects it into the request context. A credential
// for a different provider or account must not unlock this one.
func (m *AuthMiddleware) Resolve() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := m.requestContext(c)

		cred, err := m.chain.Resolve(c.UserContext(), rc)
		if err != nil {
			return renderError(c, err)
		}

		provider := c.Params("provider")
		accountID := c.Params("accountID")
		if cred.Provider != provider || cred.AccountID != accountID {
			return renderError(c, apperrors.NewCredentialScopeError(provider, accountID))
		}

		ctx := c.UserContext()
		ctx = context.WithValue(ctx, contextkeys.ProviderKey, cred.Provider)
		ctx = context.WithValue(ctx, contextkeys.AccountIDKey, cred.AccountID)
		if cred.UserID != "" {
			ctx = context.WithValue(ctx, contextkeys.UserIDKey, cred.UserID)
		}
		c.SetUserContext(ctx)

		c.Locals("credential", cred)
		return c.Next()
	}
}

// requestContext builds the transport-neutral request surface the resolvers
// inspect. Resolvers never see fiber types.
func (m *AuthMiddleware) requestContext(c *fiber.Ctx) *credmodel.RequestContext {
	cookies := make(map[string]string)
	c.Request().Header.VisitAllCookie(func(key, value []byte) {
		cookies[string(key)] = string(value)
	})

	query := make(map[string]string)
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		query[string(key)] = string(value)
	})

	return &credmodel.RequestContext{
		AuthorizationHeader: c.Get(fiber.HeaderAuthorization),
		Cookies:             cookies,
		Query:               query,
		SessionID:           c.Cookies(m.sessionCookieName),
		ProviderHint:        c.Params("provider"),
	}
}

// Credential returns the resolved credential stored by Resolve
func Credential(c *fiber.Ctx) (*credmodel.Credential, bool) {
	cred, ok := c.Locals("credential").(*credmodel.Credential)
	return cred, ok
}
