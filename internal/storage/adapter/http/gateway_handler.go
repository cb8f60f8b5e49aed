// Package http exposes the gateway's uniform metadata and IO contract over
// REST. Handlers stay thin: request shaping in, taxonomy error mapping out.
package http

import (
	"context"
	"errors"
	"time"

	credmodel "storage-gateway/internal/credentials/domain/model"
	credusecase "storage-gateway/internal/credentials/usecase"
	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionStore binds a resolved credential to a browser session after a
// successful connect.
type SessionStore interface {
	StoreSession(ctx context.Context, sessionID string, cred *credmodel.Credential, ttlSeconds int64) error
}

// GatewayHTTPHandler handles gateway REST requests
type GatewayHTTPHandler struct {
	gateway           usecase.GatewayUsecaseInterface
	manager           credusecase.TokenManagerInterface
	sessions          SessionStore
	sessionCookieName string
	sessionTTL        time.Duration
	log               logger.Logger
}

// NewGatewayHTTPHandler creates the REST handler. sessions may be nil when
// the deployment serves API clients only.
func NewGatewayHTTPHandler(
	gateway usecase.GatewayUsecaseInterface,
	manager credusecase.TokenManagerInterface,
	sessions SessionStore,
	sessionCookieName string,
	sessionTTL time.Duration,
	log logger.Logger,
) *GatewayHTTPHandler {
	if log == nil {
		log = logger.NewLogger()
	}
	return &GatewayHTTPHandler{
		gateway:           gateway,
		manager:           manager,
		sessions:          sessions,
		sessionCookieName: sessionCookieName,
		sessionTTL:        sessionTTL,
		log:               log.WithComponent("gateway_http"),
	}
}

// SetupRoutes registers gateway routes. Provider listing stays public;
// everything under an account requires a resolved credential.
func (h *GatewayHTTPHandler) SetupRoutes(router fiber.Router, auth *AuthMiddleware) {
	api := router.Group("/api/v1")
	api.Use(auth.RequestID())
	api.Use(auth.CORS())

	api.Get("/providers", h.ListProviders)
	api.Post("/accounts", h.Connect)

	protected := api.Group("/providers/:provider/accounts/:accountID", auth.Resolve())
	protected.Get("/metadata", h.GetMetadata)
	protected.Get("/revisions", h.ListRevisions)
	protected.Post("/content", h.Upload)
	protected.Get("/credential", h.CredentialState)
	protected.Delete("/", h.Disconnect)
}

// ListProviders returns the registered provider descriptors
func (h *GatewayHTTPHandler) ListProviders(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"providers": h.gateway.ListProviders()})
}

// GetMetadata returns canonical metadata for one entity
func (h *GatewayHTTPHandler) GetMetadata(c *fiber.Ctx) error {
	provider, accountID, path, err := h.entityParams(c)
	if err != nil {
		return renderError(c, err)
	}

	meta, err := h.gateway.GetMetadata(c.UserContext(), provider, accountID, path)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(meta)
}

// ListRevisions returns the canonical revision history for one file
func (h *GatewayHTTPHandler) ListRevisions(c *fiber.Ctx) error {
	provider, accountID, path, err := h.entityParams(c)
	if err != nil {
		return renderError(c, err)
	}

	revisions, err := h.gateway.ListRevisions(c.UserContext(), provider, accountID, path)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"revisions": revisions})
}

// Upload stores the request body at path
func (h *GatewayHTTPHandler) Upload(c *fiber.Ctx) error {
	provider, accountID, path, err := h.entityParams(c)
	if err != nil {
		return renderError(c, err)
	}

	meta, err := h.gateway.Upload(c.UserContext(), provider, accountID, path, c.Body())
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(meta)
}

// CredentialState reports the account's credential lifecycle state
func (h *GatewayHTTPHandler) CredentialState(c *fiber.Ctx) error {
	provider := c.Params("provider")
	accountID := c.Params("accountID")

	state, err := h.manager.StateOf(c.UserContext(), provider, accountID)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"provider":  provider,
		"accountId": accountID,
		"state":     state,
	})
}

// Disconnect revokes and removes the account
func (h *GatewayHTTPHandler) Disconnect(c *fiber.Ctx) error {
	provider := c.Params("provider")
	accountID := c.Params("accountID")

	if err := h.gateway.Disconnect(c.UserContext(), provider, accountID); err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"message": "account disconnected"})
}

// connectRequest is the payload for connecting an external account
type connectRequest struct {
	Provider     string   `json:"provider"`
	AccountID    string   `json:"accountId"`
	UserID       string   `json:"userId"`
	DisplayName  string   `json:"displayName"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Scopes       []string `json:"scopes"`
	ExpiresInSec int64    `json:"expiresInSeconds"`
}

// Connect stores a newly authorized external account and binds it to a new
// browser session.
func (h *GatewayHTTPHandler) Connect(c *fiber.Ctx) error {
	var req connectRequest
	if err := c.BodyParser(&req); err != nil {
		return renderError(c, apperrors.NewValidationError("invalid request body"))
	}
	if req.Provider == "" || req.AccountID == "" || req.AccessToken == "" {
		return renderError(c, apperrors.NewValidationError("provider, accountId and accessToken are required"))
	}

	account := &credmodel.ExternalAccount{
		Provider:     req.Provider,
		AccountID:    req.AccountID,
		UserID:       req.UserID,
		DisplayName:  req.DisplayName,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Scopes:       req.Scopes,
		ExpiresIn:    time.Duration(req.ExpiresInSec) * time.Second,
	}
	if err := h.manager.Connect(c.UserContext(), account); err != nil {
		return renderError(c, err)
	}

	response := fiber.Map{
		"provider":  account.Provider,
		"accountId": account.AccountID,
	}

	if h.sessions != nil {
		sessionID := uuid.NewString()
		cred := &credmodel.Credential{
			Provider:  account.Provider,
			AccountID: account.AccountID,
			UserID:    account.UserID,
		}
		if err := h.sessions.StoreSession(c.UserContext(), sessionID, cred, int64(h.sessionTTL.Seconds())); err != nil {
			h.log.Errorf("failed to store session for %s/%s: %v", account.Provider, account.AccountID, err)
		} else {
			c.Cookie(&fiber.Cookie{
				Name:     h.sessionCookieName,
				Value:    sessionID,
				MaxAge:   int(h.sessionTTL.Seconds()),
				HTTPOnly: true,
				SameSite: "Lax",
			})
			response["sessionId"] = sessionID
		}
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

// entityParams extracts and validates the identifying request parameters
func (h *GatewayHTTPHandler) entityParams(c *fiber.Ctx) (provider, accountID, path string, err error) {
	provider = c.Params("provider")
	accountID = c.Params("accountID")
	path = c.Query("path")
	if path == "" {
		return "", "", "", apperrors.NewValidationError("path query parameter is required")
	}
	return provider, accountID, path, nil
}

// renderError maps a taxonomy error onto the HTTP surface
func renderError(c *fiber.Ctx, err error) error {
	var gwErr *apperrors.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = apperrors.NewInternalError("internal server error")
	}
	return c.Status(apperrors.HTTPCode(gwErr)).JSON(fiber.Map{"error": gwErr})
}
