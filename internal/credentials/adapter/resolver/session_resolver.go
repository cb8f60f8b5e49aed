package resolver

import (
	"context"
	"encoding/json"
	"errors"

	"storage-gateway/internal/credentials/domain/model"

	"github.com/redis/go-redis/v9"
)

// sessionRecord is the JSON shape stored per session in Redis
type sessionRecord struct {
	Provider  string `json:"provider"`
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id,omitempty"`
}

// SessionResolver looks the request's session id up in Redis. The lookup is
// I/O-bound; the chain awaits it before consulting the next resolver.
type SessionResolver struct {
	client    *redis.Client
	keyPrefix string
}

// NewSessionResolver creates a session-store resolver
func NewSessionResolver(client *redis.Client, keyPrefix string) *SessionResolver {
	return &SessionResolver{client: client, keyPrefix: keyPrefix}
}

// Name identifies the resolver in configuration and logs
func (r *SessionResolver) Name() string {
	return "session"
}

// Fetch resolves the credential bound to the request's session, if any.
// A missing session is a decline; a store failure aborts resolution.
func (r *SessionResolver) Fetch(ctx context.Context, rc *model.RequestContext) (*model.Credential, error) {
	if rc.SessionID == "" {
		return nil, nil
	}

	raw, err := r.client.Get(ctx, r.keyPrefix+rc.SessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	if record.Provider == "" || record.AccountID == "" {
		return nil, nil
	}

	return &model.Credential{
		Provider:  record.Provider,
		AccountID: record.AccountID,
		UserID:    record.UserID,
	}, nil
}

// StoreSession binds a credential to a session id. Used by the HTTP surface
// after a successful connect.
func (r *SessionResolver) StoreSession(ctx context.Context, sessionID string, cred *model.Credential, ttlSeconds int64) error {
	payload, err := json.Marshal(sessionRecord{
		Provider:  cred.Provider,
		AccountID: cred.AccountID,
		UserID:    cred.UserID,
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+sessionID, payload, secondsToDuration(ttlSeconds)).Err()
}
