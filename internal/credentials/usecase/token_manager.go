package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"storage-gateway/internal/credentials/domain/model"
	"storage-gateway/internal/credentials/domain/repository"
	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"

	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a single backend refresh call. The refresh runs on
// a detached context because waiters other than the triggering caller may
// depend on its outcome.
const refreshTimeout = 30 * time.Second

// TokenManagerInterface defines the credential lifecycle contract
type TokenManagerInterface interface {
	Acquire(ctx context.Context, provider, accountID string) (string, error)
	Disconnect(ctx context.Context, provider, accountID string) error
	StateOf(ctx context.Context, provider, accountID string) (model.CredentialState, error)
	Connect(ctx context.Context, account *model.ExternalAccount) error
	AccountsForUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error)
}

// TokenManager hands out currently valid access tokens, refreshing
// transparently and exactly once per refresh need under concurrency.
// It is the only writer of token and timestamp fields on ExternalAccount.
type TokenManager struct {
	accounts   repository.AccountRepository
	refreshers repository.RefresherRegistry
	policy     repository.ProviderPolicy
	bus        eventbus.EventBusInterface
	log        logger.Logger

	// now is injectable so lifecycle arithmetic is testable
	now func() time.Time

	flight singleflight.Group

	mu         sync.Mutex
	writeLocks map[string]*sync.Mutex
	refreshing map[string]bool
	lastError  map[string]error
}

// NewTokenManager creates a token manager over the given collaborators
func NewTokenManager(
	accounts repository.AccountRepository,
	refreshers repository.RefresherRegistry,
	policy repository.ProviderPolicy,
	bus eventbus.EventBusInterface,
	log logger.Logger,
) *TokenManager {
	if log == nil {
		log = logger.NewLogger()
	}
	return &TokenManager{
		accounts:   accounts,
		refreshers: refreshers,
		policy:     policy,
		bus:        bus,
		log:        log.WithComponent("token_manager"),
		now:        time.Now,
		writeLocks: make(map[string]*sync.Mutex),
		refreshing: make(map[string]bool),
		lastError:  make(map[string]error),
	}
}

// WithClock replaces the time source. Test hook.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// Acquire returns a currently valid access token for the account. It never
// returns a token past its declared expiry: the result is a valid token, a
// CREDENTIAL_REFRESH failure, or a CREDENTIAL_EXPIRED failure. Accounts
// with no declared expiry are always valid.
func (m *TokenManager) Acquire(ctx context.Context, provider, accountID string) (string, error) {
	account, err := m.lookup(ctx, provider, accountID)
	if err != nil {
		return "", err
	}

	lead := m.policy.RefreshLeadTime(provider)
	switch account.StateAt(m.now(), lead) {
	case model.StateValid:
		return account.AccessToken, nil

	case model.StateNearingExpiry:
		if account.RefreshToken == "" {
			// No refresh path; the token is still inside its lifetime, so
			// keep serving it until it actually expires.
			return account.AccessToken, nil
		}
		return m.refresh(ctx, account)

	case model.StateExpired:
		if account.RefreshToken == "" {
			return "", apperrors.NewCredentialExpiredError(provider, accountID)
		}
		return m.refresh(ctx, account)

	default:
		return "", apperrors.NewInternalError("unexpected credential state").
			WithProvider(provider).WithDetail("account_id", accountID)
	}
}

// refresh performs a single-flight token refresh for the account. Concurrent
// callers for the same account share one backend call and one outcome; a
// failure is surfaced to every waiter as CREDENTIAL_REFRESH.
func (m *TokenManager) refresh(ctx context.Context, account *model.ExternalAccount) (string, error) {
	key := account.Key()

	result, err, shared := m.flight.Do(key, func() (interface{}, error) {
		m.setRefreshing(key, true)
		defer m.setRefreshing(key, false)

		// Detached context: an in-flight refresh is not cancelled because the
		// triggering request was abandoned; other waiters depend on it.
		refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		return m.doRefresh(refreshCtx, account)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.log.WithProvider(account.Provider).Debugf("refresh for %s shared with concurrent callers", key)
	}
	// Honor the caller's cancellation for its own result delivery; the
	// refresh outcome itself is already persisted.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	token, ok := result.(string)
	if !ok {
		return "", apperrors.NewInternalError("refresh produced no token").WithProvider(account.Provider)
	}
	return token, nil
}

// doRefresh executes the backend call and persists the outcome
func (m *TokenManager) doRefresh(ctx context.Context, account *model.ExternalAccount) (interface{}, error) {
	key := account.Key()
	provider := account.Provider

	refresher, ok := m.refreshers.RefresherFor(provider)
	if !ok {
		err := apperrors.NewCredentialRefreshError(provider, errors.New("no refresher available for provider"))
		m.recordFailure(key, err)
		return nil, err
	}

	m.log.WithProvider(provider).Infof("refreshing token for account %s", account.AccountID)

	refreshed, err := refresher.Refresh(ctx, account)
	if err != nil {
		gwErr := apperrors.NewCredentialRefreshError(provider, err).WithDetail("account_id", account.AccountID)
		m.recordFailure(key, gwErr)
		m.publish(ctx, eventbus.EventTypeCredentialRefreshFailed, account, err)
		return nil, gwErr
	}
	if refreshed == nil || refreshed.AccessToken == "" {
		gwErr := apperrors.NewCredentialRefreshError(provider, errors.New("provider returned an empty token"))
		m.recordFailure(key, gwErr)
		m.publish(ctx, eventbus.EventTypeCredentialRefreshFailed, account, gwErr)
		return nil, gwErr
	}
	if refreshed.IssuedAt.IsZero() {
		refreshed.IssuedAt = m.now()
	}
	if refreshed.RefreshToken == "" {
		// Providers that rotate refresh tokens return a new one; the rest
		// keep the original valid.
		refreshed.RefreshToken = account.RefreshToken
	}

	// Per-account write serialization: two refreshes must never race and
	// overwrite each other's newer token.
	lock := m.writeLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := m.accounts.UpdateToken(ctx, account.Provider, account.AccountID, refreshed); err != nil {
		gwErr := apperrors.NewCredentialRefreshError(provider, err)
		m.recordFailure(key, gwErr)
		return nil, gwErr
	}

	m.clearFailure(key)
	m.publish(ctx, eventbus.EventTypeCredentialRefreshed, account, nil)
	m.log.WithProvider(provider).Infof("token refreshed for account %s", account.AccountID)
	return refreshed.AccessToken, nil
}

// StateOf reports the account's credential state, including the refreshing
// and refresh-failed overlays the manager tracks at runtime.
func (m *TokenManager) StateOf(ctx context.Context, provider, accountID string) (model.CredentialState, error) {
	account, err := m.lookup(ctx, provider, accountID)
	if err != nil {
		return "", err
	}

	key := account.Key()
	m.mu.Lock()
	inFlight := m.refreshing[key]
	lastErr := m.lastError[key]
	m.mu.Unlock()

	if inFlight {
		return model.StateRefreshing, nil
	}

	state := account.StateAt(m.now(), m.policy.RefreshLeadTime(provider))
	if lastErr != nil && state != model.StateValid {
		return model.StateRefreshFailed, nil
	}
	return state, nil
}

// Connect stores a newly authorized account
func (m *TokenManager) Connect(ctx context.Context, account *model.ExternalAccount) error {
	if account == nil || account.Provider == "" || account.AccountID == "" {
		return apperrors.NewValidationError("provider and account id are required")
	}
	if account.IssuedAt.IsZero() {
		account.IssuedAt = m.now()
	}
	return m.accounts.Create(ctx, account)
}

// Disconnect revokes and removes the account
func (m *TokenManager) Disconnect(ctx context.Context, provider, accountID string) error {
	account, err := m.lookup(ctx, provider, accountID)
	if err != nil {
		return err
	}

	key := account.Key()
	if err := m.accounts.Delete(ctx, provider, accountID); err != nil {
		return apperrors.NewInternalError("failed to remove account").WithProvider(provider).WithCause(err)
	}

	m.mu.Lock()
	delete(m.writeLocks, key)
	delete(m.refreshing, key)
	delete(m.lastError, key)
	m.mu.Unlock()

	m.log.WithProvider(provider).Infof("account %s disconnected", accountID)
	return nil
}

// AccountsForUser lists a user's connected accounts
func (m *TokenManager) AccountsForUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error) {
	return m.accounts.ListByUser(ctx, userID)
}

// lookup fetches the account, mapping a missing record to NO_CREDENTIAL
func (m *TokenManager) lookup(ctx context.Context, provider, accountID string) (*model.ExternalAccount, error) {
	account, err := m.accounts.Get(ctx, provider, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewNoCredentialError().
				WithProvider(provider).WithDetail("account_id", accountID)
		}
		return nil, apperrors.NewInternalError("account lookup failed").WithProvider(provider).WithCause(err)
	}
	return account, nil
}

func (m *TokenManager) writeLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, exists := m.writeLocks[key]
	if !exists {
		lock = &sync.Mutex{}
		m.writeLocks[key] = lock
	}
	return lock
}

func (m *TokenManager) setRefreshing(key string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v {
		m.refreshing[key] = true
		delete(m.lastError, key)
	} else {
		delete(m.refreshing, key)
	}
}

func (m *TokenManager) recordFailure(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError[key] = err
}

func (m *TokenManager) clearFailure(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastError, key)
}

func (m *TokenManager) publish(ctx context.Context, eventType string, account *model.ExternalAccount, cause error) {
	if m.bus == nil {
		return
	}
	data := map[string]interface{}{
		"provider":   account.Provider,
		"account_id": account.AccountID,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	m.bus.PublishAndForget(ctx, eventbus.NewBasicEventWithSource(eventType, data, "token_manager"))
}
