package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storage-gateway/internal/credentials/domain/model"
	"storage-gateway/internal/credentials/domain/repository"
	apperrors "storage-gateway/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAccountRepo is an in-memory AccountRepository for tests
type memAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*model.ExternalAccount
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*model.ExternalAccount)}
}

func (r *memAccountRepo) Create(ctx context.Context, account *model.ExternalAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *account
	r.accounts[account.Key()] = &copied
	return nil
}

func (r *memAccountRepo) Get(ctx context.Context, provider, accountID string) (*model.ExternalAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[provider+"/"+accountID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memAccountRepo) ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ExternalAccount
	for _, account := range r.accounts {
		if account.UserID == userID {
			copied := *account
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAccountRepo) UpdateToken(ctx context.Context, provider, accountID string, token *model.RefreshedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[provider+"/"+accountID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	account.AccessToken = token.AccessToken
	account.RefreshToken = token.RefreshToken
	account.IssuedAt = token.IssuedAt
	account.ExpiresIn = token.ExpiresIn
	account.LastRefreshed = time.Now()
	return nil
}

func (r *memAccountRepo) Delete(ctx context.Context, provider, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provider + "/" + accountID
	if _, ok := r.accounts[key]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(r.accounts, key)
	return nil
}

// countingRefresher counts backend calls and can be made slow or failing
type countingRefresher struct {
	calls   atomic.Int64
	delay   time.Duration
	fail    bool
	expires time.Duration
}

func (f *countingRefresher) Refresh(ctx context.Context, account *model.ExternalAccount) (*model.RefreshedToken, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return nil, errors.New("backend says no")
	}
	return &model.RefreshedToken{
		AccessToken:  "fresh-token",
		RefreshToken: "fresh-refresh",
		ExpiresIn:    f.expires,
	}, nil
}

type staticRefreshers struct {
	refresher repository.TokenRefresher
}

func (s *staticRefreshers) RefresherFor(provider string) (repository.TokenRefresher, bool) {
	if s.refresher == nil {
		return nil, false
	}
	return s.refresher, true
}

type staticPolicy struct {
	lead time.Duration
}

func (p *staticPolicy) RefreshLeadTime(provider string) time.Duration {
	return p.lead
}

var testEpoch = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, repo *memAccountRepo, refreshToken string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &model.ExternalAccount{
		Provider:     "drive-x",
		AccountID:    "acct-1",
		UserID:       "user-1",
		AccessToken:  "old-token",
		RefreshToken: refreshToken,
		IssuedAt:     testEpoch,
		ExpiresIn:    3600 * time.Second,
	}))
}

func newTestManager(repo *memAccountRepo, refresher repository.TokenRefresher, at time.Time) *TokenManager {
	return NewTokenManager(
		repo,
		&staticRefreshers{refresher: refresher},
		&staticPolicy{lead: 600 * time.Second},
		nil,
		nil,
	).WithClock(func() time.Time { return at })
}

func TestAcquireValidTokenServedDirectly(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{expires: 3600 * time.Second}
	manager := newTestManager(repo, refresher, testEpoch.Add(1000*time.Second))

	token, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "old-token", token)
	assert.Zero(t, refresher.calls.Load())
}

func TestAcquireNearingExpiryTriggersRefresh(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{expires: 3600 * time.Second}

	// 3200s into a 3600s lifetime with a 600s lead: inside the window.
	manager := newTestManager(repo, refresher, testEpoch.Add(3200*time.Second))

	token, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, int64(1), refresher.calls.Load())

	// The stored account carries the refreshed token afterward.
	stored, err := repo.Get(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", stored.AccessToken)
	assert.Equal(t, "fresh-refresh", stored.RefreshToken)
}

func TestAcquireExpiredTriggersRefresh(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{expires: 3600 * time.Second}
	manager := newTestManager(repo, refresher, testEpoch.Add(3600*time.Second))

	token, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestAcquireNearingExpiryWithoutRefreshTokenServesCurrent(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "")
	refresher := &countingRefresher{}
	manager := newTestManager(repo, refresher, testEpoch.Add(3200*time.Second))

	token, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "old-token", token)
	assert.Zero(t, refresher.calls.Load())
}

func TestAcquireExpiredWithoutRefreshTokenFails(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "")
	manager := newTestManager(repo, &countingRefresher{}, testEpoch.Add(3601*time.Second))

	_, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCredentialExpired, apperrors.KindOf(err))
}

func TestAcquireNonExpiringTokenAlwaysValid(t *testing.T) {
	repo := newMemAccountRepo()
	require.NoError(t, repo.Create(context.Background(), &model.ExternalAccount{
		Provider:    "wiki-z",
		AccountID:   "acct-2",
		AccessToken: "eternal-token",
		IssuedAt:    testEpoch,
		ExpiresIn:   0,
	}))
	refresher := &countingRefresher{}
	manager := newTestManager(repo, refresher, testEpoch.Add(10*365*24*time.Hour))

	token, err := manager.Acquire(context.Background(), "wiki-z", "acct-2")
	require.NoError(t, err)
	assert.Equal(t, "eternal-token", token)
	assert.Zero(t, refresher.calls.Load())
}

func TestAcquireUnknownAccountIsNoCredential(t *testing.T) {
	manager := newTestManager(newMemAccountRepo(), &countingRefresher{}, testEpoch)

	_, err := manager.Acquire(context.Background(), "drive-x", "ghost")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNoCredential, apperrors.KindOf(err))
}

func TestConcurrentAcquireSharesOneRefresh(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{delay: 100 * time.Millisecond, expires: 3600 * time.Second}
	manager := newTestManager(repo, refresher, testEpoch.Add(3200*time.Second))

	const goroutines = 50
	start := make(chan struct{})
	var wg sync.WaitGroup
	tokens := make([]string, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = manager.Acquire(context.Background(), "drive-x", "acct-1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh-token", tokens[i])
	}
	assert.Equal(t, int64(1), refresher.calls.Load(), "all callers must share one backend refresh")
}

func TestRefreshFailureSurfacesToAllWaiters(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{delay: 50 * time.Millisecond, fail: true}
	manager := newTestManager(repo, refresher, testEpoch.Add(3200*time.Second))

	const goroutines = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = manager.Acquire(context.Background(), "drive-x", "acct-1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.Error(t, errs[i])
		assert.Equal(t, apperrors.KindCredentialRefresh, apperrors.KindOf(errs[i]))
	}
	assert.Equal(t, int64(1), refresher.calls.Load())

	// The stored token is untouched by the failed refresh.
	stored, err := repo.Get(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "old-token", stored.AccessToken)
}

func TestStateOfReportsRefreshFailed(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	refresher := &countingRefresher{fail: true}
	manager := newTestManager(repo, refresher, testEpoch.Add(3200*time.Second))

	_, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.Error(t, err)

	state, err := manager.StateOf(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateRefreshFailed, state)
}

func TestStateOfTimestampStates(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")

	manager := newTestManager(repo, &countingRefresher{}, testEpoch.Add(1000*time.Second))
	state, err := manager.StateOf(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateValid, state)

	manager = newTestManager(repo, &countingRefresher{}, testEpoch.Add(3200*time.Second))
	state, err = manager.StateOf(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateNearingExpiry, state)

	manager = newTestManager(repo, &countingRefresher{}, testEpoch.Add(4000*time.Second))
	state, err = manager.StateOf(context.Background(), "drive-x", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, state)
}

func TestRefreshWithoutRefresherFails(t *testing.T) {
	repo := newMemAccountRepo()
	seedAccount(t, repo, "refresh-1")
	manager := NewTokenManager(
		repo,
		&staticRefreshers{refresher: nil},
		&staticPolicy{lead: 600 * time.Second},
		nil,
		nil,
	).WithClock(func() time.Time { return testEpoch.Add(3200 * time.Second) })

	_, err := manager.Acquire(context.Background(), "drive-x", "acct-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCredentialRefresh, apperrors.KindOf(err))
}

func TestConnectAndDisconnect(t *testing.T) {
	repo := newMemAccountRepo()
	manager := newTestManager(repo, &countingRefresher{}, testEpoch)

	require.NoError(t, manager.Connect(context.Background(), &model.ExternalAccount{
		Provider:    "drive-x",
		AccountID:   "acct-9",
		UserID:      "user-1",
		AccessToken: "tok",
		ExpiresIn:   time.Hour,
	}))

	accounts, err := manager.AccountsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Disconnect(context.Background(), "drive-x", "acct-9"))

	_, err = manager.Acquire(context.Background(), "drive-x", "acct-9")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNoCredential, apperrors.KindOf(err))
}

func TestConnectRejectsIncompleteAccount(t *testing.T) {
	manager := newTestManager(newMemAccountRepo(), &countingRefresher{}, testEpoch)

	assert.Error(t, manager.Connect(context.Background(), nil))
	assert.Error(t, manager.Connect(context.Background(), &model.ExternalAccount{Provider: "drive-x"}))
	assert.Error(t, manager.Connect(context.Background(), &model.ExternalAccount{AccountID: "acct-1"}))
}
