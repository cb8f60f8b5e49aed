// Package memory provides an in-process driver backed by a map. It serves
// local development and integration tests without network access, and doubles
// as the reference implementation of the driver contract.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/storage/domain/model"
)

const providerName = "memory"

// entry is one stored entity plus its revision history
type entry struct {
	record    model.RawRecord
	revisions []model.RawRecord
	content   []byte
}

// Driver is an in-memory backend. Safe for concurrent use.
type Driver struct {
	mu      sync.RWMutex
	entries map[string]map[string]*entry // accountID -> path -> entry

	// refreshCalls counts RefreshToken invocations, observable by callers
	// that need to assert refresh behavior.
	refreshCalls atomic.Int64

	// failRefresh makes RefreshToken fail until cleared
	failRefresh atomic.Bool

	tokenLifetime time.Duration
}

// NewDriver creates an empty in-memory driver
func NewDriver(tokenLifetime time.Duration) *Driver {
	return &Driver{
		entries:       make(map[string]map[string]*entry),
		tokenLifetime: tokenLifetime,
	}
}

// Put stores a record under the account, replacing any previous entry
func (d *Driver) Put(accountID string, record model.RawRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bucket := d.entries[accountID]
	if bucket == nil {
		bucket = make(map[string]*entry)
		d.entries[accountID] = bucket
	}
	bucket[record.Path] = &entry{record: record}
}

// PutRevisions stores the revision history for a path
func (d *Driver) PutRevisions(accountID, path string, revisions []model.RawRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bucket := d.entries[accountID]
	if bucket == nil {
		return
	}
	if e, ok := bucket[path]; ok {
		e.revisions = revisions
	}
}

// FetchMetadata returns the record stored at path
func (d *Driver) FetchMetadata(ctx context.Context, accountID, token, path string) (*model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.lookup(accountID, path)
	if !ok {
		return nil, apperrors.NewEntityNotFoundError(providerName, path)
	}
	record := e.record
	return &record, nil
}

// FetchRevisions returns the revision history stored for path, newest first
func (d *Driver) FetchRevisions(ctx context.Context, accountID, token, path string) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.lookup(accountID, path)
	if !ok {
		return nil, apperrors.NewEntityNotFoundError(providerName, path)
	}
	out := make([]model.RawRecord, len(e.revisions))
	copy(out, e.revisions)
	return out, nil
}

// RefreshToken mints a new synthetic token pair
func (d *Driver) RefreshToken(ctx context.Context, accountID, refreshToken string) (*model.RefreshResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	calls := d.refreshCalls.Add(1)
	if d.failRefresh.Load() {
		return nil, apperrors.NewCredentialRefreshError(providerName, fmt.Errorf("refresh disabled for account %s", accountID))
	}

	now := time.Now()
	return &model.RefreshResult{
		AccessToken:  fmt.Sprintf("memory-access-%s-%d", accountID, calls),
		RefreshToken: refreshToken,
		IssuedAt:     now,
		ExpiresIn:    d.tokenLifetime,
	}, nil
}

// Classify returns the record's native type code
func (d *Driver) Classify(raw *model.RawRecord) int {
	return raw.TypeCode
}

// Upload stores content at path and returns the resulting record
func (d *Driver) Upload(ctx context.Context, accountID, token, path string, content []byte) (*model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	bucket := d.entries[accountID]
	if bucket == nil {
		bucket = make(map[string]*entry)
		d.entries[accountID] = bucket
	}

	record := model.RawRecord{
		Name:     baseName(path),
		Path:     path,
		Size:     int64(len(content)),
		Modified: time.Now(),
	}
	bucket[path] = &entry{record: record, content: content}
	out := record
	return &out, nil
}

// RefreshCalls reports how many refresh calls the driver has served
func (d *Driver) RefreshCalls() int64 {
	return d.refreshCalls.Load()
}

// SetRefreshFailing toggles forced refresh failures
func (d *Driver) SetRefreshFailing(fail bool) {
	d.failRefresh.Store(fail)
}

func (d *Driver) lookup(accountID, path string) (*entry, bool) {
	bucket, ok := d.entries[accountID]
	if !ok {
		return nil, false
	}
	e, ok := bucket[path]
	return e, ok
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
