package usecase

import (
	"context"
	"testing"
	"time"

	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/storage/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriver satisfies the driver contract with canned responses
type stubDriver struct {
	record    *model.RawRecord
	revisions []model.RawRecord
	refreshed *model.RefreshResult
	err       error
}

func (d *stubDriver) FetchMetadata(ctx context.Context, accountID, token, path string) (*model.RawRecord, error) {
	return d.record, d.err
}

func (d *stubDriver) FetchRevisions(ctx context.Context, accountID, token, path string) ([]model.RawRecord, error) {
	return d.revisions, d.err
}

func (d *stubDriver) RefreshToken(ctx context.Context, accountID, refreshToken string) (*model.RefreshResult, error) {
	return d.refreshed, d.err
}

func (d *stubDriver) Classify(raw *model.RawRecord) int {
	return raw.TypeCode
}

func descriptorNamed(shortName string) *model.ProviderDescriptor {
	return &model.ProviderDescriptor{
		ShortName:       shortName,
		FullName:        "Provider " + shortName,
		OwnerTypes:      []model.OwnerType{model.OwnerTypeUser},
		Categories:      []model.Category{model.CategoryStorage},
		Capabilities:    []model.Capability{model.CapabilityFileListing},
		ExpiresIn:       model.Duration(time.Hour),
		RefreshLeadTime: model.Duration(5 * time.Minute),
		FolderTypeCodes: []int{3, 4},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry(nil)

	desc := descriptorNamed("drive-x")
	require.NoError(t, registry.Register(desc, &stubDriver{}))

	got, err := registry.Get("drive-x")
	require.NoError(t, err)
	assert.Equal(t, desc, got)

	driver, err := registry.DriverFor("drive-x")
	require.NoError(t, err)
	assert.NotNil(t, driver)
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(descriptorNamed("drive-x"), &stubDriver{}))

	err := registry.Register(descriptorNamed("drive-x"), &stubDriver{})
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateProvider(err))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Get("nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnknownProvider, apperrors.KindOf(err))

	_, err = registry.DriverFor("nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnknownProvider, apperrors.KindOf(err))
}

func TestRegistryRejectsInvalidDescriptor(t *testing.T) {
	registry := NewRegistry(nil)

	desc := descriptorNamed("bad")
	desc.FullName = ""
	err := registry.Register(desc, &stubDriver{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Error(t, registry.Register(nil, &stubDriver{}))
	assert.Error(t, registry.Register(descriptorNamed("no-driver"), nil))
}

func TestRegistryListReturnsFreshSlice(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(descriptorNamed("a"), &stubDriver{}))
	require.NoError(t, registry.Register(descriptorNamed("b"), &stubDriver{}))

	first := registry.List()
	assert.Len(t, first, 2)

	// Mutating the returned slice must not affect the registry
	first[0] = nil
	second := registry.List()
	assert.Len(t, second, 2)
	assert.NotNil(t, second[0])
	assert.NotNil(t, second[1])
}

func TestRegistryRefreshLeadTime(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(descriptorNamed("drive-x"), &stubDriver{}))

	assert.Equal(t, 5*time.Minute, registry.RefreshLeadTime("drive-x"))
	assert.Equal(t, time.Duration(0), registry.RefreshLeadTime("unregistered"))
}
