package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validDescriptor() *ProviderDescriptor {
	return &ProviderDescriptor{
		ShortName:       "drive-x",
		FullName:        "Drive X",
		OwnerTypes:      []OwnerType{OwnerTypeUser},
		Categories:      []Category{CategoryStorage},
		Capabilities:    []Capability{CapabilityFileListing, CapabilityRevisions},
		MaxUploadSize:   10 << 20,
		ExpiresIn:       Duration(time.Hour),
		RefreshLeadTime: Duration(5 * time.Minute),
		FolderTypeCodes: []int{3, 4},
	}
}

func TestDescriptorValidate(t *testing.T) {
	assert.NoError(t, validDescriptor().Validate())
}

func TestDescriptorValidateRejectsMissingFields(t *testing.T) {
	d := validDescriptor()
	d.ShortName = ""
	assert.Error(t, d.Validate())

	d = validDescriptor()
	d.FullName = ""
	assert.Error(t, d.Validate())

	d = validDescriptor()
	d.OwnerTypes = nil
	assert.Error(t, d.Validate())
}

func TestDescriptorValidateRejectsLeadLongerThanLifetime(t *testing.T) {
	d := validDescriptor()
	d.ExpiresIn = Duration(time.Minute)
	d.RefreshLeadTime = Duration(2 * time.Minute)
	assert.Error(t, d.Validate())
}

func TestDescriptorValidateAllowsNonExpiringTokens(t *testing.T) {
	d := validDescriptor()
	d.ExpiresIn = 0
	d.RefreshLeadTime = Duration(5 * time.Minute)
	assert.NoError(t, d.Validate())
}

func TestHasCapability(t *testing.T) {
	d := validDescriptor()
	assert.True(t, d.HasCapability(CapabilityRevisions))
	assert.False(t, d.HasCapability(CapabilityUpload))
}

func TestIsFolderCode(t *testing.T) {
	d := validDescriptor()
	assert.True(t, d.IsFolderCode(3))
	assert.True(t, d.IsFolderCode(4))
	assert.False(t, d.IsFolderCode(1))
	assert.False(t, d.IsFolderCode(0))
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Std())

	text, err := d.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(text))
}

func TestDurationRejectsGarbage(t *testing.T) {
	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
