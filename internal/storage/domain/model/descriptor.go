package model

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from "1h" style strings in
// TOML and JSON descriptor files.
type Duration time.Duration

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a standard time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// OwnerType describes which kind of owner may hold an account on a provider
type OwnerType string

const (
	OwnerTypeUser    OwnerType = "user"
	OwnerTypeProject OwnerType = "project"
)

// Category tags the service class of a provider
type Category string

const (
	CategoryStorage       Category = "storage"
	CategoryCitations     Category = "citations"
	CategoryRepository    Category = "repository"
	CategoryDocumentation Category = "documentation"
)

// Capability is a view/config capability flag a provider can declare
type Capability string

const (
	// CapabilityFileListing marks providers that expose a hierarchical file listing
	CapabilityFileListing Capability = "file_listing"
	// CapabilityWidget marks providers that support widget rendering
	CapabilityWidget Capability = "widget"
	// CapabilityRevisions marks providers that expose per-file revision history
	CapabilityRevisions Capability = "revisions"
	// CapabilityUpload marks providers that accept uploads through the gateway
	CapabilityUpload Capability = "upload"
)

// OAuthEndpoints holds the provider's OAuth authorize/token URLs. Opaque to
// the core; consumed by the backend drivers.
type OAuthEndpoints struct {
	AuthorizeURL string `toml:"authorize_url" json:"authorizeUrl"`
	TokenURL     string `toml:"token_url" json:"tokenUrl"`
}

// ProviderDescriptor is the identity and capability declaration for one
// backend. Registered once at process start and immutable thereafter.
type ProviderDescriptor struct {
	ShortName     string         `toml:"short_name" json:"shortName"`
	FullName      string         `toml:"full_name" json:"fullName"`
	OwnerTypes    []OwnerType    `toml:"owner_types" json:"ownerTypes"`
	Categories    []Category     `toml:"categories" json:"categories"`
	Capabilities  []Capability   `toml:"capabilities" json:"capabilities"`
	MaxUploadSize int64          `toml:"max_upload_size" json:"maxUploadSize"`
	OAuth         OAuthEndpoints `toml:"oauth" json:"oauth"`

	// Token lifecycle configuration. ExpiresIn 0 means tokens never expire;
	// RefreshLeadTime is how long before declared expiry a token is
	// proactively refreshed.
	ExpiresIn       Duration `toml:"expires_in" json:"expiresIn"`
	RefreshLeadTime Duration `toml:"refresh_lead_time" json:"refreshLeadTime"`

	// FolderTypeCodes is the declarative classification table: a record is a
	// folder iff its native type code appears here. Backends redefine their
	// type taxonomies over time, so this table is what gets updated, not
	// calling code.
	FolderTypeCodes []int `toml:"folder_type_codes" json:"folderTypeCodes"`

	// FolderTypeExpr is an optional CEL predicate over {code, raw} for
	// backends whose folder semantics no longer fit a flat code set. When
	// set, it replaces the code table as the classification authority.
	FolderTypeExpr string `toml:"folder_type_expr" json:"folderTypeExpr,omitempty"`
}

// HasCapability reports whether the descriptor declares the given capability
func (d *ProviderDescriptor) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// IsFolderCode reports whether a native type code is in the folder table
func (d *ProviderDescriptor) IsFolderCode(code int) bool {
	for _, c := range d.FolderTypeCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Validate checks descriptor completeness before registration
func (d *ProviderDescriptor) Validate() error {
	if d.ShortName == "" {
		return fmt.Errorf("provider short name is required")
	}
	if d.FullName == "" {
		return fmt.Errorf("provider %q: full name is required", d.ShortName)
	}
	if len(d.OwnerTypes) == 0 {
		return fmt.Errorf("provider %q: at least one owner type is required", d.ShortName)
	}
	if d.MaxUploadSize < 0 {
		return fmt.Errorf("provider %q: max upload size must not be negative", d.ShortName)
	}
	if d.RefreshLeadTime < 0 {
		return fmt.Errorf("provider %q: refresh lead time must not be negative", d.ShortName)
	}
	if d.ExpiresIn != 0 && d.RefreshLeadTime >= d.ExpiresIn {
		return fmt.Errorf("provider %q: refresh lead time must be shorter than token lifetime", d.ShortName)
	}
	return nil
}
