package model

import "time"

// RawRecord is the backend-specific record a driver hands to the gateway
// before normalization. TypeCode is the backend's native entity type;
// FolderHint is the backend's own claim about folder behavior, used only to
// flag classification-table mismatches.
type RawRecord struct {
	Name       string
	Path       string
	Size       int64
	Modified   time.Time
	TypeCode   int
	FolderHint bool
	Revision   string
	Attributes map[string]interface{}
}

// RefreshResult carries the outcome of a driver token refresh call
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresIn    time.Duration
}
