package model

import (
	"encoding/json"
	"time"
)

// EntityKind distinguishes files from folders in canonical metadata
type EntityKind string

const (
	KindFile   EntityKind = "file"
	KindFolder EntityKind = "folder"
)

// CanonicalMetadata is the gateway's normalized, provider-agnostic
// description of one remote entity. Folder entities report size as an
// explicit null, never zero.
type CanonicalMetadata struct {
	Provider string                 `json:"provider" bson:"provider"`
	Kind     EntityKind             `json:"kind" bson:"kind"`
	Name     string                 `json:"name" bson:"name"`
	Path     string                 `json:"path" bson:"path"`
	Size     *int64                 `json:"size" bson:"size"`
	Modified time.Time              `json:"modified" bson:"modified"`
	Extra    map[string]interface{} `json:"extra" bson:"extra"`
}

// IsFolder reports whether the entity behaves as a folder
func (m *CanonicalMetadata) IsFolder() bool {
	return m.Kind == KindFolder
}

// MarshalJSON emits every declared field with explicit null markers for
// absent values, so downstream consumers see a stable schema regardless of
// provider. Folder size is forced to null even if a driver populated it.
func (m *CanonicalMetadata) MarshalJSON() ([]byte, error) {
	type alias CanonicalMetadata
	out := alias(*m)
	if out.Kind == KindFolder {
		out.Size = nil
	}
	if out.Extra == nil {
		out.Extra = map[string]interface{}{}
	}
	return json.Marshal(out)
}

// CanonicalRevision is the normalized description of one historical version
// of a file. Revision identifiers are opaque and ordered only within a
// single provider and file.
type CanonicalRevision struct {
	Provider string                 `json:"provider" bson:"provider"`
	Size     int64                  `json:"size" bson:"size"`
	Modified time.Time              `json:"modified" bson:"modified"`
	Revision string                 `json:"revision" bson:"revision"`
	Extra    map[string]interface{} `json:"extra" bson:"extra"`
}

// MarshalJSON emits every declared field; a nil attribute bag serializes as
// an empty object rather than a missing key.
func (r *CanonicalRevision) MarshalJSON() ([]byte, error) {
	type alias CanonicalRevision
	out := alias(*r)
	if out.Extra == nil {
		out.Extra = map[string]interface{}{}
	}
	return json.Marshal(out)
}

// Int64Ptr is a convenience for populating nullable sizes
func Int64Ptr(v int64) *int64 {
	return &v
}
