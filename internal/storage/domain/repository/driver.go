package repository

import (
	"context"

	"storage-gateway/internal/storage/domain/model"
)

// Driver is the contract every backend-specific collaborator must satisfy.
// Drivers perform the remote calls and return raw records; they must
// translate backend failures into the gateway error taxonomy before
// returning, so no vendor error escapes uncategorized.
type Driver interface {
	// FetchMetadata returns the raw record for the entity at path, or an
	// ENTITY_NOT_FOUND taxonomy error.
	FetchMetadata(ctx context.Context, accountID, token, path string) (*model.RawRecord, error)

	// FetchRevisions returns the raw revision records for the file at path,
	// newest first.
	FetchRevisions(ctx context.Context, accountID, token, path string) ([]model.RawRecord, error)

	// RefreshToken exchanges the account's refresh token for a new access
	// token, or a CREDENTIAL_REFRESH taxonomy error.
	RefreshToken(ctx context.Context, accountID, refreshToken string) (*model.RefreshResult, error)

	// Classify extracts the backend's native type code from a raw record.
	// The code feeds the descriptor's folder-classification rule.
	Classify(raw *model.RawRecord) int
}

// UploadSink is implemented by drivers that accept uploads. Kept separate
// from Driver because citation-style providers are read-only.
type UploadSink interface {
	Upload(ctx context.Context, accountID, token, path string, content []byte) (*model.RawRecord, error)
}
