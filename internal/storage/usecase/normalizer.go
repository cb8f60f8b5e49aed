package usecase

import (
	"context"

	"storage-gateway/internal/storage/domain/model"
)

// Normalizer converts raw backend records into the canonical shapes every
// provider must satisfy. Folder entities lose their size on the way through:
// the canonical contract reports folder size as absent, never zero.
type Normalizer struct {
	classifier *Classifier
}

// NewNormalizer creates a normalizer over the given classifier
func NewNormalizer(classifier *Classifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// Metadata maps a raw record to canonical metadata using the provider's
// classification rule.
func (n *Normalizer) Metadata(ctx context.Context, desc *model.ProviderDescriptor, raw *model.RawRecord) *model.CanonicalMetadata {
	kind := n.classifier.Classify(ctx, desc, raw)

	meta := &model.CanonicalMetadata{
		Provider: desc.ShortName,
		Kind:     kind,
		Name:     raw.Name,
		Path:     raw.Path,
		Modified: raw.Modified,
		Extra:    copyAttributes(raw.Attributes),
	}
	if kind == model.KindFile {
		meta.Size = model.Int64Ptr(raw.Size)
	}
	return meta
}

// Revision maps a raw revision record to the canonical revision shape
func (n *Normalizer) Revision(provider string, raw *model.RawRecord) *model.CanonicalRevision {
	return &model.CanonicalRevision{
		Provider: provider,
		Size:     raw.Size,
		Modified: raw.Modified,
		Revision: raw.Revision,
		Extra:    copyAttributes(raw.Attributes),
	}
}

// copyAttributes detaches the canonical attribute bag from driver-owned state
func copyAttributes(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
