package usecase

import (
	"sync"
	"time"

	apperrors "storage-gateway/internal/shared/errors"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage/domain/model"
	"storage-gateway/internal/storage/domain/repository"
)

// Registry is the single source of truth mapping a provider short name to
// its descriptor and driver. It is populated during a single startup pass
// and read-mostly afterward; the mutex only matters during registration.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*model.ProviderDescriptor
	drivers     map[string]repository.Driver
	log         logger.Logger
}

// NewRegistry creates an empty provider registry
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Registry{
		descriptors: make(map[string]*model.ProviderDescriptor),
		drivers:     make(map[string]repository.Driver),
		log:         log.WithComponent("provider_registry"),
	}
}

// Register adds a provider descriptor and its driver. Registering a
// duplicate short name fails with a DUPLICATE_PROVIDER error; callers treat
// that as fatal at startup.
func (r *Registry) Register(desc *model.ProviderDescriptor, driver repository.Driver) error {
	if desc == nil {
		return apperrors.NewValidationError("provider descriptor is required")
	}
	if err := desc.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error()).WithProvider(desc.ShortName)
	}
	if driver == nil {
		return apperrors.NewValidationError("provider driver is required").WithProvider(desc.ShortName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[desc.ShortName]; exists {
		return apperrors.NewDuplicateProviderError(desc.ShortName)
	}

	r.descriptors[desc.ShortName] = desc
	r.drivers[desc.ShortName] = driver
	r.log.Infof("Registered provider %s (%s)", desc.ShortName, desc.FullName)
	return nil
}

// Get returns the descriptor registered under shortName, or an
// UNKNOWN_PROVIDER error.
func (r *Registry) Get(shortName string) (*model.ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.descriptors[shortName]
	if !exists {
		return nil, apperrors.NewUnknownProviderError(shortName)
	}
	return desc, nil
}

// DriverFor returns the driver registered under shortName, or an
// UNKNOWN_PROVIDER error.
func (r *Registry) DriverFor(shortName string) (repository.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[shortName]
	if !exists {
		return nil, apperrors.NewUnknownProviderError(shortName)
	}
	return driver, nil
}

// List returns a fresh slice of all registered descriptors. The sequence is
// finite and restartable; insertion order is not preserved.
func (r *Registry) List() []*model.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.ProviderDescriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		out = append(out, desc)
	}
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// RefreshLeadTime implements the credential module's provider policy lookup.
// Unregistered providers get a zero lead, which disables proactive refresh.
func (r *Registry) RefreshLeadTime(shortName string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if desc, exists := r.descriptors[shortName]; exists {
		return desc.RefreshLeadTime.Std()
	}
	return 0
}
