package service

import (
	"fmt"
	"sync"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// ResourceKindDescriptor carries everything kind-specific the generic
// controller needs: the field policy map, the tag merge mode, and an
// optional spec normalizer. One descriptor per kind replaces per-kind
// controller subtypes.
type ResourceKindDescriptor struct {
	Kind     domain.ResourceKind
	Policies domain.FieldPolicyMap
	TagMode  domain.TagMergeMode
	// Normalize rewrites a caller-supplied spec into canonical form
	// before diffing (unit coercions, alias keys). Nil means identity.
	Normalize func(domain.SpecTree) domain.SpecTree
}

type ComponentRegistry struct {
	mu          sync.RWMutex
	descriptors map[domain.ResourceKind]ResourceKindDescriptor
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		descriptors: make(map[domain.ResourceKind]ResourceKindDescriptor),
	}
}

func (r *ComponentRegistry) RegisterDescriptor(desc ResourceKindDescriptor) error {
	if desc.Kind == "" {
		return errors.New(errors.CodeConfigValidation, "descriptor missing resource kind")
	}
	if desc.Policies == nil {
		return errors.Newf(errors.CodeConfigValidation, "descriptor for '%s' missing field policies", desc.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[desc.Kind]; exists {
		return errors.Newf(errors.CodeConfigValidation, "descriptor already registered for kind '%s'", desc.Kind)
	}
	r.descriptors[desc.Kind] = desc
	return nil
}

func (r *ComponentRegistry) Descriptor(kind domain.ResourceKind) (ResourceKindDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, found := r.descriptors[kind]
	if !found {
		return ResourceKindDescriptor{}, errors.New(errors.CodeUnsupportedKind,
			fmt.Sprintf("no descriptor registered for resource kind '%s'", kind))
	}
	return desc, nil
}

func (r *ComponentRegistry) Kinds() []domain.ResourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]domain.ResourceKind, 0, len(r.descriptors))
	for k := range r.descriptors {
		kinds = append(kinds, k)
	}
	return kinds
}
