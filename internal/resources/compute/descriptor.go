// Package compute declares the reconciliation contract for compute
// instances: which fields may change in place, which force conflicts,
// and how caller specs are canonicalized before diffing.
package compute

import (
	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/service"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

// Descriptor returns the compute instance kind descriptor.
//
// Image and placement zone are fixed at creation; the provider cannot
// move a booted instance. Security groups compare as a set: a declared
// list replaces the instance's groups regardless of order, while an
// omitted list leaves them unmanaged, since a live instance always
// belongs to at least one group. Tags merge in append mode per the
// platform convention of tolerating externally managed tags.
func Descriptor() service.ResourceKindDescriptor {
	return service.ResourceKindDescriptor{
		Kind: domain.KindComputeInstance,
		Policies: domain.FieldPolicyMap{
			domain.ComputeInstanceTypeKey:     {},
			domain.ComputeImageIDKey:          {Immutable: true},
			domain.ComputeSubnetIDKey:         {Immutable: true},
			domain.ComputeAvailabilityZoneKey: {Immutable: true},
			domain.ComputeSecurityGroupsKey:   {Unordered: true},
			domain.KeyTags:                    {TagMap: true},
		},
		TagMode:   domain.TagMergeAppend,
		Normalize: normalize,
	}
}

func normalize(spec domain.SpecTree) domain.SpecTree {
	out := spec.Clone()

	// Security groups arrive as []any from most decoders.
	if raw, ok := out[domain.ComputeSecurityGroupsKey]; ok {
		if groups, err := convert.ToSliceOfString(raw); err == nil {
			out[domain.ComputeSecurityGroupsKey] = groups
		}
	}
	if raw, ok := out[domain.KeyTags]; ok {
		if tags, err := convert.ToStringMap(raw); err == nil {
			out[domain.KeyTags] = tags
		}
	}

	// Power intent lives outside the structural spec.
	delete(out, domain.ComputeStateKey)

	return out
}
