// Package storage declares the reconciliation contract for block
// volumes.
package storage

import (
	"strings"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/service"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

// Descriptor returns the block volume kind descriptor.
//
// Encryption and placement are creation-time decisions. Attachments are
// a relation reconciled per (volume, instance) pair through the
// attach/detach flow, so the structural diff never touches them.
func Descriptor() service.ResourceKindDescriptor {
	return service.ResourceKindDescriptor{
		Kind: domain.KindBlockVolume,
		Policies: domain.FieldPolicyMap{
			domain.VolumeSizeKey:              {},
			domain.VolumeTypeKey:              {CaseInsensitive: true},
			domain.VolumeIOPSKey:              {},
			domain.VolumeEncryptedKey:         {Immutable: true},
			domain.ComputeAvailabilityZoneKey: {Immutable: true},
			domain.VolumeAttachmentsKey:       {Relation: true},
			domain.KeyTags:                    {TagMap: true},
		},
		TagMode:   domain.TagMergeAppend,
		Normalize: normalize,
	}
}

func normalize(spec domain.SpecTree) domain.SpecTree {
	out := spec.Clone()

	if raw, ok := out[domain.VolumeSizeKey]; ok {
		if size, err := convert.ToInt64(raw); err == nil {
			out[domain.VolumeSizeKey] = size
		}
	}
	if raw, ok := out[domain.VolumeIOPSKey]; ok {
		if iops, err := convert.ToInt64(raw); err == nil {
			out[domain.VolumeIOPSKey] = iops
		}
	}
	if vt, ok := out[domain.VolumeTypeKey].(string); ok {
		out[domain.VolumeTypeKey] = strings.ToLower(vt)
	}
	if raw, ok := out[domain.KeyTags]; ok {
		if tags, err := convert.ToStringMap(raw); err == nil {
			out[domain.KeyTags] = tags
		}
	}
	if raw, ok := out[domain.VolumeAttachmentsKey]; ok {
		if atts, err := convert.ToSliceOfMap(raw); err == nil {
			out[domain.VolumeAttachmentsKey] = atts
		}
	}

	return out
}
