package tfstate

import (
	tfjson "github.com/hashicorp/terraform-json"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

const (
	tfTypeInstance = "aws_instance"
	tfTypeVolume   = "aws_ebs_volume"
)

// mapResource translates one Terraform-managed resource into a spec
// document. Unknown resource types are skipped, not errors: a state
// export routinely holds more than this engine manages.
func (s *Source) mapResource(res *tfjson.StateResource) (ports.SpecDocument, bool, error) {
	var (
		kind domain.ResourceKind
		tree domain.SpecTree
		err  error
	)

	switch res.Type {
	case tfTypeInstance:
		kind = domain.KindComputeInstance
		tree, err = instanceTree(res.AttributeValues)
	case tfTypeVolume:
		kind = domain.KindBlockVolume
		tree, err = volumeTree(res.AttributeValues)
	default:
		return ports.SpecDocument{}, false, nil
	}
	if err != nil {
		return ports.SpecDocument{}, false, err
	}

	doc := ports.SpecDocument{
		Identity: domain.ResourceIdentity{
			Account: s.account,
			Kind:    kind,
			Name:    res.Name,
		},
		Desired:      tree,
		DesiredState: domain.StatePresent,
	}
	if zone, ok := tree[domain.ComputeAvailabilityZoneKey].(string); ok {
		doc.Identity.Group = zone
	}
	return doc, true, nil
}

func instanceTree(attrs map[string]any) (domain.SpecTree, error) {
	tree := domain.SpecTree{}
	copyString(attrs, "instance_type", tree, domain.ComputeInstanceTypeKey)
	copyString(attrs, "ami", tree, domain.ComputeImageIDKey)
	copyString(attrs, "subnet_id", tree, domain.ComputeSubnetIDKey)
	copyString(attrs, "availability_zone", tree, domain.ComputeAvailabilityZoneKey)

	if raw, ok := attrs["vpc_security_group_ids"]; ok && raw != nil {
		groups, err := convert.ToSliceOfString(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTypeAssertionError, "security group ids")
		}
		tree[domain.ComputeSecurityGroupsKey] = groups
	}
	if err := copyTags(attrs, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func volumeTree(attrs map[string]any) (domain.SpecTree, error) {
	tree := domain.SpecTree{}
	copyString(attrs, "type", tree, domain.VolumeTypeKey)
	copyString(attrs, "availability_zone", tree, domain.ComputeAvailabilityZoneKey)

	if raw, ok := attrs["size"]; ok && raw != nil {
		size, err := convert.ToInt64(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTypeAssertionError, "volume size")
		}
		tree[domain.VolumeSizeKey] = size
	}
	if raw, ok := attrs["iops"]; ok && raw != nil {
		iops, err := convert.ToInt64(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTypeAssertionError, "volume iops")
		}
		if iops > 0 {
			tree[domain.VolumeIOPSKey] = iops
		}
	}
	if enc, ok := attrs["encrypted"].(bool); ok {
		tree[domain.VolumeEncryptedKey] = enc
	}
	if err := copyTags(attrs, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func copyString(attrs map[string]any, from string, tree domain.SpecTree, to string) {
	if v, ok := attrs[from].(string); ok && v != "" {
		tree[to] = v
	}
}

func copyTags(attrs map[string]any, tree domain.SpecTree) error {
	raw, ok := attrs["tags"]
	if !ok || raw == nil {
		return nil
	}
	tags, err := convert.ToStringMap(raw)
	if err != nil {
		return errors.Wrap(err, errors.CodeTypeAssertionError, "tags")
	}
	if len(tags) > 0 {
		tree[domain.KeyTags] = tags
	}
	return nil
}
