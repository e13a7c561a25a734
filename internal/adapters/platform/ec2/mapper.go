package ec2

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/go-viper/mapstructure/v2"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// instanceSpec is the typed shape of a ComputeInstance desired spec.
type instanceSpec struct {
	InstanceType     string            `mapstructure:"instance_type"`
	ImageID          string            `mapstructure:"image_id"`
	SubnetID         string            `mapstructure:"subnet_id"`
	SecurityGroups   []string          `mapstructure:"security_groups"`
	AvailabilityZone string            `mapstructure:"availability_zone"`
	Tags             map[string]string `mapstructure:"tags"`
}

// volumeSpec is the typed shape of a BlockVolume desired spec.
type volumeSpec struct {
	SizeGB           int32             `mapstructure:"size_gb"`
	VolumeType       string            `mapstructure:"volume_type"`
	IOPS             int32             `mapstructure:"iops"`
	Encrypted        bool              `mapstructure:"encrypted"`
	AvailabilityZone string            `mapstructure:"availability_zone"`
	Tags             map[string]string `mapstructure:"tags"`
}

func decodeSpec(spec domain.SpecTree, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "building spec decoder")
	}
	if err := decoder.Decode(map[string]any(spec)); err != nil {
		return errors.Wrap(err, errors.CodeTypeAssertionError, "decoding desired spec")
	}
	return nil
}

// instanceToTree maps a provider instance onto the canonical tree the
// diff engine sees. Only reconciled fields appear; everything else the
// provider reports is deliberately dropped.
func instanceToTree(inst ec2types.Instance) domain.SpecTree {
	tree := domain.SpecTree{
		domain.KeyID:                   aws.ToString(inst.InstanceId),
		domain.ComputeInstanceTypeKey:  string(inst.InstanceType),
		domain.ComputeImageIDKey:       aws.ToString(inst.ImageId),
		domain.ComputeSubnetIDKey:      aws.ToString(inst.SubnetId),
		domain.ComputeSecurityGroupsKey: groupNames(inst.SecurityGroups),
		domain.KeyTags:                 tagsToMap(inst.Tags),
	}
	if inst.Placement != nil {
		tree[domain.ComputeAvailabilityZoneKey] = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.State != nil {
		tree[domain.ComputeStateKey] = string(inst.State.Name)
	}
	return tree
}

func volumeToTree(vol ec2types.Volume) domain.SpecTree {
	attachments := make([]map[string]any, 0, len(vol.Attachments))
	for _, att := range vol.Attachments {
		if att.State == ec2types.VolumeAttachmentStateDetached {
			continue
		}
		attachments = append(attachments, map[string]any{
			domain.AttachmentInstanceID: aws.ToString(att.InstanceId),
			domain.AttachmentDevice:     aws.ToString(att.Device),
			"state":                     string(att.State),
		})
	}

	return domain.SpecTree{
		domain.KeyID:                   aws.ToString(vol.VolumeId),
		domain.VolumeSizeKey:           int64(aws.ToInt32(vol.Size)),
		domain.VolumeTypeKey:           string(vol.VolumeType),
		domain.VolumeIOPSKey:           int64(aws.ToInt32(vol.Iops)),
		domain.VolumeEncryptedKey:      aws.ToBool(vol.Encrypted),
		domain.ComputeAvailabilityZoneKey: aws.ToString(vol.AvailabilityZone),
		domain.VolumeAttachmentsKey:    attachments,
		domain.KeyTags:                 tagsToMap(vol.Tags),
	}
}

func groupNames(groups []ec2types.GroupIdentifier) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, aws.ToString(g.GroupId))
	}
	return names
}

func tagsToMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		key := aws.ToString(t.Key)
		if key == nameTagKey {
			continue // identity, not configuration
		}
		out[key] = aws.ToString(t.Value)
	}
	return out
}

func mapToTags(m map[string]string) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(m))
	for k, v := range m {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func nameFilter(name string) ec2types.Filter {
	return ec2types.Filter{
		Name:   aws.String(fmt.Sprintf("tag:%s", nameTagKey)),
		Values: []string{name},
	}
}
