package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
)

func (g *Gateway) lookupVolume(ctx context.Context, id domain.ResourceIdentity) (ec2types.Volume, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ec2types.Volume{}, false, err
	}

	filters := []ec2types.Filter{nameFilter(id.Name)}
	if id.Group != "" {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("availability-zone"),
			Values: []string{id.Group},
		})
	}

	out, err := g.api.DescribeVolumes(ctx, &awsec2.DescribeVolumesInput{Filters: filters})
	if err != nil {
		if isNotFound(err) {
			return ec2types.Volume{}, false, nil
		}
		return ec2types.Volume{}, false, mapProviderError("block volume", id.Name, err, ctx)
	}

	for _, vol := range out.Volumes {
		if vol.State == ec2types.VolumeStateDeleting || vol.State == ec2types.VolumeStateDeleted {
			continue
		}
		return vol, true, nil
	}
	return ec2types.Volume{}, false, nil
}

func (g *Gateway) describeVolumeByID(ctx context.Context, volumeID string) (ec2types.Volume, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ec2types.Volume{}, false, err
	}
	out, err := g.api.DescribeVolumes(ctx, &awsec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	})
	if err != nil {
		if isNotFound(err) {
			return ec2types.Volume{}, false, nil
		}
		return ec2types.Volume{}, false, mapProviderError("block volume", volumeID, err, ctx)
	}
	if len(out.Volumes) == 0 {
		return ec2types.Volume{}, false, nil
	}
	return out.Volumes[0], true, nil
}

func (g *Gateway) createVolume(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree) (ports.OperationHandle, error) {
	var vs volumeSpec
	if err := decodeSpec(spec, &vs); err != nil {
		return nil, err
	}
	if vs.SizeGB <= 0 {
		return nil, errors.Newf(errors.CodeConfigValidation,
			"block volume '%s' requires a positive %s", id.Name, domain.VolumeSizeKey)
	}
	zone := vs.AvailabilityZone
	if zone == "" {
		zone = id.Group
	}
	if zone == "" {
		return nil, errors.Newf(errors.CodeConfigValidation,
			"block volume '%s' requires an availability zone", id.Name)
	}

	tags := mapToTags(vs.Tags)
	tags = append(tags, ec2types.Tag{Key: aws.String(nameTagKey), Value: aws.String(id.Name)})

	input := &awsec2.CreateVolumeInput{
		AvailabilityZone: aws.String(zone),
		Size:             aws.Int32(vs.SizeGB),
		Encrypted:        aws.Bool(vs.Encrypted),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeVolume,
			Tags:         tags,
		}},
	}
	if vs.VolumeType != "" {
		input.VolumeType = ec2types.VolumeType(vs.VolumeType)
	}
	if vs.IOPS > 0 {
		input.Iops = aws.Int32(vs.IOPS)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.api.CreateVolume(ctx, input)
	if err != nil {
		return nil, mapProviderError("block volume", id.Name, err, ctx)
	}
	volumeID := aws.ToString(out.VolumeId)
	g.logger.Infof(ctx, "Created volume %s for %s", volumeID, id)

	return g.volumeStateHandle(id, domain.Create, volumeID, ec2types.VolumeStateAvailable), nil
}

func (g *Gateway) updateVolume(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree, diff *domain.DiffResult) ([]ports.OperationHandle, error) {
	vol, found, err := g.lookupVolume(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "block volume '%s' vanished before update", id.Name)
	}
	volumeID := aws.ToString(vol.VolumeId)

	mod := &awsec2.ModifyVolumeInput{VolumeId: aws.String(volumeID)}
	needsModify := false
	for _, d := range diff.Diffs {
		switch d.Path {
		case domain.VolumeSizeKey:
			size, convErr := convert.ToInt64(d.Desired)
			if convErr != nil {
				return nil, errors.Wrapf(convErr, errors.CodeTypeAssertionError,
					"desired size for '%s'", id.Name)
			}
			mod.Size = aws.Int32(int32(size))
			needsModify = true
		case domain.VolumeTypeKey:
			mod.VolumeType = ec2types.VolumeType(fmt.Sprintf("%v", d.Desired))
			needsModify = true
		case domain.VolumeIOPSKey:
			iops, convErr := convert.ToInt64(d.Desired)
			if convErr != nil {
				return nil, errors.Wrapf(convErr, errors.CodeTypeAssertionError,
					"desired iops for '%s'", id.Name)
			}
			mod.Iops = aws.Int32(int32(iops))
			needsModify = true
		case domain.KeyTags:
			if err := g.reconcileTags(ctx, volumeID, d); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf(errors.CodePlanError,
				"no update operation for field '%s' on block volume '%s'", d.Path, id.Name)
		}
	}

	if !needsModify {
		return nil, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if _, err := g.api.ModifyVolume(ctx, mod); err != nil {
		return nil, mapProviderError("block volume", id.Name, err, ctx)
	}

	// ModifyVolume is asynchronous: the volume keeps its old shape until
	// the modification leaves the "modifying" phase.
	handle := &operationHandle{
		identity: id,
		action:   domain.Update,
		poll: func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
			v, ok, err := g.describeVolumeByID(ctx, volumeID)
			if err != nil {
				return domain.OperationFailed, nil, err
			}
			if !ok {
				return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
					"volume %s disappeared during modification", volumeID)
			}
			if mod.Size != nil && aws.ToInt32(v.Size) != aws.ToInt32(mod.Size) {
				return domain.OperationRunning, nil, nil
			}
			if mod.VolumeType != "" && v.VolumeType != mod.VolumeType {
				return domain.OperationRunning, nil, nil
			}
			if mod.Iops != nil && aws.ToInt32(v.Iops) != aws.ToInt32(mod.Iops) {
				return domain.OperationRunning, nil, nil
			}
			return domain.OperationSucceeded, volumeToTree(v), nil
		},
	}
	return []ports.OperationHandle{handle}, nil
}

func (g *Gateway) deleteVolume(ctx context.Context, id domain.ResourceIdentity) (ports.OperationHandle, error) {
	vol, found, err := g.lookupVolume(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if len(vol.Attachments) > 0 {
		for _, att := range vol.Attachments {
			if att.State != ec2types.VolumeAttachmentStateDetached {
				return nil, errors.Newf(errors.CodeProviderRequestError,
					"block volume '%s' is still attached to %s", id.Name, aws.ToString(att.InstanceId))
			}
		}
	}
	volumeID := aws.ToString(vol.VolumeId)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if _, err := g.api.DeleteVolume(ctx, &awsec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)}); err != nil {
		return nil, mapProviderError("block volume", id.Name, err, ctx)
	}

	handle := &operationHandle{
		identity: id,
		action:   domain.Delete,
		poll: func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
			v, ok, err := g.describeVolumeByID(ctx, volumeID)
			if err != nil {
				return domain.OperationFailed, nil, err
			}
			if !ok || v.State == ec2types.VolumeStateDeleted {
				return domain.OperationSucceeded, nil, nil
			}
			return domain.OperationRunning, nil, nil
		},
	}
	return handle, nil
}

func (g *Gateway) attachVolume(ctx context.Context, id, target domain.ResourceIdentity, attrs domain.SpecTree) (ports.OperationHandle, error) {
	vol, found, err := g.lookupVolume(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "block volume '%s' not found", id.Name)
	}
	inst, found, err := g.lookupInstance(ctx, target)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "compute instance '%s' not found", target.Name)
	}

	volumeID := aws.ToString(vol.VolumeId)
	instanceID := aws.ToString(inst.InstanceId)

	device := defaultAttachDevice
	if attrs != nil {
		if d, ok := attrs[domain.AttachmentDevice].(string); ok && d != "" {
			device = d
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	_, err = g.api.AttachVolume(ctx, &awsec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	if err != nil {
		return nil, mapProviderError("block volume", id.Name, err, ctx)
	}
	g.logger.Infof(ctx, "Attaching volume %s to instance %s as %s", volumeID, instanceID, device)

	return g.attachmentHandle(id, domain.AttachOnly, volumeID, instanceID), nil
}

func (g *Gateway) detachVolume(ctx context.Context, id, target domain.ResourceIdentity) (ports.OperationHandle, error) {
	vol, found, err := g.lookupVolume(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "block volume '%s' not found", id.Name)
	}
	inst, found, err := g.lookupInstance(ctx, target)
	if err != nil {
		return nil, err
	}
	if !found {
		// The instance side is already gone; nothing holds the attachment.
		return nil, nil
	}

	volumeID := aws.ToString(vol.VolumeId)
	instanceID := aws.ToString(inst.InstanceId)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	_, err = g.api.DetachVolume(ctx, &awsec2.DetachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		return nil, mapProviderError("block volume", id.Name, err, ctx)
	}
	g.logger.Infof(ctx, "Detaching volume %s from instance %s", volumeID, instanceID)

	return g.attachmentHandle(id, domain.DetachOnly, volumeID, instanceID), nil
}

// volumeStateHandle polls one volume until it reaches the target state.
func (g *Gateway) volumeStateHandle(id domain.ResourceIdentity, action domain.Action, volumeID string, target ec2types.VolumeState) ports.OperationHandle {
	return &operationHandle{
		identity: id,
		action:   action,
		poll: func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
			vol, ok, err := g.describeVolumeByID(ctx, volumeID)
			if err != nil {
				return domain.OperationFailed, nil, err
			}
			if !ok {
				return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
					"volume %s disappeared while awaiting state '%s'", volumeID, target)
			}
			switch vol.State {
			case target:
				return domain.OperationSucceeded, volumeToTree(vol), nil
			case ec2types.VolumeStateError:
				return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
					"volume %s entered error state", volumeID)
			default:
				return domain.OperationRunning, nil, nil
			}
		},
	}
}

// attachmentHandle polls one volume until its attachment to instanceID
// reaches the state the action implies: attached for AttachOnly, gone or
// detached for DetachOnly.
func (g *Gateway) attachmentHandle(id domain.ResourceIdentity, action domain.Action, volumeID, instanceID string) ports.OperationHandle {
	return &operationHandle{
		identity: id,
		action:   action,
		poll: func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
			vol, ok, err := g.describeVolumeByID(ctx, volumeID)
			if err != nil {
				return domain.OperationFailed, nil, err
			}
			if !ok {
				return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
					"volume %s disappeared while awaiting attachment change", volumeID)
			}

			var state ec2types.VolumeAttachmentState
			for _, att := range vol.Attachments {
				if aws.ToString(att.InstanceId) == instanceID {
					state = att.State
					break
				}
			}

			switch action {
			case domain.AttachOnly:
				switch state {
				case ec2types.VolumeAttachmentStateAttached:
					return domain.OperationSucceeded, volumeToTree(vol), nil
				case ec2types.VolumeAttachmentStateAttaching, ec2types.VolumeAttachmentStateBusy:
					return domain.OperationRunning, nil, nil
				default:
					return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
						"volume %s attachment to %s ended in state '%s'", volumeID, instanceID, state)
				}
			default: // DetachOnly
				if state == "" || state == ec2types.VolumeAttachmentStateDetached {
					return domain.OperationSucceeded, volumeToTree(vol), nil
				}
				return domain.OperationRunning, nil, nil
			}
		},
	}
}
