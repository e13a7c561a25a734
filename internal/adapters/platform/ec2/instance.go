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

// liveInstanceStates are the states in which an instance counts as
// existing. Terminated and shutting-down instances are absent: EC2 keeps
// reporting them for a while after termination.
var liveInstanceStates = []string{"pending", "running", "stopping", "stopped"}

func (g *Gateway) lookupInstance(ctx context.Context, id domain.ResourceIdentity) (ec2types.Instance, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ec2types.Instance{}, false, err
	}

	filters := []ec2types.Filter{
		nameFilter(id.Name),
		{Name: aws.String("instance-state-name"), Values: liveInstanceStates},
	}
	if id.Group != "" {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("availability-zone"),
			Values: []string{id.Group},
		})
	}

	out, err := g.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{Filters: filters})
	if err != nil {
		if isNotFound(err) {
			return ec2types.Instance{}, false, nil
		}
		return ec2types.Instance{}, false, mapProviderError("compute instance", id.Name, err, ctx)
	}

	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return inst, true, nil
		}
	}
	return ec2types.Instance{}, false, nil
}

func (g *Gateway) describeInstanceByID(ctx context.Context, instanceID string) (ec2types.Instance, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ec2types.Instance{}, false, err
	}
	out, err := g.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isNotFound(err) {
			return ec2types.Instance{}, false, nil
		}
		return ec2types.Instance{}, false, mapProviderError("compute instance", instanceID, err, ctx)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return inst, true, nil
		}
	}
	return ec2types.Instance{}, false, nil
}

func (g *Gateway) createInstance(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree) (ports.OperationHandle, error) {
	var is instanceSpec
	if err := decodeSpec(spec, &is); err != nil {
		return nil, err
	}
	if is.ImageID == "" {
		return nil, errors.Newf(errors.CodeConfigValidation,
			"compute instance '%s' requires %s", id.Name, domain.ComputeImageIDKey)
	}

	tags := mapToTags(is.Tags)
	tags = append(tags, ec2types.Tag{Key: aws.String(nameTagKey), Value: aws.String(id.Name)})

	input := &awsec2.RunInstancesInput{
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		ImageId:      aws.String(is.ImageID),
		InstanceType: ec2types.InstanceType(is.InstanceType),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         tags,
		}},
	}
	if is.SubnetID != "" {
		input.SubnetId = aws.String(is.SubnetID)
	}
	if len(is.SecurityGroups) > 0 {
		input.SecurityGroupIds = is.SecurityGroups
	}
	if is.AvailabilityZone != "" {
		input.Placement = &ec2types.Placement{AvailabilityZone: aws.String(is.AvailabilityZone)}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.api.RunInstances(ctx, input)
	if err != nil {
		return nil, mapProviderError("compute instance", id.Name, err, ctx)
	}
	if len(out.Instances) == 0 {
		return nil, errors.Newf(errors.CodeProviderRequestError,
			"provider accepted creation of '%s' but returned no instance", id.Name)
	}
	instanceID := aws.ToString(out.Instances[0].InstanceId)
	g.logger.Infof(ctx, "Launched instance %s for %s", instanceID, id)

	return g.instanceStateHandle(id, domain.Create, instanceID, "running"), nil
}

func (g *Gateway) updateInstance(ctx context.Context, id domain.ResourceIdentity, spec domain.SpecTree, diff *domain.DiffResult) ([]ports.OperationHandle, error) {
	inst, found, err := g.lookupInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "compute instance '%s' vanished before update", id.Name)
	}
	instanceID := aws.ToString(inst.InstanceId)

	for _, d := range diff.Diffs {
		switch d.Path {
		case domain.ComputeInstanceTypeKey:
			if err := g.modifyInstanceType(ctx, instanceID, fmt.Sprintf("%v", d.Desired)); err != nil {
				return nil, err
			}
		case domain.ComputeSecurityGroupsKey:
			if err := g.modifySecurityGroups(ctx, instanceID, d.Desired); err != nil {
				return nil, err
			}
		case domain.KeyTags:
			if err := g.reconcileTags(ctx, instanceID, d); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf(errors.CodePlanError,
				"no update operation for field '%s' on compute instance '%s'", d.Path, id.Name)
		}
	}

	// All instance mutations above apply synchronously; the controller
	// re-fetches for the authoritative post-update state.
	return nil, nil
}

func (g *Gateway) modifyInstanceType(ctx context.Context, instanceID, instanceType string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.api.ModifyInstanceAttribute(ctx, &awsec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(instanceID),
		InstanceType: &ec2types.AttributeValue{Value: aws.String(instanceType)},
	})
	if err != nil {
		return mapProviderError("compute instance", instanceID, err, ctx)
	}
	return nil
}

func (g *Gateway) modifySecurityGroups(ctx context.Context, instanceID string, desired any) error {
	groups, err := convert.ToSliceOfString(desired)
	if err != nil {
		return errors.Newf(errors.CodeTypeAssertionError,
			"desired security groups for %s are not a string list", instanceID)
	}
	// The provider requires every instance to keep at least one group, so
	// a clear-to-empty can never be executed.
	if len(groups) == 0 {
		return errors.NewUserFacing(errors.CodePlanError,
			fmt.Sprintf("cannot remove every security group from instance %s", instanceID),
			"Declare at least one security group, or omit the field to leave groups unmanaged.")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = g.api.ModifyInstanceAttribute(ctx, &awsec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(instanceID),
		Groups:     groups,
	})
	if err != nil {
		return mapProviderError("compute instance", instanceID, err, ctx)
	}
	return nil
}

// reconcileTags applies a tag-map diff: the entry's desired value is the
// full post-merge target set, so keys missing from it are removed and
// the rest are upserted.
func (g *Gateway) reconcileTags(ctx context.Context, resourceID string, d domain.FieldDiff) error {
	target, ok := d.Desired.(map[string]string)
	if !ok {
		return errors.Newf(errors.CodeTypeAssertionError,
			"tag diff for %s does not carry a merged tag map", resourceID)
	}
	current, _ := d.Actual.(map[string]string)

	var removed []ec2types.Tag
	for k := range current {
		if _, keep := target[k]; !keep {
			removed = append(removed, ec2types.Tag{Key: aws.String(k)})
		}
	}

	if len(target) > 0 {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := g.api.CreateTags(ctx, &awsec2.CreateTagsInput{
			Resources: []string{resourceID},
			Tags:      mapToTags(target),
		})
		if err != nil {
			return mapProviderError("tags", resourceID, err, ctx)
		}
	}
	if len(removed) > 0 {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := g.api.DeleteTags(ctx, &awsec2.DeleteTagsInput{
			Resources: []string{resourceID},
			Tags:      removed,
		})
		if err != nil {
			return mapProviderError("tags", resourceID, err, ctx)
		}
	}
	return nil
}

func (g *Gateway) deleteInstance(ctx context.Context, id domain.ResourceIdentity) (ports.OperationHandle, error) {
	inst, found, err := g.lookupInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	instanceID := aws.ToString(inst.InstanceId)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	_, err = g.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, mapProviderError("compute instance", id.Name, err, ctx)
	}

	return g.instanceStateHandle(id, domain.Delete, instanceID, "terminated"), nil
}

func (g *Gateway) setInstancePower(ctx context.Context, id domain.ResourceIdentity, desired domain.PowerState) (ports.OperationHandle, error) {
	inst, found, err := g.lookupInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Newf(errors.CodeResourceNotFound, "compute instance '%s' not found", id.Name)
	}
	instanceID := aws.ToString(inst.InstanceId)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var action domain.Action
	var targetState string
	switch desired {
	case domain.PowerRunning:
		action, targetState = domain.Start, "running"
		_, err = g.api.StartInstances(ctx, &awsec2.StartInstancesInput{InstanceIds: []string{instanceID}})
	case domain.PowerStopped:
		action, targetState = domain.Stop, "stopped"
		_, err = g.api.StopInstances(ctx, &awsec2.StopInstancesInput{InstanceIds: []string{instanceID}})
	default:
		return nil, errors.Newf(errors.CodePlanError, "unsupported power state '%s'", desired)
	}
	if err != nil {
		return nil, mapProviderError("compute instance", id.Name, err, ctx)
	}

	return g.instanceStateHandle(id, action, instanceID, targetState), nil
}

// instanceStateHandle polls one instance until it reaches targetState.
// For Delete, a vanished instance also counts as success.
func (g *Gateway) instanceStateHandle(id domain.ResourceIdentity, action domain.Action, instanceID, targetState string) ports.OperationHandle {
	return &operationHandle{
		identity: id,
		action:   action,
		poll: func(ctx context.Context) (domain.OperationStatus, domain.SpecTree, error) {
			inst, found, err := g.describeInstanceByID(ctx, instanceID)
			if err != nil {
				return domain.OperationFailed, nil, err
			}
			if !found {
				if action == domain.Delete {
					return domain.OperationSucceeded, nil, nil
				}
				return domain.OperationFailed, nil, errors.Newf(errors.CodeProvisioningFailed,
					"instance %s disappeared while awaiting state '%s'", instanceID, targetState)
			}

			state := ""
			if inst.State != nil {
				state = string(inst.State.Name)
			}
			switch state {
			case targetState:
				return domain.OperationSucceeded, instanceToTree(inst), nil
			case "terminated", "shutting-down":
				if action == domain.Delete {
					if state == "terminated" {
						return domain.OperationSucceeded, nil, nil
					}
					return domain.OperationRunning, nil, nil
				}
				return domain.OperationFailed, nil, nil
			default:
				return domain.OperationRunning, nil, nil
			}
		},
	}
}
