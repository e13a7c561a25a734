package ec2

import (
	"context"

	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
)

// EC2API is the slice of the provider SDK this gateway calls. Narrowed
// for mock-based tests.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	RunInstances(ctx context.Context, params *awsec2.RunInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *awsec2.TerminateInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error)
	StartInstances(ctx context.Context, params *awsec2.StartInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *awsec2.StopInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StopInstancesOutput, error)
	ModifyInstanceAttribute(ctx context.Context, params *awsec2.ModifyInstanceAttributeInput, optFns ...func(*awsec2.Options)) (*awsec2.ModifyInstanceAttributeOutput, error)
	CreateTags(ctx context.Context, params *awsec2.CreateTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateTagsOutput, error)
	DeleteTags(ctx context.Context, params *awsec2.DeleteTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteTagsOutput, error)

	DescribeVolumes(ctx context.Context, params *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error)
	CreateVolume(ctx context.Context, params *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error)
	DeleteVolume(ctx context.Context, params *awsec2.DeleteVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteVolumeOutput, error)
	ModifyVolume(ctx context.Context, params *awsec2.ModifyVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.ModifyVolumeOutput, error)
	AttachVolume(ctx context.Context, params *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error)
	DetachVolume(ctx context.Context, params *awsec2.DetachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.DetachVolumeOutput, error)
}

// RateLimiter admits provider API calls.
type RateLimiter interface {
	Wait(ctx context.Context) error
}
