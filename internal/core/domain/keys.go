package domain

const (
	// Common keys
	KeyName = "name"
	KeyID   = "id"
	KeyTags = "tags" // map[string]string

	// Compute instance keys
	ComputeInstanceTypeKey     = "instance_type"
	ComputeImageIDKey          = "image_id"
	ComputeSubnetIDKey         = "subnet_id"
	ComputeSecurityGroupsKey   = "security_groups" // []string
	ComputeAvailabilityZoneKey = "availability_zone"
	ComputeStateKey            = "state"

	// Block volume keys
	VolumeSizeKey        = "size_gb" // int
	VolumeTypeKey        = "volume_type"
	VolumeIOPSKey        = "iops" // int
	VolumeEncryptedKey   = "encrypted"
	VolumeAttachmentsKey = "attachments" // []map[string]any keyed by instance_id
	AttachmentInstanceID = "instance_id"
	AttachmentDevice     = "device"
)
