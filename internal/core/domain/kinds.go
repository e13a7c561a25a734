package domain

import "fmt"

type ResourceKind string

const (
	KindComputeInstance ResourceKind = "ComputeInstance"
	KindBlockVolume     ResourceKind = "BlockVolume"
)

func (rk ResourceKind) String() string {
	return string(rk)
}

// ParseKind resolves the snake_case kind label used by spec files to
// its canonical ResourceKind.
func ParseKind(label string) (ResourceKind, error) {
	switch label {
	case "compute_instance":
		return KindComputeInstance, nil
	case "block_volume":
		return KindBlockVolume, nil
	default:
		return "", fmt.Errorf("unknown resource kind '%s' (expected compute_instance or block_volume)", label)
	}
}
