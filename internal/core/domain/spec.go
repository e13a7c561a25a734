package domain

import "fmt"

// SpecTree is a tree of named fields describing either a desired
// specification or an actual-state snapshot. Absence of a key is the
// "unset" sentinel; purge semantics are decided by field policy.
type SpecTree map[string]any

// Clone returns a shallow-per-level deep copy of the tree. Nested
// SpecTree/map[string]any values and slices are copied; leaf values are
// shared (they are treated as immutable).
func (t SpecTree) Clone() SpecTree {
	if t == nil {
		return nil
	}
	out := make(SpecTree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case SpecTree:
		return tv.Clone()
	case map[string]any:
		return SpecTree(tv).Clone()
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// PresenceState is the caller's declared intent for a resource's existence.
type PresenceState string

const (
	StatePresent PresenceState = "present"
	StateAbsent  PresenceState = "absent"
)

// PowerState is the desired lifecycle state of a powered resource. It is
// evaluated independently of the structural diff.
type PowerState string

const (
	PowerUnspecified PowerState = ""
	PowerRunning     PowerState = "running"
	PowerStopped     PowerState = "stopped"
)

// ParsePowerState validates a caller-supplied power state string.
func ParsePowerState(s string) (PowerState, error) {
	switch PowerState(s) {
	case PowerUnspecified, PowerRunning, PowerStopped:
		return PowerState(s), nil
	default:
		return PowerUnspecified, fmt.Errorf("invalid power state %q", s)
	}
}
