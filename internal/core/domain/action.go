package domain

// Action is the closed set of operations the planner may select.
// Exactly one structural Action is chosen per ResourceIdentity per
// invocation; a power Action may accompany it.
type Action string

const (
	NoAction   Action = "NoAction"
	Create     Action = "Create"
	Update     Action = "Update"
	Delete     Action = "Delete"
	AttachOnly Action = "AttachOnly"
	DetachOnly Action = "DetachOnly"
	Start      Action = "Start"
	Stop       Action = "Stop"
)

func (a Action) Mutates() bool {
	return a != NoAction
}

// Plan is the planner's output: the structural action plus an optional
// power action evaluated independently of the structural diff.
type Plan struct {
	Structural Action
	Power      Action // NoAction when no power change is needed
}

func (p Plan) Changed() bool {
	return p.Structural.Mutates() || p.Power.Mutates()
}

// AttachmentPlan is one planned attach/detach for a (resource, target)
// pair. Attachment state is a relation, not a field, so batch workloads
// plan one action per pair.
type AttachmentPlan struct {
	Action     Action // AttachOnly or DetachOnly
	Resource   ResourceIdentity
	Target     ResourceIdentity
	Attributes SpecTree // attach parameters (e.g. device name)
}
