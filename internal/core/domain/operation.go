package domain

// OperationStatus is the provider-side state of a long-running operation.
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationRunning   OperationStatus = "running"
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

func (s OperationStatus) Terminal() bool {
	return s == OperationSucceeded || s == OperationFailed
}

// OperationOutcome is the settled result of one asynchronous operation.
// Batch workflows report one outcome per handle so callers can tell
// partial success from total failure.
type OperationOutcome struct {
	Identity ResourceIdentity
	Target   ResourceIdentity // zero value outside attachment operations
	Action   Action
	State    SpecTree // terminal state snapshot, when available
	Err      error
}
