package domain

// ReconciliationResult is the final output of one reconcile pass.
type ReconciliationResult struct {
	Identity  ResourceIdentity
	Plan      Plan
	Changed   bool
	CheckMode bool
	// State is the authoritative post-operation actual state. Nil when
	// the resource is absent (after Delete, or NoAction on absent).
	State SpecTree
	// Diff is the structural diff that drove the plan, kept for reporting.
	Diff *DiffResult
	// Outcomes carries per-operation results for fanned-out workloads.
	Outcomes []OperationOutcome
}

// FullySucceeded reports whether every fanned-out operation settled
// without error. Aggregation is left to the caller by contract; this is
// a convenience accessor only.
func (r *ReconciliationResult) FullySucceeded() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}
