package domain

// DiffKind classifies a single field difference.
type DiffKind string

const (
	DiffSet    DiffKind = "set"    // desired value differs from actual
	DiffAdd    DiffKind = "add"    // field/element present only in desired
	DiffClear  DiffKind = "clear"  // purge-if-absent field set on actual only
	DiffRemove DiffKind = "remove" // purge-if-absent list element on actual only
)

// FieldDiff is one entry of a DiffResult.
type FieldDiff struct {
	Path    string
	Kind    DiffKind
	Desired any
	Actual  any
	Policy  FieldPolicy
}

// DiffResult is the ordered list of per-field differences between a
// desired spec and an actual-state snapshot.
type DiffResult struct {
	Diffs []FieldDiff
}

func (r *DiffResult) Empty() bool {
	return r == nil || len(r.Diffs) == 0
}

func (r *DiffResult) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, 0, len(r.Diffs))
	for _, d := range r.Diffs {
		paths = append(paths, d.Path)
	}
	return paths
}
