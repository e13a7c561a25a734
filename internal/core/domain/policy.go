package domain

// FieldPolicy annotates one field path of a DesiredSpec with its
// mutability and comparison rules.
type FieldPolicy struct {
	// Immutable fields may be set only at creation. A differing value on
	// an existing resource is a hard error, not a diff entry.
	Immutable bool
	// PurgeIfAbsent means omitting the field in the desired spec clears
	// it server-side instead of leaving it untouched.
	PurgeIfAbsent bool
	// MergeKey names the attribute used to match desired list elements
	// against actual list elements when list order is meaningless.
	MergeKey string
	// Unordered compares a list as a set: element order and duplicates
	// carry no meaning.
	Unordered bool
	// Relation marks a field reconciled through a dedicated pairwise
	// flow. The engine skips it on both sides of the structural diff.
	Relation bool
	// TagMap marks a free-form key/value map merged under TagMergeMode.
	TagMap bool
	// CaseInsensitive applies casing normalization before comparison.
	CaseInsensitive bool
}

// FieldPolicyMap maps dotted field paths to policies. The engine never
// invents policy; descriptors supply the full map per resource kind.
type FieldPolicyMap map[string]FieldPolicy

func (m FieldPolicyMap) For(path string) FieldPolicy {
	if m == nil {
		return FieldPolicy{}
	}
	return m[path]
}

// TagMergeMode selects how tag-like maps combine with existing tags.
type TagMergeMode string

const (
	// TagMergeAppend adds or overwrites only the keys present in the
	// desired map, leaving unknown existing keys untouched.
	TagMergeAppend TagMergeMode = "append"
	// TagMergeReplace additionally removes existing keys absent from the
	// desired map.
	TagMergeReplace TagMergeMode = "replace"
)
