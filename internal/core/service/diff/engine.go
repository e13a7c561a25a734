// Package diff implements the structural diff between a desired spec
// tree and an actual-state snapshot, honoring per-field policies.
package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/pkg/compare"
	"github.com/olusolaa/cloud-reconciler/pkg/convert"
	"github.com/olusolaa/cloud-reconciler/pkg/reflectutil"
)

type Engine struct {
	logger ports.Logger
}

func NewEngine(logger ports.Logger) *Engine {
	return &Engine{logger: logger}
}

// Diff walks the desired tree field by field against the actual tree.
// Policy paths are dotted; list elements inherit the list's path for
// policy lookup while diff entries carry the merge-key-qualified path.
// An immutable field that differs on an existing value is a hard error,
// not a diff entry.
func (e *Engine) Diff(ctx context.Context, desired, actual domain.SpecTree, policy domain.FieldPolicyMap, tagMode domain.TagMergeMode) (*domain.DiffResult, error) {
	if tagMode == "" {
		tagMode = domain.TagMergeAppend
	}
	res := &domain.DiffResult{}
	if err := e.walk(ctx, "", "", desired, actual, policy, tagMode, res); err != nil {
		return nil, err
	}
	return res, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedKeys(t domain.SpecTree) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asTree(v any) (domain.SpecTree, bool) {
	switch tv := v.(type) {
	case domain.SpecTree:
		return tv, true
	case map[string]any:
		return domain.SpecTree(tv), true
	default:
		return nil, false
	}
}

func (e *Engine) walk(ctx context.Context, policyPrefix, displayPrefix string, desired, actual domain.SpecTree, policy domain.FieldPolicyMap, tagMode domain.TagMergeMode, res *domain.DiffResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, key := range sortedKeys(desired) {
		policyPath := joinPath(policyPrefix, key)
		displayPath := joinPath(displayPrefix, key)
		pol := policy.For(policyPath)

		dVal := desired[key]
		aVal, aExists := actual[key]

		switch {
		case pol.Relation:
			continue
		case pol.TagMap:
			if err := e.diffTagMap(displayPath, pol, dVal, aVal, tagMode, res); err != nil {
				return err
			}
		case pol.MergeKey != "":
			if err := e.diffKeyedList(ctx, policyPath, displayPath, pol, dVal, aVal, policy, tagMode, res); err != nil {
				return err
			}
		default:
			if dTree, ok := asTree(dVal); ok {
				aTree, _ := asTree(aVal)
				if aTree == nil {
					aTree = domain.SpecTree{}
				}
				if err := e.walk(ctx, policyPath, displayPath, dTree, aTree, policy, tagMode, res); err != nil {
					return err
				}
				continue
			}
			if err := e.diffScalar(displayPath, pol, dVal, aVal, aExists, res); err != nil {
				return err
			}
		}
	}

	// Purge pass: fields set on the provider but omitted from the
	// desired spec are cleared only under purge-if-absent policy.
	for _, key := range sortedKeys(actual) {
		if _, declared := desired[key]; declared {
			continue
		}
		policyPath := joinPath(policyPrefix, key)
		pol := policy.For(policyPath)
		if pol.Relation {
			continue
		}
		aVal := actual[key]
		if pol.PurgeIfAbsent && !reflectutil.IsEmpty(aVal) {
			res.Diffs = append(res.Diffs, domain.FieldDiff{
				Path:   joinPath(displayPrefix, key),
				Kind:   domain.DiffClear,
				Actual: aVal,
				Policy: pol,
			})
		}
	}

	return nil
}

func (e *Engine) diffScalar(path string, pol domain.FieldPolicy, dVal, aVal any, aExists bool, res *domain.DiffResult) error {
	// Explicit nil in the desired tree is the unset sentinel: skip
	// unless the policy purges, in which case clear a set actual value.
	if dVal == nil {
		if pol.PurgeIfAbsent && aExists && !reflectutil.IsEmpty(aVal) {
			res.Diffs = append(res.Diffs, domain.FieldDiff{
				Path:   path,
				Kind:   domain.DiffClear,
				Actual: aVal,
				Policy: pol,
			})
		}
		return nil
	}

	equal, err := fieldEqual(pol, dVal, aVal, aExists)
	if err != nil {
		return errors.Wrap(err, errors.CodeDiffError, fmt.Sprintf("comparing field '%s'", path))
	}
	if equal {
		return nil
	}

	actualSet := aExists && !reflectutil.IsEmpty(aVal)
	if pol.Immutable && actualSet {
		return errors.NewUserFacing(errors.CodeImmutableConflict,
			fmt.Sprintf("field '%s' is immutable: cannot change '%v' to '%v'", path, aVal, dVal),
			"Recreate the resource to change this field, or align the desired spec with the current value.")
	}

	kind := domain.DiffSet
	if !actualSet {
		kind = domain.DiffAdd
	}
	res.Diffs = append(res.Diffs, domain.FieldDiff{
		Path:    path,
		Kind:    kind,
		Desired: dVal,
		Actual:  aVal,
		Policy:  pol,
	})
	return nil
}

// fieldEqual applies the policy's comparison rules: unordered-set
// fields compare by membership, everything else by normalized value.
func fieldEqual(pol domain.FieldPolicy, dVal, aVal any, aExists bool) (bool, error) {
	if pol.Unordered {
		dSet, dErr := convert.ToSliceOfString(dVal)
		aSet, aErr := convert.ToSliceOfString(aVal)
		if dErr == nil && aErr == nil {
			return compare.Sets(dSet, aSet), nil
		}
	}
	return compare.Values(dVal, aVal, true, aExists, compare.Options{CaseInsensitive: pol.CaseInsensitive})
}

func (e *Engine) diffTagMap(path string, pol domain.FieldPolicy, dVal, aVal any, mode domain.TagMergeMode, res *domain.DiffResult) error {
	dMap, err := convert.ToStringMap(dVal)
	if err != nil {
		return errors.Wrap(err, errors.CodeDiffError, fmt.Sprintf("desired tags at '%s' are not a string map", path))
	}
	aMap, err := convert.ToStringMap(aVal)
	if err != nil {
		return errors.Wrap(err, errors.CodeDiffError, fmt.Sprintf("actual tags at '%s' are not a string map", path))
	}

	merged, changed := MergeTags(dMap, aMap, mode)
	if !changed {
		return nil
	}
	res.Diffs = append(res.Diffs, domain.FieldDiff{
		Path:    path,
		Kind:    domain.DiffSet,
		Desired: merged,
		Actual:  aMap,
		Policy:  pol,
	})
	return nil
}

// MergeTags combines desired tags with existing tags under the given
// mode and reports whether the merge differs from the existing map.
// The returned map is the full post-merge target set.
func MergeTags(desired, actual map[string]string, mode domain.TagMergeMode) (map[string]string, bool) {
	if actual == nil {
		actual = map[string]string{}
	}

	merged := make(map[string]string, len(actual)+len(desired))
	if mode != domain.TagMergeReplace {
		for k, v := range actual {
			merged[k] = v
		}
	}
	for k, v := range desired {
		merged[k] = v
	}

	if len(merged) != len(actual) {
		return merged, true
	}
	for k, v := range merged {
		if av, ok := actual[k]; !ok || av != v {
			return merged, true
		}
	}
	return merged, false
}

func (e *Engine) diffKeyedList(ctx context.Context, policyPath, displayPath string, pol domain.FieldPolicy, dVal, aVal any, policy domain.FieldPolicyMap, tagMode domain.TagMergeMode, res *domain.DiffResult) error {
	dItems, err := convert.ToSliceOfMap(dVal)
	if err != nil {
		return errors.Wrap(err, errors.CodeDiffError, fmt.Sprintf("desired list at '%s' is not a list of objects", displayPath))
	}
	aItems, err := convert.ToSliceOfMap(aVal)
	if err != nil {
		return errors.Wrap(err, errors.CodeDiffError, fmt.Sprintf("actual list at '%s' is not a list of objects", displayPath))
	}

	dByKey, err := indexByKey(dItems, pol.MergeKey, displayPath)
	if err != nil {
		return err
	}
	aByKey, err := indexByKey(aItems, pol.MergeKey, displayPath)
	if err != nil {
		return err
	}

	for _, key := range sortedMapKeys(dByKey) {
		dItem := dByKey[key]
		elemDisplay := fmt.Sprintf("%s[%s]", displayPath, key)
		aItem, matched := aByKey[key]
		if !matched {
			res.Diffs = append(res.Diffs, domain.FieldDiff{
				Path:    elemDisplay,
				Kind:    domain.DiffAdd,
				Desired: dItem,
				Policy:  pol,
			})
			continue
		}

		// Matched elements recurse under the same rules; the merge key
		// itself matched by construction and is excluded.
		dSub := domain.SpecTree(dItem).Clone()
		aSub := domain.SpecTree(aItem).Clone()
		delete(dSub, pol.MergeKey)
		delete(aSub, pol.MergeKey)
		if err := e.walk(ctx, policyPath, elemDisplay, dSub, aSub, policy, tagMode, res); err != nil {
			return err
		}
	}

	if pol.PurgeIfAbsent {
		for _, key := range sortedMapKeys(aByKey) {
			if _, declared := dByKey[key]; declared {
				continue
			}
			res.Diffs = append(res.Diffs, domain.FieldDiff{
				Path:   fmt.Sprintf("%s[%s]", displayPath, key),
				Kind:   domain.DiffRemove,
				Actual: aByKey[key],
				Policy: pol,
			})
		}
	}

	return nil
}

func indexByKey(items []map[string]any, mergeKey, path string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(items))
	for _, item := range items {
		keyVal, ok := item[mergeKey]
		if !ok || keyVal == nil {
			return nil, errors.Newf(errors.CodeDiffError,
				"list element at '%s' missing merge key '%s'", path, mergeKey)
		}
		keyStr := fmt.Sprintf("%v", keyVal)
		if _, dup := out[keyStr]; dup {
			return nil, errors.Newf(errors.CodeDiffError,
				"duplicate merge key '%s' in list at '%s'", keyStr, path)
		}
		out[keyStr] = item
	}
	return out, nil
}

func sortedMapKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
