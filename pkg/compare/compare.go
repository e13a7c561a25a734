package compare

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/olusolaa/cloud-reconciler/pkg/reflectutil"
)

// Options tune value comparison.
type Options struct {
	// CaseInsensitive lowercases strings before comparing (enum-style
	// fields where providers echo values in arbitrary casing).
	CaseInsensitive bool
}

// Values reports whether desired and actual are equal for reconciliation
// purposes, honoring existence flags. An absent value and an empty
// collection normalize to the same thing. Numeric values compare by
// magnitude regardless of Go type; numeric strings coerce.
func Values(desired, actual any, desiredExists, actualExists bool, opts Options) (bool, error) {
	if !desiredExists && !actualExists {
		return true, nil
	}
	if !desiredExists {
		return reflectutil.IsEmpty(actual), nil
	}
	if !actualExists {
		return reflectutil.IsEmpty(desired), nil
	}

	if desired == nil && actual == nil {
		return true, nil
	}
	if desired == nil || actual == nil {
		return reflectutil.IsEmpty(desired) && reflectutil.IsEmpty(actual), nil
	}

	dVal := reflectutil.Deref(reflect.ValueOf(desired))
	aVal := reflectutil.Deref(reflect.ValueOf(actual))

	if !dVal.IsValid() && !aVal.IsValid() {
		return true, nil
	}
	if !dVal.IsValid() || !aVal.IsValid() {
		return false, nil
	}

	dType := dVal.Type()
	aType := aVal.Type()

	if (!dType.Comparable() || !aType.Comparable()) && dVal.Kind() == aVal.Kind() {
		switch dVal.Kind() {
		case reflect.Map:
			return mapsEqual(dVal, aVal, opts)
		case reflect.Slice:
			return slicesEqual(dVal, aVal, opts)
		default:
			return false, fmt.Errorf("cannot compare non-comparable types %s and %s", dType, aType)
		}
	}

	if dVal.Kind() == reflect.Bool || aVal.Kind() == reflect.Bool {
		dBool, dOk := toBool(dVal)
		aBool, aOk := toBool(aVal)
		if dOk && aOk {
			return dBool == aBool, nil
		}
	}

	if reflectutil.IsNumberOrNumericString(dVal) && reflectutil.IsNumberOrNumericString(aVal) {
		dFloat, dOk := reflectutil.ToFloat64(dVal)
		aFloat, aOk := reflectutil.ToFloat64(aVal)
		if dOk && aOk {
			const tolerance = 1e-9
			diff := dFloat - aFloat
			return diff < tolerance && diff > -tolerance, nil
		}
	}

	if dVal.Kind() == reflect.String && aVal.Kind() == reflect.String {
		ds, as := dVal.String(), aVal.String()
		if opts.CaseInsensitive {
			return strings.EqualFold(ds, as), nil
		}
		return ds == as, nil
	}

	if dType == aType && dType.Comparable() {
		return dVal.Interface() == aVal.Interface(), nil
	}

	return false, nil
}

func mapsEqual(dMapVal, aMapVal reflect.Value, opts Options) (bool, error) {
	if dMapVal.Len() != aMapVal.Len() {
		return false, nil
	}
	if dMapVal.Len() == 0 {
		return true, nil
	}

	aByKey := make(map[string]reflect.Value, aMapVal.Len())
	iter := aMapVal.MapRange()
	for iter.Next() {
		aByKey[fmt.Sprintf("%v", iter.Key().Interface())] = iter.Value()
	}

	iter = dMapVal.MapRange()
	for iter.Next() {
		keyStr := fmt.Sprintf("%v", iter.Key().Interface())
		aV, exists := aByKey[keyStr]
		if !exists {
			return false, nil
		}
		equal, err := Values(iter.Value().Interface(), aV.Interface(), true, true, opts)
		if err != nil {
			return false, fmt.Errorf("map key '%s': %w", keyStr, err)
		}
		if !equal {
			return false, nil
		}
	}
	return true, nil
}

func slicesEqual(dSliceVal, aSliceVal reflect.Value, opts Options) (bool, error) {
	if dSliceVal.Len() != aSliceVal.Len() {
		return false, nil
	}
	for i := 0; i < dSliceVal.Len(); i++ {
		equal, err := Values(dSliceVal.Index(i).Interface(), aSliceVal.Index(i).Interface(), true, true, opts)
		if err != nil {
			return false, fmt.Errorf("slice index %d: %w", i, err)
		}
		if !equal {
			return false, nil
		}
	}
	return true, nil
}

func toBool(val reflect.Value) (bool, bool) {
	if val.Kind() == reflect.Bool {
		return val.Bool(), true
	}
	if val.Kind() == reflect.String {
		b, err := strconv.ParseBool(val.String())
		if err == nil {
			return b, true
		}
	}
	return false, false
}

// Sets reports whether two string slices contain the same elements,
// ignoring order and duplicates.
func Sets(a, b []string) bool {
	seenA := make(map[string]struct{}, len(a))
	for _, s := range a {
		seenA[s] = struct{}{}
	}
	seenB := make(map[string]struct{}, len(b))
	for _, s := range b {
		seenB[s] = struct{}{}
	}
	if len(seenA) != len(seenB) {
		return false
	}
	for s := range seenA {
		if _, ok := seenB[s]; !ok {
			return false
		}
	}
	return true
}

// TreeDiff renders a human-readable structural diff of two trees,
// treating nil and empty collections as equal. Used for reporting and
// test failure output, never for policy decisions.
func TreeDiff(desired, actual map[string]any) string {
	return cmp.Diff(actual, desired, cmpopts.EquateEmpty())
}

// TreesEqual is the normalized structural equality used by idempotence
// checks: equal iff the trees match after empty/nil normalization.
func TreesEqual(desired, actual map[string]any) bool {
	return cmp.Equal(desired, actual, cmpopts.EquateEmpty())
}
