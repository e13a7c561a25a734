package convert

import (
	"fmt"
	"reflect"
)

var (
	errNotMap         = fmt.Errorf("input data is not a map")
	errNotStringValue = fmt.Errorf("map value is not a string")
	errNotSlice       = fmt.Errorf("input data is not a slice")
	errNotMapElement  = fmt.Errorf("slice element is not a map[string]any")
)

// ToStringMap converts map[string]any or map[string]string to
// map[string]string. Nil input yields a nil map, not an error.
func ToStringMap(data any) (map[string]string, error) {
	if data == nil {
		return nil, nil
	}
	if m, ok := data.(map[string]string); ok {
		return m, nil
	}
	if mAny, ok := data.(map[string]any); ok {
		result := make(map[string]string, len(mAny))
		for k, v := range mAny {
			vStr, okStr := v.(string)
			if !okStr {
				return nil, fmt.Errorf("key '%s': %w (type %T)", k, errNotStringValue, v)
			}
			result[k] = vStr
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: input type %T", errNotMap, data)
}

// ToSliceOfString converts []string or any slice (via fmt formatting)
// to []string. Nil input yields an empty slice.
func ToSliceOfString(data any) ([]string, error) {
	if data == nil {
		return []string{}, nil
	}
	if slice, ok := data.([]string); ok {
		return slice, nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: input type %T", errNotSlice, data)
	}

	result := make([]string, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		result = append(result, fmt.Sprintf("%v", val.Index(i).Interface()))
	}
	return result, nil
}

// ToSliceOfMap converts []map[string]any or []any of maps to
// []map[string]any. Nil input yields an empty slice.
func ToSliceOfMap(data any) ([]map[string]any, error) {
	if data == nil {
		return []map[string]any{}, nil
	}
	if sliceMap, ok := data.([]map[string]any); ok {
		return sliceMap, nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: input type %T", errNotSlice, data)
	}

	result := make([]map[string]any, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		item := val.Index(i).Interface()
		mapItem, okMap := item.(map[string]any)
		if !okMap {
			return nil, fmt.Errorf("index %d: %w (type %T)", i, errNotMapElement, item)
		}
		result = append(result, mapItem)
	}
	return result, nil
}

// ToInt64 coerces ints, uints, floats with integral values, and numeric
// strings to int64.
func ToInt64(data any) (int64, error) {
	val := reflect.ValueOf(data)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if f == float64(int64(f)) {
			return int64(f), nil
		}
		return 0, fmt.Errorf("float %v is not integral", f)
	case reflect.String:
		var n int64
		_, err := fmt.Sscan(val.String(), &n)
		if err != nil {
			return 0, fmt.Errorf("string %q is not numeric: %w", val.String(), err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", data)
	}
}
