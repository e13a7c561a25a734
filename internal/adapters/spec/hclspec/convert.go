package hclspec

import (
	"context"
	"math"
	"math/big"

	jsoniter "github.com/json-iterator/go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// convertCtyValue lowers an evaluated HCL value into plain Go values
// suitable for a spec tree. Integral numbers become int64 so they
// compare cleanly against provider-reported sizes.
func convertCtyValue(ctx context.Context, val cty.Value, logger ports.Logger) (any, error) {
	if !val.IsKnown() {
		return nil, errors.New(errors.CodeSpecParseError, "cannot convert unknown value")
	}
	if val.IsNull() {
		return nil, nil
	}

	var goVal any
	err := gocty.FromCtyValue(val, &goVal)
	if err == nil {
		if val.Type().Equals(cty.Number) {
			bf := val.AsBigFloat()
			if i64, acc := bf.Int64(); acc == big.Exact {
				return i64, nil
			}
			f64, _ := bf.Float64()
			if !math.IsInf(f64, 0) {
				return f64, nil
			}
			return bf.Text('g', -1), nil
		}
		if numVal, ok := goVal.(float64); ok {
			if numVal >= math.MinInt64 && numVal <= math.MaxInt64 && float64(int64(numVal)) == numVal {
				return int64(numVal), nil
			}
		}
		return goVal, nil
	}

	logger.Debugf(ctx, "gocty conversion failed (%v), falling back to JSON intermediate", err)

	jsonBytes, marshalErr := ctyjson.Marshal(val, val.Type())
	if marshalErr != nil {
		return nil, errors.Wrapf(marshalErr, errors.CodeSpecParseError,
			"marshaling value (%s) to intermediary JSON", val.Type().FriendlyName())
	}

	var finalGoVal any
	var json = jsoniter.ConfigCompatibleWithStandardLibrary
	if unmarshalErr := json.Unmarshal(jsonBytes, &finalGoVal); unmarshalErr != nil {
		return nil, errors.Wrapf(unmarshalErr, errors.CodeSpecParseError,
			"unmarshaling intermediary JSON (%s)", val.Type().FriendlyName())
	}

	return normalizeJSONNumbers(finalGoVal), nil
}

// normalizeJSONNumbers rewrites integral float64 values from the JSON
// fallback path to int64, matching the direct conversion path.
func normalizeJSONNumbers(v any) any {
	switch typed := v.(type) {
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed)
		}
		return typed
	case map[string]any:
		for k, elem := range typed {
			typed[k] = normalizeJSONNumbers(elem)
		}
		return typed
	case []any:
		for i, elem := range typed {
			typed[i] = normalizeJSONNumbers(elem)
		}
		return typed
	default:
		return v
	}
}
