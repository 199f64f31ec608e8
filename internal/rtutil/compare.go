package rtutil

import "reflect"

// DeepEqual does a JSON-level equality check: two values compare equal
// if their JSON representations would be equal, ignoring Go-level type
// distinctions (int vs float64, for instance) that don't survive a
// JSON round trip. Settings.Set and FlowManager's diff both rely on
// this rather than reflect.DeepEqual directly, since config coming off
// the wire is all float64/string/bool/map/slice.
func DeepEqual(a, b interface{}) bool {
	return deepEqual(normalizeForCompare(a), normalizeForCompare(b))
}

func deepEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// normalizeForCompare widens Go's native int/int32/int64/float32 number
// kinds to float64 so values built in Go code compare equal to their
// JSON-decoded equivalents.
func normalizeForCompare(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalizeForCompare(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeForCompare(e)
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
