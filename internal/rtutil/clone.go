package rtutil

// DeepClone returns a structural copy of v for JSON-compatible values:
// maps, slices, strings, numbers, bools, nil, and []byte (copied by
// value, same as everything else). It does not attempt to clone
// arbitrary struct/pointer values — the runtime only ever stores
// JSON-shaped data in message payloads and properties; req/res are
// handled at a higher layer (pkg/model.Message.Clone) precisely because
// they are NOT JSON-compatible and must bypass this function.
func DeepClone(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = DeepClone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = DeepClone(e)
		}
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	default:
		// strings, numbers, bools, nil, and anything else we don't
		// recognize as a container are immutable or opaque to us.
		return v
	}
}
