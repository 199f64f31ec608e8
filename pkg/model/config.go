package model

import "github.com/rauldose/node-red-new-sub000/internal/rtutil"

// Element is one entry of the flow config wire format: a flat JSON
// array mixing tabs, subflows, groups, config
// nodes, and regular nodes, discriminated by "type" and keyed by "id".
// Kept as an open map (rather than a closed struct) because node-type-
// specific properties vary arbitrarily and the diffing/storage layer
// never needs to interpret them.
type Element map[string]interface{}

func (e Element) ID() string { return stringField(e, "id") }

func (e Element) Type() string { return stringField(e, "type") }

// Z is the owning flow (or subflow-interior id) for nodes/groups;
// empty for tabs, subflows, and config nodes.
func (e Element) Z() string { return stringField(e, "z") }

func (e Element) Disabled() bool {
	v, _ := e["d"].(bool)
	return v
}

// Wires returns the output-port destination table. Missing/malformed
// entries yield an empty table rather than an error: the wire format
// is produced by the (out of scope) editor, not validated here.
func (e Element) Wires() [][]string {
	raw, ok := e["wires"].([]interface{})
	if !ok {
		return nil
	}
	out := make([][]string, 0, len(raw))
	for _, port := range raw {
		destsRaw, ok := port.([]interface{})
		if !ok {
			out = append(out, nil)
			continue
		}
		dests := make([]string, 0, len(destsRaw))
		for _, d := range destsRaw {
			if s, ok := d.(string); ok {
				dests = append(dests, s)
			}
		}
		out = append(out, dests)
	}
	return out
}

func stringField(e Element, key string) string {
	v, _ := e[key].(string)
	return v
}

// editorOnlyKeys are stripped before the deep-equality comparison the
// flow manager uses to classify a node as "changed": position and
// selection state never affect runtime behavior.
var editorOnlyKeys = map[string]bool{"x": true, "y": true, "selected": true, "moved": true}

// Clone deep-copies e, dropping nothing (used when snapshotting the
// canonical config).
func (e Element) Clone() Element {
	cloned := rtutil.DeepClone(map[string]interface{}(e))
	m, _ := cloned.(map[string]interface{})
	return Element(m)
}

// EqualIgnoringEditorFields reports whether a and b are deep-equal
// once editor-only keys (x, y, selected, moved) are excluded from
// both sides.
func EqualIgnoringEditorFields(a, b Element) bool {
	return rtutil.DeepEqual(stripEditorFields(a), stripEditorFields(b))
}

func stripEditorFields(e Element) map[string]interface{} {
	out := make(map[string]interface{}, len(e))
	for k, v := range e {
		if editorOnlyKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
