package flowmanager

import (
	"testing"

	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/assert"
)

func elem(id, typ, z string, extra map[string]interface{}) model.Element {
	e := model.Element{"id": id, "type": typ}
	if z != "" {
		e["z"] = z
	}
	for k, v := range extra {
		e[k] = v
	}
	return e
}

func TestComputeDiffFullMarksEverythingRemovedAndAdded(t *testing.T) {
	old := []model.Element{elem("a", "inject", "f1", nil)}
	next := []model.Element{elem("b", "debug", "f1", nil)}

	d := computeDiff(old, next, Full)
	assert.Equal(t, []string{"a"}, d.Removed)
	assert.Equal(t, []string{"b"}, d.Added)
}

func TestComputeDiffNodesClassifiesAddedRemovedChanged(t *testing.T) {
	old := []model.Element{
		elem("a", "inject", "f1", map[string]interface{}{"name": "one"}),
		elem("b", "debug", "f1", nil),
	}
	next := []model.Element{
		elem("a", "inject", "f1", map[string]interface{}{"name": "two"}),
		elem("c", "debug", "f1", nil),
	}

	d := computeDiff(old, next, Nodes)
	assert.Equal(t, []string{"c"}, d.Added)
	assert.Equal(t, []string{"b"}, d.Removed)
	assert.Equal(t, []string{"a"}, d.Changed)
}

func TestComputeDiffIgnoresEditorOnlyFields(t *testing.T) {
	old := []model.Element{elem("a", "inject", "f1", map[string]interface{}{"x": 100.0, "y": 50.0})}
	next := []model.Element{elem("a", "inject", "f1", map[string]interface{}{"x": 999.0, "y": 1.0})}

	d := computeDiff(old, next, Nodes)
	assert.Empty(t, d.Changed)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

func TestComputeDiffDetectsRewiredOnly(t *testing.T) {
	old := []model.Element{elem("a", "inject", "f1", map[string]interface{}{
		"wires": []interface{}{[]interface{}{"x"}},
	})}
	next := []model.Element{elem("a", "inject", "f1", map[string]interface{}{
		"wires": []interface{}{[]interface{}{"y"}},
	})}

	d := computeDiff(old, next, Nodes)
	assert.Equal(t, []string{"a"}, d.Rewired)
	assert.Empty(t, d.Changed)
}

func TestComputeDiffMarksUpstreamOfChangedAsLinked(t *testing.T) {
	old := []model.Element{
		elem("a", "debug", "f1", map[string]interface{}{"name": "one"}),
		elem("b", "inject", "f1", map[string]interface{}{"wires": []interface{}{[]interface{}{"a"}}}),
	}
	next := []model.Element{
		elem("a", "debug", "f1", map[string]interface{}{"name": "two"}),
		elem("b", "inject", "f1", map[string]interface{}{"wires": []interface{}{[]interface{}{"a"}}}),
	}

	d := computeDiff(old, next, Nodes)
	assert.Equal(t, []string{"a"}, d.Changed)
	assert.Equal(t, []string{"b"}, d.Linked)
}
