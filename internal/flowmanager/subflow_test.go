package flowmanager

import (
	"context"
	"testing"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoInstance forwards every received message straight out its first
// port, standing in for a subflow-internal processing node.
type echoInstance struct {
	id      string
	outputs [][]node.Receiver
}

func (e *echoInstance) ID() string                           { return e.id }
func (e *echoInstance) Close(removed bool) error             { return nil }
func (e *echoInstance) SetOutputs(o [][]node.Receiver)       { e.outputs = o }
func (e *echoInstance) Receive(ctx context.Context, msg *model.Message) {
	if len(e.outputs) == 0 {
		return
	}
	for _, dest := range e.outputs[0] {
		dest.Receive(ctx, msg)
	}
}

type captureInstance struct {
	fakeInstance
	got []*model.Message
}

func (c *captureInstance) Receive(ctx context.Context, msg *model.Message) {
	c.got = append(c.got, msg)
}

func newSubflowManager(t *testing.T) *Manager {
	t.Helper()
	reg := registry.New(nil)
	reg.AddModule(&registry.Module{Name: "node-red", Nodes: map[string]*registry.NodeSet{
		"core": {Name: "core", ModuleName: "node-red", Types: []string{"echo", "capture"}},
	}})
	require.NoError(t, reg.RegisterNodeConstructor("node-red/core", "echo", func(raw map[string]interface{}) (interface{}, error) {
		id, _ := raw["id"].(string)
		return &echoInstance{id: id}, nil
	}, registry.ConstructorOpts{}))
	require.NoError(t, reg.RegisterNodeConstructor("node-red/core", "capture", func(raw map[string]interface{}) (interface{}, error) {
		id, _ := raw["id"].(string)
		return &captureInstance{fakeInstance: fakeInstance{id: id}}, nil
	}, registry.ConstructorOpts{}))
	return New(reg, &memStorage{}, nil, nil, nil, nil)
}

func subflowConfig() []model.Element {
	return []model.Element{
		elem("f1", "tab", "", nil),
		elem("s1", "subflow", "", map[string]interface{}{
			"name": "doubler",
			"in": []interface{}{
				map[string]interface{}{"wires": []interface{}{map[string]interface{}{"id": "n1"}}},
			},
			"out": []interface{}{
				map[string]interface{}{"wires": []interface{}{map[string]interface{}{"id": "n1", "port": 0.0}}},
			},
			"env": []interface{}{
				map[string]interface{}{"name": "mode", "type": "str", "value": "fast"},
			},
		}),
		elem("n1", "echo", "s1", nil),
		elem("i1", "subflow:s1", "f1", map[string]interface{}{
			"wires": []interface{}{[]interface{}{"sink"}},
		}),
		elem("sink", "capture", "f1", nil),
	}
}

func TestSubflowInstanceRoutesThroughTemplateInterior(t *testing.T) {
	m := newSubflowManager(t)
	require.NoError(t, m.SetFlows(context.Background(), subflowConfig(), Nodes, true))

	inst := m.GetNode("i1")
	require.NotNil(t, inst)
	recv, ok := inst.(node.Receiver)
	require.True(t, ok)

	recv.Receive(context.Background(), model.New("ping"))

	sink := m.GetNode("sink").(*captureInstance)
	require.Len(t, sink.got, 1)
	assert.Equal(t, "ping", sink.got[0].Payload)
}

func TestSubflowTemplateInteriorDoesNotRunStandalone(t *testing.T) {
	m := newSubflowManager(t)
	require.NoError(t, m.SetFlows(context.Background(), subflowConfig(), Nodes, true))

	// the template's own n1 never joins the active index; only the
	// instance's fresh-id copy runs, inside the instance's child flow.
	assert.Nil(t, m.GetNode("n1"))
	assert.Nil(t, m.GetNode("s1"))
}

func TestSubflowEnvMaterializedIntoInstanceNamespace(t *testing.T) {
	m := newSubflowManager(t)
	env := map[string]interface{}{}
	m.SetEnvStore(func(flowID, name string, value interface{}) {
		env[flowID+"/"+name] = value
	})
	require.NoError(t, m.SetFlows(context.Background(), subflowConfig(), Nodes, true))

	assert.Equal(t, "fast", env["i1/mode"])
}

func TestChangedTemplateInteriorRestartsInstances(t *testing.T) {
	m := newSubflowManager(t)
	require.NoError(t, m.SetFlows(context.Background(), subflowConfig(), Nodes, true))
	before := m.GetNode("i1")
	require.NotNil(t, before)

	next := subflowConfig()
	for _, el := range next {
		if el.ID() == "n1" {
			el["extra"] = "changed"
		}
	}
	require.NoError(t, m.SetFlows(context.Background(), next, Nodes, true))

	after := m.GetNode("i1")
	require.NotNil(t, after)
	assert.NotSame(t, before, after)
}
