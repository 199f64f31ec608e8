package catalog

import (
	"context"
	"testing"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

type recvStub struct {
	id  string
	got []*model.Message
}

func (r *recvStub) ID() string { return r.id }
func (r *recvStub) Receive(ctx context.Context, msg *model.Message) { r.got = append(r.got, msg) }

func newSwitchNode(t *testing.T) (*Switch, *recvStub, *recvStub) {
	t.Helper()
	reg := registry.New(nil)
	registerSwitch(reg, Deps{})

	ctor := reg.GetNodeConstructor("switch")
	require.NotNil(t, ctor)

	raw := map[string]interface{}{
		"id": "sw1", "type": "switch", "z": "f1",
		"property": "payload",
		"rules": []interface{}{
			map[string]interface{}{"t": "lt", "v": "10", "vt": "num"},
			map[string]interface{}{"t": "gte", "v": "10", "vt": "num"},
		},
		"checkall": true,
	}
	inst, err := ctor(raw)
	require.NoError(t, err)
	sw := inst.(*Switch)

	portLo, portHi := &recvStub{id: "lo"}, &recvStub{id: "hi"}
	sw.SetOutputs([][]node.Receiver{{portLo}, {portHi}})
	return sw, portLo, portHi
}

func TestSwitchRoutesBelowThresholdToPortZero(t *testing.T) {
	sw, lo, hi := newSwitchNode(t)
	sw.Receive(context.Background(), model.New(float64(5)))
	require.Len(t, lo.got, 1)
	require.Len(t, hi.got, 0)
}

func TestSwitchRoutesAtThresholdToPortOne(t *testing.T) {
	sw, lo, hi := newSwitchNode(t)
	sw.Receive(context.Background(), model.New(float64(10)))
	require.Len(t, lo.got, 0)
	require.Len(t, hi.got, 1)
}

func TestSwitchRoutesAboveThresholdToPortOne(t *testing.T) {
	sw, lo, hi := newSwitchNode(t)
	sw.Receive(context.Background(), model.New(float64(15)))
	require.Len(t, lo.got, 0)
	require.Len(t, hi.got, 1)
}
