package catalog

import (
	"context"
	"testing"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

// TestSplitThenJoinAutoRoundTripsArray exercises the split/join
// round-trip property: Split -> Join(auto) emits a single message
// whose payload equals the original list, elementwise, in order.
func TestSplitThenJoinAutoRoundTripsArray(t *testing.T) {
	reg := registry.New(nil)
	registerSplitJoin(reg, Deps{})

	splitCtor := reg.GetNodeConstructor("split")
	joinCtor := reg.GetNodeConstructor("join")
	require.NotNil(t, splitCtor)
	require.NotNil(t, joinCtor)

	splitInst, err := splitCtor(map[string]interface{}{
		"id": "split1", "type": "split", "z": "f1", "spltype": "array",
	})
	require.NoError(t, err)
	split := splitInst.(*Split)

	joinInst, err := joinCtor(map[string]interface{}{
		"id": "join1", "type": "join", "z": "f1", "mode": "auto", "build": "array",
	})
	require.NoError(t, err)
	join := joinInst.(*Join)

	out := &recvStub{id: "out"}
	join.SetOutputs([][]node.Receiver{{out}})
	split.SetOutputs([][]node.Receiver{{join}})

	payload := []interface{}{float64(1), float64(2), float64(3)}
	split.Receive(context.Background(), model.New(payload))

	require.Len(t, out.got, 1, "join should emit exactly one reassembled message")
	require.Equal(t, payload, out.got[0].Payload)
}

// With no explicit build config, auto mode reassembles to the shape
// parts.type records — a split string comes back as a string, rejoined
// with the splitter's separator.
func TestSplitThenJoinAutoFollowsPartsType(t *testing.T) {
	reg := registry.New(nil)
	registerSplitJoin(reg, Deps{})

	splitInst, err := reg.GetNodeConstructor("split")(map[string]interface{}{
		"id": "split2", "type": "split", "z": "f1", "spltype": "string", "splt": ",",
	})
	require.NoError(t, err)
	split := splitInst.(*Split)

	joinInst, err := reg.GetNodeConstructor("join")(map[string]interface{}{
		"id": "join2", "type": "join", "z": "f1", "mode": "auto",
	})
	require.NoError(t, err)
	join := joinInst.(*Join)

	out := &recvStub{id: "out"}
	join.SetOutputs([][]node.Receiver{{out}})
	split.SetOutputs([][]node.Receiver{{join}})

	split.Receive(context.Background(), model.New("a,b,c"))

	require.Len(t, out.got, 1)
	require.Equal(t, "a,b,c", out.got[0].Payload)
}

func TestJoinManualCompletesByCount(t *testing.T) {
	reg := registry.New(nil)
	registerSplitJoin(reg, Deps{})

	joinInst, err := reg.GetNodeConstructor("join")(map[string]interface{}{
		"id": "join3", "type": "join", "z": "f1", "mode": "manual", "build": "array", "count": 2.0,
	})
	require.NoError(t, err)
	join := joinInst.(*Join)

	out := &recvStub{id: "out"}
	join.SetOutputs([][]node.Receiver{{out}})

	join.Receive(context.Background(), model.New("x"))
	require.Len(t, out.got, 0)
	join.Receive(context.Background(), model.New("y"))
	require.Len(t, out.got, 1)
	require.Equal(t, []interface{}{"x", "y"}, out.got[0].Payload)
}
