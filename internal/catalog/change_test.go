package catalog

import (
	"context"
	"testing"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChange(t *testing.T, fc *flowctx.Store, rules []interface{}) (*Change, *recvStub) {
	t.Helper()
	reg := registry.New(nil)
	registerChange(reg, Deps{FlowCtx: fc})
	ctor := reg.GetNodeConstructor("change")
	require.NotNil(t, ctor)

	inst, err := ctor(map[string]interface{}{
		"id": "c1", "type": "change", "z": "f1",
		"rules": rules,
	})
	require.NoError(t, err)
	c := inst.(*Change)

	sink := &recvStub{id: "sink"}
	c.SetOutputs([][]node.Receiver{{sink}})
	return c, sink
}

func TestChangeSetRuleWritesTypedValue(t *testing.T) {
	c, sink := buildChange(t, flowctx.New(), []interface{}{
		map[string]interface{}{"t": "set", "p": "payload", "pt": "msg", "to": "42", "tot": "num"},
	})
	c.Receive(context.Background(), model.New("old"))
	require.Len(t, sink.got, 1)
	assert.Equal(t, 42.0, sink.got[0].Payload)
}

func TestChangeRulesApplyInOrder(t *testing.T) {
	c, sink := buildChange(t, flowctx.New(), []interface{}{
		map[string]interface{}{"t": "set", "p": "a", "pt": "msg", "to": "first", "tot": "str"},
		map[string]interface{}{"t": "set", "p": "b", "pt": "msg", "to": "a", "tot": "msg"},
		map[string]interface{}{"t": "delete", "p": "a", "pt": "msg"},
	})
	c.Receive(context.Background(), model.New(nil))
	require.Len(t, sink.got, 1)

	b, err := sink.got[0].Get("b")
	require.NoError(t, err)
	assert.Equal(t, "first", b)
	a, err := sink.got[0].Get("a")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestChangeMoveReadsDeletesThenWrites(t *testing.T) {
	c, sink := buildChange(t, flowctx.New(), []interface{}{
		map[string]interface{}{"t": "move", "from": "src", "fromt": "msg", "p": "dst", "pt": "msg"},
	})
	msg := model.New(nil)
	require.NoError(t, msg.Set("src", "v", true))
	c.Receive(context.Background(), msg)
	require.Len(t, sink.got, 1)

	dst, err := sink.got[0].Get("dst")
	require.NoError(t, err)
	assert.Equal(t, "v", dst)
	src, err := sink.got[0].Get("src")
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestChangeStringReplaceLiteralAndRegex(t *testing.T) {
	c, sink := buildChange(t, flowctx.New(), []interface{}{
		map[string]interface{}{"t": "change", "p": "payload", "pt": "msg", "from": "l", "to": "L", "tot": "str"},
	})
	c.Receive(context.Background(), model.New("hello"))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "heLLo", sink.got[0].Payload)

	cre, sinkRe := buildChange(t, flowctx.New(), []interface{}{
		map[string]interface{}{"t": "change", "p": "payload", "pt": "msg", "from": "[0-9]+", "to": "#", "tot": "str", "re": true},
	})
	cre.Receive(context.Background(), model.New("abc123def456"))
	require.Len(t, sinkRe.got, 1)
	assert.Equal(t, "abc#def#", sinkRe.got[0].Payload)
}

func TestChangeSetFlowContextValue(t *testing.T) {
	fc := flowctx.New()
	c, sink := buildChange(t, fc, []interface{}{
		map[string]interface{}{"t": "set", "p": "mode", "pt": "flow", "to": "fast", "tot": "str"},
	})
	c.Receive(context.Background(), model.New(nil))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "fast", fc.GetFlow("f1", "mode"))
}
