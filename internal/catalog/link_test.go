package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLinker struct {
	nodes map[string]node.Receiver
}

func (l mapLinker) GetNode(id string) (node.Receiver, bool) {
	r, ok := l.nodes[id]
	return r, ok
}

// echoReturn plays the role of a link-in wired to a link-out in return
// mode: it answers the waiting call immediately.
type echoReturn struct {
	calls *LinkCallRegistry
}

func (e *echoReturn) ID() string { return "echo" }
func (e *echoReturn) Receive(ctx context.Context, msg *model.Message) {
	src, _ := msg.Get("_linkSource")
	callID, _ := src.(map[string]interface{})["callId"].(string)
	reply := msg.Clone()
	reply.Payload = "answered"
	e.calls.resolve(callID, reply)
}

func buildLinkCall(t *testing.T, timeout float64, linker Linker, calls *LinkCallRegistry) (*LinkCall, *chanRecv) {
	t.Helper()
	reg := registry.New(nil)
	registerLink(reg, Deps{Linker: linker, LinkCalls: calls})
	ctor := reg.GetNodeConstructor("link call")
	require.NotNil(t, ctor)

	inst, err := ctor(map[string]interface{}{
		"id": "lc1", "type": "link call", "z": "f1",
		"links": []interface{}{"target"}, "timeout": timeout,
	})
	require.NoError(t, err)
	lc := inst.(*LinkCall)

	sink := newChanRecv("sink")
	lc.SetOutputs([][]node.Receiver{{sink}})
	return lc, sink
}

func TestLinkCallRoundTripStripsCorrelationID(t *testing.T) {
	calls := NewLinkCallRegistry()
	linker := mapLinker{nodes: map[string]node.Receiver{"target": &echoReturn{calls: calls}}}
	lc, sink := buildLinkCall(t, 1.0, linker, calls)

	require.NoError(t, lc.handle(context.Background(), model.New("ask")))

	reply := sink.wait(t, time.Second)
	assert.Equal(t, "answered", reply.Payload)
	src, err := reply.Get("_linkSource")
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestLinkCallTimeoutRemovesPendingAndErrors(t *testing.T) {
	calls := NewLinkCallRegistry()
	silent := &recvStub{id: "target"}
	linker := mapLinker{nodes: map[string]node.Receiver{"target": silent}}
	lc, sink := buildLinkCall(t, 0.05, linker, calls)

	err := lc.handle(context.Background(), model.New("ask"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	calls.mu.Lock()
	pending := len(calls.pending)
	calls.mu.Unlock()
	assert.Zero(t, pending)
	sink.expectNone(t, 50*time.Millisecond)
}

func TestLinkCallRejectsNestedCall(t *testing.T) {
	calls := NewLinkCallRegistry()
	lc, _ := buildLinkCall(t, 1.0, mapLinker{nodes: map[string]node.Receiver{}}, calls)

	msg := model.New("ask")
	require.NoError(t, msg.Set("_linkSource", map[string]interface{}{"id": "other", "callId": "outer"}, true))
	err := lc.handle(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested")
}

func TestLinkOutLinkModeClonesToEveryTarget(t *testing.T) {
	a := &recvStub{id: "a"}
	b := &recvStub{id: "b"}
	linker := mapLinker{nodes: map[string]node.Receiver{"a": a, "b": b}}

	reg := registry.New(nil)
	registerLink(reg, Deps{Linker: linker, LinkCalls: NewLinkCallRegistry()})
	ctor := reg.GetNodeConstructor("link out")
	require.NotNil(t, ctor)

	inst, err := ctor(map[string]interface{}{
		"id": "lo1", "type": "link out", "z": "f1",
		"mode": "link", "links": []interface{}{"a", "b"},
	})
	require.NoError(t, err)
	lo := inst.(*LinkOut)

	src := model.New("x")
	lo.Receive(context.Background(), src)

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	assert.Equal(t, "x", a.got[0].Payload)
	assert.NotSame(t, src, a.got[0])
	assert.NotSame(t, src, b.got[0])
}
