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

func buildTrigger(t *testing.T, raw map[string]interface{}) (*Trigger, *chanRecv) {
	t.Helper()
	reg := registry.New(nil)
	registerTrigger(reg, Deps{})
	ctor := reg.GetNodeConstructor("trigger")
	require.NotNil(t, ctor)

	inst, err := ctor(raw)
	require.NoError(t, err)
	tr := inst.(*Trigger)

	sink := newChanRecv("sink")
	tr.SetOutputs([][]node.Receiver{{sink}})
	return tr, sink
}

func TestTriggerBlockModeOneCyclePerArming(t *testing.T) {
	tr, sink := buildTrigger(t, map[string]interface{}{
		"id": "t1", "type": "trigger", "z": "f1",
		"op1": "go", "op1type": "str", "op2type": "nul",
		"duration": 0.1,
	})
	defer tr.Close(false)

	for i := 0; i < 3; i++ {
		tr.Receive(context.Background(), model.New(float64(i)))
	}

	first := sink.wait(t, 200*time.Millisecond)
	assert.Equal(t, "go", first.Payload)
	// messages 2 and 3 arrived while armed: blocked, no further output.
	sink.expectNone(t, 150*time.Millisecond)
}

func TestTriggerEmitsOp2AfterDuration(t *testing.T) {
	tr, sink := buildTrigger(t, map[string]interface{}{
		"id": "t2", "type": "trigger", "z": "f1",
		"op1type": "nul", "op2": "done", "op2type": "str",
		"duration": 0.03,
	})
	defer tr.Close(false)

	tr.Receive(context.Background(), model.New("in"))
	msg := sink.wait(t, time.Second)
	assert.Equal(t, "done", msg.Payload)
}

func TestTriggerResetCancelsPendingSecondEmission(t *testing.T) {
	tr, sink := buildTrigger(t, map[string]interface{}{
		"id": "t3", "type": "trigger", "z": "f1",
		"op1type": "nul", "op2": "done", "op2type": "str",
		"duration": 0.08, "reset": "reset",
	})
	defer tr.Close(false)

	tr.Receive(context.Background(), model.New("in"))

	cancel := model.New(nil)
	require.NoError(t, cancel.Set("reset", true, true))
	tr.Receive(context.Background(), cancel)

	sink.expectNone(t, 200*time.Millisecond)
}

func TestTriggerByTopicArmsPerTopic(t *testing.T) {
	tr, sink := buildTrigger(t, map[string]interface{}{
		"id": "t4", "type": "trigger", "z": "f1",
		"op1": "go", "op1type": "str", "op2type": "nul",
		"duration": 0.2, "bytopic": true,
	})
	defer tr.Close(false)

	a := model.New(nil)
	a.Topic = "a"
	b := model.New(nil)
	b.Topic = "b"
	tr.Receive(context.Background(), a)
	tr.Receive(context.Background(), b)

	sink.wait(t, 200*time.Millisecond)
	sink.wait(t, 200*time.Millisecond)
	sink.expectNone(t, 80*time.Millisecond)
}
