package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Trigger emits op1 on arrival and op2 after a delay. With `bytopic`
// set, the armed state is keyed per distinct topic rather than held
// as one global armed flag, so topics cycle independently.
type Trigger struct {
	*node.Node

	op1Value interface{}
	op1Type  string // "nul" suppresses the first emission
	op2Value interface{}
	op2Type  string // "nul" suppresses the second emission

	duration      time.Duration
	extend        bool
	overrideDelay bool
	resetProp     string
	byTopic       bool

	flowCtx *flowctx.Store

	mu    sync.Mutex
	armed map[string]*time.Timer
}

func registerTrigger(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+flowSet, "trigger", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		t := &Trigger{
			Node:          node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			op1Value:      raw["op1"],
			op1Type:       stringField(raw, "op1type", "val"),
			op2Value:      raw["op2"],
			op2Type:       stringField(raw, "op2type", "val"),
			duration:      time.Duration(numField(raw, "duration", 0.25) * float64(time.Second)),
			extend:        boolField(raw, "extend", false),
			overrideDelay: boolField(raw, "overrideDelay", false),
			resetProp:     stringField(raw, "reset", ""),
			byTopic:       boolField(raw, "bytopic", false),
			flowCtx:       deps.FlowCtx,
			armed:         make(map[string]*time.Timer),
		}
		t.OnInput(t.handle)
		return t, nil
	}, registry.ConstructorOpts{Icon: "trigger.svg"})
}

func (t *Trigger) armKey(msg *model.Message) string {
	if t.byTopic {
		return msg.Topic
	}
	return ""
}

func (t *Trigger) handle(ctx context.Context, msg *model.Message) error {
	key := t.armKey(msg)

	if t.resetProp != "" {
		if v, _ := msg.Get(t.resetProp); truthy(v) {
			t.mu.Lock()
			if timer, ok := t.armed[key]; ok {
				timer.Stop()
				delete(t.armed, key)
			}
			t.mu.Unlock()
			return nil
		}
	}

	t.mu.Lock()
	if existing, ok := t.armed[key]; ok {
		switch {
		case t.overrideDelay:
			existing.Stop()
			delete(t.armed, key)
		case t.extend:
			existing.Reset(t.duration)
			t.mu.Unlock()
			return nil
		default:
			t.mu.Unlock()
			return nil
		}
	}
	t.mu.Unlock()

	if t.op1Type != "nul" {
		v, err := resolveTyped(t.flowCtx, t.FlowID, msg, t.op1Value, t.op1Type)
		if err != nil {
			t.Error(err.Error(), msg)
		} else {
			out := msg.Clone()
			out.Payload = v
			t.Send(ctx, out)
		}
	}

	timer := time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		delete(t.armed, key)
		t.mu.Unlock()
		if t.op2Type == "nul" {
			return
		}
		v, err := resolveTyped(t.flowCtx, t.FlowID, msg, t.op2Value, t.op2Type)
		if err != nil {
			t.Error(err.Error(), msg)
			return
		}
		out := msg.Clone()
		out.Payload = v
		t.Send(ctx, out)
	})
	t.mu.Lock()
	t.armed[key] = timer
	t.mu.Unlock()
	return nil
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

// Close cancels every armed timer.
func (t *Trigger) Close(removed bool) error {
	t.mu.Lock()
	for _, timer := range t.armed {
		timer.Stop()
	}
	t.armed = make(map[string]*time.Timer)
	t.mu.Unlock()
	return t.Node.Close(removed)
}
