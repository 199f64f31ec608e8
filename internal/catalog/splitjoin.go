package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Split is the split node: an array, object, or
// delimited string payload is fanned out to one message per element,
// each carrying parts metadata (id/index/count/type) so a downstream
// Join can reassemble the batch.
type Split struct {
	*node.Node

	splitType string // array (default), object, or string
	splitChar string
	arraySize float64
}

func registerSplitJoin(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "split", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		s := &Split{
			Node:      node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			splitType: stringField(raw, "spltype", "array"),
			splitChar: stringField(raw, "splt", "\\n"),
			arraySize: numField(raw, "arraySplt", 0),
		}
		s.OnInput(s.handle)
		return s, nil
	}, registry.ConstructorOpts{Icon: "split.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "join", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		j := &Join{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			mode:     stringField(raw, "mode", "auto"),
			build:    stringField(raw, "build", ""),
			joiner:   strings.ReplaceAll(stringField(raw, "joiner", ""), "\\n", "\n"),
			property: stringField(raw, "property", "payload"),
			key:      stringField(raw, "key", "topic"),
			count:    int(numField(raw, "count", 0)),
			pending:  make(map[string]*joinBatch),
		}
		j.OnInput(j.handle)
		return j, nil
	}, registry.ConstructorOpts{Icon: "join.svg"})
}

func (s *Split) handle(ctx context.Context, msg *model.Message) error {
	switch s.splitType {
	case "object":
		return s.splitObject(ctx, msg)
	case "string":
		return s.splitString(ctx, msg)
	default:
		return s.splitArray(ctx, msg)
	}
}

func (s *Split) splitArray(ctx context.Context, msg *model.Message) error {
	arr, ok := msg.Payload.([]interface{})
	if !ok {
		s.Error("split: payload is not an array", msg)
		return fmt.Errorf("catalog: split payload is not an array")
	}
	size := int(s.arraySize)
	if size <= 0 {
		size = 1
	}
	groupID := rtutil.NewMessageID()
	var outs []*model.Message
	for i := 0; i < len(arr); i += size {
		end := i + size
		if end > len(arr) {
			end = len(arr)
		}
		var payload interface{}
		if size == 1 {
			payload = arr[i]
		} else {
			payload = arr[i:end]
		}
		out := msg.Clone()
		out.Payload = payload
		out.Props["parts"] = map[string]interface{}{
			"id":    groupID,
			"index": float64(i / size),
			"count": float64((len(arr) + size - 1) / size),
			"type":  "array",
		}
		outs = append(outs, out)
	}
	for _, out := range outs {
		s.Send(ctx, out)
	}
	return nil
}

func (s *Split) splitObject(ctx context.Context, msg *model.Message) error {
	obj, ok := msg.Payload.(map[string]interface{})
	if !ok {
		s.Error("split: payload is not an object", msg)
		return fmt.Errorf("catalog: split payload is not an object")
	}
	groupID := rtutil.NewMessageID()
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	var outs []*model.Message
	for i, k := range keys {
		out := msg.Clone()
		out.Payload = obj[k]
		out.Topic = k
		out.Props["parts"] = map[string]interface{}{
			"id":    groupID,
			"index": float64(i),
			"count": float64(len(keys)),
			"key":   k,
			"type":  "object",
		}
		outs = append(outs, out)
	}
	for _, out := range outs {
		s.Send(ctx, out)
	}
	return nil
}

func (s *Split) splitString(ctx context.Context, msg *model.Message) error {
	str, ok := msg.Payload.(string)
	if !ok {
		s.Error("split: payload is not a string", msg)
		return fmt.Errorf("catalog: split payload is not a string")
	}
	sep := strings.ReplaceAll(s.splitChar, "\\n", "\n")
	parts := strings.Split(str, sep)
	groupID := rtutil.NewMessageID()
	var outs []*model.Message
	for i, p := range parts {
		out := msg.Clone()
		out.Payload = p
		out.Props["parts"] = map[string]interface{}{
			"id":    groupID,
			"index": float64(i),
			"count": float64(len(parts)),
			"ch":    sep,
			"type":  "string",
		}
		outs = append(outs, out)
	}
	for _, out := range outs {
		s.Send(ctx, out)
	}
	return nil
}

type joinBatch struct {
	values map[int]interface{}
	keys   map[int]string
	count  int
	seen   int
	kind   string
	ch     string
}

// Join is the split node's counterpart: accumulates messages by
// parts.id (auto mode) or by a fixed count/property key (manual mode)
// into a single array/object/merged-object/string payload.
type Join struct {
	*node.Node

	mode     string // auto or manual
	build    string // array, object, merged, string; empty = follow parts.type
	joiner   string
	property string
	key      string
	count    int

	mu      sync.Mutex
	pending map[string]*joinBatch
}

func (j *Join) handle(ctx context.Context, msg *model.Message) error {
	if j.mode == "manual" {
		return j.handleManual(ctx, msg)
	}
	return j.handleAuto(ctx, msg)
}

func (j *Join) handleAuto(ctx context.Context, msg *model.Message) error {
	partsRaw, _ := msg.Get("parts")
	parts, ok := partsRaw.(map[string]interface{})
	if !ok {
		// no parts metadata: pass through as a single-element batch.
		j.Send(ctx, j.assemble(map[int]interface{}{0: msg.Payload}, map[int]string{}, "array", ""))
		return nil
	}
	id, _ := parts["id"].(string)
	index := int(asFloatOr(parts["index"], 0))
	count := int(asFloatOr(parts["count"], 1))
	kind, _ := parts["type"].(string)
	key, _ := parts["key"].(string)
	ch, _ := parts["ch"].(string)

	j.mu.Lock()
	batch, ok := j.pending[id]
	if !ok {
		batch = &joinBatch{values: map[int]interface{}{}, keys: map[int]string{}, count: count, kind: kind, ch: ch}
		j.pending[id] = batch
	}
	batch.values[index] = msg.Payload
	if key != "" {
		batch.keys[index] = key
	}
	batch.seen++
	complete := batch.seen >= batch.count
	if complete {
		delete(j.pending, id)
	}
	j.mu.Unlock()

	if !complete {
		return nil
	}
	out := j.assemble(batch.values, batch.keys, batch.kind, batch.ch)
	out.ID = msg.ID
	j.Send(ctx, out)
	return nil
}

func (j *Join) handleManual(ctx context.Context, msg *model.Message) error {
	key := msg.Topic
	if j.key != "topic" {
		if v, err := msg.Get(j.key); err == nil {
			key, _ = v.(string)
		}
	}

	j.mu.Lock()
	batch, ok := j.pending["manual"]
	if !ok {
		batch = &joinBatch{values: map[int]interface{}{}, keys: map[int]string{}, count: j.count}
		j.pending["manual"] = batch
	}
	idx := batch.seen
	batch.values[idx] = msg.Payload
	if key != "" {
		batch.keys[idx] = key
	}
	batch.seen++
	complete := j.count > 0 && batch.seen >= j.count
	if v, err := msg.Get("complete"); err == nil && truthy(v) {
		complete = true
	}
	if complete {
		delete(j.pending, "manual")
	}
	j.mu.Unlock()

	if !complete {
		return nil
	}
	out := j.assemble(batch.values, batch.keys, "", j.joiner)
	j.Send(ctx, out)
	return nil
}

// assemble rebuilds a completed batch. The explicit build config wins;
// otherwise the parts.type recorded on the batch dictates the payload
// shape, falling back to an array. sep is the string-join separator
// (the splitter's recorded "ch" in auto mode, the configured joiner in
// manual mode).
func (j *Join) assemble(values map[int]interface{}, keys map[int]string, kind, sep string) *model.Message {
	build := j.build
	if build == "" {
		build = kind
	}
	if build == "" {
		build = "array"
	}
	out := model.New(nil)
	switch build {
	case "object", "merged":
		obj := map[string]interface{}{}
		for i, v := range values {
			k := keys[i]
			if k == "" {
				k = fmt.Sprintf("%d", i)
			}
			obj[k] = v
		}
		out.Payload = obj
	case "string", "buffer":
		var b strings.Builder
		n := len(values)
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(fmt.Sprintf("%v", values[i]))
		}
		out.Payload = b.String()
	default:
		n := len(values)
		arr := make([]interface{}, n)
		for i := 0; i < n; i++ {
			arr[i] = values[i]
		}
		out.Payload = arr
	}
	return out
}

func asFloatOr(v interface{}, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		return def
	}
}
