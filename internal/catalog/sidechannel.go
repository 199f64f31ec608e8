package catalog

import (
	"context"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

func scopeField(raw map[string]interface{}) []string {
	rawScope, ok := raw["scope"].([]interface{})
	if !ok {
		return nil
	}
	scope := make([]string, 0, len(rawScope))
	for _, s := range rawScope {
		if id, ok := s.(string); ok {
			scope = append(scope, id)
		}
	}
	return scope
}

// Catch is the catch node: it joins the enclosing
// flow's scope-filtered error side channel (flow.ScopedReceiver) and
// re-emits the annotated message on its single output.
type Catch struct {
	*node.Node

	scope    []string
	uncaught bool
}

func (c *Catch) Scope() []string    { return c.scope }
func (c *Catch) Uncaught() bool     { return c.uncaught }
func (c *Catch) ReceiveSideChannel(ctx context.Context, msg *model.Message) {
	c.Send(ctx, msg)
}

// Status is the status node: joins the status side
// channel, re-emitting a message describing a node's most recent
// SetStatus/ClearStatus call.
type Status struct {
	*node.Node

	scope []string
}

func (s *Status) Scope() []string { return s.scope }
func (s *Status) Uncaught() bool  { return false }
func (s *Status) ReceiveSideChannel(ctx context.Context, msg *model.Message) {
	s.Send(ctx, msg)
}

// Complete is the complete node: joins the complete
// side channel, re-emitting the original message unchanged once the
// scoped source node finishes handling it.
type Complete struct {
	*node.Node

	scope []string
}

func (c *Complete) Scope() []string { return c.scope }
func (c *Complete) Uncaught() bool  { return false }
func (c *Complete) ReceiveSideChannel(ctx context.Context, msg *model.Message) {
	c.Send(ctx, msg)
}

func registerSideChannels(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "catch", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		return &Catch{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			scope:    scopeField(raw),
			uncaught: boolField(raw, "uncaught", false),
		}, nil
	}, registry.ConstructorOpts{Icon: "catch.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "status", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		return &Status{
			Node:  node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			scope: scopeField(raw),
		}, nil
	}, registry.ConstructorOpts{Icon: "status.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "complete", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		return &Complete{
			Node:  node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			scope: scopeField(raw),
		}, nil
	}, registry.ConstructorOpts{Icon: "complete.svg"})
}
