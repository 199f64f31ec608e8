package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

type changeRule struct {
	T string // set, change, delete, move

	P  string
	PT string // msg | flow | global

	To  interface{}
	ToT string

	From  string
	FromT string
	Reg   bool
}

// Change is the change node: an ordered list of
// set/change/delete/move rules applied in sequence against the one
// message in flight.
type Change struct {
	*node.Node

	rules   []changeRule
	flowCtx *flowctx.Store
}

func registerChange(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "change", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		var rules []changeRule
		if rawRules, ok := raw["rules"].([]interface{}); ok {
			for _, rr := range rawRules {
				m, ok := rr.(map[string]interface{})
				if !ok {
					continue
				}
				rules = append(rules, changeRule{
					T:     stringField(m, "t", "set"),
					P:     stringField(m, "p", ""),
					PT:    stringField(m, "pt", "msg"),
					To:    m["to"],
					ToT:   stringField(m, "tot", "str"),
					From:  stringField(m, "from", ""),
					FromT: stringField(m, "fromt", "str"),
					Reg:   boolField(m, "re", false),
				})
			}
		}
		c := &Change{
			Node:    node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			rules:   rules,
			flowCtx: deps.FlowCtx,
		}
		c.OnInput(c.handle)
		return c, nil
	}, registry.ConstructorOpts{Icon: "swap.svg"})
}

func (c *Change) handle(ctx context.Context, msg *model.Message) error {
	for _, r := range c.rules {
		if err := c.applyRule(r, msg); err != nil {
			c.Error(err.Error(), msg)
			return err
		}
	}
	c.Send(ctx, msg)
	return nil
}

func (c *Change) applyRule(r changeRule, msg *model.Message) error {
	switch r.T {
	case "set":
		val, err := resolveTyped(c.flowCtx, c.FlowID, msg, r.To, r.ToT)
		if err != nil {
			return err
		}
		return setTyped(c.flowCtx, c.FlowID, msg, r.P, r.PT, val)
	case "delete":
		return c.deleteTyped(r.P, r.PT, msg)
	case "move":
		val, err := c.getTyped(r.From, r.FromT, msg)
		if err != nil {
			return err
		}
		if err := c.deleteTyped(r.From, r.FromT, msg); err != nil {
			return err
		}
		return setTyped(c.flowCtx, c.FlowID, msg, r.P, r.PT, val)
	case "change":
		cur, err := c.getTyped(r.P, r.PT, msg)
		if err != nil {
			return err
		}
		s, ok := cur.(string)
		if !ok {
			return nil
		}
		var replaced string
		toVal, err := resolveTyped(c.flowCtx, c.FlowID, msg, r.To, r.ToT)
		if err != nil {
			return err
		}
		toStr := fmt.Sprintf("%v", toVal)
		if r.Reg {
			re, err := regexp.Compile(r.From)
			if err != nil {
				return err
			}
			replaced = re.ReplaceAllString(s, toStr)
		} else {
			replaced = strings.ReplaceAll(s, r.From, toStr)
		}
		return setTyped(c.flowCtx, c.FlowID, msg, r.P, r.PT, replaced)
	default:
		return fmt.Errorf("catalog: unknown change action %q", r.T)
	}
}

func (c *Change) getTyped(prop, propType string, msg *model.Message) (interface{}, error) {
	switch propType {
	case "", "msg":
		return msg.Get(prop)
	case "flow":
		return c.flowCtx.GetFlow(c.FlowID, prop), nil
	case "global":
		return c.flowCtx.GetGlobal(prop), nil
	default:
		return nil, fmt.Errorf("catalog: unsupported get target type %q", propType)
	}
}

func (c *Change) deleteTyped(prop, propType string, msg *model.Message) error {
	switch propType {
	case "", "msg":
		return msg.Delete(prop)
	case "flow":
		c.flowCtx.SetFlow(c.FlowID, prop, nil)
		return nil
	case "global":
		c.flowCtx.SetGlobal(prop, nil)
		return nil
	default:
		return fmt.Errorf("catalog: unsupported delete target type %q", propType)
	}
}
