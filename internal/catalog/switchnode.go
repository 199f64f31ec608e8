package catalog

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

type switchRule struct {
	T   string
	V   interface{}
	VT  string
	V2  interface{}
	V2T string
}

// Switch routes messages by rule: the target property is
// evaluated against an ordered rule list, fanning out to one output
// port per rule.
type Switch struct {
	*node.Node

	property string
	rules    []switchRule
	checkAll bool
	flowCtx  *flowctx.Store
}

func registerSwitch(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "switch", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		var rules []switchRule
		if rawRules, ok := raw["rules"].([]interface{}); ok {
			for _, rr := range rawRules {
				m, ok := rr.(map[string]interface{})
				if !ok {
					continue
				}
				rules = append(rules, switchRule{
					T:   stringField(m, "t", "eq"),
					V:   m["v"],
					VT:  stringField(m, "vt", "str"),
					V2:  m["v2"],
					V2T: stringField(m, "v2t", "str"),
				})
			}
		}
		s := &Switch{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			property: stringField(raw, "property", "payload"),
			rules:    rules,
			checkAll: boolField(raw, "checkall", true),
			flowCtx:  deps.FlowCtx,
		}
		s.OnInput(s.handle)
		return s, nil
	}, registry.ConstructorOpts{Icon: "switch.svg"})
}

func (s *Switch) handle(ctx context.Context, msg *model.Message) error {
	val, err := msg.Get(s.property)
	if err != nil {
		s.Error(err.Error(), msg)
		return err
	}

	outs := make([]*model.Message, len(s.rules))
	matchedAny := false
	for i, r := range s.rules {
		matched, err := s.evalRule(r, val, msg, matchedAny)
		if err != nil {
			s.Error(err.Error(), msg)
			continue
		}
		if matched {
			outs[i] = msg
			matchedAny = true
			if !s.checkAll {
				break
			}
		}
	}

	first := true
	for i, m := range outs {
		if m == nil {
			continue
		}
		if first {
			first = false
			continue
		}
		outs[i] = m.Clone()
	}
	s.Send(ctx, outs...)
	return nil
}

func (s *Switch) evalRule(r switchRule, val interface{}, msg *model.Message, priorMatched bool) (bool, error) {
	switch r.T {
	case "else":
		return !priorMatched, nil
	case "true":
		return truthy(val), nil
	case "false":
		return !truthy(val), nil
	case "null":
		return val == nil, nil
	case "nnull":
		return val != nil, nil
	case "empty":
		return isEmpty(val), nil
	case "nempty":
		return !isEmpty(val), nil
	case "istype":
		return typeName(val) == fmt.Sprintf("%v", r.V), nil
	case "cont":
		return containsValue(val, r.V), nil
	case "regex":
		pattern, _ := r.V.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(fmt.Sprintf("%v", val)), nil
	case "eq", "neq", "lt", "lte", "gt", "gte", "btwn":
		operand, err := resolveTyped(s.flowCtx, s.FlowID, msg, r.V, r.VT)
		if err != nil {
			return false, err
		}
		switch r.T {
		case "eq":
			return compareEqual(val, operand), nil
		case "neq":
			return !compareEqual(val, operand), nil
		case "lt", "lte", "gt", "gte":
			c, ok := compareOrdered(val, operand)
			if !ok {
				return false, nil
			}
			switch r.T {
			case "lt":
				return c < 0, nil
			case "lte":
				return c <= 0, nil
			case "gt":
				return c > 0, nil
			default:
				return c >= 0, nil
			}
		case "btwn":
			operand2, err := resolveTyped(s.flowCtx, s.FlowID, msg, r.V2, r.V2T)
			if err != nil {
				return false, err
			}
			lo, ok1 := compareOrdered(val, operand)
			hi, ok2 := compareOrdered(val, operand2)
			return ok1 && ok2 && lo >= 0 && hi <= 0, nil
		}
	}
	return false, fmt.Errorf("catalog: unknown switch operator %q", r.T)
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	default:
		return false
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "object"
	}
}

func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(strings.ToLower(h), strings.ToLower(fmt.Sprintf("%v", needle)))
	case []interface{}:
		for _, e := range h {
			if compareEqual(e, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b) || fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareOrdered returns (a<=>b, true) when both sides can be compared
// numerically or lexically; (_, false) when val is unorderable (nil,
// object).
func compareOrdered(a, b interface{}) (int, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
