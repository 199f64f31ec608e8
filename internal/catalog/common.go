package catalog

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// baseFields pulls the node.Info/flowID/disabled/wires quadruple every
// catalog constructor needs out of a raw wire-format element.
func baseFields(raw map[string]interface{}) (node.Info, string, bool, [][]string) {
	el := model.Element(raw)
	name, _ := raw["name"].(string)
	info := node.Info{ID: el.ID(), Type: el.Type(), Name: name}
	return info, el.Z(), el.Disabled(), el.Wires()
}

func stringField(raw map[string]interface{}, key, def string) string {
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolField(raw map[string]interface{}, key string, def bool) bool {
	if v, ok := raw[key].(bool); ok {
		return v
	}
	return def
}

func numField(raw map[string]interface{}, key string, def float64) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// resolveTyped evaluates a (value, valueType) pair the way inject's
// payload/props and change's rule values do. flowID
// scopes "flow" lookups; msg is the in-flight message for "msg"
// cross-references (nil when there is none yet, e.g. inject on a
// timer).
func resolveTyped(fc *flowctx.Store, flowID string, msg *model.Message, value interface{}, valueType string) (interface{}, error) {
	switch valueType {
	case "", "str":
		return fmt.Sprintf("%v", value), nil
	case "num":
		switch v := value.(type) {
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("catalog: invalid num %q: %w", v, err)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("catalog: cannot convert %T to num", value)
		}
	case "bool":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("catalog: invalid bool %q: %w", v, err)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("catalog: cannot convert %T to bool", value)
		}
	case "json":
		s, _ := value.(string)
		var out interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("catalog: invalid json: %w", err)
		}
		return out, nil
	case "date":
		return float64(time.Now().UnixMilli()), nil
	case "bin":
		s, _ := value.(string)
		var arr []byte
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr, nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("catalog: invalid bin payload: %w", err)
		}
		return decoded, nil
	case "env":
		s, _ := value.(string)
		return os.Getenv(s), nil
	case "msg":
		s, _ := value.(string)
		if msg == nil {
			return nil, nil
		}
		return msg.Get(s)
	case "flow":
		s, _ := value.(string)
		return fc.GetFlow(flowID, s), nil
	case "global":
		s, _ := value.(string)
		return fc.GetGlobal(s), nil
	default:
		return value, nil
	}
}

func setTyped(fc *flowctx.Store, flowID string, msg *model.Message, target string, targetType string, value interface{}) error {
	switch targetType {
	case "", "msg":
		return msg.Set(target, value, true)
	case "flow":
		fc.SetFlow(flowID, target, value)
		return nil
	case "global":
		fc.SetGlobal(target, value)
		return nil
	default:
		return fmt.Errorf("catalog: unsupported set target type %q", targetType)
	}
}
