package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/mqttconfig"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// MQTTBrokerConfig is the "mqtt-broker" config node: on construction it
// builds a mqttconfig.Broker, and Initialize registers it under this
// node's id for mqtt in/out nodes to attach to. It has no wires and no
// OnInput of its own.
type MQTTBrokerConfig struct {
	*node.Node

	broker *mqttconfig.Broker
	reg    *mqttconfig.Registry
}

// Initialize only registers the broker; the shared connection is
// attempted by the first Broker.Attach from an mqtt in/out node, so a
// broker with zero users never dials out.
func (c *MQTTBrokerConfig) Initialize(ctx context.Context) error {
	c.reg.Put(c.ID(), c.broker)
	return nil
}

func (c *MQTTBrokerConfig) Close(removed bool) error {
	if removed {
		c.reg.Remove(c.ID())
	}
	return c.Node.Close(removed)
}

// MQTTIn is the mqtt in node: subscribes to a topic
// on its configured broker and emits one message per publish.
type MQTTIn struct {
	*node.Node

	brokerID string
	topic    string
	qos      byte
	datatype string // auto | utf8 | buffer | json | base64
	reg      *mqttconfig.Registry
	broker   *mqttconfig.Broker
}

// MQTTOut is the mqtt out node: publishes the
// message's payload to its configured (or per-message) topic.
type MQTTOut struct {
	*node.Node

	brokerID string
	topic    string
	qos      byte
	retain   bool
	reg      *mqttconfig.Registry
	broker   *mqttconfig.Broker
}

func registerMQTT(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+mqttSet, "mqtt-broker", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		cfg := mqttconfig.Config{
			ID:               info.ID,
			Broker:           fmt.Sprintf("tcp://%s:%s", stringField(raw, "broker", "localhost"), stringField(raw, "port", "1883")),
			ClientID:         stringField(raw, "clientid", "flowrt-"+info.ID),
			Username:         stringField(raw, "username", ""),
			Password:         stringField(raw, "password", ""),
			ReconnectBackoff: time.Duration(numField(raw, "reconnectBackoff", 1) * float64(time.Second)),
		}
		c := &MQTTBrokerConfig{
			Node:   node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			broker: mqttconfig.New(cfg, deps.Log),
			reg:    deps.MQTT,
		}
		return c, nil
	}, registry.ConstructorOpts{Icon: "mqtt.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+mqttSet, "mqtt in", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		in := &MQTTIn{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			brokerID: stringField(raw, "broker", ""),
			topic:    stringField(raw, "topic", ""),
			qos:      byte(numField(raw, "qos", 0)),
			datatype: stringField(raw, "datatype", "auto"),
			reg:      deps.MQTT,
		}
		return in, nil
	}, registry.ConstructorOpts{Icon: "mqtt.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+mqttSet, "mqtt out", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		out := &MQTTOut{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			brokerID: stringField(raw, "broker", ""),
			topic:    stringField(raw, "topic", ""),
			qos:      byte(numField(raw, "qos", 0)),
			retain:   boolField(raw, "retain", false),
			reg:      deps.MQTT,
		}
		out.OnInput(out.handle)
		return out, nil
	}, registry.ConstructorOpts{Icon: "mqtt.svg"})
}

func (in *MQTTIn) Initialize(ctx context.Context) error {
	broker, ok := in.reg.Get(in.brokerID)
	if !ok {
		return fmt.Errorf("catalog: mqtt in %s: broker %q not found", in.ID(), in.brokerID)
	}
	in.broker = broker
	if err := broker.Attach(); err != nil {
		return err
	}
	return broker.Subscribe(in.topic, in.qos, func(m mqttconfig.Message) {
		msg := model.New(decodeMQTTPayload(m.Payload, in.datatype))
		msg.Topic = m.Topic
		msg.Props["qos"] = float64(m.QoS)
		msg.Props["retain"] = m.Retained
		in.Send(context.Background(), msg)
	})
}

// decodeMQTTPayload maps raw broker bytes onto the payload per the
// node's datatype. auto returns the parsed JSON when the bytes decode
// to an object or array, and the bytes as a string otherwise.
func decodeMQTTPayload(raw []byte, datatype string) interface{} {
	switch datatype {
	case "buffer":
		return raw
	case "utf8":
		return string(raw)
	case "base64":
		return base64.StdEncoding.EncodeToString(raw)
	case "json":
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
		return string(raw)
	default: // auto
		s := string(raw)
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				return v
			}
		}
		return s
	}
}

func (in *MQTTIn) Close(removed bool) error {
	if in.broker != nil {
		in.broker.Unsubscribe(in.topic)
		in.broker.Detach()
	}
	return in.Node.Close(removed)
}

func (out *MQTTOut) Initialize(ctx context.Context) error {
	broker, ok := out.reg.Get(out.brokerID)
	if !ok {
		return fmt.Errorf("catalog: mqtt out %s: broker %q not found", out.ID(), out.brokerID)
	}
	out.broker = broker
	return broker.Attach()
}

func (out *MQTTOut) handle(ctx context.Context, msg *model.Message) error {
	topic := out.topic
	if topic == "" {
		topic = msg.Topic
	}
	if topic == "" {
		err := fmt.Errorf("catalog: mqtt out %s: no topic", out.ID())
		out.Error(err.Error(), msg)
		return err
	}
	var payload []byte
	switch p := msg.Payload.(type) {
	case []byte:
		payload = p
	case string:
		payload = []byte(p)
	default:
		payload = []byte(fmt.Sprintf("%v", p))
	}
	if err := out.broker.Publish(topic, out.qos, out.retain, payload); err != nil {
		out.Error(err.Error(), msg)
		return err
	}
	return nil
}

func (out *MQTTOut) Close(removed bool) error {
	if out.broker != nil {
		out.broker.Detach()
	}
	return out.Node.Close(removed)
}
