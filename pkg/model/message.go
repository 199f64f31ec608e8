// Package model holds the wire-format types shared by the runtime: the
// message envelope, flow/node/group configuration records, and the
// side-channel payloads (error/status) published to catch/status/complete
// nodes. These are the types that cross package boundaries and, where
// noted, JSON serialization boundaries.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
)

// Message is the envelope passed between nodes. Payload and Topic are
// known fields; everything else rides in Props, an open bag of
// additional properties addressable by property-path expressions.
//
// Req and Res are reference-only: they point at collaborator state (an
// inbound HTTP request/response pair, typically) that must never be
// deep-cloned. Clone preserves them by identity on both the original and
// the copy.
type Message struct {
	ID      string
	Payload interface{}
	Topic   string
	Req     interface{}
	Res     interface{}
	Props   map[string]interface{}
}

// New creates a message with a fresh id.
func New(payload interface{}) *Message {
	return &Message{
		ID:      rtutil.NewMessageID(),
		Payload: payload,
		Props:   map[string]interface{}{},
	}
}

// Clone returns a deep copy of m. The copy keeps m's _msgid (Node-RED
// convention: a message's identity follows it across clones so that a
// split/join batch can be tracked by parts.id independent of _msgid).
// Req/Res are carried by reference on both the original and the clone.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	clone := &Message{
		ID:    m.ID,
		Topic: m.Topic,
		Req:   m.Req,
		Res:   m.Res,
	}
	clone.Payload = rtutil.DeepClone(m.Payload)
	if m.Props != nil {
		cloned := rtutil.DeepClone(m.Props)
		if cp, ok := cloned.(map[string]interface{}); ok {
			clone.Props = cp
		}
	}
	return clone
}

// Get resolves a property-path expression against the message. The
// well-known fields "payload" and "topic" (and "_msgid") are handled
// directly; everything else is resolved against Props.
func (m *Message) Get(expr string) (interface{}, error) {
	path, err := rtutil.ParsePath(expr)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, rtutil.ErrInvalidExpr
	}
	head, ok := path[0].(string)
	if !ok {
		return nil, rtutil.ErrInvalidExpr
	}
	switch head {
	case "_msgid":
		return m.ID, nil
	case "topic":
		return rtutil.GetPath(m.Topic, path[1:])
	case "payload":
		return rtutil.GetPath(m.Payload, path[1:])
	default:
		if m.Props == nil {
			return nil, nil
		}
		return rtutil.GetPath(m.Props, path)
	}
}

// Set writes a value at a property-path expression, creating intermediate
// maps/lists as needed (see rtutil.SetPath).
func (m *Message) Set(expr string, value interface{}, createMissing bool) error {
	path, err := rtutil.ParsePath(expr)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return rtutil.ErrInvalidExpr
	}
	head, ok := path[0].(string)
	if !ok {
		return rtutil.ErrInvalidExpr
	}
	switch head {
	case "_msgid":
		id, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: _msgid must be a string", rtutil.ErrInvalidExpr)
		}
		m.ID = id
		return nil
	case "topic":
		topic, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: topic must be a string", rtutil.ErrInvalidExpr)
		}
		m.Topic = topic
		return nil
	case "payload":
		if len(path) == 1 {
			m.Payload = value
			return nil
		}
		newRoot, err := rtutil.SetPath(m.Payload, path[1:], value, createMissing)
		if err != nil {
			return err
		}
		m.Payload = newRoot
		return nil
	default:
		if m.Props == nil {
			m.Props = map[string]interface{}{}
		}
		newRoot, err := rtutil.SetPath(m.Props, path, value, createMissing)
		if err != nil {
			return err
		}
		if mp, ok := newRoot.(map[string]interface{}); ok {
			m.Props = mp
		}
		return nil
	}
}

// Delete removes the value at a property-path expression, a no-op if
// any segment is already absent. Deleting "payload"/"topic"/"_msgid"
// outright is rejected: those fields always exist on a Message.
func (m *Message) Delete(expr string) error {
	path, err := rtutil.ParsePath(expr)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return rtutil.ErrInvalidExpr
	}
	head, ok := path[0].(string)
	if !ok {
		return rtutil.ErrInvalidExpr
	}
	switch head {
	case "_msgid", "topic":
		return fmt.Errorf("%w: cannot delete %s", rtutil.ErrInvalidExpr, head)
	case "payload":
		if len(path) == 1 {
			return fmt.Errorf("%w: cannot delete payload", rtutil.ErrInvalidExpr)
		}
		m.Payload = rtutil.DeletePath(m.Payload, path[1:])
		return nil
	default:
		if m.Props == nil {
			return nil
		}
		newRoot := rtutil.DeletePath(m.Props, path)
		if mp, ok := newRoot.(map[string]interface{}); ok {
			m.Props = mp
		}
		return nil
	}
}

// MarshalJSON flattens Props to the top level alongside payload/
// topic/_msgid. Req/Res never serialize.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"_msgid": m.ID,
	}
	if m.Topic != "" {
		out["topic"] = m.Topic
	}
	out["payload"] = m.Payload
	for k, v := range m.Props {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: known fields are lifted
// out, the remainder becomes Props.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Props = map[string]interface{}{}
	for k, v := range raw {
		switch k {
		case "_msgid":
			if id, ok := v.(string); ok {
				m.ID = id
			}
		case "topic":
			if t, ok := v.(string); ok {
				m.Topic = t
			}
		case "payload":
			m.Payload = v
		default:
			m.Props[k] = v
		}
	}
	if m.ID == "" {
		m.ID = rtutil.NewMessageID()
	}
	return nil
}
