// Package node implements the node base contract: input
// handler registration, clone-on-fanout Send, status/error/log
// passthroughs, and the closing-flag lifecycle.
//
// This package intentionally defines only the interfaces it needs from
// its owning Flow (Publisher) and from downstream destinations
// (Receiver) rather than importing internal/flow directly — internal/flow
// imports internal/node, not the other way around.
package node

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rauldose/node-red-new-sub000/internal/hooks"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Info identifies a node instance to side-channel consumers and log
// records.
type Info struct {
	ID   string
	Type string
	Name string
}

// Status is the `fill/shape/text` triple a node reports via SetStatus.
type Status struct {
	Fill  string // red|green|yellow|blue|grey
	Shape string // ring|dot
	Text  string
}

// Receiver is anything that can be a Send destination: in practice
// always another *Node, but kept abstract so tests can fake it.
type Receiver interface {
	ID() string
	Receive(ctx context.Context, msg *model.Message)
}

// Publisher is the owning Flow's side-channel API, as consumed by the
// node base. internal/flow.Flow implements this.
type Publisher interface {
	HandleError(source Info, msg *model.Message, errMsg string, reportable bool)
	HandleStatus(source Info, status Status)
	HandleComplete(source Info, msg *model.Message, completionErr error)
}

// InputHandler processes one received message. Multiple handlers on
// the same node run in registration order; a returned error is
// reported via Error and still allows downstream handlers to run (the
// base does not abort the chain on a handler's own error — only send
// failures are isolated per destination).
type InputHandler func(ctx context.Context, msg *model.Message) error

// Node is the concrete base every catalog node type embeds.
type Node struct {
	Info
	FlowID   string
	Disabled bool

	// Wires lists, per output port, the destination node ids declared
	// in the flow config. OutputNodes is the resolved Receiver list in
	// the same shape, filled in by the owning Flow during wiring.
	Wires       [][]string
	OutputNodes [][]Receiver

	closing int32

	mu       sync.Mutex
	handlers []InputHandler
	status   *Status

	hooks *hooks.Chains
	log   *rtlog.Logger
	pub   Publisher
}

// New constructs a Node base. hk/log/pub may be nil in tests that
// don't exercise hooks, logging, or side channels.
func New(info Info, flowID string, disabled bool, wires [][]string, hk *hooks.Chains, log *rtlog.Logger, pub Publisher) *Node {
	return &Node{
		Info:     info,
		FlowID:   flowID,
		Disabled: disabled,
		Wires:    wires,
		hooks:    hk,
		log:      log,
		pub:      pub,
	}
}

func (n *Node) ID() string { return n.Info.ID }

// SetOutputs installs the resolved destination table, satisfying
// flowmanager.Wireable for every catalog node type that embeds *Node.
func (n *Node) SetOutputs(outputs [][]Receiver) { n.OutputNodes = outputs }

// SetPublisher installs the owning Flow as this node's side-channel
// target. flowmanager calls this once per node, after construction and
// before Start, since the owning Flow is only constructed alongside
// its members (registry.Constructor has no way to receive it directly).
func (n *Node) SetPublisher(pub Publisher) { n.pub = pub }

// OnInput registers handler to run on every received message, after
// any handlers already registered.
func (n *Node) OnInput(handler InputHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Receive is called by an upstream node's Send. A disabled node or a
// node past Close silently drops the message.
func (n *Node) Receive(ctx context.Context, msg *model.Message) {
	if n.Disabled || atomic.LoadInt32(&n.closing) != 0 {
		return
	}

	if n.hooks != nil {
		payload, halt, err := n.hooks.Fire(ctx, hooks.OnReceive, msg)
		if err != nil {
			n.Error(err.Error(), msg)
			return
		}
		if halt {
			return
		}
		if m, ok := payload.(*model.Message); ok {
			msg = m
		}
	}

	n.mu.Lock()
	handlers := make([]InputHandler, len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.Unlock()

	var completionErr error
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			completionErr = err
			n.Error(err.Error(), msg)
		}
	}

	if n.hooks != nil {
		_, _, err := n.hooks.Fire(ctx, hooks.PostReceive, msg)
		if err != nil {
			n.Error(err.Error(), msg)
		}
	}

	if n.pub != nil {
		n.pub.HandleComplete(n.Info, msg, completionErr)
	}
}

// Send dispatches msgs to output ports. A single non-slice message is
// sent only to port 0; for a slice, element i goes to port i (nil
// elements are skipped, ports beyond len(msgs) get nothing). Each
// destination on a port receives a clone of the message except the
// last destination on that port, which receives the original.
func (n *Node) Send(ctx context.Context, msgs ...*model.Message) {
	if n.hooks != nil {
		var payload interface{} = msgs
		newPayload, halt, err := n.hooks.Fire(ctx, hooks.OnSend, payload)
		if err != nil || halt {
			if err != nil {
				n.Error(err.Error(), nil)
			}
			return
		}
		if replaced, ok := newPayload.([]*model.Message); ok {
			msgs = replaced
		}
	}

	for port, msg := range msgs {
		if msg == nil || port >= len(n.OutputNodes) {
			continue
		}
		destinations := n.OutputNodes[port]
		n.sendToPort(ctx, port, msg, destinations)
	}
}

func (n *Node) sendToPort(ctx context.Context, port int, msg *model.Message, destinations []Receiver) {
	last := len(destinations) - 1
	for i, dest := range destinations {
		out := msg
		if i != last {
			out = msg.Clone()
		}
		n.deliverOne(ctx, dest, out)
	}
}

// deliverOne runs preRoute/preDeliver/postDeliver around a single
// destination delivery, isolating that leg's hook failures and
// (since Send is fire-and-forget) any panic from a misbehaving
// receiver, so one bad destination can never take down its siblings.
func (n *Node) deliverOne(ctx context.Context, dest Receiver, msg *model.Message) {
	defer func() {
		if r := recover(); r != nil {
			n.Error(fmt.Sprintf("panic delivering to %s: %v", dest.ID(), r), msg)
		}
	}()

	if n.hooks != nil {
		payload, halt, err := n.hooks.Fire(ctx, hooks.PreRoute, msg)
		if err != nil {
			n.Error(err.Error(), msg)
			return
		}
		if halt {
			return
		}
		if m, ok := payload.(*model.Message); ok {
			msg = m
		}

		payload, halt, err = n.hooks.Fire(ctx, hooks.PreDeliver, msg)
		if err != nil {
			n.Error(err.Error(), msg)
			return
		}
		if halt {
			return
		}
		if m, ok := payload.(*model.Message); ok {
			msg = m
		}
	}

	dest.Receive(ctx, msg)

	if n.hooks != nil {
		_, _, err := n.hooks.Fire(ctx, hooks.PostDeliver, msg)
		if err != nil {
			n.Error(err.Error(), msg)
		}
	}
}

// SetStatus updates the node's current status and publishes it to the
// owning Flow.
func (n *Node) SetStatus(s Status) {
	n.mu.Lock()
	n.status = &s
	n.mu.Unlock()
	if n.pub != nil {
		n.pub.HandleStatus(n.Info, s)
	}
}

// ClearStatus clears the current status.
func (n *Node) ClearStatus() {
	n.mu.Lock()
	n.status = nil
	n.mu.Unlock()
	if n.pub != nil {
		n.pub.HandleStatus(n.Info, Status{})
	}
}

// Error logs msg at ERROR level and publishes an error event to the
// Flow so scope-filtered catch nodes can receive it.
func (n *Node) Error(msg string, originalMessage *model.Message) {
	if n.log != nil {
		n.log.Error(msg, rtlog.WithType(n.Type), rtlog.WithName(n.Name), rtlog.WithID(n.Info.ID))
	}
	if n.pub != nil {
		n.pub.HandleError(n.Info, originalMessage, msg, true)
	}
}

func (n *Node) logPrefixed(level func(string, ...func(*rtlog.Record)), msg string) {
	if n.log == nil {
		return
	}
	level(fmt.Sprintf("[%s:%s] %s", n.Type, n.Info.ID, msg), rtlog.WithType(n.Type), rtlog.WithName(n.Name), rtlog.WithID(n.Info.ID))
}

func (n *Node) Warn(msg string)  { n.logPrefixed(n.log.Warn, msg) }
func (n *Node) Debug(msg string) { n.logPrefixed(n.log.Debug, msg) }
func (n *Node) Trace(msg string) { n.logPrefixed(n.log.Trace, msg) }
func (n *Node) Log(msg string)   { n.logPrefixed(n.log.Info, msg) }

// Close sets the closing flag (rejecting further Receive calls) and
// gives subclasses' cleanup a consistent hook point. removed reports
// whether the node is being permanently deleted (vs. a redeploy that
// will recreate it).
func (n *Node) Close(removed bool) error {
	atomic.StoreInt32(&n.closing, 1)
	return nil
}

// Closing reports whether Close has already been called.
func (n *Node) Closing() bool { return atomic.LoadInt32(&n.closing) != 0 }
