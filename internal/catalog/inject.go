package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"

	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// injectProp is one entry of the node's props list: a
// property path plus a typed value to resolve onto the outgoing
// message alongside topic/payload.
type injectProp struct {
	P  string      `mapstructure:"p"`
	V  interface{} `mapstructure:"v"`
	VT string      `mapstructure:"vt"`
}

// Inject emits a message once, on a repeat interval, and/or on a cron
// schedule.
type Inject struct {
	*node.Node

	payload     interface{}
	payloadType string
	topic       string
	once        bool
	onceDelay   time.Duration
	repeat      time.Duration
	crontab     string
	props       []injectProp

	flowCtx *flowctx.Store

	mu      sync.Mutex
	timer   *time.Timer
	ticker  *time.Ticker
	cronJob *cron.Cron
	stop    chan struct{}
}

func registerInject(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+coreSet, "inject", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		var props []injectProp
		if rawProps, ok := raw["props"]; ok {
			if err := mapstructure.Decode(rawProps, &props); err != nil {
				return nil, fmt.Errorf("catalog: inject props: %w", err)
			}
		}
		n := &Inject{
			Node:        node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			payload:     raw["payload"],
			payloadType: stringField(raw, "payloadType", "date"),
			topic:       stringField(raw, "topic", ""),
			once:        boolField(raw, "once", false),
			onceDelay:   time.Duration(numField(raw, "onceDelay", 0) * float64(time.Second)),
			repeat:      time.Duration(numField(raw, "repeat", 0) * float64(time.Second)),
			crontab:     stringField(raw, "crontab", ""),
			props:       props,
			flowCtx:     deps.FlowCtx,
		}
		return n, nil
	}, registry.ConstructorOpts{Icon: "inject.svg"})
}

// Initialize schedules the once/repeat/cron emissions, run after every
// node in the owning flow has been constructed and wired.
func (n *Inject) Initialize(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stop = make(chan struct{})

	if n.once {
		n.timer = time.AfterFunc(n.onceDelay, func() { n.emit(ctx) })
	}
	if n.repeat > 0 {
		n.ticker = time.NewTicker(n.repeat)
		go n.runTicker(ctx)
	}
	if n.crontab != "" {
		n.cronJob = cron.New(cron.WithSeconds())
		if _, err := n.cronJob.AddFunc(n.crontab, func() { n.emit(ctx) }); err == nil {
			n.cronJob.Start()
		} else {
			n.Warn("invalid crontab expression: " + n.crontab)
		}
	}
	return nil
}

func (n *Inject) runTicker(ctx context.Context) {
	for {
		select {
		case <-n.ticker.C:
			n.emit(ctx)
		case <-n.stop:
			return
		}
	}
}

// emit builds and sends one message, resolving payload and every
// additional property by its declared type.
func (n *Inject) emit(ctx context.Context) {
	msg := model.New(nil)
	msg.Topic = n.topic
	payload, err := resolveTyped(n.flowCtx, n.FlowID, msg, n.payload, n.payloadType)
	if err != nil {
		n.Error(err.Error(), msg)
		return
	}
	msg.Payload = payload
	for _, p := range n.props {
		v, err := resolveTyped(n.flowCtx, n.FlowID, msg, p.V, p.VT)
		if err != nil {
			n.Error(err.Error(), msg)
			continue
		}
		if setErr := msg.Set(p.P, v, true); setErr != nil {
			n.Error(setErr.Error(), msg)
		}
	}
	n.Send(ctx, msg)
}

// Close stops every scheduled emission.
func (n *Inject) Close(removed bool) error {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	if n.ticker != nil {
		n.ticker.Stop()
	}
	if n.cronJob != nil {
		n.cronJob.Stop()
	}
	if n.stop != nil {
		close(n.stop)
	}
	n.mu.Unlock()
	return n.Node.Close(removed)
}
