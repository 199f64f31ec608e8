package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

var rateUnitSeconds = map[string]float64{"second": 1, "minute": 60, "hour": 3600}

// Delay is the delay/rate/queue node: a per-node
// mutex serializes the mutable queue/timer state, since the node base
// gives no per-node serialization guarantee across concurrent
// Receive calls.
type Delay struct {
	*node.Node

	mode string // delay | delayv | random | rate | queue

	fixed       time.Duration
	randomFirst time.Duration
	randomLast  time.Duration

	drop     bool
	interval time.Duration

	mu       sync.Mutex
	lastSent time.Time
	queue    []*model.Message
	ticker   *time.Ticker
	stop     chan struct{}
}

func registerDelay(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+flowSet, "delay", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		mode := stringField(raw, "pauseType", "delay")
		unit := stringField(raw, "rateUnits", "second")
		rate := numField(raw, "rate", 1)
		nbUnits := numField(raw, "nbRateUnits", 1)
		var interval time.Duration
		if rate > 0 {
			seconds := rateUnitSeconds[unit] * nbUnits / rate
			interval = time.Duration(seconds * float64(time.Second))
		}
		d := &Delay{
			Node:        node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			mode:        mode,
			fixed:       time.Duration(numField(raw, "timeout", 5) * float64(time.Second)),
			randomFirst: time.Duration(numField(raw, "randomFirst", 0) * float64(time.Second)),
			randomLast:  time.Duration(numField(raw, "randomLast", 5) * float64(time.Second)),
			drop:        boolField(raw, "drop", false),
			interval:    interval,
		}
		d.OnInput(d.handle)
		return d, nil
	}, registry.ConstructorOpts{Icon: "delay.svg"})
}

// Initialize starts the rate/queue drain ticker, if this instance
// needs one.
func (d *Delay) Initialize(ctx context.Context) error {
	if (d.mode == "rate" || d.mode == "queue") && !d.drop && d.interval > 0 {
		d.mu.Lock()
		d.ticker = time.NewTicker(d.interval)
		d.stop = make(chan struct{})
		d.mu.Unlock()
		go d.drainLoop(ctx)
	}
	return nil
}

func (d *Delay) drainLoop(ctx context.Context) {
	for {
		select {
		case <-d.ticker.C:
			d.mu.Lock()
			var next *model.Message
			if len(d.queue) > 0 {
				next = d.queue[0]
				d.queue = d.queue[1:]
				d.lastSent = time.Now()
			}
			d.mu.Unlock()
			if next != nil {
				d.Send(ctx, next)
			}
		case <-d.stop:
			return
		}
	}
}

func (d *Delay) handle(ctx context.Context, msg *model.Message) error {
	switch d.mode {
	case "delay":
		select {
		case <-time.After(d.fixed):
		case <-ctx.Done():
			return ctx.Err()
		}
		d.Send(ctx, msg)
	case "delayv":
		ms := float64(d.fixed / time.Millisecond)
		if v, err := msg.Get("delay"); err == nil {
			switch x := v.(type) {
			case float64:
				ms = x
			case int:
				ms = float64(x)
			}
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		d.Send(ctx, msg)
	case "random":
		span := d.randomLast - d.randomFirst
		wait := d.randomFirst
		if span > 0 {
			wait += time.Duration(rand.Int63n(int64(span)))
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		d.Send(ctx, msg)
	case "rate", "queue":
		d.mu.Lock()
		now := time.Now()
		if d.drop {
			admit := now.Sub(d.lastSent) >= d.interval
			if admit {
				d.lastSent = now
			}
			d.mu.Unlock()
			if admit {
				d.Send(ctx, msg)
			}
			return nil
		}
		// An idle rate limiter passes the first message straight through;
		// only the excess waits for the drain ticker.
		if d.mode == "rate" && len(d.queue) == 0 && now.Sub(d.lastSent) >= d.interval {
			d.lastSent = now
			d.mu.Unlock()
			d.Send(ctx, msg)
			return nil
		}
		d.queue = append(d.queue, msg)
		d.mu.Unlock()
	}
	return nil
}

// Close stops the drain ticker, if running.
func (d *Delay) Close(removed bool) error {
	d.mu.Lock()
	if d.ticker != nil {
		d.ticker.Stop()
	}
	if d.stop != nil {
		close(d.stop)
	}
	d.mu.Unlock()
	return d.Node.Close(removed)
}
