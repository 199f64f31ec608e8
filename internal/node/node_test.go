package node

import (
	"context"
	"testing"

	"github.com/rauldose/node-red-new-sub000/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReceiver struct {
	id       string
	received []*model.Message
}

func (f *fakeReceiver) ID() string { return f.id }
func (f *fakeReceiver) Receive(ctx context.Context, msg *model.Message) {
	f.received = append(f.received, msg)
}

type fakePublisher struct {
	errors    []string
	statuses  []Status
	completed int
}

func (f *fakePublisher) HandleError(source Info, msg *model.Message, errMsg string, reportable bool) {
	f.errors = append(f.errors, errMsg)
}
func (f *fakePublisher) HandleStatus(source Info, status Status) {
	f.statuses = append(f.statuses, status)
}
func (f *fakePublisher) HandleComplete(source Info, msg *model.Message, completionErr error) {
	f.completed++
}

func TestDisabledNodeDropsReceive(t *testing.T) {
	n := New(Info{ID: "n1", Type: "test"}, "f1", true, nil, nil, nil, nil)
	called := false
	n.OnInput(func(ctx context.Context, msg *model.Message) error {
		called = true
		return nil
	})
	n.Receive(context.Background(), model.New("x"))
	assert.False(t, called)
}

func TestClosedNodeDropsReceive(t *testing.T) {
	n := New(Info{ID: "n1", Type: "test"}, "f1", false, nil, nil, nil, nil)
	called := false
	n.OnInput(func(ctx context.Context, msg *model.Message) error {
		called = true
		return nil
	})
	require.NoError(t, n.Close(false))
	n.Receive(context.Background(), model.New("x"))
	assert.False(t, called)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	n := New(Info{ID: "n1"}, "f1", false, nil, nil, nil, nil)
	var order []int
	n.OnInput(func(ctx context.Context, msg *model.Message) error {
		order = append(order, 1)
		return nil
	})
	n.OnInput(func(ctx context.Context, msg *model.Message) error {
		order = append(order, 2)
		return nil
	})
	n.Receive(context.Background(), model.New("x"))
	assert.Equal(t, []int{1, 2}, order)
}

func TestSendFanOutClonesAllButLastDestination(t *testing.T) {
	a := &fakeReceiver{id: "a"}
	b := &fakeReceiver{id: "b"}
	n := New(Info{ID: "src"}, "f1", false, nil, nil, nil, nil)
	n.OutputNodes = [][]Receiver{{a, b}}

	msg := model.New(map[string]interface{}{"x": 1})
	n.Send(context.Background(), msg)

	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
	assert.NotSame(t, msg, a.received[0], "non-last destination must get a clone")
	assert.Same(t, msg, b.received[0], "last destination must get the original")
}

func TestSendArrayRoutesByPortIndexAndSkipsNil(t *testing.T) {
	p0 := &fakeReceiver{id: "p0"}
	p1 := &fakeReceiver{id: "p1"}
	n := New(Info{ID: "src"}, "f1", false, nil, nil, nil, nil)
	n.OutputNodes = [][]Receiver{{p0}, {p1}}

	m1 := model.New("one")
	n.Send(context.Background(), m1, nil)

	assert.Len(t, p0.received, 1)
	assert.Len(t, p1.received, 0)
}

func TestSendIsolatesPanickingDestination(t *testing.T) {
	good := &fakeReceiver{id: "good"}
	n := New(Info{ID: "src"}, "f1", false, nil, nil, nil, nil)
	n.OutputNodes = [][]Receiver{{panicReceiver{}, good}}

	assert.NotPanics(t, func() {
		n.Send(context.Background(), model.New("x"))
	})
	assert.Len(t, good.received, 1)
}

type panicReceiver struct{}

func (panicReceiver) ID() string { return "panic" }
func (panicReceiver) Receive(ctx context.Context, msg *model.Message) {
	panic("boom")
}

func TestSetStatusPublishesToFlow(t *testing.T) {
	pub := &fakePublisher{}
	n := New(Info{ID: "n1"}, "f1", false, nil, nil, nil, pub)
	n.SetStatus(Status{Fill: "green", Shape: "dot", Text: "ready"})
	require.Len(t, pub.statuses, 1)
	assert.Equal(t, "ready", pub.statuses[0].Text)

	n.ClearStatus()
	require.Len(t, pub.statuses, 2)
	assert.Equal(t, Status{}, pub.statuses[1])
}

func TestErrorPublishesToFlow(t *testing.T) {
	pub := &fakePublisher{}
	n := New(Info{ID: "n1", Type: "t"}, "f1", false, nil, nil, nil, pub)
	n.Error("boom", nil)
	require.Len(t, pub.errors, 1)
	assert.Equal(t, "boom", pub.errors[0])
}

func TestReceiveTriggersOnComplete(t *testing.T) {
	pub := &fakePublisher{}
	n := New(Info{ID: "n1"}, "f1", false, nil, nil, nil, pub)
	n.OnInput(func(ctx context.Context, msg *model.Message) error { return nil })
	n.Receive(context.Background(), model.New("x"))
	assert.Equal(t, 1, pub.completed)
}
