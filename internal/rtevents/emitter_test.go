package rtevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnceConsumedAtomically(t *testing.T) {
	e := New()
	calls := 0
	e.Once("ping", func(args ...interface{}) { calls++ })

	assert.True(t, e.Emit("ping"))
	assert.False(t, e.Emit("ping")) // listener was consumed by the first emit
	assert.Equal(t, 1, calls)
}

func TestEmitReturnsWhetherListenerPresent(t *testing.T) {
	e := New()
	assert.False(t, e.Emit("nothing"))
	e.On("something", func(args ...interface{}) {})
	assert.True(t, e.Emit("something"))
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	e := New()
	calls := 0
	id, _ := e.On("evt", func(args ...interface{}) { calls++ })
	e.Emit("evt")
	e.RemoveListener("evt", id)
	e.Emit("evt")
	assert.Equal(t, 1, calls)
}

func TestDeprecatedEventForwards(t *testing.T) {
	e := New()
	e.DeprecateEvent("old-name", "new-name")
	calls := 0
	_, warn1 := e.On("old-name", func(args ...interface{}) { calls++ })
	assert.True(t, warn1)
	e.Emit("new-name")
	assert.Equal(t, 1, calls)
}

func TestListenerCount(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.ListenerCount("x"))
	e.On("x", func(args ...interface{}) {})
	e.On("x", func(args ...interface{}) {})
	assert.Equal(t, 2, e.ListenerCount("x"))
	e.RemoveAllListeners("x")
	assert.Equal(t, 0, e.ListenerCount("x"))
}
