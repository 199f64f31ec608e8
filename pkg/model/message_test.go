package model

import (
	"errors"
	"testing"

	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ addr string }

func TestCloneIsStructurallyEqualAndIndependent(t *testing.T) {
	m := New(map[string]interface{}{"a": []interface{}{1.0, 2.0}})
	m.Topic = "t"
	m.Props["extra"] = map[string]interface{}{"k": "v"}

	c := m.Clone()
	require.Equal(t, m.ID, c.ID)
	require.Equal(t, m.Topic, c.Topic)
	require.True(t, rtutil.DeepEqual(m.Payload, c.Payload))
	require.True(t, rtutil.DeepEqual(m.Props, c.Props))

	// mutating the clone's payload must not reach the original.
	c.Payload.(map[string]interface{})["a"].([]interface{})[0] = 99.0
	assert.Equal(t, 1.0, m.Payload.(map[string]interface{})["a"].([]interface{})[0])
}

func TestCloneKeepsReqResByReference(t *testing.T) {
	req := &fakeConn{addr: "in"}
	res := &fakeConn{addr: "out"}
	m := New("payload")
	m.Req = req
	m.Res = res

	c := m.Clone()
	assert.Same(t, req, c.Req)
	assert.Same(t, res, c.Res)
	assert.Same(t, req, m.Req)
	assert.Same(t, res, m.Res)
}

func TestSetThenGetRoundTrip(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Set("payload.items[2].name", "third", true))
	v, err := m.Get("payload.items[2].name")
	require.NoError(t, err)
	assert.Equal(t, "third", v)

	require.NoError(t, m.Set("meta.count", 3.0, true))
	v, err = m.Get("meta.count")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestInvalidExprRejectedAndMessageUnchanged(t *testing.T) {
	m := New("before")
	for _, expr := range []string{"", "a b", "payload["} {
		err := m.Set(expr, "after", true)
		require.Error(t, err, "expr %q", expr)
		assert.True(t, errors.Is(err, rtutil.ErrInvalidExpr), "expr %q", expr)
	}
	assert.Equal(t, "before", m.Payload)
}

func TestGetMissingPropertyYieldsNil(t *testing.T) {
	m := New(nil)
	v, err := m.Get("nothing.here")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDeleteRemovesProperty(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Set("a.b", 1.0, true))
	require.NoError(t, m.Delete("a.b"))
	v, err := m.Get("a.b")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMarshalFlattensPropsAndOmitsReqRes(t *testing.T) {
	m := New("p")
	m.Topic = "t"
	m.Req = &fakeConn{}
	m.Props["custom"] = "x"

	data, err := m.MarshalJSON()
	require.NoError(t, err)

	var back Message
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, m.ID, back.ID)
	assert.Equal(t, "t", back.Topic)
	assert.Equal(t, "p", back.Payload)
	assert.Equal(t, "x", back.Props["custom"])
	assert.Nil(t, back.Req)
}
