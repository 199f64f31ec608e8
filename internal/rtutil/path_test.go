package rtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathValid(t *testing.T) {
	cases := map[string][]interface{}{
		"a.b.c":        {"a", "b", "c"},
		"a[0]":         {"a", 0},
		`a["b c"]`:     {"a", "b c"},
		"a['x']":       {"a", "x"},
		"msg.payload":  {"payload"},
		"a[0].b":       {"a", 0, "b"},
		"a[0][1]":      {"a", 0, 1},
	}
	for expr, want := range cases {
		got, err := ParsePath(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestParsePathInvalid(t *testing.T) {
	for _, expr := range []string{"", " ", "a. b", "a[", "a[0", `a["b`, "a b"} {
		_, err := ParsePath(expr)
		assert.ErrorIs(t, err, ErrInvalidExpr, expr)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	root := map[string]interface{}{}
	newRoot, err := SetPath(root, []interface{}{"a", 2, "b"}, 42, true)
	require.NoError(t, err)
	got, err := GetPath(newRoot, []interface{}{"a", 2, "b"})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	// index 0,1 should be nil-filled
	zero, err := GetPath(newRoot, []interface{}{"a", 0})
	require.NoError(t, err)
	assert.Nil(t, zero)
}

func TestGetMissingSegmentYieldsNil(t *testing.T) {
	root := map[string]interface{}{"a": map[string]interface{}{}}
	got, err := GetPath(root, []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
