package rtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepCloneIndependence(t *testing.T) {
	orig := map[string]interface{}{
		"a": []interface{}{1.0, 2.0, map[string]interface{}{"b": "x"}},
	}
	clone := DeepClone(orig).(map[string]interface{})
	require.True(t, DeepEqual(orig, clone))

	// mutate the clone's nested structures; original must be untouched.
	cloneList := clone["a"].([]interface{})
	cloneMap := cloneList[2].(map[string]interface{})
	cloneMap["b"] = "mutated"
	cloneList[0] = 99.0

	origList := orig["a"].([]interface{})
	origMap := origList[2].(map[string]interface{})
	assert.Equal(t, "x", origMap["b"])
	assert.Equal(t, 1.0, origList[0])
}

func TestDeepCloneBytes(t *testing.T) {
	b := []byte("hello")
	clone := DeepClone(b).([]byte)
	clone[0] = 'H'
	assert.Equal(t, byte('h'), b[0])
}
