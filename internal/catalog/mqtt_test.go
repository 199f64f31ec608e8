package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeMQTTPayloadByDatatype(t *testing.T) {
	jsonBytes := []byte(`{"a":1}`)

	assert.Equal(t, []byte("raw"), decodeMQTTPayload([]byte("raw"), "buffer"))
	assert.Equal(t, "plain", decodeMQTTPayload([]byte("plain"), "utf8"))
	assert.Equal(t, map[string]interface{}{"a": 1.0}, decodeMQTTPayload(jsonBytes, "json"))
	// malformed json degrades to a string instead of dropping the message
	assert.Equal(t, "{oops", decodeMQTTPayload([]byte("{oops"), "json"))
}

func TestDecodeMQTTPayloadAutoTriesJSONThenString(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"a": 1.0}, decodeMQTTPayload([]byte(`{"a":1}`), "auto"))
	assert.Equal(t, []interface{}{1.0, 2.0}, decodeMQTTPayload([]byte(`[1,2]`), "auto"))
	// scalars stay strings in auto mode
	assert.Equal(t, "42", decodeMQTTPayload([]byte("42"), "auto"))
	assert.Equal(t, "hello", decodeMQTTPayload([]byte("hello"), "auto"))
}
