// Package rtutil holds the leaf-level utilities the rest of the runtime
// builds on: id generation, deep clone, property-path parsing/get/set,
// and value comparison.
package rtutil

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewMessageID returns a fresh 16-hex-char message id.
func NewMessageID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; fall
		// back to a uuid-derived id rather than panic mid-flow.
		return hex.EncodeToString([]byte(uuid.NewString()))[:16]
	}
	return hex.EncodeToString(buf)
}

// NewResourceID mints an id for infrastructure objects that don't need
// the message envelope's 16-hex-char shape; link-call correlation ids
// are minted here.
func NewResourceID() string {
	return uuid.NewString()
}
