package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idEntropyBytes = 12

// NewID returns a random URL-safe hex identifier.
func NewID() string {
	buf := make([]byte, idEntropyBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
