// Package sha256 provides the SHA-256 digests recorded in artifact manifests.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// NewHasher returns a SHA-256 hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// New returns a streaming digest for bodies too large to buffer.
func (h *Hasher) New() hash.Hash {
	return sha256.New()
}

// Hex formats a finished streaming digest.
func Hex(d hash.Hash) string {
	return hex.EncodeToString(d.Sum(nil))
}
