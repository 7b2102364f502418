package sha256

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := NewHasher()
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, got)

	again, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestStreamingDigestMatchesHash(t *testing.T) {
	t.Parallel()

	h := NewHasher()
	d := h.New()
	_, err := io.Copy(d, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, Hex(d))
}
