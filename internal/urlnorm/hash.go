package urlnorm

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Hash is a 128-bit fingerprint of a normalized URL. Two URLs with equal
// hashes are the same logical resource as far as deduplication is concerned,
// so hashes must only ever be taken of normalized text.
type Hash [16]byte

// HashURL fingerprints a normalized URL string.
func HashURL(normalized string) Hash {
	sum := xxh3.Hash128([]byte(normalized))

	var h Hash
	binary.BigEndian.PutUint64(h[:8], sum.Hi)
	binary.BigEndian.PutUint64(h[8:], sum.Lo)
	return h
}

// Hex returns the lowercase hex form, suitable for API payloads and
// database keys.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether the hash is the zero value, which no real URL
// produces in practice.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
