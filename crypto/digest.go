package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// Digest returns the sha256 of a domain tag followed by all parts. Every
// element is length prefixed, so no two different part lists share a
// digest.
func Digest(tag string, parts ...[]byte) []byte {
	h := sha256.New()
	writeLP(h, []byte(tag))
	for _, p := range parts {
		writeLP(h, p)
	}
	return h.Sum(nil)
}

// writeLP writes b with its length. Writing to a hash never fails.
func writeLP(h hash.Hash, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	_, _ = h.Write(l[:])
	_, _ = h.Write(b)
}

// HashSecret returns the commitment stored for a secret code.
func HashSecret(secret []byte) []byte {
	h := sha256.Sum256(secret)
	return h[:]
}
