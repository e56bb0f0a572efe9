// Package hashutil is the single source of content identity for the core:
// every component that needs a stable fingerprint of bytes, a file, or an
// ordered collection goes through these functions, never ad hoc hashing.
package hashutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"sort"
)

const streamBlockSize = 64 * 1024

// HashBytes returns the lowercase hex SHA-256 digest of buf.
func HashBytes(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// HashFile streams path through SHA-256 in bounded blocks and returns the
// lowercase hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, streamBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashOrderedMap sorts m by key ascending and hashes "$k=$v\n" for each
// pair in order, so two maps with identical contents always fingerprint
// identically regardless of iteration order.
func HashOrderedMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(m[k]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashSequence feeds a length prefix followed by the hash of each element,
// so sequences of different length or order never collide.
func HashSequence(elements []string) string {
	h := sha256.New()
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(elements)))
	h.Write(lenPrefix[:])
	for _, e := range elements {
		sum := sha256.Sum256([]byte(e))
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashSequenceOfHashes is like HashSequence but the caller supplies
// already-computed hex digests (e.g. file hashes) rather than raw bytes.
func HashSequenceOfHashes(hashes []string) string {
	h := sha256.New()
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(hashes)))
	h.Write(lenPrefix[:])
	for _, hx := range hashes {
		raw, err := hex.DecodeString(hx)
		if err != nil {
			h.Write([]byte(hx))
			continue
		}
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}
