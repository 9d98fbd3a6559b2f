package utils

import (
	"hash/fnv"
	"strconv"
)

// HashBytes is the 64-bit FNV-1a digest of b.
func HashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// ETag returns a strong entity tag for a generated download.
func ETag(b []byte) string {
	return `"` + strconv.FormatUint(HashBytes(b), 16) + `"`
}
