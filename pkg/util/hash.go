package util

import (
	"strconv"

	"github.com/cespare/xxhash"
)

// Checksum produces a `xxhash` hash from a given byte slice
// NOTE: https://github.com/cespare/xxhash for more details
func Checksum(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

// ChecksumString is like Checksum but for strings
func ChecksumString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// ETag renders a checksum as a quoted entity tag
func ETag(checksum uint64) string {
	return strconv.Quote(strconv.FormatUint(checksum, 16))
}
