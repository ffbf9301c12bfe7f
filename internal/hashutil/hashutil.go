package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Blake3 returns the hex encoded 256-bit BLAKE3 digest of data.
func Blake3(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for a response body.
func ETag(body []byte) string {
	return `"` + Blake3(body)[:32] + `"`
}
