package sync

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of data.
//
// The same function is used for whole-document bytes and for individual page
// payloads; the engine never assumes the two are computed differently. The
// digest is used for change comparison, not security.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
