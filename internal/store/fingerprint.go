package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns a structural hash of the value's canonical JSON form.
// The sync layer compares fingerprints, not timestamps, to detect divergent
// local and remote state.
func Fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
