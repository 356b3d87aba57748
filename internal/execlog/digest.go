// ABOUTME: Sanitized parameter digests for execution log entries.
// ABOUTME: Canonical JSON hashed with sha256; raw values never leave this function.

package execlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ParametersDigest produces a stable digest of normalized parameters for the
// execution log. encoding/json marshals map keys in sorted order, which makes
// the digest canonical for a given parameter set. Only the hash is retained,
// so free-text parameter values cannot be recovered from log entries.
func ParametersDigest(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		// Normalized parameters came from JSON, so this should not happen;
		// an empty digest is still a valid sanitized value.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
