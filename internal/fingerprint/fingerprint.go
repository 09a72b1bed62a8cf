// Package fingerprint reduces observed page text to a short token used to
// suppress repeat alerts for an unchanged page state.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"stockwatch/internal/normalize"
)

// Length is the number of hex characters in a fingerprint.
const Length = 16

// Of returns the first Length hex characters of the SHA-256 digest of the
// normalized text. Normalization happens before hashing, so texts that only
// differ in whitespace runs or case share a fingerprint.
func Of(text string) string {
	sum := sha256.Sum256([]byte(normalize.Text(text)))
	return hex.EncodeToString(sum[:])[:Length]
}
