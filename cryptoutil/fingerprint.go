// Package cryptoutil holds the crypto primitives consumed by every other
// component: SHA-256 fingerprinting, lenient X.509 parse/verify, DN
// normalization, and weak-key detection.
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/iland112/local-pkd-sub001/core"
)

// Fingerprint computes the lowercase-hex SHA-256 digest of a
// certificate's (or CRL's) DER encoding (spec §3).
func Fingerprint(der []byte) core.Fingerprint {
	sum := sha256.Sum256(der)
	return core.Fingerprint(hex.EncodeToString(sum[:]))
}
