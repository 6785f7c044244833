package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/titanous/rocacheck"
)

// ParseCertificateLenient decodes DER into a Certificate using the
// certificate-transparency-go fork of crypto/x509, which tolerates the
// malformed extensions routinely seen on DSC_NON_CONFORMING entries
// (spec §4.1). A non-nil *ctx509.Certificate is returned even when err
// is a non-fatal x509.NonFatalErrors; callers should only treat a parse
// as hard-failed when cert == nil.
func ParseCertificateLenient(der []byte) (cert *ctx509.Certificate, nonFatal error, err error) {
	cert, err = ctx509.ParseCertificate(der)
	if cert == nil {
		return nil, nil, err
	}
	if err != nil {
		// ctx509 reports recoverable structural problems as a non-fatal
		// error while still returning a usable certificate.
		return cert, err, nil
	}
	return cert, nil, nil
}

// IsSelfSigned reports whether cert's signature validates against its
// own public key (spec §4.2 Pass 1 step 1).
func IsSelfSigned(cert *ctx509.Certificate) error {
	return cert.CheckSignatureFrom(cert)
}

// VerifySignedBy reports whether cert's signature validates against
// issuer's public key (spec §4.2 Pass 2 step 2, and PA engine
// VERIFY_TRUST_CHAIN).
func VerifySignedBy(cert, issuer *ctx509.Certificate) error {
	return cert.CheckSignatureFrom(issuer)
}

// ValidityWindow reports whether now falls within [NotBefore, NotAfter],
// inclusive (spec §8 boundary behavior).
func ValidityWindow(notBefore, notAfter, now time.Time) bool {
	return !now.Before(notBefore) && !now.After(notAfter)
}

// BasicConstraintsCA reports whether cert's Basic Constraints extension
// marks it as a CA (spec §4.2 Pass 1 step 3).
func BasicConstraintsCA(cert *ctx509.Certificate) bool {
	return cert.BasicConstraintsValid && cert.IsCA
}

// KeyAlgorithmAndSize describes the public key's algorithm name and bit
// size, used for the CertificateData/Certificate KeyAlgorithm/KeySizeBits
// fields.
func KeyAlgorithmAndSize(pub interface{}) (algorithm string, bits int) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RSA", k.N.BitLen()
	case *ecdsa.PublicKey:
		return "ECDSA", k.Curve.Params().BitSize
	default:
		return "UNKNOWN", 0
	}
}

// ROCAVulnerable reports whether an RSA public key's modulus matches the
// fingerprint of ROCA-vulnerable (Infineon TPM/smartcard) key generation,
// using titanous/rocacheck. Non-RSA keys are never vulnerable to ROCA.
func ROCAVulnerable(pub interface{}) bool {
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return false
	}
	return rocacheck.IsWeak(rsaKey)
}

// DescribeSignatureAlgorithm renders a cert's signature algorithm as a
// short string for audit log details.
func DescribeSignatureAlgorithm(cert *ctx509.Certificate) string {
	return fmt.Sprintf("%v", cert.SignatureAlgorithm)
}
