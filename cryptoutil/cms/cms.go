// Package cms decodes and verifies RFC 5652 CMS SignedData structures:
// ICAO Doc 9303 Part 12 Master Lists and the CMS payload carried inside
// an EF.SOD envelope.
//
// The ASN.1 shapes (signedData, signerInfo, contentInfo, attribute) are
// grounded on the retrieval pack's go-mail/internal/pkcs7 package (a
// fork-of-a-fork of fullsailor/pkcs7), which this module generalizes
// from S/MIME signing to the read/verify direction the teacher's own
// corpus did not happen to exercise: parsing an already-signed structure
// and verifying it against an arbitrary trust anchor rather than
// building one.
package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sort"

	ctx509 "github.com/google/certificate-transparency-go/x509"
)

// Well-known CMS object identifiers (RFC 5652 §5).
var (
	OIDData                   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

type signedData struct {
	Version                    int                        `asn1:"default:1"`
	DigestAlgorithmIdentifiers []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo                contentInfo
	Certificates               rawCertificates `asn1:"optional,tag:0"`
	CRLs                       []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos                []signerInfo    `asn1:"set"`
}

type rawCertificates struct {
	Raw asn1.RawContent
}

// parse walks the (possibly multiply-nested) SET/SEQUENCE wrapping the
// embedded certificates and returns every X.509 certificate found,
// skipping non-certificate elements silently (spec §4.1: "Iteration MUST
// traverse every level of SET/SEQUENCE nesting observed and skip
// non-certificate elements silently").
func (raw rawCertificates) parse() ([]*ctx509.Certificate, []error) {
	if len(raw.Raw) == 0 {
		return nil, nil
	}
	var outer asn1.RawValue
	if _, err := asn1.Unmarshal(raw.Raw, &outer); err != nil {
		return nil, []error{err}
	}
	var certs []*ctx509.Certificate
	var softErrors []error
	walkCertificateSet(outer.Bytes, &certs, &softErrors)
	return certs, softErrors
}

// walkCertificateSet recursively descends SET/SEQUENCE wrappers looking
// for DER certificates, tolerating the structural variation observed in
// real Master Lists (a bare SET OF Certificate, or a SEQUENCE containing
// a SET OF Certificate, or deeper).
func walkCertificateSet(der []byte, out *[]*ctx509.Certificate, softErrors *[]error) {
	var elements []asn1.RawValue
	rest := der
	for len(rest) > 0 {
		var el asn1.RawValue
		next, err := asn1.Unmarshal(rest, &el)
		if err != nil {
			return
		}
		elements = append(elements, el)
		rest = next
	}
	for _, el := range elements {
		switch {
		case el.Class == asn1.ClassUniversal && el.Tag == asn1.TagSequence && el.IsCompound:
			// Could be either a certificate (SEQUENCE) or a further
			// wrapping SEQUENCE/SET. Try parsing it as a certificate
			// first; if that fails, descend into it.
			if cert, _, err := parseCertificateTolerant(el.FullBytes); err == nil && cert != nil {
				*out = append(*out, cert)
				continue
			}
			walkCertificateSet(el.Bytes, out, softErrors)
		case el.Class == asn1.ClassUniversal && el.Tag == asn1.TagSet && el.IsCompound:
			walkCertificateSet(el.Bytes, out, softErrors)
		default:
			// Not a certificate-shaped element; skip silently per spec.
		}
	}
}

func parseCertificateTolerant(der []byte) (*ctx509.Certificate, error, error) {
	cert, err := ctx509.ParseCertificate(der)
	if cert == nil {
		return nil, nil, err
	}
	return cert, err, nil
}

type attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

type issuerAndSerial struct {
	IssuerName   asn1.RawValue
	SerialNumber *big.Int
}

type signerInfo struct {
	Version                   int `asn1:"default:1"`
	IssuerAndSerialNumber     issuerAndSerial
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   []attribute `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes []attribute `asn1:"optional,tag:1"`
}

// SignedData is the parsed form of a CMS ContentInfo{SignedData{...}}.
type SignedData struct {
	raw          signedData
	Certificates []*ctx509.Certificate
	softErrors   []error
}

// ParseSignedData decodes ber as ContentInfo wrapping SignedData (RFC
// 5652). It does not verify anything; callers call Verify explicitly.
func ParseSignedData(ber []byte) (*SignedData, error) {
	var ci contentInfo
	if _, err := asn1.Unmarshal(ber, &ci); err != nil {
		return nil, fmt.Errorf("cms: malformed ContentInfo: %w", err)
	}
	if !ci.ContentType.Equal(OIDSignedData) {
		return nil, fmt.Errorf("cms: unexpected content type %v, want SignedData", ci.ContentType)
	}
	var sd signedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("cms: malformed SignedData: %w", err)
	}
	certs, softErrors := sd.Certificates.parse()
	return &SignedData{raw: sd, Certificates: certs, softErrors: softErrors}, nil
}

// SignerCount returns the number of SignerInfo structures present.
func (s *SignedData) SignerCount() int {
	return len(s.raw.SignerInfos)
}

// EncapsulatedContent returns the raw econtent carried inside
// ContentInfo.Content (the LDSSecurityObject for an EF.SOD, or the
// SEQUENCE OF Certificate for a Master List).
func (s *SignedData) EncapsulatedContent() ([]byte, error) {
	inner := s.raw.ContentInfo.Content
	if len(inner.Bytes) == 0 && len(inner.FullBytes) == 0 {
		return nil, errors.New("cms: SignedData has no encapsulated content")
	}
	// econtent is itself an OCTET STRING in well-formed CMS; unwrap it if
	// present, otherwise treat the bytes as the content directly (some
	// Master List producers omit the OCTET STRING wrapper).
	var octet asn1.RawValue
	if _, err := asn1.Unmarshal(inner.Bytes, &octet); err == nil && octet.Tag == asn1.TagOctetString {
		return octet.Bytes, nil
	}
	return inner.Bytes, nil
}

// VerifyFirstSigner verifies the first SignerInfo's signature against
// signerCert's public key, over the given content (spec §4.4 step 5).
// It returns a MessageDigestMismatchError if the signer's authenticated
// attributes declare a message digest that does not match content, and a
// plain error for any other verification failure.
func (s *SignedData) VerifyFirstSigner(content []byte, signerCert *ctx509.Certificate) error {
	if len(s.raw.SignerInfos) == 0 {
		return errors.New("cms: no SignerInfo present")
	}
	return s.verifySigner(s.raw.SignerInfos[0], content, signerCert)
}

func (s *SignedData) verifySigner(si signerInfo, content []byte, signerCert *ctx509.Certificate) error {
	hashFunc, err := digestAlgorithmHash(si.DigestAlgorithm.Algorithm)
	if err != nil {
		return err
	}
	h := hashFunc.New()
	h.Write(content)
	computedDigest := h.Sum(nil)

	signedBytes := content
	if len(si.AuthenticatedAttributes) > 0 {
		var declaredDigest []byte
		if err := unmarshalAttribute(si.AuthenticatedAttributes, OIDAttributeMessageDigest, &declaredDigest); err != nil {
			return fmt.Errorf("cms: missing messageDigest attribute: %w", err)
		}
		if subtle.ConstantTimeCompare(declaredDigest, computedDigest) != 1 {
			return &MessageDigestMismatchError{Expected: computedDigest, Actual: declaredDigest}
		}
		signedBytes, err = marshalAttributesForVerify(si.AuthenticatedAttributes)
		if err != nil {
			return err
		}
	}

	return verifySignature(signerCert, hashFunc, signedBytes, si.DigestEncryptionAlgorithm.Algorithm, si.EncryptedDigest)
}

// MessageDigestMismatchError is returned when a signer's declared
// messageDigest attribute does not match the actual content digest.
type MessageDigestMismatchError struct {
	Expected []byte
	Actual   []byte
}

func (e *MessageDigestMismatchError) Error() string {
	return fmt.Sprintf("cms: message digest mismatch: expected %x, got %x", e.Expected, e.Actual)
}

func unmarshalAttribute(attrs []attribute, oid asn1.ObjectIdentifier, out interface{}) error {
	for _, a := range attrs {
		if a.Type.Equal(oid) {
			_, err := asn1.Unmarshal(a.Value.Bytes, out)
			return err
		}
	}
	return fmt.Errorf("cms: attribute %v not found", oid)
}

type sortableAttribute struct {
	sortKey []byte
	attr    attribute
}

type attributeSet []sortableAttribute

func (as attributeSet) Len() int      { return len(as) }
func (as attributeSet) Swap(i, j int) { as[i], as[j] = as[j], as[i] }
func (as attributeSet) Less(i, j int) bool {
	return bytesCompare(as[i].sortKey, as[j].sortKey) < 0
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// marshalAttributesForVerify re-encodes the DER SET OF Attribute exactly
// as the signer must have signed it: a SET tag over the already-decoded
// attribute values, re-sorted by their DER encodings in ascending byte
// order (an encoding that is a prefix of another sorts first), the same
// rule go-mail/internal/pkcs7 applies when building a SignedData for
// signing.
func marshalAttributesForVerify(attrs []attribute) ([]byte, error) {
	sortables := make(attributeSet, len(attrs))
	for i, a := range attrs {
		encoded, err := asn1.Marshal(a)
		if err != nil {
			return nil, err
		}
		sortables[i] = sortableAttribute{sortKey: encoded, attr: a}
	}
	sort.Sort(sortables)
	ordered := make([]attribute, len(sortables))
	for i, sa := range sortables {
		ordered[i] = sa.attr
	}
	encoded, err := asn1.Marshal(struct {
		A []attribute `asn1:"set"`
	}{A: ordered})
	if err != nil {
		return nil, err
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(encoded, &raw); err != nil {
		return nil, err
	}
	return raw.FullBytes, nil
}

// digestAlgorithmHash maps a CMS digest algorithm OID to a crypto.Hash,
// covering every SHA-2 family variant an ICAO-conformant DSC might use
// (spec §4.4 step 5: "for every SHA variant the DSC might use").
func digestAlgorithmHash(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	switch {
	case oid.Equal(asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}):
		return crypto.SHA1, nil
	case oid.Equal(asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}):
		return crypto.SHA224, nil
	case oid.Equal(asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}):
		return crypto.SHA256, nil
	case oid.Equal(asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}):
		return crypto.SHA384, nil
	case oid.Equal(asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}):
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("cms: unsupported digest algorithm %v", oid)
	}
}

// verifySignature dispatches to RSA PKCS#1v1.5, RSA-PSS, or ECDSA based
// on signerCert's key type and the declared encryption algorithm OID,
// per spec §4.4 step 5's requirement to support both RSA variants.
func verifySignature(signerCert *ctx509.Certificate, hash crypto.Hash, signedBytes, sig []byte, encOID asn1.ObjectIdentifier) error {
	return verifySignatureWithKey(signerCert.PublicKey, hash, signedBytes, sig, encOID)
}

func verifySignatureWithKey(pub interface{}, hash crypto.Hash, signedBytes []byte, sig []byte, encOID asn1.ObjectIdentifier) error {
	h := hash.New()
	h.Write(signedBytes)
	digest := h.Sum(nil)

	switch key := pub.(type) {
	case *rsa.PublicKey:
		if isRSAPSSOID(encOID) {
			return rsa.VerifyPSS(key, hash, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hash})
		}
		return rsa.VerifyPKCS1v15(key, hash, digest, sig)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(key, digest, sig) {
			return errors.New("cms: ECDSA signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("cms: unsupported signer public key type %T", pub)
	}
}

var rsaPSSOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

func isRSAPSSOID(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(rsaPSSOID)
}

// VerifySignatureWithKey exposes verifySignatureWithKey for callers that
// already hold the signer's public key (SOD signature verification uses
// the DSC extracted from the SOD itself, never a directory lookup).
func VerifySignatureWithKey(pub interface{}, hash crypto.Hash, signedBytes []byte, sig []byte, encOID asn1.ObjectIdentifier) error {
	return verifySignatureWithKey(pub, hash, signedBytes, sig, encOID)
}

// DigestAlgorithmHash exposes digestAlgorithmHash for callers outside
// this package (the PA engine needs it to hash Data Groups with the
// SOD-declared algorithm).
func DigestAlgorithmHash(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	return digestAlgorithmHash(oid)
}
