// Package masterlist implements the standalone CMS Master List
// sub-parser (spec §4.1): an RFC 5652 SignedData envelope whose
// encapsulated content is a SEQUENCE OF CSCA Certificate, used both for
// MASTER_LIST_SIGNED_CMS uploads and for pkdMasterListContent entries
// embedded in an LDIF record.
package masterlist

import (
	"fmt"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"
	"github.com/iland112/local-pkd-sub001/cryptoutil/cms"
	"github.com/iland112/local-pkd-sub001/pkderrors"

	ctx509 "github.com/google/certificate-transparency-go/x509"
)

// TrustAnchor is the optional CSCA (or Master List signer CA) the parser
// verifies the Master List's own CMS signature against. A nil anchor
// skips signature verification and records nothing in the ParsedFile.
// A failed verification records a SIGNATURE_INVALID ParsingError and
// parsing continues; the certificates inside are still validated
// independently by the two-pass validator.
type TrustAnchor struct {
	Certificate *ctx509.Certificate
}

// Parse decodes a CMS Master List and appends every embedded CSCA
// certificate it can extract to pf, as plain CertificateData destined
// for the two-pass validator; it never trusts the embedded certificates
// itself. Parse does not verify the Master List's signature; see
// ParseWithTrustAnchor.
func Parse(pf *core.ParsedFile, data []byte) error {
	return ParseWithTrustAnchor(pf, data, nil)
}

// ParseWithTrustAnchor is Parse with an explicit, possibly-nil signature
// verification anchor (spec §4.1 step VERIFY_MASTER_LIST_SIGNATURE).
func ParseWithTrustAnchor(pf *core.ParsedFile, data []byte, anchor *TrustAnchor) error {
	sod, err := cms.UnwrapSOD(data)
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeMasterListCMSParseErr, err, "master list envelope unwrap failed")
	}

	signed, err := cms.ParseSignedData(sod)
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeMasterListCMSParseErr, err, "master list CMS SignedData decode failed")
	}

	if anchor != nil && anchor.Certificate != nil {
		if err := verifyMasterListSignature(signed, anchor.Certificate); err != nil {
			pf.AddError(string(pkderrors.CodeSignatureInvalid), "master-list", fmt.Sprintf("master list signature not verified: %v", err))
		}
	}

	for i, cert := range signed.Certificates {
		locator := fmt.Sprintf("master-list entry %d", i)
		cd := certificateDataFrom(cert)
		pf.AddCertificate(cd, locator)
	}
	return nil
}

func verifyMasterListSignature(signed *cms.SignedData, anchor *ctx509.Certificate) error {
	content, err := signed.EncapsulatedContent()
	if err != nil {
		return err
	}
	return signed.VerifyFirstSigner(content, anchor)
}

func certificateDataFrom(cert *ctx509.Certificate) core.CertificateData {
	keyAlg, keyBits := cryptoutil.KeyAlgorithmAndSize(cert.PublicKey)
	certType := core.CertTypeDSC
	if cryptoutil.BasicConstraintsCA(cert) {
		certType = core.CertTypeCSCA
	}
	return core.CertificateData{
		DER:          cert.Raw,
		Fingerprint:  cryptoutil.Fingerprint(cert.Raw),
		SubjectDN:    cert.Subject.String(),
		IssuerDN:     cert.Issuer.String(),
		SerialNumber: cert.SerialNumber,
		Validity:     core.ValidityPeriod{NotBefore: cert.NotBefore, NotAfter: cert.NotAfter},
		CertType:     certType,
		CountryCode:  firstOrEmpty(cert.Subject.Country),
		PublicKey:    cert.PublicKey,
		KeyAlgorithm: keyAlg,
		KeySizeBits:  keyBits,
	}
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
