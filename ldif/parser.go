package ldif

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"strings"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"
	"github.com/iland112/local-pkd-sub001/masterlist"
	"github.com/iland112/local-pkd-sub001/pkderrors"

	ctx509 "github.com/google/certificate-transparency-go/x509"
)

var (
	oidCRLNumber  = asn1.ObjectIdentifier{2, 5, 29, 20}
	oidCRLReason  = asn1.ObjectIdentifier{2, 5, 29, 21}
)

const (
	attrUserCertificate = "userCertificate;binary"
	attrCRL             = "certificateRevocationList;binary"
	attrMasterList      = "pkdMasterListContent"
	attrConformanceText = "pkdConformanceText"
)

// Parse decodes an LDIF document into pf, extracting certificates, CRLs,
// and any embedded Master List content (spec §4.1 LDIF sub-parser).
// Malformed individual entries attach a ParsingError and parsing
// continues; unreadable LDIF framing is a hard failure.
func Parse(pf *core.ParsedFile, data []byte) error {
	records, err := ReadRecords(data)
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeMalformedLDIF, err, "unreadable LDIF framing")
	}

	for _, rec := range records {
		locator := fmt.Sprintf("dn=%s line=%d", rec.DN, rec.Line)

		if der := rec.Value(attrUserCertificate); der != nil {
			if err := parseCertificateEntry(pf, rec, der, locator); err != nil {
				pf.AddError(string(pkderrors.CodeCertParseError), locator, err.Error())
			}
		}

		if der := rec.Value(attrCRL); der != nil {
			if err := parseCRLEntry(pf, der, locator); err != nil {
				pf.AddError(string(pkderrors.CodeCRLParseError), locator, err.Error())
			}
		}

		if ml := rec.Value(attrMasterList); ml != nil {
			if err := masterlist.Parse(pf, ml); err != nil {
				pf.AddError(string(pkderrors.CodeMasterListCMSParseErr), locator, err.Error())
			}
		}
	}
	return nil
}

func parseCertificateEntry(pf *core.ParsedFile, rec Record, der []byte, locator string) error {
	cert, _, err := cryptoutil.ParseCertificateLenient(der)
	if cert == nil {
		return fmt.Errorf("certificate DER decode failed: %w", err)
	}

	fp := cryptoutil.Fingerprint(der)
	conformanceErrors := conformanceTextCodes(rec)
	certType := inferCertType(cert, conformanceErrors)

	keyAlg, keyBits := cryptoutil.KeyAlgorithmAndSize(cert.PublicKey)

	cd := core.CertificateData{
		DER:               der,
		Fingerprint:       fp,
		SubjectDN:         cert.Subject.String(),
		IssuerDN:          cert.Issuer.String(),
		SerialNumber:      cert.SerialNumber,
		Validity:          core.ValidityPeriod{NotBefore: cert.NotBefore, NotAfter: cert.NotAfter},
		CertType:          certType,
		CountryCode:       strings.ToUpper(firstOrEmpty(cert.Subject.Country)),
		PublicKey:         cert.PublicKey,
		KeyAlgorithm:      keyAlg,
		KeySizeBits:       keyBits,
		ConformanceErrors: conformanceErrors,
	}
	pf.AddCertificate(cd, locator)
	return nil
}

func parseCRLEntry(pf *core.ParsedFile, der []byte, locator string) error {
	crl, err := ctx509.ParseCRL(der)
	if err != nil {
		return fmt.Errorf("CRL DER decode failed: %w", err)
	}

	var issuer pkix.Name
	issuer.FillFromRDNSequence(&crl.TBSCertList.Issuer)

	var revoked []core.RevokedEntry
	for _, e := range crl.TBSCertList.RevokedCertificates {
		revoked = append(revoked, core.RevokedEntry{
			SerialNumber:   e.SerialNumber,
			RevocationDate: e.RevocationTime,
			ReasonCode:     crlReasonCode(e.Extensions),
		})
	}

	cd := core.CRLData{
		DER:            der,
		IssuerDN:       issuer.String(),
		IssuerCN:       cryptoutil.NormalizeCRLIssuerCN(issuer),
		CountryCode:    strings.ToUpper(firstOrEmpty(issuer.Country)),
		Validity:       core.ValidityPeriod{NotBefore: crl.TBSCertList.ThisUpdate, NotAfter: crl.TBSCertList.NextUpdate},
		RevokedEntries: revoked,
		CRLNumber:      crlNumberExtension(crl.TBSCertList.Extensions),
	}
	pf.AddCRL(cd)
	return nil
}

// crlNumberExtension reads the CRL Number extension (OID 2.5.29.20) if
// present; the value is carried on the CRL for audit display only.
func crlNumberExtension(exts []pkix.Extension) *big.Int {
	for _, ext := range exts {
		if !ext.Id.Equal(oidCRLNumber) {
			continue
		}
		var n big.Int
		if _, err := asn1.Unmarshal(ext.Value, &n); err == nil {
			return &n
		}
	}
	return nil
}

// crlReasonCode reads the per-entry CRL Reason Code extension (OID
// 2.5.29.21) if present, defaulting to 0 (unspecified).
func crlReasonCode(exts []pkix.Extension) int {
	for _, ext := range exts {
		if !ext.Id.Equal(oidCRLReason) {
			continue
		}
		var reason asn1.Enumerated
		if _, err := asn1.Unmarshal(ext.Value, &reason); err == nil {
			return int(reason)
		}
	}
	return 0
}

// conformanceTextCodes extracts every pkdConformanceText value recorded
// on the entry, used both to infer DSC_NC and to explain why (spec
// §4.1: "infer CertType ... and (for DSC_NC) presence of
// pkdConformanceText with error codes").
func conformanceTextCodes(rec Record) []string {
	var codes []string
	for _, v := range rec.Values(attrConformanceText) {
		codes = append(codes, string(v))
	}
	return codes
}

func inferCertType(cert *ctx509.Certificate, conformanceErrors []string) core.CertType {
	if cryptoutil.BasicConstraintsCA(cert) {
		return core.CertTypeCSCA
	}
	if len(conformanceErrors) > 0 {
		return core.CertTypeDSCNC
	}
	return core.CertTypeDSC
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
