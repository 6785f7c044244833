package validator

import (
	"time"

	"github.com/google/uuid"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"
)

// validateCSCA implements spec §4.2 Pass 1: self-signature, validity
// window, and Basic Constraints checks for a CSCA entry.
func validateCSCA(uploadId core.UploadId, cd core.CertificateData, now time.Time) *core.Certificate {
	cert := &core.Certificate{
		CertificateId: uuid.NewString(),
		UploadId:      uploadId,
		Fingerprint:   cd.Fingerprint,
		DER:           cd.DER,
		PublicKey:     cd.PublicKey,
		SerialNumber:  cd.SerialNumber,
		Subject:       dnInfoFromData(cd, true),
		Issuer:        issuerDNInfoFromData(cd),
		Validity:      cd.Validity,
		CertType:      cd.CertType,
		KeyAlgorithm:  cd.KeyAlgorithm,
		KeySizeBits:   cd.KeySizeBits,
	}

	parsed, _, err := cryptoutil.ParseCertificateLenient(cd.DER)
	if parsed == nil {
		cert.Status = core.StatusInvalid
		addError(cert, "CERT_PARSE_ERROR", core.SeverityError, err.Error(), now)
		return cert
	}

	cert.ROCAVulnerable = cryptoutil.ROCAVulnerable(cd.PublicKey)

	signatureValid := cryptoutil.IsSelfSigned(parsed) == nil
	if !signatureValid {
		addError(cert, "SIGNATURE_INVALID", core.SeverityError, "CSCA self-signature verification failed", now)
	}

	validityValid := cd.Validity.Covers(now)
	if !validityValid {
		if now.Before(cd.Validity.NotBefore) {
			addError(cert, "NOT_YET_VALID", core.SeverityError, "certificate notBefore is in the future", now)
		} else {
			addError(cert, "EXPIRED", core.SeverityWarning, "certificate notAfter has passed", now)
		}
	}

	constraintsValid, reason := cryptoutil.ConstraintsValid(cd.DER)
	if !constraintsValid {
		addError(cert, "CONSTRAINTS_INVALID", core.SeverityError, reason, now)
	}

	cert.Result = core.ValidationResult{
		SignatureValid:   signatureValid,
		ChainValid:       signatureValid,
		NotRevoked:       true,
		ValidityValid:    validityValid,
		ConstraintsValid: constraintsValid,
		ValidatedAt:      now,
	}
	cert.Status = overallStatus(cert, now)
	return cert
}

func overallStatus(cert *core.Certificate, now time.Time) core.Status {
	if cert.HasErrorSeverity() {
		return core.StatusInvalid
	}
	if !cert.Validity.Covers(now) {
		if now.Before(cert.Validity.NotBefore) {
			return core.StatusNotYetValid
		}
		return core.StatusExpired
	}
	return core.StatusValid
}

func addError(cert *core.Certificate, code string, severity core.ErrorSeverity, msg string, at time.Time) {
	cert.Errors = append(cert.Errors, core.ValidationError{
		Code:       code,
		Message:    msg,
		Severity:   severity,
		OccurredAt: at,
	})
}

func dnInfoFromData(cd core.CertificateData, isCA bool) core.DNInfo {
	return core.DNInfo{Raw: cd.SubjectDN, CountryCode: cd.CountryCode, IsCA: isCA}
}

func issuerDNInfoFromData(cd core.CertificateData) core.DNInfo {
	return core.DNInfo{Raw: cd.IssuerDN}
}
