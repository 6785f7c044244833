package validator

import (
	"time"

	"github.com/google/uuid"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"
)

// validateDSC implements spec §4.2 Pass 2: issuer-in-cache lookup, DSC
// signature verification against the cached CSCA, and the same
// validity-window check as Pass 1. It never performs an extra
// repository query when the issuer is absent from cache, per spec.
func validateDSC(uploadId core.UploadId, cd core.CertificateData, cache *CSCACache, now time.Time) *core.Certificate {
	cert := &core.Certificate{
		CertificateId: uuid.NewString(),
		UploadId:      uploadId,
		Fingerprint:   cd.Fingerprint,
		DER:           cd.DER,
		PublicKey:     cd.PublicKey,
		SerialNumber:  cd.SerialNumber,
		Subject:       dnInfoFromData(cd, false),
		Issuer:        issuerDNInfoFromData(cd),
		Validity:      cd.Validity,
		CertType:      cd.CertType,
		KeyAlgorithm:  cd.KeyAlgorithm,
		KeySizeBits:   cd.KeySizeBits,
	}
	if cd.CertType == core.CertTypeDSCNC {
		for _, code := range cd.ConformanceErrors {
			addError(cert, "CONSTRAINTS_INVALID", core.SeverityWarning, "DSC_NC conformance note: "+code, now)
		}
	}

	dsc, _, err := cryptoutil.ParseCertificateLenient(cd.DER)
	if dsc == nil {
		cert.Status = core.StatusInvalid
		addError(cert, "CERT_PARSE_ERROR", core.SeverityError, err.Error(), now)
		return cert
	}
	cert.ROCAVulnerable = cryptoutil.ROCAVulnerable(cd.PublicKey)

	var signatureValid, chainValid bool
	issuerCSCA, found := cache.Lookup(cd.IssuerDN)
	if !found {
		addError(cert, "CHAIN_INCOMPLETE", core.SeverityError, "issuer CSCA not present in cache: "+cd.IssuerDN, now)
	} else {
		csca, _, err := cryptoutil.ParseCertificateLenient(issuerCSCA.DER)
		if csca == nil {
			addError(cert, "CHAIN_INCOMPLETE", core.SeverityError, "cached CSCA could not be re-parsed: "+err.Error(), now)
		} else if verr := cryptoutil.VerifySignedBy(dsc, csca); verr != nil {
			addError(cert, "SIGNATURE_INVALID", core.SeverityError, "DSC signature verification against CSCA failed: "+verr.Error(), now)
		} else {
			signatureValid = true
			chainValid = true
		}
	}

	validityValid := cd.Validity.Covers(now)
	if !validityValid {
		if now.Before(cd.Validity.NotBefore) {
			addError(cert, "NOT_YET_VALID", core.SeverityError, "certificate notBefore is in the future", now)
		} else {
			addError(cert, "EXPIRED", core.SeverityWarning, "certificate notAfter has passed", now)
		}
	}

	cert.Result = core.ValidationResult{
		SignatureValid: signatureValid,
		ChainValid:     chainValid,
		NotRevoked:     true,
		ValidityValid:  validityValid,
		// Basic Constraints is a CSCA-only concept; DSCs are always
		// treated as constraints-valid (spec §4.2 Pass 2 has no
		// constraints step).
		ConstraintsValid: true,
		ValidatedAt:      now,
	}
	cert.Status = overallStatus(cert, now)
	return cert
}
