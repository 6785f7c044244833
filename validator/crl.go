package validator

import (
	"time"

	"github.com/google/uuid"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"

	ctx509 "github.com/google/certificate-transparency-go/x509"
)

// validateCRL implements spec §4.2 "CRL processing": issuer DN
// normalization, thisUpdate/nextUpdate staleness check, and (when the
// issuer matches a cached CSCA) a CRL signature check.
func validateCRL(uploadId core.UploadId, cd core.CRLData, cache *CSCACache, now time.Time, strict bool) *core.CRL {
	crl := &core.CRL{
		CrlId:          uuid.NewString(),
		UploadId:       uploadId,
		IssuerDN:       cd.IssuerDN,
		IssuerCN:       cd.IssuerCN,
		CountryCode:    cd.CountryCode,
		Validity:       cd.Validity,
		DER:            cd.DER,
		RevokedCount:   len(cd.RevokedEntries),
		RevokedEntries: cd.RevokedEntries,
	}

	if !cd.Validity.Covers(now) {
		sev := core.SeverityWarning
		if strict {
			sev = core.SeverityError
		}
		crl.Errors = append(crl.Errors, core.ValidationError{
			Code:       "CRL_STALE",
			Message:    "CRL is outside its thisUpdate/nextUpdate window",
			Severity:   sev,
			OccurredAt: now,
		})
	}

	issuerCSCA, found := cache.Lookup(cd.IssuerDN)
	if !found {
		crl.Errors = append(crl.Errors, core.ValidationError{
			Code:       "CHAIN_INCOMPLETE",
			Message:    "CRL issuer not chain-linked to any cached CSCA: " + cd.IssuerDN,
			Severity:   core.SeverityWarning,
			OccurredAt: now,
		})
		return crl
	}

	parsedCRL, err := ctx509.ParseCRL(cd.DER)
	if err != nil {
		crl.Errors = append(crl.Errors, core.ValidationError{
			Code:       "CRL_PARSE_ERROR",
			Message:    err.Error(),
			Severity:   core.SeverityError,
			OccurredAt: now,
		})
		return crl
	}
	csca, _, err := cryptoutil.ParseCertificateLenient(issuerCSCA.DER)
	if csca == nil {
		crl.Errors = append(crl.Errors, core.ValidationError{
			Code:       "CRL_SIGNATURE_INVALID",
			Message:    "cached CSCA could not be re-parsed: " + err.Error(),
			Severity:   core.SeverityError,
			OccurredAt: now,
		})
		return crl
	}
	if err := csca.CheckCRLSignature(parsedCRL); err != nil {
		crl.Errors = append(crl.Errors, core.ValidationError{
			Code:       "CRL_SIGNATURE_INVALID",
			Message:    "CRL signature verification against cached CSCA failed: " + err.Error(),
			Severity:   core.SeverityError,
			OccurredAt: now,
		})
	}
	return crl
}
