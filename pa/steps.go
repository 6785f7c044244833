package pa

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil"
	"github.com/iland112/local-pkd-sub001/cryptoutil/cms"
)

// unwrapSOD implements spec §4.4 step 1.
func (e *Engine) unwrapSOD(s *state, sodBytes []byte) error {
	der, err := cms.UnwrapSOD(sodBytes)
	if err != nil {
		return newStepError("INVALID_SOD_FORMAT", err.Error())
	}
	s.sodDER = der
	s.span.SetAttributes(attribute.Int("pa.sod_bytes", len(der)))
	return nil
}

// extractDSC implements spec §4.4 step 2: the DSC is the first
// certificate in the CMS SignedData's embedded certificate set,
// converted via ctx509 (never looked up in the directory).
func (e *Engine) extractDSC(s *state) error {
	signed, err := cms.ParseSignedData(s.sodDER)
	if err != nil {
		return newStepError("DSC_EXTRACTION_FAILED", err.Error())
	}
	if len(signed.Certificates) == 0 {
		return newStepError("DSC_EXTRACTION_FAILED", "CMS SignedData carries no embedded certificates")
	}
	s.signed = signed
	s.dsc = signed.Certificates[0]
	s.dscData = core.CertificateData{
		DER:          s.dsc.Raw,
		Fingerprint:  cryptoutil.Fingerprint(s.dsc.Raw),
		SubjectDN:    s.dsc.Subject.String(),
		IssuerDN:     s.dsc.Issuer.String(),
		SerialNumber: s.dsc.SerialNumber,
	}
	return nil
}

// lookupCSCA implements spec §4.4 step 3: findBySubjectDN(issuerDN)
// against the trust store, never the directory (the ICAO-compliance
// invariant). A LookupCache, when configured, deduplicates repeated
// lookups of the same subject DN across invocations.
func (e *Engine) lookupCSCA(s *state) error {
	var cert *core.Certificate
	var err error
	if e.lookupCache != nil {
		cert, err = e.lookupCache.CSCA(s.ctx, e.store, s.dscData.IssuerDN)
	} else {
		cert, err = e.store.FindBySubjectDN(s.ctx, s.dscData.IssuerDN)
	}
	if err != nil {
		return newStepError("CSCA_NOT_FOUND", fmt.Sprintf("trust store lookup failed: %v", err))
	}
	if cert == nil {
		return newStepError("CSCA_NOT_FOUND", "no CSCA found for issuer DN "+s.dscData.IssuerDN)
	}
	s.cscaCert = cert
	csca, _, err := cryptoutil.ParseCertificateLenient(cert.DER)
	if csca == nil {
		return newStepError("CSCA_NOT_FOUND", fmt.Sprintf("stored CSCA could not be re-parsed: %v", err))
	}
	s.csca = csca
	return nil
}

// verifyTrustChain implements spec §4.4 step 4.
func (e *Engine) verifyTrustChain(s *state) error {
	if err := cryptoutil.VerifySignedBy(s.dsc, s.csca); err != nil {
		return newStepError("TRUST_CHAIN_INVALID", "DSC signature verification against CSCA failed: "+err.Error())
	}
	now := e.clock.Now().UTC()
	if !cryptoutil.ValidityWindow(s.dsc.NotBefore, s.dsc.NotAfter, now) {
		return newStepError("TRUST_CHAIN_INVALID", "DSC validity window does not cover now")
	}
	s.inv.CertificateChainValid = true
	return nil
}

// verifySODSignature implements spec §4.4 step 5: verify the single
// SignerInfo against the DSC's public key, supporting RSA-PKCS1, RSA-PSS
// and ECDSA (dispatched by key type and signature algorithm OID in
// cryptoutil/cms).
func (e *Engine) verifySODSignature(s *state) error {
	content, err := s.signed.EncapsulatedContent()
	if err != nil {
		return newStepError("SOD_SIGNATURE_INVALID", err.Error())
	}
	if err := s.signed.VerifyFirstSigner(content, s.dsc); err != nil {
		return newStepError("SOD_SIGNATURE_INVALID", err.Error())
	}
	s.span.SetAttributes(attribute.String("pa.signature_algorithm", cryptoutil.DescribeSignatureAlgorithm(s.dsc)))
	s.inv.SODSignatureValid = true
	return nil
}

// extractDGHashes implements spec §4.4 step 6.
func (e *Engine) extractDGHashes(s *state) error {
	content, err := s.signed.EncapsulatedContent()
	if err != nil {
		return newStepError("DATA_GROUP_HASH_MISMATCH", err.Error())
	}
	lso, err := cms.ParseLDSSecurityObject(content)
	if err != nil {
		return newStepError("DATA_GROUP_HASH_MISMATCH", err.Error())
	}
	s.lso = lso
	return nil
}

// verifyDGHashes implements spec §4.4 step 7. Not fail-fast: every
// declared and presented DG is checked and logged even after a
// mismatch, and the engine's own overall status reflects the worst
// outcome.
func (e *Engine) verifyDGHashes(s *state, dataGroups map[int][]byte) bool {
	_, span := tracer.Start(s.ctx, string(core.StepVerifyDGHashes))
	defer span.End()
	s.emit(core.StepVerifyDGHashes, core.StepStatusStarted, "verifying data group hashes", nil)

	h, err := dgHasher(s.lso.HashAlgorithmOID)
	if err != nil {
		s.emitFailure(core.StepVerifyDGHashes, newStepError("DATA_GROUP_HASH_MISMATCH", err.Error()))
		return false
	}

	allOK := true
	var dgNumbers []int
	seen := map[int]bool{}
	for n := range s.lso.DataGroupHashes {
		dgNumbers = append(dgNumbers, n)
		seen[n] = true
	}
	for n := range dataGroups {
		if !seen[n] {
			dgNumbers = append(dgNumbers, n)
		}
	}
	sort.Ints(dgNumbers)

	for _, n := range dgNumbers {
		expected, declared := s.lso.DataGroupHashes[n]
		dgBytes, present := dataGroups[n]

		result := core.DataGroupResult{DGNumber: n, Declared: declared, Present: present}
		switch {
		case declared && present:
			h.Reset()
			h.Write(dgBytes)
			actual := h.Sum(nil)
			result.ExpectedHash = expected
			result.ActualHash = actual
			result.Valid = subtle.ConstantTimeCompare(expected, actual) == 1
			if !result.Valid {
				allOK = false
				s.inv.Errors = append(s.inv.Errors, core.ValidationError{Code: "DATA_GROUP_HASH_MISMATCH",
					Message: fmt.Sprintf("DG%d hash mismatch", n), Severity: core.SeverityError})
			}
		case declared && !present:
			// SOD declares a hash for a DG the caller did not supply:
			// WARNING, not a mismatch (spec §4.4 step 7).
			result.Valid = true
			s.inv.Errors = append(s.inv.Errors, core.ValidationError{Code: "UNDECLARED_DATA_GROUP",
				Message: fmt.Sprintf("DG%d declared by SOD but not supplied", n), Severity: core.SeverityWarning})
		case !declared && present:
			result.Valid = false
			allOK = false
			s.inv.Errors = append(s.inv.Errors, core.ValidationError{Code: "UNDECLARED_DATA_GROUP",
				Message: fmt.Sprintf("DG%d supplied but not declared by SOD", n), Severity: core.SeverityError})
		}
		s.inv.DataGroups = append(s.inv.DataGroups, result)
		if !result.Valid && declared && present {
			msg := fmt.Sprintf("DG%d hash mismatch", n)
			s.seq++
			s.inv.AuditLog = append(s.inv.AuditLog, core.AuditLogEntry{
				Sequence:   s.seq,
				Timestamp:  time.Now().UTC(),
				Level:      core.LevelError,
				Step:       core.StepVerifyDGHashes,
				StepStatus: core.StepStatusInProgress,
				Message:    msg,
				ErrorCode:  "DATA_GROUP_HASH_MISMATCH",
				ErrorMessage: msg,
				Details: map[string]interface{}{
					"dgNumber":     n,
					"valid":        false,
					"expectedHash": hex.EncodeToString(result.ExpectedHash),
					"actualHash":   hex.EncodeToString(result.ActualHash),
				},
			})
			continue
		}
		s.emit(core.StepVerifyDGHashes, core.StepStatusInProgress,
			fmt.Sprintf("DG%d checked", n), map[string]interface{}{"dgNumber": n, "valid": result.Valid})
	}

	if allOK {
		s.emit(core.StepVerifyDGHashes, core.StepStatusCompleted, "all data group hashes verified", nil)
	} else {
		s.emit(core.StepVerifyDGHashes, core.StepStatusFailed, "one or more data group hashes failed", nil)
	}
	return allOK
}

// crlCheck implements spec §4.4 step 8: best-effort revocation check.
func (e *Engine) crlCheck(s *state) bool {
	_, span := tracer.Start(s.ctx, string(core.StepCRLCheck))
	defer span.End()
	s.emit(core.StepCRLCheck, core.StepStatusStarted, "checking revocation", nil)

	cn := cryptoutil.NormalizeCRLIssuerCN(s.csca.Subject)
	country := s.cscaCert.Subject.CountryCode

	var crl *core.CRL
	var err error
	if e.lookupCache != nil {
		crl, err = e.lookupCache.CRL(s.ctx, e.store, cn, country)
	} else {
		crl, err = e.store.FindCRLByIssuerAndCountry(s.ctx, cn, country)
	}
	if err != nil || crl == nil {
		sev := core.SeverityWarning
		if e.strictCRL {
			sev = core.SeverityError
		}
		s.inv.Errors = append(s.inv.Errors, core.ValidationError{Code: "CRL_UNAVAILABLE",
			Message: "no CRL found for " + cn + "/" + country, Severity: sev})
		s.emit(core.StepCRLCheck, core.StepStatusCompleted, "no CRL available", nil)
		return !e.strictCRL
	}

	if revoked, reasonCode := crl.IsRevoked(s.dsc.SerialNumber); revoked {
		s.inv.Errors = append(s.inv.Errors, core.ValidationError{Code: "CERTIFICATE_REVOKED",
			Message: fmt.Sprintf("DSC serial %s revoked (reason code %d)", s.dsc.SerialNumber.String(), reasonCode),
			Severity: core.SeverityError})
		s.emit(core.StepCRLCheck, core.StepStatusCompleted, "DSC is revoked", map[string]interface{}{"reasonCode": reasonCode})
		return false
	}
	s.emit(core.StepCRLCheck, core.StepStatusCompleted, "DSC not revoked", nil)
	return true
}

// dgHasher returns a fresh hash.Hash for the OID declared in the SOD's
// LDSSecurityObject.
func dgHasher(oid fmt.Stringer) (hash.Hash, error) {
	switch oid.String() {
	case "1.3.14.3.2.26":
		return sha1.New(), nil
	case "2.16.840.1.101.3.4.2.1":
		return sha256.New(), nil
	case "2.16.840.1.101.3.4.2.2":
		return sha512.New384(), nil
	case "2.16.840.1.101.3.4.2.3":
		return sha512.New(), nil
	default:
		return sha256.New(), nil
	}
}
