// Package pkderrors defines the coarse error taxonomy shared by every
// component of the trust-management and passive-authentication pipeline.
//
// The shape follows github.com/letsencrypt/boulder's errors package: one
// concrete error type carrying a coarse Code, rather than a tree of typed
// errors per failure mode.
package pkderrors

import "fmt"

// Code identifies one of the error kinds from the specification's error
// handling design. Codes are stable strings (not iota ints) because they
// are persisted verbatim into ValidationError and AuditLogEntry records.
type Code string

// Parsing error codes.
const (
	CodeInvalidFileFormat      Code = "INVALID_FILE_FORMAT"
	CodeMalformedLDIF          Code = "MALFORMED_LDIF"
	CodeCertParseError         Code = "CERT_PARSE_ERROR"
	CodeCRLParseError          Code = "CRL_PARSE_ERROR"
	CodeMasterListCMSParseErr  Code = "MASTER_LIST_CMS_PARSE_ERROR"
	CodeDuplicateCertificate   Code = "DUPLICATE_CERTIFICATE"
)

// Validation error codes.
const (
	CodeSignatureInvalid    Code = "SIGNATURE_INVALID"
	CodeChainIncomplete     Code = "CHAIN_INCOMPLETE"
	CodeExpired             Code = "EXPIRED"
	CodeNotYetValid         Code = "NOT_YET_VALID"
	CodeConstraintsInvalid  Code = "CONSTRAINTS_INVALID"
	CodeCRLStale            Code = "CRL_STALE"
	CodeCRLSignatureInvalid Code = "CRL_SIGNATURE_INVALID"
)

// Passive Authentication error codes.
const (
	CodeInvalidSODFormat     Code = "INVALID_SOD_FORMAT"
	CodeDSCExtractionFailed  Code = "DSC_EXTRACTION_FAILED"
	CodeCSCANotFound         Code = "CSCA_NOT_FOUND"
	CodeTrustChainInvalid    Code = "TRUST_CHAIN_INVALID"
	CodeSODSignatureInvalid Code = "SOD_SIGNATURE_INVALID"
	CodeDataGroupHashMismatch Code = "DATA_GROUP_HASH_MISMATCH"
	CodeUndeclaredDataGroup  Code = "UNDECLARED_DATA_GROUP"
	CodeCertificateRevoked   Code = "CERTIFICATE_REVOKED"
	CodeCRLUnavailable       Code = "CRL_UNAVAILABLE"
)

// Infrastructure error codes.
const (
	CodeRepositoryUnavailable Code = "REPOSITORY_UNAVAILABLE"
	CodeDirectoryUnavailable  Code = "DIRECTORY_UNAVAILABLE"
	CodeTimeout               Code = "TIMEOUT"
	CodeCancelled             Code = "CANCELLED"
)

// Severity distinguishes errors that invalidate an entity from ones that
// are merely informational.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// PKDError is the single concrete error type used across the pipeline.
// Raw cryptographic exception text is never returned to a caller directly;
// it is always wrapped into one of these before crossing a component
// boundary (see spec §7, "Raw cryptographic exception messages MUST be
// wrapped into the taxonomy above and never leaked verbatim").
type PKDError struct {
	Code     Code
	Severity Severity
	Detail   string
	// Cause is retained for logging/tracing but is never surfaced in
	// Error() text, to avoid leaking raw driver/crypto messages.
	Cause error
}

func (e *PKDError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *PKDError) Unwrap() error {
	return e.Cause
}

// New builds a PKDError with ERROR severity.
func New(code Code, msg string, args ...interface{}) *PKDError {
	return &PKDError{Code: code, Severity: SeverityError, Detail: fmt.Sprintf(msg, args...)}
}

// Warning builds a PKDError with WARNING severity.
func Warning(code Code, msg string, args ...interface{}) *PKDError {
	return &PKDError{Code: code, Severity: SeverityWarning, Detail: fmt.Sprintf(msg, args...)}
}

// Wrap attaches a taxonomy code to an underlying error without leaking its
// text; cause is preserved for logs/traces via Unwrap.
func Wrap(code Code, cause error, msg string, args ...interface{}) *PKDError {
	return &PKDError{Code: code, Severity: SeverityError, Detail: fmt.Sprintf(msg, args...), Cause: cause}
}

// Is reports whether err is a PKDError of the given code.
func Is(err error, code Code) bool {
	pe, ok := err.(*PKDError)
	if !ok {
		return false
	}
	return pe.Code == code
}

// Infrastructure reports whether code belongs to the infrastructure class,
// which aborts an invocation rather than being attached to an entity.
func Infrastructure(code Code) bool {
	switch code {
	case CodeRepositoryUnavailable, CodeDirectoryUnavailable, CodeTimeout, CodeCancelled:
		return true
	default:
		return false
	}
}
