// Package core holds the data model shared by every component of the
// trust-management and passive-authentication pipeline: FileFormat,
// Certificate, CRL, ParsedFile, PAInvocation and their constituents.
//
// Layout follows the teacher's core/objects.go: one flat package of
// plain structs and small value types, no behavior beyond simple
// invariant-preserving methods.
package core

import (
	"crypto"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// FileFormat tags an uploaded blob with the parser strategy that should
// consume it. Expressed as a tagged variant with one constructor per
// format per spec §9's design note.
type FileFormat string

const (
	FormatEmrtdCompleteLDIF  FileFormat = "EMRTD_COMPLETE_LDIF"
	FormatEmrtdDeltaLDIF     FileFormat = "EMRTD_DELTA_LDIF"
	FormatCSCAMasterListLDIF FileFormat = "CSCA_MASTER_LIST_LDIF"
	FormatMasterListSignedCMS FileFormat = "MASTER_LIST_SIGNED_CMS"
	FormatDSCNonConformingLDIF FileFormat = "DSC_NON_CONFORMING_LDIF"
)

// IsLDIF reports whether the format is consumed by the LDIF sub-parser
// (as opposed to the standalone CMS Master List sub-parser).
func (f FileFormat) IsLDIF() bool {
	switch f {
	case FormatEmrtdCompleteLDIF, FormatEmrtdDeltaLDIF, FormatCSCAMasterListLDIF, FormatDSCNonConformingLDIF:
		return true
	default:
		return false
	}
}

// UploadId is the opaque identifier attached to every entity produced by
// one ingest, used for audit queries ("which certs came from upload X").
type UploadId string

// NewUploadId mints a fresh UploadId.
func NewUploadId() UploadId {
	return UploadId(uuid.NewString())
}

// Fingerprint is the lowercase-hex SHA-256 digest of a certificate's DER
// encoding; the globally unique identifier of a Certificate in the trust
// store.
type Fingerprint string

// CertType classifies the role a certificate plays in the PKI.
type CertType string

const (
	CertTypeCSCA    CertType = "CSCA"
	CertTypeDSC     CertType = "DSC"
	CertTypeDSCNC   CertType = "DSC_NC"
	CertTypeUnknown CertType = "UNKNOWN"
)

// Status is the outcome of trust validation for a Certificate.
type Status string

const (
	StatusValid        Status = "VALID"
	StatusInvalid      Status = "INVALID"
	StatusExpired      Status = "EXPIRED"
	StatusNotYetValid  Status = "NOT_YET_VALID"
	StatusRevoked      Status = "REVOKED"
)

// ErrorSeverity mirrors pkderrors.Severity without importing it, so core
// stays a leaf package with no dependency on the error taxonomy package;
// conversion lives at the edges (validator, pa).
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "ERROR"
	SeverityWarning ErrorSeverity = "WARNING"
)

// ValidationError is one recorded problem found while validating a
// Certificate or CRL.
type ValidationError struct {
	Code       string
	Message    string
	Severity   ErrorSeverity
	OccurredAt time.Time
}

// ParsingError is one recorded problem found while parsing a ParsedFile;
// it never aborts the overall parse (spec §4.1 Failure semantics) unless
// the LDIF framing itself is unreadable.
type ParsingError struct {
	Code    string
	Locator string
	Message string
}

// ValidityPeriod is a UTC notBefore/notAfter (or thisUpdate/nextUpdate)
// window.
type ValidityPeriod struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Covers reports whether instant t falls within [NotBefore, NotAfter],
// inclusive on both ends (spec §8 boundary: notAfter == now is VALID).
func (v ValidityPeriod) Covers(t time.Time) bool {
	return !t.Before(v.NotBefore) && !t.After(v.NotAfter)
}

// DNInfo is a normalized, decomposed Distinguished Name.
type DNInfo struct {
	Raw         string // original DN string, as parsed
	CountryCode string // C=
	Org         string // O=
	OrgUnit     string // OU=
	CommonName  string // CN=
	IsCA        bool   // only meaningful for IssuerInfo
}

// CertificateData is the parser's transient output for one certificate,
// consumed by the validator and then discarded.
type CertificateData struct {
	DER            []byte
	Fingerprint    Fingerprint
	SubjectDN      string
	IssuerDN       string
	SerialNumber   *big.Int
	Validity       ValidityPeriod
	CertType       CertType
	CountryCode    string
	PublicKey      crypto.PublicKey
	KeyAlgorithm   string
	KeySizeBits    int
	// ConformanceErrors holds DSC_NC-specific pkdConformanceText codes
	// observed on the entry (spec §4.1).
	ConformanceErrors []string
}

// CRLData is the parser's transient output for one CRL.
type CRLData struct {
	DER            []byte
	IssuerDN       string // full DN, retained for signature checks
	IssuerCN       string // normalized bare CN, used for PA lookup
	CountryCode    string
	Validity       ValidityPeriod // ThisUpdate/NextUpdate
	RevokedEntries []RevokedEntry
	CRLNumber      *big.Int
}

// RevokedEntry is one entry of an X.509 CRL's revokedCertificates list.
type RevokedEntry struct {
	SerialNumber     *big.Int
	RevocationDate   time.Time
	ReasonCode       int
}

// ParsedFile is the aggregate produced by the parser and consumed by the
// validator.
type ParsedFile struct {
	UploadId       UploadId
	Format         FileFormat
	SourceFilename string
	ReceivedAt     time.Time

	Certificates []CertificateData
	CRLs         []CRLData
	Errors       []ParsingError

	// seenFingerprints dedups within this single file (spec §3 invariant:
	// "within one ParsedFile, a given fingerprint appears at most once").
	seenFingerprints map[Fingerprint]struct{}
}

// NewParsedFile creates an empty ParsedFile ready to be filled by a
// sub-parser.
func NewParsedFile(uploadId UploadId, format FileFormat, sourceFilename string, receivedAt time.Time) *ParsedFile {
	return &ParsedFile{
		UploadId:         uploadId,
		Format:           format,
		SourceFilename:   sourceFilename,
		ReceivedAt:       receivedAt,
		seenFingerprints: make(map[Fingerprint]struct{}),
	}
}

// AddCertificate appends cd to the file's certificate list unless its
// fingerprint has already been seen in this same file, in which case it
// records a DUPLICATE_CERTIFICATE parsing error and reports false so the
// caller can still register the (uploadId, fingerprint) audit pair.
func (p *ParsedFile) AddCertificate(cd CertificateData, locator string) (added bool) {
	if p.seenFingerprints == nil {
		p.seenFingerprints = make(map[Fingerprint]struct{})
	}
	if _, dup := p.seenFingerprints[cd.Fingerprint]; dup {
		p.Errors = append(p.Errors, ParsingError{
			Code:    "DUPLICATE_CERTIFICATE",
			Locator: locator,
			Message: fmt.Sprintf("fingerprint %s already present in this file", cd.Fingerprint),
		})
		return false
	}
	p.seenFingerprints[cd.Fingerprint] = struct{}{}
	p.Certificates = append(p.Certificates, cd)
	return true
}

// AddCRL appends CRL data unconditionally (CRLs are not deduplicated by
// fingerprint in the spec).
func (p *ParsedFile) AddCRL(cr CRLData) {
	p.CRLs = append(p.CRLs, cr)
}

// AddError records a parsing error without aborting the parse.
func (p *ParsedFile) AddError(code, locator, message string) {
	p.Errors = append(p.Errors, ParsingError{Code: code, Locator: locator, Message: message})
}

// ValidationResult summarizes one Certificate's or CRL's validation run.
type ValidationResult struct {
	OverallStatus     Status
	SignatureValid    bool
	ChainValid        bool
	NotRevoked        bool
	ValidityValid     bool
	ConstraintsValid  bool
	ValidatedAt       time.Time
	DurationMs        int64
}

// Certificate is the validated, trust-store-resident entity.
type Certificate struct {
	CertificateId string // UUID
	UploadId      UploadId
	Fingerprint   Fingerprint

	DER          []byte
	PublicKey    crypto.PublicKey
	SerialNumber *big.Int

	Subject DNInfo
	Issuer  DNInfo

	Validity ValidityPeriod
	CertType CertType
	Status   Status

	Result ValidationResult
	Errors []ValidationError

	KeyAlgorithm    string
	KeySizeBits     int
	ROCAVulnerable  bool
}

// HasErrorSeverity reports whether c carries at least one ERROR-severity
// ValidationError (spec §3 invariant: every Certificate has VALID status
// or a non-empty error list, or both for warning-only cases).
func (c *Certificate) HasErrorSeverity() bool {
	for _, e := range c.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CRL is the validated, trust-store-resident revocation list entity.
type CRL struct {
	CrlId    string
	UploadId UploadId

	IssuerDN    string
	IssuerCN    string
	CountryCode string

	Validity ValidityPeriod // ThisUpdate/NextUpdate

	DER            []byte
	RevokedCount   int
	RevokedEntries []RevokedEntry
	CRLNumber      *big.Int

	Errors []ValidationError
}

// HasErrorSeverity reports whether c carries at least one ERROR-severity
// ValidationError.
func (c *CRL) HasErrorSeverity() bool {
	for _, e := range c.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// IsRevoked reports whether serial appears in the CRL's revoked list.
func (c *CRL) IsRevoked(serial *big.Int) (revoked bool, reasonCode int) {
	for _, e := range c.RevokedEntries {
		if e.SerialNumber.Cmp(serial) == 0 {
			return true, e.ReasonCode
		}
	}
	return false, 0
}

// ValidationCounters summarizes one validator invocation for the
// caller-facing ValidatedResponse (spec §4.2 operation signature).
type ValidationCounters struct {
	TotalCertificates int
	ValidCount        int
	InvalidCount      int
	ExpiredCount      int
	RevokedCount      int
	DuplicateCount    int
	TotalCRLs         int
}

// ValidatedResponse is the validator's return value: what got stored,
// and a summary of the outcome.
type ValidatedResponse struct {
	UploadId       UploadId
	CertificateIds []string
	CRLIds         []string
	Counters       ValidationCounters
}

// PAStep names one state in the Passive Authentication state machine.
type PAStep string

const (
	StepVerificationStarted PAStep = "VERIFICATION_STARTED"
	StepUnwrapSOD           PAStep = "UNWRAP_SOD"
	StepExtractDSC          PAStep = "EXTRACT_DSC"
	StepLookupCSCA          PAStep = "LOOKUP_CSCA"
	StepVerifyTrustChain    PAStep = "VERIFY_TRUST_CHAIN"
	StepVerifySODSignature  PAStep = "VERIFY_SOD_SIGNATURE"
	StepExtractDGHashes     PAStep = "EXTRACT_DG_HASHES"
	StepVerifyDGHashes      PAStep = "VERIFY_DG_HASHES"
	StepCRLCheck            PAStep = "CRL_CHECK"
	StepVerificationCompleted PAStep = "VERIFICATION_COMPLETED"
)

// StepStatus is the outcome of one audit log entry within a PAStep.
type StepStatus string

const (
	StepStatusStarted    StepStatus = "STARTED"
	StepStatusInProgress StepStatus = "IN_PROGRESS"
	StepStatusCompleted  StepStatus = "COMPLETED"
	StepStatusFailed     StepStatus = "FAILED"
)

// AuditLogLevel mirrors typical structured-log severities.
type AuditLogLevel string

const (
	LevelDebug AuditLogLevel = "DEBUG"
	LevelInfo  AuditLogLevel = "INFO"
	LevelWarn  AuditLogLevel = "WARN"
	LevelError AuditLogLevel = "ERROR"
)

// AuditLogEntry is one append-only, sequence-ordered record of a
// PAInvocation's progress.
type AuditLogEntry struct {
	Sequence    int
	Timestamp   time.Time
	Level       AuditLogLevel
	Step        PAStep
	StepStatus  StepStatus
	Message     string
	Details     map[string]interface{}
	ErrorCode   string
	ErrorMessage string
}

// OverallStatus is the final disposition of a PAInvocation.
type OverallStatus string

const (
	OverallValid   OverallStatus = "VALID"
	OverallInvalid OverallStatus = "INVALID"
	OverallError   OverallStatus = "ERROR"
)

// RequestMetadata is caller-provided context preserved verbatim in the
// audit log; it is never interpreted by the engine.
type RequestMetadata struct {
	IPAddress   string
	UserAgent   string
	RequestedBy string
}

// DataGroupResult is the per-DG outcome recorded during VERIFY_DG_HASHES.
type DataGroupResult struct {
	DGNumber      int
	Valid         bool
	ExpectedHash  []byte
	ActualHash    []byte
	Declared      bool // SOD declared a hash for this DG
	Present       bool // caller supplied bytes for this DG
}

// PAInvocation is the engine's output: a fully populated, immutable
// record of one Passive Authentication call.
type PAInvocation struct {
	InvocationId string
	StartedAt    time.Time
	CompletedAt  time.Time
	DurationMs   int64

	OverallStatus         OverallStatus
	CertificateChainValid bool
	SODSignatureValid     bool

	TotalDataGroups   int
	ValidDataGroups   int
	InvalidDataGroups int

	DataGroups []DataGroupResult

	Errors []ValidationError

	AuditLog []AuditLogEntry

	Metadata RequestMetadata
}
