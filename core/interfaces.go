package core

import "context"

// TrustStoreRepository is the core-to-persistence contract (spec §6). It
// is deliberately narrow: the core specifies key/value shapes and
// atomicity requirements, not SQL schemas. Concrete implementations
// (trust.SQLStore, trust.MemStore) live outside this package.
type TrustStoreRepository interface {
	// FindExistingFingerprints returns the subset of fps already present
	// in the store. Parsers use this for the single bulk existence query
	// required by the batch duplicate-check protocol (spec §4.1).
	FindExistingFingerprints(ctx context.Context, fps []Fingerprint) (map[Fingerprint]struct{}, error)

	// SaveAll persists a batch of Certificates, unique by fingerprint. A
	// conflict on an individual fingerprint within the batch must not
	// fail the whole call; see spec §4.2 Pass 1 step 5.
	SaveAll(ctx context.Context, certs []*Certificate) error

	// SaveCertificate persists (or is a no-op success for) a single
	// Certificate; used for the per-entity fallback after a batch
	// conflict.
	SaveCertificate(ctx context.Context, cert *Certificate) error

	// FindBySubjectDN looks up a Certificate by exact subject DN match,
	// used both to build the CSCA cache and by the PA engine's
	// LOOKUP_CSCA state.
	FindBySubjectDN(ctx context.Context, subjectDN string) (*Certificate, error)

	// FindByUploadId returns every Certificate produced by one upload,
	// for audit queries.
	FindByUploadId(ctx context.Context, uploadId UploadId) ([]*Certificate, error)

	// FindCSCAs returns every Certificate with CertType CSCA and Status
	// in {VALID, EXPIRED} (REVOKED excluded), for CSCA cache
	// construction between validator passes.
	FindCSCAs(ctx context.Context) ([]*Certificate, error)

	// RecordAuditLink records that fingerprint fp was seen under
	// uploadId, independent of whether a new Certificate row was
	// created (spec §3: "a re-upload ... yields one trust-store entry
	// plus an audit record associating the new uploadId with the
	// existing fingerprint").
	RecordAuditLink(ctx context.Context, uploadId UploadId, fp Fingerprint) error

	// SaveCRLs persists a batch of CRLs.
	SaveCRLs(ctx context.Context, crls []*CRL) error

	// FindCRLByIssuerAndCountry looks up a CRL by normalized issuer CN
	// and country code, used by the PA engine's CRL_CHECK state.
	FindCRLByIssuerAndCountry(ctx context.Context, issuerCN, countryCode string) (*CRL, error)
}

// DirectoryEntry is the publisher's unit of work: one DN plus the
// attributes to write (spec §4.3).
type DirectoryEntry struct {
	DN         string
	Attributes map[string][]string
}

// DirectoryClient is the core-to-directory contract. Transport (LDAP wire
// protocol, connection pooling) is an external collaborator; the core
// only needs Add/idempotent-exists semantics (spec §6, §9).
type DirectoryClient interface {
	// Add writes one entry. Implementations must report ErrEntryExists
	// (not a generic error) when the DN is already present, so the
	// publisher can treat it as idempotent success.
	Add(ctx context.Context, entry DirectoryEntry) error
}

// ErrEntryExists is returned by DirectoryClient.Add when dn already
// exists; the publisher treats this as success (spec §4.3 Upsert
// contract).
type ErrEntryExists struct {
	DN string
}

func (e *ErrEntryExists) Error() string {
	return "directory: entry already exists: " + e.DN
}

// ProgressSink receives coarse progress reports from the validator (spec
// §4.2 Progress reporting) and the ingest worker pool (spec §5). It is a
// callback the surrounding task wires in, per spec §9's note on avoiding
// language-specific coroutine constructs for the parse -> validate ->
// publish sequence.
type ProgressSink interface {
	Report(ctx context.Context, uploadId UploadId, stage string, percent float64, processed, total int)
}

// NoopProgressSink discards all progress reports; used as a safe
// zero-value default.
type NoopProgressSink struct{}

func (NoopProgressSink) Report(context.Context, UploadId, string, float64, int, int) {}
