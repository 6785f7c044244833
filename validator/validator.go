// Package validator implements the two-pass certificate/CRL trust
// validator (spec §4.2): CSCAs first (building a read-only cache), then
// DSCs/DSC_NCs against that cache, then CRLs.
package validator

import (
	"context"

	"github.com/jmhodges/clock"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/pkderrors"
)

// Validator promotes a ParsedFile's CertificateData/CRLData into
// validated, trust-store-resident Certificate/CRL entities.
type Validator struct {
	store        core.TrustStoreRepository
	progress     core.ProgressSink
	clock        clock.Clock
	cfg          Config
	processCache *ProcessWideCSCACache
}

// New constructs a Validator. progress may be core.NoopProgressSink{}.
// clk follows the teacher's injected-clock pattern (jmhodges/clock) so
// tests can control "now" deterministically.
func New(store core.TrustStoreRepository, progress core.ProgressSink, clk clock.Clock, cfg Config) *Validator {
	if progress == nil {
		progress = core.NoopProgressSink{}
	}
	return &Validator{store: store, progress: progress, clock: clk, cfg: cfg}
}

// SetProcessWideCSCACache attaches a Redis-backed cache consulted before
// BuildCSCACache on every Validate call, so repeated validator runs in
// the same process (or across a fleet sharing Redis) avoid re-reading
// the whole CSCA table when another run already warmed it. Passing nil
// reverts to always building the cache from the trust store.
func (v *Validator) SetProcessWideCSCACache(p *ProcessWideCSCACache) {
	v.processCache = p
}

// loadOrBuildCSCACache consults the process-wide cache first (if
// configured), falling back to BuildCSCACache on a cold miss and warming
// the process-wide cache for the next caller (spec §5's shared-resource
// policy: TTL bounded by the next CRL's nextUpdate).
func (v *Validator) loadOrBuildCSCACache(ctx context.Context) (*CSCACache, error) {
	if v.processCache != nil {
		if cache, ok, err := v.processCache.Load(ctx); err == nil && ok {
			return cache, nil
		}
	}
	cache, err := BuildCSCACache(ctx, v.store)
	if err != nil {
		return nil, err
	}
	if v.processCache != nil {
		// Best-effort: a failed warm just means the next invocation
		// rebuilds from the trust store instead of hitting Redis.
		_ = v.processCache.Store(ctx, cache)
	}
	return cache, nil
}

// Validate runs the full two-pass algorithm against pf and returns a
// summary of what was persisted (spec §4.2 operation: validate(parsedFile) → ValidatedResponse).
func (v *Validator) Validate(ctx context.Context, pf *core.ParsedFile) (*core.ValidatedResponse, error) {
	now := v.clock.Now().UTC()

	var cscaData, otherData []core.CertificateData
	for _, cd := range pf.Certificates {
		if cd.CertType == core.CertTypeCSCA {
			cscaData = append(cscaData, cd)
		} else {
			otherData = append(otherData, cd)
		}
	}

	response := &core.ValidatedResponse{UploadId: pf.UploadId}

	cscaCerts := make([]*core.Certificate, len(cscaData))
	for i, cd := range cscaData {
		cscaCerts[i] = validateCSCA(pf.UploadId, cd, now)
	}
	if err := v.saveCertificatesBatched(ctx, cscaCerts, "validate:pass1-csca"); err != nil {
		return nil, err
	}
	tallyCertificates(&response.Counters, cscaCerts)
	for _, c := range cscaCerts {
		response.CertificateIds = append(response.CertificateIds, c.CertificateId)
	}

	cache, err := v.loadOrBuildCSCACache(ctx)
	if err != nil {
		return nil, err
	}
	if cache.ExceedsBudget(v.cfg.CSCACacheMaxBytes) {
		// Documented as a safe ceiling, not a hard limit (spec §4.2):
		// the cache is still used, just flagged via progress reporting.
		v.progress.Report(ctx, pf.UploadId, "validate:csca-cache-oversized", 0, 0, 0)
	}

	dscCerts := make([]*core.Certificate, len(otherData))
	for i, cd := range otherData {
		dscCerts[i] = validateDSC(pf.UploadId, cd, cache, now)
	}
	if err := v.saveCertificatesBatched(ctx, dscCerts, "validate:pass2-dsc"); err != nil {
		return nil, err
	}
	tallyCertificates(&response.Counters, dscCerts)
	for _, c := range dscCerts {
		response.CertificateIds = append(response.CertificateIds, c.CertificateId)
	}

	crls := make([]*core.CRL, len(pf.CRLs))
	for i, cd := range pf.CRLs {
		crls[i] = validateCRL(pf.UploadId, cd, cache, now, v.cfg.StrictCRLMode)
	}
	if err := v.saveCRLsBatched(ctx, crls); err != nil {
		return nil, err
	}
	response.Counters.TotalCRLs = len(crls)
	for _, c := range crls {
		response.CRLIds = append(response.CRLIds, c.CrlId)
	}

	for _, pe := range pf.Errors {
		if pe.Code == "DUPLICATE_CERTIFICATE" {
			response.Counters.DuplicateCount++
		}
	}

	v.progress.Report(ctx, pf.UploadId, "validate:complete", 100, len(pf.Certificates)+len(pf.CRLs), len(pf.Certificates)+len(pf.CRLs))
	return response, nil
}

func tallyCertificates(counters *core.ValidationCounters, certs []*core.Certificate) {
	for _, c := range certs {
		counters.TotalCertificates++
		switch c.Status {
		case core.StatusValid:
			counters.ValidCount++
		case core.StatusExpired:
			counters.ExpiredCount++
		case core.StatusRevoked:
			counters.RevokedCount++
		default:
			counters.InvalidCount++
		}
	}
}

// saveCertificatesBatched accumulates certs into a write batch of
// v.cfg.BatchSize, flushing via TrustStore.SaveAll (which itself
// implements the per-entity conflict fallback), and reports coarse
// progress at least once per batch (spec §4.2 step 5, "Progress
// reporting").
func (v *Validator) saveCertificatesBatched(ctx context.Context, certs []*core.Certificate, stage string) error {
	batchSize := v.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	total := len(certs)
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := certs[start:end]
		if err := v.store.SaveAll(ctx, batch); err != nil {
			return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "%s: batch save failed", stage)
		}
		if len(certs) > 0 {
			v.progress.Report(ctx, certs[0].UploadId, stage, float64(end)/float64(total)*100, end, total)
		}
	}
	return nil
}

func (v *Validator) saveCRLsBatched(ctx context.Context, crls []*core.CRL) error {
	if len(crls) == 0 {
		return nil
	}
	batchSize := v.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	total := len(crls)
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := crls[start:end]
		if err := v.store.SaveCRLs(ctx, batch); err != nil {
			return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "validate:crl: batch save failed")
		}
		v.progress.Report(ctx, crls[0].UploadId, "validate:crl", float64(end)/float64(total)*100, end, total)
	}
	return nil
}
