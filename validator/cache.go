package validator

import (
	"context"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/pkderrors"
)

// CSCACache is the read-only, built-once-per-invocation CSCA lookup map
// consumed by Pass 2 and CRL processing (spec §4.2 "Between passes").
type CSCACache struct {
	bySubjectDN map[string]*core.Certificate
	sizeBytes   int64
}

// BuildCSCACache loads every VALID or EXPIRED CSCA from store into an
// in-memory map keyed by subject DN. sizeBytes is an estimate (≈5KB per
// CSCA, spec §4.2) used only for the cscaCacheMaxBytes safety check.
func BuildCSCACache(ctx context.Context, store core.TrustStoreRepository) (*CSCACache, error) {
	cscas, err := store.FindCSCAs(ctx)
	if err != nil {
		return nil, pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "load CSCAs for cache")
	}
	cache := &CSCACache{bySubjectDN: make(map[string]*core.Certificate, len(cscas))}
	for _, c := range cscas {
		cache.bySubjectDN[c.Subject.Raw] = c
		cache.sizeBytes += estimatedCertificateSize
	}
	return cache, nil
}

// estimatedCertificateSize is the per-entry size budget used for the
// cache's SizeBytes estimate (spec §4.2: "Cache size budget: ≈5 KB ×
// number of CSCAs").
const estimatedCertificateSize = 5 * 1024

// Lookup returns the cached CSCA for subjectDN, if any.
func (c *CSCACache) Lookup(subjectDN string) (*core.Certificate, bool) {
	cert, ok := c.bySubjectDN[subjectDN]
	return cert, ok
}

// SizeBytes reports the cache's estimated memory footprint.
func (c *CSCACache) SizeBytes() int64 {
	return c.sizeBytes
}

// ExceedsBudget reports whether the cache's estimated size exceeds the
// configured ceiling; callers log a warning but do not abort (the
// budget is documented as a safe ceiling, not a hard limit).
func (c *CSCACache) ExceedsBudget(maxBytes int64) bool {
	return maxBytes > 0 && c.sizeBytes > maxBytes
}
