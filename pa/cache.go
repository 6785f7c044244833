package pa

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/iland112/local-pkd-sub001/core"
)

// LookupCache deduplicates and memoizes the CSCA/CRL point lookups that
// Passive Authentication invocations repeat against the trust store; one
// LookupCache is shared by every invocation in the process (spec §4.2:
// "a busy PKD instance may run thousands of PA invocations per second
// against a slowly-changing trust store").
// It wraps two groupcache Groups: concurrent requests for the same key
// (e.g. the same issuer DN arriving from parallel PA invocations)
// collapse into a single trust-store read via groupcache's built-in
// singleflight behavior.
type LookupCache struct {
	cscaGroup *groupcache.Group
	crlGroup  *groupcache.Group

	mu      sync.RWMutex
	store   core.TrustStoreRepository
	fetcher *lookupFetcher
}

type lookupFetcher struct {
	mu    sync.RWMutex
	store core.TrustStoreRepository
}

// NewLookupCache creates a LookupCache backed by groupcache Groups of
// cacheSizeBytes each. name must be unique per process: groupcache
// panics if NewGroup is called twice with the same name, so callers
// construct exactly one LookupCache per running PKD instance.
func NewLookupCache(name string, cacheSizeBytes int64, ttl time.Duration) *LookupCache {
	f := &lookupFetcher{}
	lc := &LookupCache{fetcher: f}

	lc.cscaGroup = groupcache.NewGroup(name+"-csca", cacheSizeBytes, groupcache.GetterFunc(
		func(ctx context.Context, key string, dest groupcache.Sink) error {
			f.mu.RLock()
			store := f.store
			f.mu.RUnlock()
			cert, err := store.FindBySubjectDN(ctx, key)
			if err != nil {
				return err
			}
			if cert == nil {
				return fmt.Errorf("pa: no CSCA for subject DN %q", key)
			}
			raw, err := json.Marshal(cert)
			if err != nil {
				return err
			}
			return dest.SetBytes(raw, time.Now().Add(ttl))
		}))

	lc.crlGroup = groupcache.NewGroup(name+"-crl", cacheSizeBytes, groupcache.GetterFunc(
		func(ctx context.Context, key string, dest groupcache.Sink) error {
			f.mu.RLock()
			store := f.store
			f.mu.RUnlock()
			issuerCN, country := splitCRLKey(key)
			crl, err := store.FindCRLByIssuerAndCountry(ctx, issuerCN, country)
			if err != nil {
				return err
			}
			if crl == nil {
				return fmt.Errorf("pa: no CRL for %s/%s", issuerCN, country)
			}
			raw, err := json.Marshal(crl)
			if err != nil {
				return err
			}
			return dest.SetBytes(raw, time.Now().Add(ttl))
		}))

	return lc
}

// CSCA returns the CSCA for subjectDN, populating the fetcher's store
// reference lazily from store so the same LookupCache can serve
// multiple Engines sharing one trust store.
func (lc *LookupCache) CSCA(ctx context.Context, store core.TrustStoreRepository, subjectDN string) (*core.Certificate, error) {
	lc.fetcher.mu.Lock()
	lc.fetcher.store = store
	lc.fetcher.mu.Unlock()

	var data []byte
	if err := lc.cscaGroup.Get(ctx, subjectDN, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, nil //nolint:nilerr // a miss is "not found", not a lookup failure
	}
	var cert core.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// CRL returns the CRL for (issuerCN, countryCode), with the same
// lazy store-binding behavior as CSCA.
func (lc *LookupCache) CRL(ctx context.Context, store core.TrustStoreRepository, issuerCN, countryCode string) (*core.CRL, error) {
	lc.fetcher.mu.Lock()
	lc.fetcher.store = store
	lc.fetcher.mu.Unlock()

	var data []byte
	key := crlKey(issuerCN, countryCode)
	if err := lc.crlGroup.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, nil //nolint:nilerr // a miss is "not found", not a lookup failure
	}
	var crl core.CRL
	if err := json.Unmarshal(data, &crl); err != nil {
		return nil, err
	}
	return &crl, nil
}

func crlKey(issuerCN, countryCode string) string {
	return issuerCN + "\x00" + countryCode
}

func splitCRLKey(key string) (issuerCN, countryCode string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
