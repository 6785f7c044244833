package validator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/iland112/local-pkd-sub001/core"
)

// ProcessWideCSCACache is an optional, cross-invocation CSCA cache
// backed by Redis, sitting in front of TrustStoreRepository.FindCSCAs so
// that repeated validator runs in the same process (or across a small
// fleet sharing Redis) don't re-read the whole CSCA table every time.
// TTL must be set no longer than the shortest-lived relevant CRL's
// nextUpdate, per spec §5's shared-resource policy — callers pass that
// TTL in explicitly rather than this package guessing at it.
type ProcessWideCSCACache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProcessWideCSCACache wraps an already-connected redis.Client.
func NewProcessWideCSCACache(client *redis.Client, ttl time.Duration) *ProcessWideCSCACache {
	return &ProcessWideCSCACache{client: client, ttl: ttl}
}

const redisKeyPrefix = "pkd:csca-cache:"

// Load attempts to populate a CSCACache entirely from Redis, returning
// ok=false if the cache has not been warmed (a cold miss, not an
// error) so the caller falls back to BuildCSCACache against the trust
// store.
func (p *ProcessWideCSCACache) Load(ctx context.Context) (cache *CSCACache, ok bool, err error) {
	raw, err := p.client.Get(ctx, redisKeyPrefix+"snapshot").Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var certs []*core.Certificate
	if err := json.Unmarshal(raw, &certs); err != nil {
		return nil, false, err
	}
	c := &CSCACache{bySubjectDN: make(map[string]*core.Certificate, len(certs))}
	for _, cert := range certs {
		c.bySubjectDN[cert.Subject.Raw] = cert
		c.sizeBytes += estimatedCertificateSize
	}
	return c, true, nil
}

// Store snapshots cache into Redis with the configured TTL.
func (p *ProcessWideCSCACache) Store(ctx context.Context, cache *CSCACache) error {
	certs := make([]*core.Certificate, 0, len(cache.bySubjectDN))
	for _, c := range cache.bySubjectDN {
		certs = append(certs, c)
	}
	raw, err := json.Marshal(certs)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, redisKeyPrefix+"snapshot", raw, p.ttl).Err()
}
