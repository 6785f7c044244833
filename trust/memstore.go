package trust

import (
	"context"
	"sync"

	"github.com/iland112/local-pkd-sub001/core"
)

// MemStore is an in-memory core.TrustStoreRepository, grounded on the
// teacher's mocks/mocks.go style of a mutex-guarded map standing in for
// a real database in tests and the CLI's standalone mode.
type MemStore struct {
	mu sync.RWMutex

	byFingerprint map[core.Fingerprint]*core.Certificate
	bySubjectDN   map[string]*core.Certificate
	byUploadId    map[core.UploadId][]core.Fingerprint
	auditLinks    map[core.UploadId][]core.Fingerprint

	crlsByKey map[string]*core.CRL
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		byFingerprint: make(map[core.Fingerprint]*core.Certificate),
		bySubjectDN:   make(map[string]*core.Certificate),
		byUploadId:    make(map[core.UploadId][]core.Fingerprint),
		auditLinks:    make(map[core.UploadId][]core.Fingerprint),
		crlsByKey:     make(map[string]*core.CRL),
	}
}

func (m *MemStore) FindExistingFingerprints(_ context.Context, fps []core.Fingerprint) (map[core.Fingerprint]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[core.Fingerprint]struct{})
	for _, fp := range fps {
		if _, ok := m.byFingerprint[fp]; ok {
			out[fp] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemStore) SaveAll(ctx context.Context, certs []*core.Certificate) error {
	for _, c := range certs {
		if err := m.SaveCertificate(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStore) SaveCertificate(_ context.Context, cert *core.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byFingerprint[cert.Fingerprint] = cert
	m.bySubjectDN[cert.Subject.Raw] = cert
	m.byUploadId[cert.UploadId] = append(m.byUploadId[cert.UploadId], cert.Fingerprint)
	return nil
}

func (m *MemStore) FindBySubjectDN(_ context.Context, subjectDN string) (*core.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySubjectDN[subjectDN], nil
}

func (m *MemStore) FindByUploadId(_ context.Context, uploadId core.UploadId) ([]*core.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*core.Certificate
	for _, fp := range m.byUploadId[uploadId] {
		if c, ok := m.byFingerprint[fp]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) FindCSCAs(_ context.Context) ([]*core.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*core.Certificate
	for _, c := range m.byFingerprint {
		if c.CertType != core.CertTypeCSCA {
			continue
		}
		if c.Status != core.StatusValid && c.Status != core.StatusExpired {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemStore) RecordAuditLink(_ context.Context, uploadId core.UploadId, fp core.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLinks[uploadId] = append(m.auditLinks[uploadId], fp)
	return nil
}

func (m *MemStore) SaveCRLs(_ context.Context, crls []*core.CRL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range crls {
		m.crlsByKey[crlKey(c.IssuerCN, c.CountryCode)] = c
	}
	return nil
}

func (m *MemStore) FindCRLByIssuerAndCountry(_ context.Context, issuerCN, countryCode string) (*core.CRL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.crlsByKey[crlKey(issuerCN, countryCode)], nil
}

func crlKey(issuerCN, countryCode string) string {
	return issuerCN + "|" + countryCode
}
