package trust

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/iland112/local-pkd-sub001/core"
)

func newTestCert(fp, subjectDN string, certType core.CertType, status core.Status) *core.Certificate {
	return &core.Certificate{
		CertificateId: "cert-" + fp,
		UploadId:      core.UploadId("upload-1"),
		Fingerprint:   core.Fingerprint(fp),
		SerialNumber:  big.NewInt(1),
		Subject:       core.DNInfo{Raw: subjectDN},
		Issuer:        core.DNInfo{Raw: "cn=issuer"},
		Validity:      core.ValidityPeriod{NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(time.Hour)},
		CertType:      certType,
		Status:        status,
	}
}

func TestMemStoreSaveAndFindByFingerprintAndSubjectDN(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	cert := newTestCert("fp1", "cn=CSCA-KR", core.CertTypeCSCA, core.StatusValid)

	if err := store.SaveCertificate(ctx, cert); err != nil {
		t.Fatalf("SaveCertificate failed: %v", err)
	}

	got, err := store.FindBySubjectDN(ctx, "cn=CSCA-KR")
	if err != nil {
		t.Fatalf("FindBySubjectDN failed: %v", err)
	}
	if got == nil || got.Fingerprint != "fp1" {
		t.Fatalf("expected to find cert by subject DN, got %v", got)
	}
}

func TestMemStoreFindExistingFingerprintsReturnsOnlyKnown(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	cert := newTestCert("fp1", "cn=CSCA-KR", core.CertTypeCSCA, core.StatusValid)
	if err := store.SaveCertificate(ctx, cert); err != nil {
		t.Fatal(err)
	}

	existing, err := store.FindExistingFingerprints(ctx, []core.Fingerprint{"fp1", "fp2"})
	if err != nil {
		t.Fatalf("FindExistingFingerprints failed: %v", err)
	}
	if _, ok := existing["fp1"]; !ok {
		t.Error("expected fp1 to be reported existing")
	}
	if _, ok := existing["fp2"]; ok {
		t.Error("expected fp2 to not be reported existing")
	}
}

func TestMemStoreSaveAllPersistsEveryCertificate(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	certs := []*core.Certificate{
		newTestCert("fp1", "cn=A", core.CertTypeCSCA, core.StatusValid),
		newTestCert("fp2", "cn=B", core.CertTypeDSC, core.StatusValid),
	}
	if err := store.SaveAll(ctx, certs); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	found, err := store.FindByUploadId(ctx, core.UploadId("upload-1"))
	if err != nil {
		t.Fatalf("FindByUploadId failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 certificates for the upload, got %d", len(found))
	}
}

func TestMemStoreFindCSCAsExcludesRevokedAndNonCSCA(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	certs := []*core.Certificate{
		newTestCert("fp1", "cn=A", core.CertTypeCSCA, core.StatusValid),
		newTestCert("fp2", "cn=B", core.CertTypeCSCA, core.StatusExpired),
		newTestCert("fp3", "cn=C", core.CertTypeCSCA, core.StatusRevoked),
		newTestCert("fp4", "cn=D", core.CertTypeDSC, core.StatusValid),
	}
	for _, c := range certs {
		if err := store.SaveCertificate(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	cscas, err := store.FindCSCAs(ctx)
	if err != nil {
		t.Fatalf("FindCSCAs failed: %v", err)
	}
	if len(cscas) != 2 {
		t.Fatalf("expected 2 CSCAs (valid+expired, excluding revoked and non-CSCA), got %d", len(cscas))
	}
	for _, c := range cscas {
		if c.Fingerprint == "fp3" || c.Fingerprint == "fp4" {
			t.Errorf("unexpected certificate %q in FindCSCAs result", c.Fingerprint)
		}
	}
}

func TestMemStoreRecordAuditLinkDoesNotRequireCertificateRow(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	if err := store.RecordAuditLink(ctx, core.UploadId("upload-2"), core.Fingerprint("fp-existing")); err != nil {
		t.Fatalf("RecordAuditLink failed: %v", err)
	}
}

func TestMemStoreSaveAndFindCRLByIssuerAndCountry(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	crl := &core.CRL{CrlId: "crl-1", IssuerCN: "CSCA-KR", CountryCode: "KR"}

	if err := store.SaveCRLs(ctx, []*core.CRL{crl}); err != nil {
		t.Fatalf("SaveCRLs failed: %v", err)
	}

	got, err := store.FindCRLByIssuerAndCountry(ctx, "CSCA-KR", "KR")
	if err != nil {
		t.Fatalf("FindCRLByIssuerAndCountry failed: %v", err)
	}
	if got == nil || got.CrlId != "crl-1" {
		t.Fatalf("expected to find the saved CRL, got %v", got)
	}

	if miss, err := store.FindCRLByIssuerAndCountry(ctx, "Other", "US"); err != nil || miss != nil {
		t.Errorf("expected nil, nil for an unknown issuer/country pair, got %v, %v", miss, err)
	}
}
