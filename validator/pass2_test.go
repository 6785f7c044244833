package validator

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/iland112/local-pkd-sub001/core"
)

func issuedLeafData(t *testing.T, caCert *x509.Certificate, caKey *ecdsa.PrivateKey, notBefore, notAfter time.Time, certType core.CertType) core.CertificateData {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test DSC", Country: []string{"KR"}},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return core.CertificateData{
		DER:          der,
		Fingerprint:  core.Fingerprint("dsc-fp"),
		SubjectDN:    cert.Subject.String(),
		IssuerDN:     cert.Issuer.String(),
		SerialNumber: cert.SerialNumber,
		Validity:     core.ValidityPeriod{NotBefore: cert.NotBefore, NotAfter: cert.NotAfter},
		CertType:     certType,
		CountryCode:  "KR",
		PublicKey:    cert.PublicKey,
	}
}

func cscaCertAndKey(t *testing.T, now time.Time) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CSCA", Country: []string{"KR"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert, key
}

func cacheWithCSCA(t *testing.T, caCert *x509.Certificate) *CSCACache {
	t.Helper()
	return &CSCACache{bySubjectDN: map[string]*core.Certificate{
		caCert.Subject.String(): {DER: caCert.Raw},
	}}
}

func TestValidateDSCAcceptsCorrectlySignedCertificate(t *testing.T) {
	now := time.Now().UTC()
	caCert, caKey := cscaCertAndKey(t, now)
	cache := cacheWithCSCA(t, caCert)
	cd := issuedLeafData(t, caCert, caKey, now.Add(-time.Hour), now.Add(time.Hour), core.CertTypeDSC)

	cert := validateDSC("upload-1", cd, cache, now)
	if cert.Status != core.StatusValid {
		t.Fatalf("expected StatusValid, got %v (errors: %+v)", cert.Status, cert.Errors)
	}
	if !cert.Result.ChainValid {
		t.Error("expected ChainValid to be true")
	}
}

func TestValidateDSCRecordsChainIncompleteWhenIssuerNotCached(t *testing.T) {
	now := time.Now().UTC()
	caCert, caKey := cscaCertAndKey(t, now)
	emptyCache := &CSCACache{bySubjectDN: map[string]*core.Certificate{}}
	cd := issuedLeafData(t, caCert, caKey, now.Add(-time.Hour), now.Add(time.Hour), core.CertTypeDSC)

	cert := validateDSC("upload-1", cd, emptyCache, now)
	if cert.Status != core.StatusInvalid {
		t.Errorf("expected StatusInvalid when issuer is not cached, got %v", cert.Status)
	}
	found := false
	for _, e := range cert.Errors {
		if e.Code == "CHAIN_INCOMPLETE" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a CHAIN_INCOMPLETE error, got %+v", cert.Errors)
	}
}

func TestValidateDSCDetectsWrongIssuerSignature(t *testing.T) {
	now := time.Now().UTC()
	realCA, realKey := cscaCertAndKey(t, now)
	wrongCA, _ := cscaCertAndKey(t, now)
	cache := cacheWithCSCA(t, wrongCA)
	cd := issuedLeafData(t, realCA, realKey, now.Add(-time.Hour), now.Add(time.Hour), core.CertTypeDSC)
	// Pretend the DSC's issuer DN matches wrongCA's subject so the cache
	// lookup succeeds, exercising the signature-mismatch branch rather
	// than the chain-incomplete branch.
	cd.IssuerDN = wrongCA.Subject.String()

	cert := validateDSC("upload-1", cd, cache, now)
	found := false
	for _, e := range cert.Errors {
		if e.Code == "SIGNATURE_INVALID" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a SIGNATURE_INVALID error when verified against the wrong CSCA, got %+v", cert.Errors)
	}
}

func TestValidateDSCRecordsConformanceWarningsForDSCNC(t *testing.T) {
	now := time.Now().UTC()
	caCert, caKey := cscaCertAndKey(t, now)
	cache := cacheWithCSCA(t, caCert)
	cd := issuedLeafData(t, caCert, caKey, now.Add(-time.Hour), now.Add(time.Hour), core.CertTypeDSCNC)
	cd.ConformanceErrors = []string{"4.2.1"}

	cert := validateDSC("upload-1", cd, cache, now)
	found := false
	for _, e := range cert.Errors {
		if e.Code == "CONSTRAINTS_INVALID" && e.Severity == core.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a WARNING-severity CONSTRAINTS_INVALID conformance note, got %+v", cert.Errors)
	}
}

func TestValidateDSCRejectsUnparsableDER(t *testing.T) {
	cache := &CSCACache{bySubjectDN: map[string]*core.Certificate{}}
	cd := core.CertificateData{DER: []byte{0xff, 0xfe}, CertType: core.CertTypeDSC}
	cert := validateDSC("upload-1", cd, cache, time.Now())
	if cert.Status != core.StatusInvalid {
		t.Errorf("expected StatusInvalid, got %v", cert.Status)
	}
}
