package trust

import (
	"math/big"
	"testing"
	"time"

	"github.com/iland112/local-pkd-sub001/core"
)

func TestCertificateModelRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	cert := &core.Certificate{
		CertificateId:  "cert-1",
		UploadId:       core.UploadId("upload-1"),
		Fingerprint:    core.Fingerprint("fp1"),
		DER:            []byte{0x30, 0x01, 0x02},
		SerialNumber:   big.NewInt(123456789),
		Subject:        core.DNInfo{Raw: "cn=DSC-KR-001", CountryCode: "KR"},
		Issuer:         core.DNInfo{Raw: "cn=CSCA-KR"},
		Validity:       core.ValidityPeriod{NotBefore: now, NotAfter: now.Add(24 * time.Hour)},
		CertType:       core.CertTypeDSC,
		Status:         core.StatusValid,
		KeyAlgorithm:   "RSA",
		KeySizeBits:    2048,
		ROCAVulnerable: false,
		Errors: []core.ValidationError{
			{Code: "EXPIRING_SOON", Severity: core.SeverityWarning, Message: "expires within 30 days"},
		},
	}

	errsJSON, err := marshalValidationErrors(cert.Errors)
	if err != nil {
		t.Fatalf("marshalValidationErrors failed: %v", err)
	}

	model := toCertificateModel(cert, errsJSON)
	if model.CertificateId != cert.CertificateId {
		t.Errorf("expected CertificateId %q, got %q", cert.CertificateId, model.CertificateId)
	}
	if model.SerialNumber != "123456789" {
		t.Errorf("expected serial number string 123456789, got %q", model.SerialNumber)
	}

	back, err := model.toCertificate()
	if err != nil {
		t.Fatalf("toCertificate failed: %v", err)
	}
	if back.CertificateId != cert.CertificateId {
		t.Errorf("expected round-tripped CertificateId %q, got %q", cert.CertificateId, back.CertificateId)
	}
	if back.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		t.Errorf("expected round-tripped serial %v, got %v", cert.SerialNumber, back.SerialNumber)
	}
	if !back.Validity.NotBefore.Equal(cert.Validity.NotBefore) {
		t.Errorf("expected round-tripped NotBefore %v, got %v", cert.Validity.NotBefore, back.Validity.NotBefore)
	}
	if back.CertType != cert.CertType || back.Status != cert.Status {
		t.Errorf("expected CertType/Status to round-trip, got %v/%v", back.CertType, back.Status)
	}
	if len(back.Errors) != 1 || back.Errors[0].Code != "EXPIRING_SOON" {
		t.Errorf("expected round-tripped errors to include EXPIRING_SOON, got %v", back.Errors)
	}
}

func TestCertificateModelToCertificateHandlesUnparsableSerial(t *testing.T) {
	model := &certificateModel{SerialNumber: "not-a-number", ErrorsJSON: "[]"}
	cert, err := model.toCertificate()
	if err != nil {
		t.Fatalf("toCertificate failed: %v", err)
	}
	if cert.SerialNumber.Sign() != 0 {
		t.Errorf("expected an unparsable serial to default to 0, got %v", cert.SerialNumber)
	}
}

func TestUnixToTimeIsUTC(t *testing.T) {
	got := unixToTime(0)
	if got.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", got.Location())
	}
	if !got.Equal(time.Unix(0, 0)) {
		t.Errorf("expected epoch time, got %v", got)
	}
}
