package trust

import (
	"math/big"
	"time"

	"github.com/iland112/local-pkd-sub001/core"
)

// certificateModel is the borp row mapping for the certificates table,
// grounded on the teacher's sa/model.go regModel/certModel pattern: a
// flat struct of scalar/blob columns, with a separate marshal/unmarshal
// step translating to/from core.Certificate for the richer in-memory
// shape (PublicKey, structured errors).
type certificateModel struct {
	CertificateId  string `db:"id"`
	UploadId       string `db:"upload_id"`
	Fingerprint    string `db:"fingerprint"`
	DER            []byte `db:"der"`
	SubjectDN      string `db:"subject_dn"`
	IssuerDN       string `db:"issuer_dn"`
	SerialNumber   string `db:"serial_number"`
	NotBefore      int64  `db:"not_before"`
	NotAfter       int64  `db:"not_after"`
	CertType       string `db:"cert_type"`
	Status         string `db:"status"`
	CountryCode    string `db:"country_code"`
	KeyAlgorithm   string `db:"key_algorithm"`
	KeySizeBits    int    `db:"key_size_bits"`
	ROCAVulnerable bool   `db:"roca_vulnerable"`
	ErrorsJSON     string `db:"errors_json"`
}

func toCertificateModel(c *core.Certificate, errorsJSON string) *certificateModel {
	return &certificateModel{
		CertificateId:  c.CertificateId,
		UploadId:       string(c.UploadId),
		Fingerprint:    string(c.Fingerprint),
		DER:            c.DER,
		SubjectDN:      c.Subject.Raw,
		IssuerDN:       c.Issuer.Raw,
		SerialNumber:   c.SerialNumber.String(),
		NotBefore:      c.Validity.NotBefore.Unix(),
		NotAfter:       c.Validity.NotAfter.Unix(),
		CertType:       string(c.CertType),
		Status:         string(c.Status),
		CountryCode:    c.Subject.CountryCode,
		KeyAlgorithm:   c.KeyAlgorithm,
		KeySizeBits:    c.KeySizeBits,
		ROCAVulnerable: c.ROCAVulnerable,
		ErrorsJSON:     errorsJSON,
	}
}

func (m *certificateModel) toCertificate() (*core.Certificate, error) {
	serial, ok := new(big.Int).SetString(m.SerialNumber, 10)
	if !ok {
		serial = big.NewInt(0)
	}
	errs, err := unmarshalValidationErrors(m.ErrorsJSON)
	if err != nil {
		return nil, err
	}
	return &core.Certificate{
		CertificateId: m.CertificateId,
		UploadId:      core.UploadId(m.UploadId),
		Fingerprint:   core.Fingerprint(m.Fingerprint),
		DER:           m.DER,
		SerialNumber:  serial,
		Subject: core.DNInfo{
			Raw:         m.SubjectDN,
			CountryCode: m.CountryCode,
		},
		Issuer: core.DNInfo{
			Raw: m.IssuerDN,
		},
		Validity: core.ValidityPeriod{
			NotBefore: time.Unix(m.NotBefore, 0).UTC(),
			NotAfter:  time.Unix(m.NotAfter, 0).UTC(),
		},
		CertType:       core.CertType(m.CertType),
		Status:         core.Status(m.Status),
		KeyAlgorithm:   m.KeyAlgorithm,
		KeySizeBits:    m.KeySizeBits,
		ROCAVulnerable: m.ROCAVulnerable,
		Errors:         errs,
	}, nil
}

// crlModel is the borp row mapping for the crls table.
type crlModel struct {
	CrlId        string `db:"id"`
	UploadId     string `db:"upload_id"`
	IssuerDN     string `db:"issuer_dn"`
	IssuerCN     string `db:"issuer_cn"`
	CountryCode  string `db:"country_code"`
	ThisUpdate   int64  `db:"this_update"`
	NextUpdate   int64  `db:"next_update"`
	DER          []byte `db:"der"`
	RevokedCount int    `db:"revoked_count"`
	EntriesJSON  string `db:"entries_json"`
}

// auditLinkModel records a (uploadId, fingerprint) pairing independent
// of whether that fingerprint produced a new certificate row (spec §3).
type auditLinkModel struct {
	Id          int64  `db:"id"`
	UploadId    string `db:"upload_id"`
	Fingerprint string `db:"fingerprint"`
	RecordedAt  int64  `db:"recorded_at"`
}
