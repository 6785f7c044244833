package trust

import (
	"context"
	"fmt"
	"strings"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/pkderrors"
)

// ContextExecutor binds a context.Context to a SqlExecutor, mirroring
// borp's (and upstream gorp's) DbMap.WithContext(ctx)/Transaction.WithContext(ctx),
// so every query below runs with the caller's deadline and cancellation.
type ContextExecutor interface {
	WithContext(ctx context.Context) SqlExecutor
}

// SQLStore is the production core.TrustStoreRepository, backed by a
// borp.DbMap over MySQL (spec §6). Grounded on the teacher's
// sa/storage-authority.go query shape and db/mocks.go capability split.
type SQLStore struct {
	db ContextExecutor
}

// NewSQLStore wraps an already-connected borp.DbMap (or equivalent) as
// a TrustStoreRepository.
func NewSQLStore(db ContextExecutor) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) FindExistingFingerprints(ctx context.Context, fps []core.Fingerprint) (map[core.Fingerprint]struct{}, error) {
	if len(fps) == 0 {
		return map[core.Fingerprint]struct{}{}, nil
	}
	placeholders := make([]string, len(fps))
	args := make([]interface{}, len(fps))
	for i, fp := range fps {
		placeholders[i] = "?"
		args[i] = string(fp)
	}
	query := fmt.Sprintf("SELECT fingerprint FROM certificates WHERE fingerprint IN (%s)", strings.Join(placeholders, ","))

	var rows []string
	if _, err := s.db.WithContext(ctx).Select(&rows, query, args...); err != nil {
		return nil, pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "fingerprint existence query failed")
	}
	out := make(map[core.Fingerprint]struct{}, len(rows))
	for _, r := range rows {
		out[core.Fingerprint(r)] = struct{}{}
	}
	return out, nil
}

// SaveAll attempts one batch Insert, falling back to per-certificate
// SaveCertificate calls on failure so a single bad row in a large
// upload never discards the rest of the batch (spec §4.2 Pass 1 step 5,
// the batch-flush-with-per-entity-fallback persistence pattern).
func (s *SQLStore) SaveAll(ctx context.Context, certs []*core.Certificate) error {
	if len(certs) == 0 {
		return nil
	}
	models := make([]interface{}, len(certs))
	for i, c := range certs {
		errsJSON, err := marshalValidationErrors(c.Errors)
		if err != nil {
			return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "marshal validation errors for %s", c.Fingerprint)
		}
		models[i] = toCertificateModel(c, errsJSON)
	}

	ex := s.db.WithContext(ctx)
	if err := ex.Insert(models...); err == nil {
		return nil
	}

	var firstErr error
	for _, cert := range certs {
		if err := s.SaveCertificate(ctx, cert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *SQLStore) SaveCertificate(ctx context.Context, cert *core.Certificate) error {
	errsJSON, err := marshalValidationErrors(cert.Errors)
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "marshal validation errors for %s", cert.Fingerprint)
	}
	model := toCertificateModel(cert, errsJSON)
	if err := s.db.WithContext(ctx).Insert(model); err != nil {
		return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "save certificate %s", cert.Fingerprint)
	}
	return nil
}

func (s *SQLStore) FindBySubjectDN(ctx context.Context, subjectDN string) (*core.Certificate, error) {
	var model certificateModel
	err := s.db.WithContext(ctx).SelectOne(&model,
		"SELECT id, upload_id, fingerprint, der, subject_dn, issuer_dn, serial_number, not_before, not_after, cert_type, status, country_code, key_algorithm, key_size_bits, roca_vulnerable, errors_json FROM certificates WHERE subject_dn = ? ORDER BY not_before DESC LIMIT 1",
		subjectDN)
	if err != nil {
		return nil, nil //nolint:nilerr // not-found is a valid, non-error outcome for this lookup
	}
	return model.toCertificate()
}

func (s *SQLStore) FindByUploadId(ctx context.Context, uploadId core.UploadId) ([]*core.Certificate, error) {
	var rows []certificateModel
	if _, err := s.db.WithContext(ctx).Select(&rows,
		"SELECT id, upload_id, fingerprint, der, subject_dn, issuer_dn, serial_number, not_before, not_after, cert_type, status, country_code, key_algorithm, key_size_bits, roca_vulnerable, errors_json FROM certificates WHERE upload_id = ?",
		string(uploadId)); err != nil {
		return nil, pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "find by upload id %s", uploadId)
	}
	return modelsToCertificates(rows)
}

func (s *SQLStore) FindCSCAs(ctx context.Context) ([]*core.Certificate, error) {
	var rows []certificateModel
	if _, err := s.db.WithContext(ctx).Select(&rows,
		"SELECT id, upload_id, fingerprint, der, subject_dn, issuer_dn, serial_number, not_before, not_after, cert_type, status, country_code, key_algorithm, key_size_bits, roca_vulnerable, errors_json FROM certificates WHERE cert_type = ? AND status IN (?, ?)",
		string(core.CertTypeCSCA), string(core.StatusValid), string(core.StatusExpired)); err != nil {
		return nil, pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "find CSCAs")
	}
	return modelsToCertificates(rows)
}

func (s *SQLStore) RecordAuditLink(ctx context.Context, uploadId core.UploadId, fp core.Fingerprint) error {
	err := s.db.WithContext(ctx).Insert(&auditLinkModel{
		UploadId:    string(uploadId),
		Fingerprint: string(fp),
	})
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "record audit link upload=%s fp=%s", uploadId, fp)
	}
	return nil
}

func (s *SQLStore) SaveCRLs(ctx context.Context, crls []*core.CRL) error {
	if len(crls) == 0 {
		return nil
	}
	ex := s.db.WithContext(ctx)
	for _, crl := range crls {
		entriesJSON, err := marshalRevokedEntries(crl.RevokedEntries)
		if err != nil {
			return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "marshal revoked entries for %s", crl.IssuerCN)
		}
		model := &crlModel{
			CrlId:        crl.CrlId,
			UploadId:     string(crl.UploadId),
			IssuerDN:     crl.IssuerDN,
			IssuerCN:     crl.IssuerCN,
			CountryCode:  crl.CountryCode,
			ThisUpdate:   crl.Validity.NotBefore.Unix(),
			NextUpdate:   crl.Validity.NotAfter.Unix(),
			DER:          crl.DER,
			RevokedCount: crl.RevokedCount,
			EntriesJSON:  entriesJSON,
		}
		if err := ex.Insert(model); err != nil {
			return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "save crl issuer=%s", crl.IssuerCN)
		}
	}
	return nil
}

func (s *SQLStore) FindCRLByIssuerAndCountry(ctx context.Context, issuerCN, countryCode string) (*core.CRL, error) {
	var model crlModel
	err := s.db.WithContext(ctx).SelectOne(&model,
		"SELECT id, upload_id, issuer_dn, issuer_cn, country_code, this_update, next_update, der, revoked_count, entries_json FROM crls WHERE issuer_cn = ? AND country_code = ? ORDER BY this_update DESC LIMIT 1",
		issuerCN, countryCode)
	if err != nil {
		return nil, nil //nolint:nilerr // not-found is a valid, non-error outcome for this lookup
	}
	return crlModelToCRL(&model)
}

func modelsToCertificates(rows []certificateModel) ([]*core.Certificate, error) {
	out := make([]*core.Certificate, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toCertificate()
		if err != nil {
			return nil, pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "decode certificate row")
		}
		out = append(out, c)
	}
	return out, nil
}

func crlModelToCRL(m *crlModel) (*core.CRL, error) {
	entries, err := unmarshalRevokedEntries(m.EntriesJSON)
	if err != nil {
		return nil, err
	}
	return &core.CRL{
		CrlId:       m.CrlId,
		UploadId:    core.UploadId(m.UploadId),
		IssuerDN:    m.IssuerDN,
		IssuerCN:    m.IssuerCN,
		CountryCode: m.CountryCode,
		Validity: core.ValidityPeriod{
			NotBefore: unixToTime(m.ThisUpdate),
			NotAfter:  unixToTime(m.NextUpdate),
		},
		DER:            m.DER,
		RevokedCount:   m.RevokedCount,
		RevokedEntries: entries,
	}, nil
}
