package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/pkdlog"
)

// Object classes required for each artifact's directory entry (spec
// §4.3 "objectClass: the set required by the ICAO schema for the
// artifact class").
var (
	cscaObjectClasses = []string{"top", "pkdCscaCertificate"}
	dscObjectClasses  = []string{"top", "pkdDscCertificate"}
	crlObjectClasses  = []string{"top", "pkdCertificateRevocationList"}
)

// DefaultBatchSize is the publisher's round-trip amortization batch
// size (spec §4.3 "Bulk protocol").
const DefaultBatchSize = 100

// Publisher publishes validated Certificates and CRLs into an external
// directory, organized by country and artifact class, with
// deterministic, idempotent DNs.
type Publisher struct {
	client    core.DirectoryClient
	baseDN    string
	batchSize int
	log       pkdlog.Logger
	progress  core.ProgressSink
}

// New constructs a Publisher. progress may be core.NoopProgressSink{}.
func New(client core.DirectoryClient, baseDN string, batchSize int, log pkdlog.Logger, progress core.ProgressSink) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if progress == nil {
		progress = core.NoopProgressSink{}
	}
	return &Publisher{client: client, baseDN: baseDN, batchSize: batchSize, log: log, progress: progress}
}

// PublishCertificates upserts every Certificate regardless of status
// (spec §4.3 "All-or-none policy"), in concurrent chunks of the
// Publisher's batch size.
func (p *Publisher) PublishCertificates(ctx context.Context, uploadId core.UploadId, certs []*core.Certificate) error {
	return p.publishChunked(ctx, uploadId, len(certs), func(i int) (string, core.DirectoryEntry) {
		return p.certificateEntry(certs[i])
	})
}

// PublishCRLs upserts every CRL.
func (p *Publisher) PublishCRLs(ctx context.Context, uploadId core.UploadId, crls []*core.CRL) error {
	return p.publishChunked(ctx, uploadId, len(crls), func(i int) (string, core.DirectoryEntry) {
		return p.crlEntry(crls[i])
	})
}

// publishChunked runs Add concurrently (bounded by batchSize) across
// total items, isolating each entry's failure so one bad DN never
// aborts the rest of the chunk (spec §4.3 "A batch failure falls back
// to per-entry writes, logging the specific DNs that failed").
func (p *Publisher) publishChunked(ctx context.Context, uploadId core.UploadId, total int, build func(i int) (string, core.DirectoryEntry)) error {
	if total == 0 {
		return nil
	}
	var failedMu sync.Mutex
	var failedDNs []string

	for start := 0; start < total; start += p.batchSize {
		end := start + p.batchSize
		if end > total {
			end = total
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.batchSize)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				dn, entry := build(i)
				entry.DN = dn
				if err := p.client.Add(gctx, entry); err != nil {
					var exists *core.ErrEntryExists
					if errors.As(err, &exists) {
						return nil // idempotent re-upload, treated as success
					}
					failedMu.Lock()
					failedDNs = append(failedDNs, dn)
					failedMu.Unlock()
					return nil // batch continues; failure is logged, not propagated
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		p.progress.Report(ctx, uploadId, "publish", float64(end)/float64(total)*100, end, total)
	}

	if len(failedDNs) > 0 {
		p.log.Warning("directory publish: entries failed", "uploadId", uploadId, "count", len(failedDNs), "dns", failedDNs)
	}
	return nil
}

func (p *Publisher) certificateEntry(cert *core.Certificate) (string, core.DirectoryEntry) {
	org := "dsc"
	objectClasses := dscObjectClasses
	if cert.CertType == core.CertTypeCSCA {
		org = "csca"
		objectClasses = cscaObjectClasses
	}
	dn := BuildCertificateDN(cert.Subject.Raw, cert.SerialNumber, org, cert.Subject.CountryCode, p.baseDN)
	return dn, core.DirectoryEntry{
		DN: dn,
		Attributes: map[string][]string{
			"userCertificate;binary": {derBase64(cert.DER)},
			"cn":                     {cert.Subject.Raw},
			"sn":                     {SerialHex(cert.SerialNumber)},
			"description":            {describeStatus(cert.Status, cert.Errors)},
			"objectClass":            objectClasses,
		},
	}
}

func (p *Publisher) crlEntry(crl *core.CRL) (string, core.DirectoryEntry) {
	dn := BuildCRLDN(crl.IssuerDN, crl.CountryCode, p.baseDN)
	status := core.StatusValid
	if crl.HasErrorSeverity() {
		status = core.StatusInvalid
	}
	return dn, core.DirectoryEntry{
		DN: dn,
		Attributes: map[string][]string{
			"certificateRevocationList;binary": {derBase64(crl.DER)},
			"cn":                               {crl.IssuerDN},
			"description":                      {describeStatus(status, crl.Errors)},
			"objectClass":                      crlObjectClasses,
		},
	}
}

func describeStatus(status core.Status, errs []core.ValidationError) string {
	if status == core.StatusValid && len(errs) == 0 {
		return "VALID"
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Sprintf("%s: %s", status, strings.Join(msgs, "; "))
}
