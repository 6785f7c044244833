// Package parser is the top-level entry point for spec §4.1: it selects
// the LDIF or CMS Master List sub-parser by FileFormat, then runs the
// batch duplicate-check protocol against the trust store before handing
// a ParsedFile to the validator.
package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/ldif"
	"github.com/iland112/local-pkd-sub001/masterlist"
	"github.com/iland112/local-pkd-sub001/pkderrors"
)

// Parse decodes raw into a ParsedFile tagged with uploadId and format,
// then deduplicates its certificates against store's existing
// fingerprints using the single bulk lookup required by the batch
// duplicate-check protocol (spec §4.1): certificates already present in
// the trust store are removed from the returned file (they will not be
// re-validated) but still produce a DUPLICATE_CERTIFICATE ParsingError
// and an audit link.
func Parse(ctx context.Context, store core.TrustStoreRepository, uploadId core.UploadId, format core.FileFormat, sourceFilename string, raw []byte) (*core.ParsedFile, error) {
	pf := core.NewParsedFile(uploadId, format, sourceFilename, time.Now().UTC())

	var err error
	switch {
	case format.IsLDIF():
		err = ldif.Parse(pf, raw)
	case format == core.FormatMasterListSignedCMS:
		err = masterlist.Parse(pf, raw)
	default:
		return nil, pkderrors.New(pkderrors.CodeInvalidFileFormat, "unrecognized file format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if err := deduplicateAgainstStore(ctx, store, pf); err != nil {
		return nil, err
	}
	return pf, nil
}

// deduplicateAgainstStore performs the batch protocol's three steps:
// collect every fingerprint from this file, issue one bulk existence
// query, then decide per entry.
func deduplicateAgainstStore(ctx context.Context, store core.TrustStoreRepository, pf *core.ParsedFile) error {
	if len(pf.Certificates) == 0 {
		return nil
	}

	fps := make([]core.Fingerprint, len(pf.Certificates))
	for i, cd := range pf.Certificates {
		fps[i] = cd.Fingerprint
	}

	existing, err := store.FindExistingFingerprints(ctx, fps)
	if err != nil {
		return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "bulk fingerprint existence query failed")
	}
	if len(existing) == 0 {
		return nil
	}

	kept := pf.Certificates[:0]
	for _, cd := range pf.Certificates {
		if _, dup := existing[cd.Fingerprint]; dup {
			if err := store.RecordAuditLink(ctx, pf.UploadId, cd.Fingerprint); err != nil {
				return pkderrors.Wrap(pkderrors.CodeRepositoryUnavailable, err, "audit link record failed")
			}
			pf.AddError(string(pkderrors.CodeDuplicateCertificate), fmt.Sprintf("fingerprint=%s", cd.Fingerprint),
				"certificate already present in trust store; re-upload recorded as audit link only")
			continue
		}
		kept = append(kept, cd)
	}
	pf.Certificates = kept
	return nil
}
