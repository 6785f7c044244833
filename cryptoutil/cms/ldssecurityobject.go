package cms

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// dataGroupHash is one entry of LDSSecurityObject.dataGroupHashValues
// (ICAO Doc 9303 Part 10).
type dataGroupHash struct {
	DataGroupNumber int
	HashValue       []byte
}

// ldsSecurityObject is the structure encapsulated by an EF.SOD's CMS
// SignedData content (spec §4.4 step 6).
type ldsSecurityObject struct {
	Version             int `asn1:"default:0"`
	HashAlgorithm       pkix.AlgorithmIdentifier
	DataGroupHashValues []dataGroupHash `asn1:"sequence"`
}

// LDSSecurityObject is the parsed, caller-friendly form.
type LDSSecurityObject struct {
	HashAlgorithmOID asn1.ObjectIdentifier
	DataGroupHashes  map[int][]byte
}

// ParseLDSSecurityObject decodes the DER-encoded encapsulated content of
// an EF.SOD into its declared hash algorithm and per-DG expected hashes.
func ParseLDSSecurityObject(der []byte) (*LDSSecurityObject, error) {
	var lso ldsSecurityObject
	if _, err := asn1.Unmarshal(der, &lso); err != nil {
		return nil, fmt.Errorf("cms: malformed LDSSecurityObject: %w", err)
	}
	hashes := make(map[int][]byte, len(lso.DataGroupHashValues))
	for _, dgh := range lso.DataGroupHashValues {
		hashes[dgh.DataGroupNumber] = dgh.HashValue
	}
	return &LDSSecurityObject{
		HashAlgorithmOID: lso.HashAlgorithm.Algorithm,
		DataGroupHashes:  hashes,
	}, nil
}
