package cryptoutil

import (
	"crypto/x509/pkix"
	"strings"

	"github.com/iland112/local-pkd-sub001/core"
)

// DNInfo decomposes a pkix.Name into the normalized components the trust
// store and directory publisher key on. Country code is upper-cased
// (spec §8: "SubjectInfo.countryCode equals the C= RDN of the parsed
// subject, uppercased").
func DNInfo(name pkix.Name, isCA bool) core.DNInfo {
	info := core.DNInfo{
		Raw:        name.String(),
		CommonName: name.CommonName,
		IsCA:       isCA,
	}
	if len(name.Country) > 0 {
		info.CountryCode = strings.ToUpper(name.Country[0])
	}
	if len(name.Organization) > 0 {
		info.Org = name.Organization[0]
	}
	if len(name.OrganizationalUnit) > 0 {
		info.OrgUnit = name.OrganizationalUnit[0]
	}
	return info
}

// NormalizeCRLIssuerCN returns the bare CN of a parsed issuer name, e.g.
// the name "CN=CSCA-KR,C=KR" -> "CSCA-KR" (spec §4.2 CRL processing,
// step 1).
func NormalizeCRLIssuerCN(name pkix.Name) string {
	return name.CommonName
}
