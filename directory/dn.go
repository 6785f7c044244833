// Package directory implements the publisher (spec §4.3): deterministic
// DN construction and an idempotent, batched upsert against an external
// DirectoryClient.
package directory

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// dnSpecials are the characters RFC 4514 requires escaping when they
// appear in a DN attribute value, plus the leading-space/leading-#/
// trailing-space cases handled separately below.
const dnSpecials = `,+"\<>;=`

// EscapeDNValue normalizes s to NFC (grounded on the teacher's
// golang.org/x/text dependency) and escapes the RFC 4514 special
// characters so it can be embedded as a single attribute value inside a
// larger DN string.
func EscapeDNValue(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0 && r == ' ':
			b.WriteString(`\ `)
		case i == 0 && r == '#':
			b.WriteString(`\#`)
		case strings.ContainsRune(dnSpecials, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	escaped := b.String()
	if strings.HasSuffix(escaped, " ") && !strings.HasSuffix(escaped, `\ `) {
		escaped = escaped[:len(escaped)-1] + `\ `
	}
	return escaped
}

// SerialHex renders a certificate serial number as uppercase hex, the
// form used in the "+sn=<serial-hex>" RDN component (spec §4.3).
func SerialHex(serial *big.Int) string {
	if serial == nil {
		return "00"
	}
	return strings.ToUpper(serial.Text(16))
}

// BuildCertificateDN composes the CSCA/DSC DN form:
// cn=<escaped subject DN>+sn=<serial-hex>, o=<org>, c=<CC>, <base-dn>.
func BuildCertificateDN(subjectDN string, serial *big.Int, org, countryCode, baseDN string) string {
	return fmt.Sprintf("cn=%s+sn=%s,o=%s,c=%s,%s",
		EscapeDNValue(subjectDN), SerialHex(serial), org, strings.ToLower(countryCode), baseDN)
}

// BuildCRLDN composes the CRL DN form: cn=<escaped issuer DN>, o=crl, c=<CC>, <base-dn>.
func BuildCRLDN(issuerDN, countryCode, baseDN string) string {
	return fmt.Sprintf("cn=%s,o=crl,c=%s,%s", EscapeDNValue(issuerDN), strings.ToLower(countryCode), baseDN)
}
