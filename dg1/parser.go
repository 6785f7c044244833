// Package dg1 parses eMRTD Data Group 1 (the Machine-Readable Zone),
// TD3 two-line 44-character format (spec §4.5).
package dg1

import (
	"encoding/asn1"
	"fmt"
	"strings"
	"time"
)

// MRZ is the decoded TD3 Machine-Readable Zone.
type MRZ struct {
	DocumentType         string
	IssuingCountry       string
	FullName             string
	DocumentNumber       string
	Nationality          string
	DateOfBirth          time.Time
	Sex                  string
	DateOfExpiry         time.Time
	PersonalNumber       string
	CheckDigitsValid     bool
	FailedCheckDigits    []string
}

const td3Length = 88

// Parse unwraps DG1's ASN.1 TaggedObject layers to the OCTET STRING
// payload and decodes it as a TD3 MRZ.
func Parse(der []byte) (*MRZ, error) {
	payload, err := unwrapToOctetString(der)
	if err != nil {
		return nil, err
	}
	mrz := string(payload)
	if len(mrz) != td3Length {
		return nil, fmt.Errorf("dg1: expected %d-byte TD3 MRZ, got %d", td3Length, len(mrz))
	}
	return parseTD3(mrz)
}

// unwrapToOctetString descends through any number of
// APPLICATION/context-specific TaggedObject layers until it reaches an
// OCTET STRING (spec §4.5: "Unwrap any number of ... layers until an
// OCTET STRING is reached").
func unwrapToOctetString(der []byte) ([]byte, error) {
	var v asn1.RawValue
	if _, err := asn1.Unmarshal(der, &v); err != nil {
		return nil, fmt.Errorf("dg1: malformed ASN.1: %w", err)
	}
	for i := 0; i < 16; i++ {
		if v.Class == asn1.ClassUniversal && v.Tag == asn1.TagOctetString {
			return v.Bytes, nil
		}
		var inner asn1.RawValue
		if _, err := asn1.Unmarshal(v.Bytes, &inner); err != nil {
			// Not a further wrapped structure; treat current bytes as
			// the raw MRZ payload (some producers omit the OCTET
			// STRING tag entirely).
			return v.Bytes, nil
		}
		v = inner
	}
	return nil, fmt.Errorf("dg1: too many nested tags without reaching an OCTET STRING")
}

func parseTD3(mrz string) (*MRZ, error) {
	line1 := mrz[0:44]
	line2 := mrz[44:88]

	docType := strings.TrimRight(line1[0:1], "<")
	issuingCountry := line1[2:5]
	fullName := decodeName(line1[5:44])

	documentNumber := clean(line2[0:9])
	checkDigit1 := line2[9:10]
	nationality := line2[10:13]
	dob := line2[13:19]
	checkDigit2 := line2[19:20]
	sex := decodeSex(line2[20:21])
	expiry := line2[21:27]
	checkDigit3 := line2[27:28]
	personalNumber := clean(line2[28:42])
	checkDigit4 := line2[42:43]
	compositeCheckDigit := line2[43:44]

	dobTime, err := parseMRZDate(dob, true)
	if err != nil {
		return nil, fmt.Errorf("dg1: invalid dateOfBirth: %w", err)
	}
	expiryTime, err := parseMRZDate(expiry, false)
	if err != nil {
		return nil, fmt.Errorf("dg1: invalid dateOfExpiry: %w", err)
	}

	result := &MRZ{
		DocumentType:   docType,
		IssuingCountry: issuingCountry,
		FullName:       fullName,
		DocumentNumber: documentNumber,
		Nationality:    nationality,
		DateOfBirth:    dobTime,
		Sex:            sex,
		DateOfExpiry:   expiryTime,
		PersonalNumber: personalNumber,
	}

	var failed []string
	if !checkDigitValid(line2[0:9], checkDigit1) {
		failed = append(failed, "documentNumber")
	}
	if !checkDigitValid(dob, checkDigit2) {
		failed = append(failed, "dateOfBirth")
	}
	if !checkDigitValid(expiry, checkDigit3) {
		failed = append(failed, "dateOfExpiry")
	}
	if !checkDigitValid(line2[28:42], checkDigit4) {
		failed = append(failed, "personalNumber")
	}
	composite := line2[0:10] + line2[13:20] + line2[21:43]
	if !checkDigitValid(composite, compositeCheckDigit) {
		failed = append(failed, "composite")
	}
	result.FailedCheckDigits = failed
	result.CheckDigitsValid = len(failed) == 0

	return result, nil
}

func decodeName(field string) string {
	field = strings.TrimRight(field, "<")
	parts := strings.SplitN(field, "<<", 2)
	surname := strings.ReplaceAll(parts[0], "<", " ")
	given := ""
	if len(parts) > 1 {
		given = strings.ReplaceAll(parts[1], "<", " ")
	}
	name := strings.TrimSpace(surname)
	if given != "" {
		name += " " + strings.TrimSpace(given)
	}
	return name
}

func decodeSex(s string) string {
	switch s {
	case "M", "F":
		return s
	default:
		return "X"
	}
}

func clean(s string) string {
	return strings.TrimRight(s, "<")
}

// parseMRZDate converts a YYMMDD field to a time.Time using the pivot
// YY≥50 → 19YY, YY<50 → 20YY (spec §4.5).
func parseMRZDate(field string, isBirthDate bool) (time.Time, error) {
	if len(field) != 6 {
		return time.Time{}, fmt.Errorf("expected 6-digit date, got %q", field)
	}
	yy, err := atoiStrict(field[0:2])
	if err != nil {
		return time.Time{}, err
	}
	mm, err := atoiStrict(field[2:4])
	if err != nil {
		return time.Time{}, err
	}
	dd, err := atoiStrict(field[4:6])
	if err != nil {
		return time.Time{}, err
	}
	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	_ = isBirthDate
	return time.Date(year, time.Month(mm), dd, 0, 0, 0, 0, time.UTC), nil
}

func atoiStrict(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit in numeric field %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// checkDigitValid implements the ICAO 9303 check-digit algorithm:
// weights 7,3,1 repeating; '<' → 0, digit → its value, letter →
// value-10 ('A'=10 ... 'Z'=35).
func checkDigitValid(field, digit string) bool {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return false
	}
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += charValue(field[i]) * weights[i%3]
	}
	return sum%10 == int(digit[0]-'0')
}

func charValue(c byte) int {
	switch {
	case c == '<':
		return 0
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}
