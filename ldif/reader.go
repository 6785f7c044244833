// Package ldif implements the LDIF sub-parser (spec §4.1): RFC 2849
// line-framed records, base64 binary attributes, blank-line-delimited
// entries, tolerant of mixed line endings.
package ldif

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// Record is one LDIF entry: its DN plus every attribute value, keyed by
// the attribute name including any `;option` suffix (e.g.
// "userCertificate;binary"). Values are the raw decoded bytes for
// `attr::` (base64) lines, or the literal bytes for `attr:` lines.
type Record struct {
	DN         string
	Attributes map[string][][]byte
	// line is the 1-based line number the record started on, for
	// ParsingError locators.
	Line int
}

// Values returns every value recorded for attribute name, or nil.
func (r Record) Values(name string) [][]byte {
	return r.Attributes[name]
}

// Value returns the first value recorded for attribute name, or nil.
func (r Record) Value(name string) []byte {
	vs := r.Attributes[name]
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// ReadRecords parses data as an LDIF document and returns every entry
// found. A line with no ':' separator, or an `attr::` value that is not
// valid base64, is a hard parse failure, matching spec §4.1: "a
// structurally invalid LDIF (unreadable framing) fails the whole
// parse." A record without a dn: line is dropped without an error.
func ReadRecords(data []byte) ([]Record, error) {
	lines := splitLinesTolerant(data)
	unfolded, lineNumbers := unfold(lines)

	var records []Record
	var cur *Record
	var curLine int

	flush := func() {
		if cur != nil && cur.DN != "" {
			records = append(records, *cur)
		}
		cur = nil
	}

	for i, line := range unfolded {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		name, value, isBase64, err := splitAttrLine(line)
		if err != nil {
			return nil, fmt.Errorf("ldif: line %d: %w", lineNumbers[i], err)
		}
		if cur == nil {
			cur = &Record{Attributes: make(map[string][][]byte)}
			curLine = lineNumbers[i]
			cur.Line = curLine
		}
		if name == "dn" {
			cur.DN = string(value)
			continue
		}
		var decoded []byte
		if isBase64 {
			decoded, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(value)))
			if err != nil {
				return nil, fmt.Errorf("ldif: line %d: invalid base64 for attribute %q: %w", lineNumbers[i], name, err)
			}
		} else {
			decoded = value
		}
		cur.Attributes[name] = append(cur.Attributes[name], decoded)
	}
	flush()

	return records, nil
}

// splitLinesTolerant splits on \n, stripping any trailing \r so both
// \n and \r\n framed files parse identically (spec §6: "Parser MUST
// tolerate mixed line endings").
func splitLinesTolerant(data []byte) []string {
	raw := bytes.Split(data, []byte("\n"))
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(bytes.TrimRight(l, "\r"))
	}
	return lines
}

// unfold joins RFC 2849 continuation lines (a line beginning with a
// single space is a continuation of the previous line) and returns the
// joined lines alongside the 1-based source line number each one
// started on.
func unfold(lines []string) ([]string, []int) {
	var out []string
	var lineNo []int
	for i, line := range lines {
		if strings.HasPrefix(line, " ") && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
		lineNo = append(lineNo, i+1)
	}
	return out, lineNo
}

// splitAttrLine parses one unfolded "attr: value" or "attr:: base64"
// line into its name and raw value.
func splitAttrLine(line string) (name string, value []byte, isBase64 bool, err error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", nil, false, fmt.Errorf("expected 'attr:' or 'attr::', got %q", line)
	}
	name = line[:idx]
	rest := line[idx+1:]
	if strings.HasPrefix(rest, ":") {
		return name, []byte(strings.TrimPrefix(rest, ":")), true, nil
	}
	return name, []byte(strings.TrimPrefix(rest, " ")), false, nil
}
