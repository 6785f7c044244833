package cryptoutil

import (
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"
	zcx509 "github.com/zmap/zcrypto/x509"
)

// constraintsLintNames are the zlint checks consulted for the
// Validator's "constraintsValid" determination (spec §4.2 Pass 1 step
// 3). Rather than hand-rolling a Basic Constraints reader, this reuses
// the teacher's own zlint dependency (github.com/zmap/zlint/v3, already
// in its go.mod) the way zlint is meant to be driven: point it at a
// parsed certificate and read back named lint results.
var constraintsLintNames = []string{
	"e_ca_is_ca",
	"e_ca_basic_constraints_digital_signature_bit",
}

// ConstraintsValid re-parses der with zcrypto's x509 (zlint's required
// input type) and runs the Basic-Constraints-focused lints against it.
// It reports valid=true when none of constraintsLintNames produced an
// Error/Fatal result, plus a human-readable reason otherwise. A
// certificate zlint cannot re-parse is treated as constraints-invalid
// rather than panicking the validator.
func ConstraintsValid(der []byte) (valid bool, reason string) {
	cert, err := zcx509.ParseCertificate(der)
	if err != nil || cert == nil {
		return false, "unable to re-parse certificate for constraint linting"
	}

	registry, err := lint.GlobalRegistry().Filter(lint.FilterOptions{
		IncludeNames: constraintsLintNames,
	})
	if err != nil {
		return true, ""
	}

	results := zlint.LintCertificateEx(cert, registry)
	if results == nil {
		return true, ""
	}
	for name, res := range results.Results {
		if res == nil {
			continue
		}
		switch res.Status {
		case lint.Error, lint.Fatal:
			return false, "zlint " + name + ": " + res.Status.String()
		}
	}
	return true, ""
}
