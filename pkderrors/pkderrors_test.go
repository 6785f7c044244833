package pkderrors

import (
	"errors"
	"testing"
)

func TestNewProducesErrorSeverity(t *testing.T) {
	err := New(CodeCertParseError, "bad DER at offset %d", 42)
	if err.Severity != SeverityError {
		t.Errorf("New should always produce SeverityError, got %s", err.Severity)
	}
	if err.Error() != "CERT_PARSE_ERROR: bad DER at offset 42" {
		t.Errorf("unexpected Error() text: %q", err.Error())
	}
}

func TestWarningProducesWarningSeverity(t *testing.T) {
	err := Warning(CodeUndeclaredDataGroup, "DG%d declared but not supplied", 2)
	if err.Severity != SeverityWarning {
		t.Errorf("Warning should always produce SeverityWarning, got %s", err.Severity)
	}
}

func TestWrapNeverLeaksCauseText(t *testing.T) {
	cause := errors.New("driver: connection reset by peer at 10.0.0.5:3306")
	err := Wrap(CodeRepositoryUnavailable, cause, "trust store unavailable")

	if err.Error() != "REPOSITORY_UNAVAILABLE: trust store unavailable" {
		t.Errorf("Wrap leaked cause text into Error(): %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause for Unwrap/errors.Is")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeExpired, "certificate expired")
	if !Is(err, CodeExpired) {
		t.Error("Is should match an equal code")
	}
	if Is(err, CodeNotYetValid) {
		t.Error("Is should not match a different code")
	}
	if Is(errors.New("plain error"), CodeExpired) {
		t.Error("Is should report false for a non-PKDError")
	}
}

func TestInfrastructureClassification(t *testing.T) {
	infra := []Code{CodeRepositoryUnavailable, CodeDirectoryUnavailable, CodeTimeout, CodeCancelled}
	for _, c := range infra {
		if !Infrastructure(c) {
			t.Errorf("%s should be classified as infrastructure", c)
		}
	}
	entityScoped := []Code{CodeExpired, CodeSignatureInvalid, CodeCRLStale}
	for _, c := range entityScoped {
		if Infrastructure(c) {
			t.Errorf("%s should not be classified as infrastructure", c)
		}
	}
}
