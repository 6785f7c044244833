package cryptoutil

import "testing"

func TestConstraintsValidRejectsUnparsableDER(t *testing.T) {
	valid, reason := ConstraintsValid([]byte{0x00, 0x01, 0x02})
	if valid {
		t.Error("garbage DER should never be reported as constraints-valid")
	}
	if reason == "" {
		t.Error("expected a non-empty reason when re-parsing fails")
	}
}
