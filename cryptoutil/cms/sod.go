package cms

import (
	"encoding/asn1"
	"fmt"
)

// sodApplicationTag is the ICAO EF.SOD envelope tag: [APPLICATION 23]
// (0x77), per spec §4.4 step UNWRAP_SOD and §6.
const sodApplicationTag = 23

// UnwrapSOD extracts the CMS ContentInfo carried inside an EF.SOD's
// [APPLICATION 23] envelope. If sodBytes is not wrapped in any
// APPLICATION-tagged object it is returned unchanged (accepting an
// already-unwrapped CMS structure, per spec). Any other
// class/tag-number combination is rejected.
func UnwrapSOD(sodBytes []byte) ([]byte, error) {
	var outer asn1.RawValue
	if _, err := asn1.Unmarshal(sodBytes, &outer); err != nil {
		return nil, fmt.Errorf("sod: malformed outer structure: %w", err)
	}

	if outer.Class == asn1.ClassUniversal {
		// Already a bare CMS ContentInfo (SEQUENCE).
		return sodBytes, nil
	}
	if outer.Class != asn1.ClassApplication || outer.Tag != sodApplicationTag {
		return nil, fmt.Errorf("sod: unexpected outer tag class=%d tag=%d, want APPLICATION 23", outer.Class, outer.Tag)
	}
	return outer.Bytes, nil
}
