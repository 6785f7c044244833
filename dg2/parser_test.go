package dg2

import (
	"bytes"
	"encoding/asn1"
	"strings"
	"testing"
)

// buildVariantC assembles a minimal DG2 structure using variant C, where
// each FaceInfo is itself a bare OCTET STRING carrying the image payload.
func buildVariantC(t *testing.T, payload []byte) []byte {
	t.Helper()
	faceInfoOctet, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagOctetString, Bytes: payload})
	if err != nil {
		t.Fatal(err)
	}
	faceInfos, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, Bytes: faceInfoOctet})
	if err != nil {
		t.Fatal(err)
	}
	top, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, Bytes: faceInfos})
	if err != nil {
		t.Fatal(err)
	}
	return top
}

func jpegPayload(size int) []byte {
	payload := make([]byte, size)
	payload[0], payload[1], payload[2] = 0xFF, 0xD8, 0xFF
	return payload
}

func TestParseVariantCExtractsJPEGImage(t *testing.T) {
	payload := jpegPayload(150)
	der := buildVariantC(t, payload)

	result, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.FaceCount != 1 {
		t.Fatalf("expected 1 face image, got %d", result.FaceCount)
	}
	img := result.FaceImages[0]
	if img.Format != FormatJPEG {
		t.Errorf("expected FormatJPEG, got %s", img.Format)
	}
	if !bytes.Equal(img.Bytes, payload) {
		t.Errorf("expected extracted bytes to equal the original payload")
	}
	if img.Size != len(payload) {
		t.Errorf("expected size %d, got %d", len(payload), img.Size)
	}
	if !strings.HasPrefix(img.DataURL, "data:image/jpeg;base64,") {
		t.Errorf("expected a jpeg data URL prefix, got %q", img.DataURL)
	}
}

func TestParseDiscardsImagesBelowMinimumSize(t *testing.T) {
	payload := jpegPayload(50) // below minImageSize (100)
	der := buildVariantC(t, payload)

	result, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.FaceCount != 0 {
		t.Errorf("expected small metadata-only image to be discarded, got %d faces", result.FaceCount)
	}
}

func TestParseRejectsMalformedOuterStructure(t *testing.T) {
	if _, err := Parse([]byte{0xff, 0xff}); err == nil {
		t.Error("expected Parse to reject malformed ASN.1")
	}
}

func TestParseRejectsNonSequenceTop(t *testing.T) {
	der, err := asn1.Marshal([]byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(der); err == nil {
		t.Error("expected Parse to reject a non-SEQUENCE top-level element")
	}
}

func TestHasJPEGMagic(t *testing.T) {
	if !hasJPEGMagic([]byte{0xFF, 0xD8, 0xFF, 0x00}) {
		t.Error("expected JPEG magic to be detected")
	}
	if hasJPEGMagic([]byte{0x00, 0x01}) {
		t.Error("expected short/non-matching input to not be detected as JPEG")
	}
}

func TestHasJPEG2000Magic(t *testing.T) {
	magic := []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0xAA}
	if !hasJPEG2000Magic(magic) {
		t.Error("expected JPEG2000 magic to be detected")
	}
	if hasJPEG2000Magic([]byte{0x01, 0x02}) {
		t.Error("expected non-matching input to not be detected as JPEG2000")
	}
}
