// Package dg2 parses eMRTD Data Group 2 (the face biometric), tolerant
// of the four structural variants observed in real-world chips (spec
// §4.6).
package dg2

import (
	"encoding/asn1"
	"encoding/base64"
	"fmt"
)

// Format names a detected image codec.
type Format string

const (
	FormatJPEG     Format = "JPEG"
	FormatJPEG2000 Format = "JPEG2000"
	FormatUnknown  Format = "UNKNOWN"
)

// FaceImage is one extracted, size-filtered face image payload.
type FaceImage struct {
	Format  Format
	Size    int
	Bytes   []byte
	Base64  string
	DataURL string
}

// Result is DG2's parsed output.
type Result struct {
	FaceCount  int
	FaceImages []FaceImage
}

// minImageSize discards metadata-only FaceInfo entries (spec §4.6 step 6).
const minImageSize = 100

// isoHeaderLength is the ISO/IEC 19794-5 container header size; the
// actual image starts at or after this offset (spec §4.6 step 4).
const isoHeaderLength = 20

var isoMagic = []byte("FAC\x00")

// Parse extracts every face image embedded in DG2's DER encoding,
// tolerant of variants A (standard), B (simplified), C
// (ultra-simplified), and D (deep-tagged with extra TaggedObject
// wrappers at any nesting level).
func Parse(der []byte) (*Result, error) {
	top, err := unwrapTags(der)
	if err != nil {
		return nil, fmt.Errorf("dg2: malformed outer structure: %w", err)
	}
	if top.Tag != asn1.TagSequence {
		return nil, fmt.Errorf("dg2: expected top-level SEQUENCE, got tag %d", top.Tag)
	}
	topChildren, err := sequenceChildren(top)
	if err != nil || len(topChildren) == 0 {
		return nil, fmt.Errorf("dg2: malformed top-level SEQUENCE")
	}

	faceInfos, err := unwrapTags(topChildren[len(topChildren)-1].FullBytes)
	if err != nil || faceInfos.Tag != asn1.TagSequence {
		return nil, fmt.Errorf("dg2: could not locate FaceInfos SEQUENCE")
	}
	faceInfoElements, err := sequenceChildren(faceInfos)
	if err != nil {
		return nil, fmt.Errorf("dg2: malformed FaceInfos SEQUENCE: %w", err)
	}

	result := &Result{}
	for _, raw := range faceInfoElements {
		elem, err := unwrapTags(raw.FullBytes)
		if err != nil {
			continue
		}
		payload, err := payloadFromFaceInfo(elem)
		if err != nil || len(payload) == 0 {
			continue
		}
		format, imgBytes, ok := extractImage(payload)
		if !ok || len(imgBytes) <= minImageSize {
			continue
		}
		result.FaceImages = append(result.FaceImages, FaceImage{
			Format:  format,
			Size:    len(imgBytes),
			Bytes:   imgBytes,
			Base64:  base64.StdEncoding.EncodeToString(imgBytes),
			DataURL: dataURL(format, imgBytes),
		})
	}
	result.FaceCount = len(result.FaceImages)
	return result, nil
}

// payloadFromFaceInfo extracts the raw image-container bytes from one
// FaceInfo element, branching on its (tag-unwrapped) structure per spec
// §4.6 step 3.
func payloadFromFaceInfo(elem asn1.RawValue) ([]byte, error) {
	if elem.Tag == asn1.TagOctetString && elem.Class == asn1.ClassUniversal {
		return elem.Bytes, nil // variant C: each FaceInfo is itself an OCTET STRING
	}
	if elem.Tag != asn1.TagSequence || elem.Class != asn1.ClassUniversal {
		return nil, fmt.Errorf("dg2: unexpected FaceInfo element tag %d", elem.Tag)
	}
	children, err := sequenceChildren(elem)
	if err != nil || len(children) == 0 {
		return nil, fmt.Errorf("dg2: empty FaceInfo SEQUENCE")
	}
	first, err := unwrapTags(children[0].FullBytes)
	if err != nil {
		return nil, err
	}
	if first.Tag == asn1.TagOctetString && first.Class == asn1.ClassUniversal {
		return first.Bytes, nil // variant B: simplified FaceImageBlock
	}
	if first.Tag != asn1.TagSequence || first.Class != asn1.ClassUniversal {
		return nil, fmt.Errorf("dg2: unexpected FaceImageBlock tag %d", first.Tag)
	}
	// Variant A: FaceImageBlock SEQUENCE whose LAST OCTET STRING is the
	// image payload.
	blockChildren, err := sequenceChildren(first)
	if err != nil {
		return nil, err
	}
	for i := len(blockChildren) - 1; i >= 0; i-- {
		c, err := unwrapTags(blockChildren[i].FullBytes)
		if err != nil {
			continue
		}
		if c.Tag == asn1.TagOctetString && c.Class == asn1.ClassUniversal {
			return c.Bytes, nil
		}
	}
	return nil, fmt.Errorf("dg2: no OCTET STRING payload found in FaceImageBlock")
}

// unwrapTags descends through any number of non-universal-class
// (APPLICATION/context-specific) TaggedObject wrappers until it reaches
// a universal-class primitive or constructed value, tolerating the
// "variant D" deep-tagging case at any nesting level.
func unwrapTags(der []byte) (asn1.RawValue, error) {
	var v asn1.RawValue
	if _, err := asn1.Unmarshal(der, &v); err != nil {
		return asn1.RawValue{}, err
	}
	for i := 0; i < 16 && v.Class != asn1.ClassUniversal; i++ {
		var inner asn1.RawValue
		if _, err := asn1.Unmarshal(v.Bytes, &inner); err != nil {
			break
		}
		v = inner
	}
	return v, nil
}

func sequenceChildren(seq asn1.RawValue) ([]asn1.RawValue, error) {
	var children []asn1.RawValue
	rest := seq.Bytes
	for len(rest) > 0 {
		var el asn1.RawValue
		next, err := asn1.Unmarshal(rest, &el)
		if err != nil {
			return nil, err
		}
		children = append(children, el)
		rest = next
	}
	return children, nil
}

// extractImage locates the ISO/IEC 19794-5 header (if present) and
// scans forward for a JPEG or JPEG2000 magic sequence (spec §4.6 steps
// 4-5).
func extractImage(payload []byte) (Format, []byte, bool) {
	start := 0
	if len(payload) >= len(isoMagic) && string(payload[:len(isoMagic)]) == string(isoMagic) {
		start = isoHeaderLength
		if start > len(payload) {
			start = len(payload)
		}
	}
	for i := start; i < len(payload); i++ {
		if hasJPEGMagic(payload[i:]) {
			return FormatJPEG, payload[i:], true
		}
		if hasJPEG2000Magic(payload[i:]) {
			return FormatJPEG2000, payload[i:], true
		}
	}
	return FormatUnknown, nil, false
}

func hasJPEGMagic(b []byte) bool {
	return len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF
}

func hasJPEG2000Magic(b []byte) bool {
	magic := []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50}
	if len(b) < len(magic) {
		return false
	}
	for i, m := range magic {
		if b[i] != m {
			return false
		}
	}
	return true
}

func dataURL(format Format, imgBytes []byte) string {
	mime := "application/octet-stream"
	switch format {
	case FormatJPEG:
		mime = "image/jpeg"
	case FormatJPEG2000:
		mime = "image/jp2"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imgBytes)
}
