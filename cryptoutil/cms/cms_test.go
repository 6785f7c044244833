package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
)

func TestDigestAlgorithmHashKnownOIDs(t *testing.T) {
	cases := []struct {
		oid  asn1.ObjectIdentifier
		want crypto.Hash
	}{
		{asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, crypto.SHA1},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, crypto.SHA256},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, crypto.SHA384},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, crypto.SHA512},
	}
	for _, c := range cases {
		got, err := DigestAlgorithmHash(c.oid)
		if err != nil {
			t.Errorf("%v: unexpected error: %v", c.oid, err)
		}
		if got != c.want {
			t.Errorf("%v: expected %v, got %v", c.oid, c.want, got)
		}
	}
}

func TestDigestAlgorithmHashUnknownOID(t *testing.T) {
	_, err := DigestAlgorithmHash(asn1.ObjectIdentifier{1, 2, 3, 4, 5})
	if err == nil {
		t.Error("expected an error for an unrecognized digest OID")
	}
}

func TestVerifySignatureWithKeyRSAPKCS1v15(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	content := []byte("EF.SOD signed attributes")
	digest := sha256.Sum256(content)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	rsaEncryptionOID := asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

	if err := VerifySignatureWithKey(&key.PublicKey, crypto.SHA256, content, sig, rsaEncryptionOID); err != nil {
		t.Errorf("expected valid PKCS#1v1.5 signature to verify, got: %v", err)
	}
	if err := VerifySignatureWithKey(&key.PublicKey, crypto.SHA256, []byte("tampered"), sig, rsaEncryptionOID); err == nil {
		t.Error("expected verification to fail against tampered content")
	}
}

func TestVerifySignatureWithKeyRSAPSS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	content := []byte("EF.SOD signed attributes (PSS)")
	digest := sha256.Sum256(content)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], opts)
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifySignatureWithKey(&key.PublicKey, crypto.SHA256, content, sig, rsaPSSOID); err != nil {
		t.Errorf("expected valid RSA-PSS signature to verify, got: %v", err)
	}
}

func TestVerifySignatureWithKeyECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	content := []byte("EF.SOD signed attributes")
	digest := sha256.Sum256(content)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifySignatureWithKey(&key.PublicKey, crypto.SHA256, content, sig, nil); err != nil {
		t.Errorf("expected valid ECDSA signature to verify, got: %v", err)
	}
}

func TestVerifySignatureWithKeyUnsupportedKeyType(t *testing.T) {
	err := VerifySignatureWithKey("not a key", crypto.SHA256, []byte("x"), []byte("y"), nil)
	if err == nil {
		t.Error("expected an error for an unsupported public key type")
	}
}

func TestMessageDigestMismatchErrorMessage(t *testing.T) {
	err := &MessageDigestMismatchError{Expected: []byte{0xab}, Actual: []byte{0xcd}}
	want := "cms: message digest mismatch: expected ab, got cd"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestParseLDSSecurityObjectRoundTrip(t *testing.T) {
	lso := ldsSecurityObject{
		HashAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1},
		},
		DataGroupHashValues: []dataGroupHash{
			{DataGroupNumber: 1, HashValue: []byte{1, 2, 3}},
			{DataGroupNumber: 2, HashValue: []byte{4, 5, 6}},
		},
	}
	der, err := asn1.Marshal(lso)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseLDSSecurityObject(der)
	if err != nil {
		t.Fatalf("ParseLDSSecurityObject failed: %v", err)
	}
	if !parsed.HashAlgorithmOID.Equal(lso.HashAlgorithm.Algorithm) {
		t.Errorf("expected hash algorithm %v, got %v", lso.HashAlgorithm.Algorithm, parsed.HashAlgorithmOID)
	}
	if len(parsed.DataGroupHashes) != 2 {
		t.Fatalf("expected 2 data group hashes, got %d", len(parsed.DataGroupHashes))
	}
	if string(parsed.DataGroupHashes[1]) != string([]byte{1, 2, 3}) {
		t.Errorf("unexpected DG1 hash: %x", parsed.DataGroupHashes[1])
	}
	if string(parsed.DataGroupHashes[2]) != string([]byte{4, 5, 6}) {
		t.Errorf("unexpected DG2 hash: %x", parsed.DataGroupHashes[2])
	}
}

func TestParseSignedDataRejectsWrongContentType(t *testing.T) {
	ci := contentInfo{
		ContentType: OIDData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: []byte{0x04, 0x01, 0x00}},
	}
	der, err := asn1.Marshal(ci)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSignedData(der); err == nil {
		t.Error("expected ParseSignedData to reject a non-SignedData content type")
	}
}

func TestParseSignedDataRejectsMalformedContentInfo(t *testing.T) {
	if _, err := ParseSignedData([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected ParseSignedData to reject garbage bytes")
	}
}

func TestEncapsulatedContentUnwrapsOctetStringWrapper(t *testing.T) {
	content := []byte("LDSSecurityObject bytes")
	octetDER, err := asn1.Marshal(content)
	if err != nil {
		t.Fatal(err)
	}
	sd := &SignedData{raw: signedData{ContentInfo: contentInfo{
		Content: asn1.RawValue{FullBytes: octetDER, Bytes: octetDER},
	}}}

	got, err := sd.EncapsulatedContent()
	if err != nil {
		t.Fatalf("EncapsulatedContent failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("expected unwrapped content %q, got %q", content, got)
	}
}

func TestEncapsulatedContentFallsBackWhenNotOctetString(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0xfd}
	sd := &SignedData{raw: signedData{ContentInfo: contentInfo{
		Content: asn1.RawValue{FullBytes: raw, Bytes: raw},
	}}}

	got, err := sd.EncapsulatedContent()
	if err != nil {
		t.Fatalf("EncapsulatedContent failed: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("expected raw bytes fallback %x, got %x", raw, got)
	}
}

func TestEncapsulatedContentErrorsOnEmptyContent(t *testing.T) {
	sd := &SignedData{raw: signedData{ContentInfo: contentInfo{}}}
	if _, err := sd.EncapsulatedContent(); err == nil {
		t.Error("expected an error for an empty encapsulated content")
	}
}

func TestSignerCount(t *testing.T) {
	sd := &SignedData{raw: signedData{SignerInfos: []signerInfo{{}, {}}}}
	if sd.SignerCount() != 2 {
		t.Errorf("expected SignerCount 2, got %d", sd.SignerCount())
	}
}

func TestVerifyFirstSignerErrorsWhenNoSignerInfos(t *testing.T) {
	sd := &SignedData{raw: signedData{}}
	if err := sd.VerifyFirstSigner([]byte("content"), nil); err == nil {
		t.Error("expected an error when no SignerInfo is present")
	}
}
