package directory

import "encoding/base64"

// derBase64 renders raw DER bytes for transport inside a DirectoryEntry
// attribute value, since core.DirectoryEntry.Attributes is string-keyed
// (the wire encoding of the binary option is the transport's concern,
// not the core's).
func derBase64(der []byte) string {
	return base64.StdEncoding.EncodeToString(der)
}
