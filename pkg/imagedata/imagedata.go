// Package imagedata converts between raw base64 image payloads and the
// data-URI form (`data:<mime>;base64,<payload>`) the browser shell exchanges.
package imagedata

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	scheme = "data:"
	marker = ";base64,"
)

// Format renders a MIME type and base64 payload as a data URI suitable for
// direct display in an <img> element.
func Format(mimeType, data string) string {
	return scheme + mimeType + marker + data
}

// Parse splits a data URI into its MIME type and base64 payload. The URI
// must use base64 encoding and the payload must decode cleanly.
func Parse(uri string) (mimeType, data string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}

	mimeType, data, ok = strings.Cut(rest, marker)
	if !ok {
		return "", "", fmt.Errorf("data URI is not base64-encoded")
	}
	if mimeType == "" {
		return "", "", fmt.Errorf("data URI has no MIME type")
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", fmt.Errorf("invalid base64 payload: %w", err)
	}

	return mimeType, data, nil
}

// MimeTypeForExt maps an upload's file extension to a MIME type, used when
// the multipart header carries no Content-Type.
func MimeTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
