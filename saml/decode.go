package saml

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// decodeRawResponse turns the raw SAMLResponse parameter into an XML
// document. It is deliberately lenient about the encoding used by the
// binding that delivered it: whitespace is stripped, base64 (standard or
// URL-safe) is tried, and if the result doesn't look like XML a raw
// deflate inflate is attempted (the HTTP-Redirect binding compresses
// before base64-encoding).
func decodeRawResponse(raw string) ([]byte, error) {
	const op = "saml.decodeRawResponse"

	trimmed := strings.Join(strings.Fields(raw), "")
	if trimmed == "" {
		return nil, wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: empty payload", op), ErrMalformedInput)
	}

	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(trimmed)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(trimmed)
			if err != nil {
				return nil, wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: invalid base64", op), fmt.Errorf("%w: %w", ErrMalformedInput, err))
			}
		}
	}

	if looksLikeXML(decoded) {
		return decoded, nil
	}

	inflated, err := inflate(decoded)
	if err != nil {
		return nil, wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: not valid XML and deflate-inflate failed", op), err)
	}

	return inflated, nil
}

func looksLikeXML(b []byte) bool {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<"))
}

func inflate(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(r)
}
