package saml

import "errors"

// ErrorKind classifies a validation failure into one of the abstract
// categories a caller can reasonably branch on, without binding callers
// to the specific predicate that produced it.
type ErrorKind string

const (
	ErrorKindMalformedInput ErrorKind = "malformed_input"
	ErrorKindStructural     ErrorKind = "structural"
	ErrorKindSignature      ErrorKind = "signature"
	ErrorKindEncryption     ErrorKind = "encryption"
	ErrorKindProfile        ErrorKind = "profile"
	ErrorKindConfiguration  ErrorKind = "configuration"
)

// ValidationError is the strict-mode failure type returned by
// Response.Validate. Message is the fixed, human-readable template
// filled in with the offending values; Err, if set, is the underlying
// cause (e.g. an x509 or xml parse error) available via errors.Unwrap.
type ValidationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationErr(kind ErrorKind, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Message: msg}
}

func wrapValidationErr(kind ErrorKind, msg string, err error) *ValidationError {
	return &ValidationError{Kind: kind, Message: msg, Err: err}
}

var (
	ErrInternal         = errors.New("internal error")
	ErrInvalidParameter = errors.New("invalid parameter")

	ErrMalformedInput     = errors.New("malformed input")
	ErrMissingAssertion   = errors.New("missing assertion")
	ErrTooManyAssertions  = errors.New("too many assertions")
	ErrMissingSubject     = errors.New("subject missing")
	ErrMissingAttrStmt    = errors.New("attribute statement missing")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMissingSignature   = errors.New("missing signature")
	ErrCertExpired        = errors.New("idp certificate expired")
	ErrDecryptionKeyMissing = errors.New("no sp decryption key configured")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrMalformedPlaintext = errors.New("malformed decrypted plaintext")
	ErrInvalidTime        = errors.New("invalid time")
	ErrInvalidAudience    = errors.New("invalid audience")
)
