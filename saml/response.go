package saml

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
)

// Response is a parsed, decrypted SAML Response. It is constructed once
// per IdP callback and is immutable afterwards; all extracted fields are
// computed eagerly inside ParseResponse so that a *Response is safe for
// concurrent reads without locking.
type Response struct {
	settings *Settings
	vctx     *validationContext

	rawPayload string
}

// ParseResponse decodes, decrypts, signature-verifies, and extracts every
// field from a base64-encoded (optionally deflate-compressed) SAML
// Response. It does not itself decide pass/fail — call IsValid or
// Validate on the result to run the validation engine.
func ParseResponse(settings *Settings, rawPayload string, opt ...Option) (*Response, error) {
	const op = "saml.ParseResponse"

	if settings == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidParameter)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts := getParseOptions(opt...)

	decoded, err := decodeRawResponse(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	original := etree.NewDocument()
	if err := original.ReadFromBytes(decoded); err != nil {
		return nil, wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: failed to parse XML", op), err)
	}
	if original.Root() == nil {
		return nil, wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: empty XML document", op), ErrMalformedInput)
	}

	decrypted, decErr := decryptAssertionInto(original, settings.SPDecryptionKeys)

	vctx := &validationContext{
		settings:   settings,
		opts:       opts,
		rawPayload: rawPayload,
		original:   original,
		decrypted:  decrypted,
		now:        currentTime(opts.clock),
	}

	respEl := original.Root()
	vctx.responseID = respEl.SelectAttrValue("ID", "")
	vctx.version = respEl.SelectAttrValue("Version", "")
	vctx.inResponseTo = respEl.SelectAttrValue("InResponseTo", "")
	vctx.destination = respEl.SelectAttrValue("Destination", "")
	vctx.statusCodeChain, vctx.statusMessage = extractStatusCode(respEl)

	vctx.numPlaintextAssertions = len(respEl.FindElements("./Assertion"))
	vctx.numEncryptedAssertions = len(respEl.FindElements("./EncryptedAssertion"))

	signingDoc := original
	if decErr == nil && decrypted != nil {
		signingDoc = resolveSigningDocument(original, decrypted)
	}

	signedRoot, signedID, sigVerification, sigErr := resolveAndVerifySignature(signingDoc, settings)
	vctx.signedRoot = signedRoot
	vctx.signedID = signedID
	vctx.sigCert = sigVerification
	_ = sigErr // surfaced through validateSignature finding sigCert == nil

	if decErr != nil {
		vctx.decrypted = nil
	}

	if vctx.signedRoot != nil {
		nameID, nameErr := extractNameID(vctx.signedRoot, vctx.signedID, settings.SPDecryptionKeys)
		if nameErr == nil {
			vctx.nameID = nameID
		}
		vctx.conditions = extractConditions(vctx.signedRoot, vctx.signedID)
		vctx.authnStmt = extractAuthnStatement(vctx.signedRoot, vctx.signedID)
		vctx.confirmations = extractSubjectConfirmations(vctx.signedRoot, vctx.signedID)
		if issuers, issErr := extractIssuers(vctx.signedRoot, vctx.signedID); issErr == nil {
			vctx.issuers = issuers
		}
		if attrs, attrErr := extractAttributes(vctx.signedRoot, vctx.signedID, settings.SPDecryptionKeys); attrErr == nil {
			vctx.attributes = attrs
		}
	}
	if vctx.attributes == nil {
		vctx.attributes = Attributes{}
	}

	return &Response{
		settings:   settings,
		vctx:       vctx,
		rawPayload: rawPayload,
	}, nil
}

func currentTime(clock clockwork.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

// resolveAndVerifySignature prefers an Assertion-level signature (the
// tighter trust boundary) and falls back to a Response-level one,
// matching the documented selection order. The choice of which element
// is "the" signed scope is structural (which one carries a <Signature>
// child at all) and does not depend on that signature actually
// verifying: a present-but-invalid Assertion signature still fixes the
// signed scope at the Assertion, so later predicates see the intended
// scope and validateSignature is left to report the crypto failure.
func resolveAndVerifySignature(doc *etree.Document, settings *Settings) (*etree.Element, string, *signatureVerification, error) {
	respEl := doc.Root()
	if respEl == nil {
		return nil, "", nil, ErrMalformedInput
	}

	if assertion := respEl.FindElement("./Assertion"); assertion != nil && assertion.FindElement("./Signature") != nil {
		assertionID := assertion.SelectAttrValue("ID", "")
		verification, err := verifySignature(respEl, assertionID, settings)
		return respEl, assertionID, verification, err
	}

	if respEl.FindElement("./Signature") != nil {
		responseID := respEl.SelectAttrValue("ID", "")
		verification, err := verifySignature(respEl, responseID, settings)
		return respEl, responseID, verification, err
	}

	return respEl, "", nil, wrapValidationErr(ErrorKindSignature, "saml.resolveAndVerifySignature: no signature found", ErrMissingSignature)
}

// IsValid runs the validation engine and reports the overall verdict.
// When collectErrors is true every predicate runs; when false the engine
// short-circuits on the first failing predicate.
func (r *Response) IsValid(collectErrors bool) bool {
	valid, _ := runValidation(r.vctx, collectErrors)
	return valid
}

// Valid runs the validation engine using the configured soft/strict
// default: Settings.Soft, overridden per call by WithSoft. Use IsValid
// when the caller wants to pick the mode explicitly instead.
func (r *Response) Valid() bool {
	valid, _ := runValidation(r.vctx, r.vctx.effectiveSoft())
	return valid
}

// Errors runs every predicate in collect mode and returns all failures,
// or nil if the Response is valid. It does not depend on any earlier
// IsValid call.
func (r *Response) Errors() []error {
	_, errs := runValidation(r.vctx, true)
	return errs
}

// Validate is the strict entry point: it returns the first predicate
// failure as a *ValidationError, or nil if the Response is fully valid.
func (r *Response) Validate() error {
	valid, errs := runValidation(r.vctx, false)
	if valid {
		return nil
	}
	if len(errs) == 0 {
		return newValidationErr(ErrorKindProfile, "validation failed")
	}
	return errs[0]
}

func (r *Response) NameID() string {
	if r.vctx.nameID == nil {
		return ""
	}
	return r.vctx.nameID.Value
}

func (r *Response) NameIDFormat() string {
	if r.vctx.nameID == nil {
		return ""
	}
	return r.vctx.nameID.Format
}

func (r *Response) NameIDSPNameQualifier() string {
	if r.vctx.nameID == nil {
		return ""
	}
	return r.vctx.nameID.SPNameQualifier
}

func (r *Response) NameIDNameQualifier() string {
	if r.vctx.nameID == nil {
		return ""
	}
	return r.vctx.nameID.NameQualifier
}

func (r *Response) SessionIndex() string {
	if r.vctx.authnStmt == nil {
		return ""
	}
	return r.vctx.authnStmt.SessionIndex
}

func (r *Response) SessionExpiresAt() *time.Time {
	if r.vctx.authnStmt == nil {
		return nil
	}
	return r.vctx.authnStmt.SessionNotOnOrAfter
}

func (r *Response) Attributes() Attributes {
	return r.vctx.attributes
}

func (r *Response) StatusCode() string {
	return r.vctx.statusCodeChain
}

func (r *Response) StatusMessage() string {
	return r.vctx.statusMessage
}

func (r *Response) Success() bool {
	return r.vctx.statusCodeChain == successStatusCode
}

func (r *Response) NotBefore() *time.Time {
	if r.vctx.conditions == nil {
		return nil
	}
	return r.vctx.conditions.NotBefore
}

func (r *Response) NotOnOrAfter() *time.Time {
	if r.vctx.conditions == nil {
		return nil
	}
	return r.vctx.conditions.NotOnOrAfter
}

func (r *Response) Audiences() []string {
	if r.vctx.conditions == nil {
		return nil
	}
	return r.vctx.conditions.Audiences
}

func (r *Response) Issuers() []string {
	return r.vctx.issuers
}

func (r *Response) InResponseTo() string {
	return r.vctx.inResponseTo
}

func (r *Response) Destination() string {
	return r.vctx.destination
}

func (r *Response) ResponseID() string {
	return r.vctx.responseID
}

func (r *Response) AssertionID() string {
	if r.vctx.signedRoot == nil {
		return ""
	}
	if assertion := assertionInScope(r.vctx.signedRoot, r.vctx.signedID); assertion != nil {
		return assertion.SelectAttrValue("ID", "")
	}
	return ""
}

func (r *Response) AssertionEncrypted() bool {
	return r.vctx.numEncryptedAssertions > 0
}

func (r *Response) Document() *etree.Document {
	return r.vctx.original
}

func (r *Response) DecryptedDocument() *etree.Document {
	return r.vctx.decrypted
}
