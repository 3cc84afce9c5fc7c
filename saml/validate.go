package saml

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/go-saml/core/saml/models/core"
	"github.com/hashicorp/go-multierror"
)

// validationContext carries everything a predicate needs: the parsed
// fields already extracted by response.go, plus settings/options.
type validationContext struct {
	settings *Settings
	opts     parseOptions

	rawPayload string

	original  *etree.Document
	decrypted *etree.Document

	signedRoot *etree.Element
	signedID   string
	sigCert    *signatureVerification

	responseID     string
	version        string
	inResponseTo   string
	destination    string
	statusCodeChain string
	statusMessage   string

	numPlaintextAssertions int
	numEncryptedAssertions int

	nameID        *nameIDInfo
	conditions    *conditionsInfo
	authnStmt     *authnStatementInfo
	confirmations []subjectConfirmationInfo
	issuers       []string
	attributes    Attributes

	now time.Time
}

// effectiveSoft resolves the soft/strict mode for a call that doesn't name
// one explicitly: a per-call WithSoft override wins, otherwise the
// configured Settings.Soft default applies.
func (vctx *validationContext) effectiveSoft() bool {
	if vctx.opts.softOverride != nil {
		return *vctx.opts.softOverride
	}
	return vctx.settings.Soft
}

type predicate func(*validationContext) error

var predicates = []predicate{
	validateResponseState,
	validateVersion,
	validateID,
	validateSuccessStatus,
	validateNumAssertions,
	validateNoDuplicatedAttributes,
	validateSignedElements,
	validateStructure,
	validateInResponseTo,
	validateOneConditions,
	validateConditions,
	validateOneAuthnStatement,
	validateAudience,
	validateDestination,
	validateIssuer,
	validateSessionExpiration,
	validateSubjectConfirmation,
	validateNameID,
	validateSignature,
}

// runValidation runs every predicate in order. In collect mode every
// predicate is evaluated and failures accumulated; in short-circuit mode
// the first failure aborts the run.
func runValidation(vctx *validationContext, collectErrors bool) (bool, []error) {
	var merr *multierror.Error

	for _, p := range predicates {
		if err := p(vctx); err != nil {
			merr = multierror.Append(merr, err)
			if !collectErrors {
				break
			}
		}
	}

	if merr == nil {
		return true, nil
	}
	return false, merr.Errors
}

func validateResponseState(vctx *validationContext) error {
	const op = "saml.validateResponseState"
	if vctx.rawPayload == "" {
		return wrapValidationErr(ErrorKindMalformedInput, fmt.Sprintf("%s: empty payload", op), ErrMalformedInput)
	}
	if vctx.settings == nil {
		return wrapValidationErr(ErrorKindConfiguration, fmt.Sprintf("%s: no settings provided", op), ErrInvalidParameter)
	}
	if !vctx.settings.hasTrustAnchor() {
		return wrapValidationErr(ErrorKindConfiguration, fmt.Sprintf("%s: no trust anchor configured", op), ErrInvalidParameter)
	}
	return nil
}

func validateVersion(vctx *validationContext) error {
	const op = "saml.validateVersion"
	if vctx.version != "2.0" {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: unsupported SAML version %q, expected 2.0", op, vctx.version), ErrInvalidParameter)
	}
	return nil
}

func validateID(vctx *validationContext) error {
	const op = "saml.validateID"
	if vctx.responseID == "" {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: Response has no ID attribute", op), ErrInvalidParameter)
	}
	return nil
}

func validateSuccessStatus(vctx *validationContext) error {
	const op = "saml.validateSuccessStatus"
	if vctx.statusCodeChain == successStatusCode {
		return nil
	}
	return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
		"%s: Response status is not Success: %s (%s)", op, vctx.statusCodeChain, vctx.statusMessage,
	), ErrInvalidParameter)
}

func validateNumAssertions(vctx *validationContext) error {
	const op = "saml.validateNumAssertions"

	total := vctx.numPlaintextAssertions + vctx.numEncryptedAssertions
	if total != 1 {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf(
			"%s: expected exactly 1 assertion in original Response, found %d", op, total,
		), ErrTooManyAssertions)
	}

	if vctx.decrypted != nil {
		decCount := len(vctx.decrypted.FindElements("./Response/Assertion"))
		if decCount != 1 {
			return wrapValidationErr(ErrorKindStructural, fmt.Sprintf(
				"%s: expected exactly 1 plaintext assertion after decrypt, found %d", op, decCount,
			), ErrTooManyAssertions)
		}
	}
	return nil
}

func validateNoDuplicatedAttributes(vctx *validationContext) error {
	const op = "saml.validateNoDuplicatedAttributes"
	if !vctx.opts.checkDuplicatedAttributes {
		return nil
	}

	seen := map[string]int{}
	for name := range vctx.attributes {
		seen[name]++
	}
	// attributes map already merges all values for one Name; duplication
	// is detected by re-walking the raw AttributeStatement elements.
	for _, stmt := range findElementsInScope(vctx.signedRoot, vctx.signedID, "/AttributeStatement") {
		counts := map[string]int{}
		for _, attrEl := range stmt.FindElements("./Attribute") {
			counts[attrEl.SelectAttrValue("Name", "")]++
		}
		for name, count := range counts {
			if count > 1 {
				return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
					"%s: duplicated attribute name %q", op, name,
				), ErrInvalidParameter)
			}
		}
	}
	return nil
}

func validateSignedElements(vctx *validationContext) error {
	const op = "saml.validateSignedElements"

	sigs := allSignatures(vctx.signedRoot)
	if len(sigs) == 0 {
		return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: no signature found", op), ErrMissingSignature)
	}
	if len(sigs) > 2 {
		return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: found %d signatures, expected 1 or 2", op, len(sigs)), ErrInvalidSignature)
	}

	seenIDs := map[string]bool{}
	seenURIs := map[string]bool{}
	assertionSigned := false

	for _, s := range sigs {
		if s.parentID == "" {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: signature parent has no ID", op), ErrInvalidSignature)
		}
		if s.referenceURI == "" || !strings.HasPrefix(s.referenceURI, "#") {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: reference URI %q is empty or not a same-document reference", op, s.referenceURI), ErrInvalidSignature)
		}
		if strings.TrimPrefix(s.referenceURI, "#") != s.parentID {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf(
				"%s: reference URI %q does not match parent ID %q", op, s.referenceURI, s.parentID,
			), ErrInvalidSignature)
		}
		if seenIDs[s.parentID] {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: duplicate signed element ID %q", op, s.parentID), ErrInvalidSignature)
		}
		seenIDs[s.parentID] = true
		if seenURIs[s.referenceURI] {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: duplicate reference URI %q", op, s.referenceURI), ErrInvalidSignature)
		}
		seenURIs[s.referenceURI] = true

		if s.parent.Tag == "Assertion" {
			assertionSigned = true
		} else if s.parent.Tag != "Response" {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: signature parent %q is neither Response nor Assertion", op, s.parent.Tag), ErrInvalidSignature)
		}
	}

	if vctx.settings.WantAssertionsSigned && !assertionSigned {
		return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: want_assertions_signed is set but no Assertion-level signature found", op), ErrMissingSignature)
	}

	return nil
}

// validateStructure is the structural/XSD check. No pure-Go SAML-schema
// validator exists anywhere in the corpus (goxmldsig and etree are DOM
// and signature libraries, not schema validators), so this predicate does
// the minimal structural checks a hand-rolled validator can reasonably
// make: Response is the document root and carries the protocol
// namespace. Deeper XSD conformance is left to the dedicated predicates
// above and below, each of which already enforces the specific shape it
// depends on.
func validateStructure(vctx *validationContext) error {
	const op = "saml.validateStructure"

	if vctx.original.Root() == nil || vctx.original.Root().Tag != "Response" {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: root element is not Response", op), ErrInvalidParameter)
	}
	const protocolNS = "urn:oasis:names:tc:SAML:2.0:protocol"
	if ns := vctx.original.Root().NamespaceURI(); ns != protocolNS {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: root element namespace %q is not %s", op, ns, protocolNS), ErrInvalidParameter)
	}
	if vctx.decrypted != nil && (vctx.decrypted.Root() == nil || vctx.decrypted.Root().Tag != "Response") {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: decrypted root element is not Response", op), ErrInvalidParameter)
	}
	return nil
}

func validateInResponseTo(vctx *validationContext) error {
	const op = "saml.validateInResponseTo"
	if vctx.opts.matchesRequestID == nil {
		return nil
	}
	if vctx.inResponseTo != *vctx.opts.matchesRequestID {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
			"%s: InResponseTo (%s) doesn't match the expected request ID (%s)", op, vctx.inResponseTo, *vctx.opts.matchesRequestID,
		), ErrInvalidParameter)
	}
	return nil
}

func validateOneConditions(vctx *validationContext) error {
	const op = "saml.validateOneConditions"
	if vctx.opts.skipConditionsValidation {
		return nil
	}
	count := len(findElementsInScope(vctx.signedRoot, vctx.signedID, "/Conditions"))
	if count != 1 {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: expected exactly one Conditions element, found %d", op, count), ErrInvalidParameter)
	}
	return nil
}

func validateConditions(vctx *validationContext) error {
	const op = "saml.validateConditions"
	if vctx.opts.skipConditionsValidation || vctx.conditions == nil {
		return nil
	}

	drift := effectiveDrift(vctx.opts.allowedClockDrift)
	driftDur := time.Duration(drift * float64(time.Second))

	if vctx.conditions.NotBefore != nil && vctx.now.Before(vctx.conditions.NotBefore.Add(-driftDur)) {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
			"%s: Current time is before NotBefore condition (%s)", op, vctx.conditions.NotBefore,
		), ErrInvalidTime)
	}
	if vctx.conditions.NotOnOrAfter != nil && !vctx.now.Before(vctx.conditions.NotOnOrAfter.Add(driftDur)) {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
			"%s: Current time is on or after NotOnOrAfter condition (%s)", op, vctx.conditions.NotOnOrAfter,
		), ErrInvalidTime)
	}
	return nil
}

func validateOneAuthnStatement(vctx *validationContext) error {
	const op = "saml.validateOneAuthnStatement"
	if vctx.opts.skipAuthnStatementValidation {
		return nil
	}
	count := len(findElementsInScope(vctx.signedRoot, vctx.signedID, "/AuthnStatement"))
	if count != 1 {
		return wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: expected exactly one AuthnStatement, found %d", op, count), ErrInvalidParameter)
	}
	return nil
}

func validateAudience(vctx *validationContext) error {
	const op = "saml.validateAudience"
	if vctx.opts.skipAudienceValidation || vctx.settings.SPEntityID == "" {
		return nil
	}

	audiences := vctx.conditions.audiencesOrEmpty()
	if len(audiences) == 0 {
		if vctx.settings.StrictAudienceValidation {
			return wrapValidationErr(ErrorKindProfile, fmt.Sprintf("%s: no audiences present and strict_audience_validation is set", op), ErrInvalidAudience)
		}
		return nil
	}

	for _, a := range audiences {
		if uriEquivalent(a, vctx.settings.SPEntityID) {
			return nil
		}
	}

	return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
		"Invalid Audiences. The audiences %s did not match the expected audience %s",
		strings.Join(audiences, ","), vctx.settings.SPEntityID,
	), ErrInvalidAudience)
}

func (c *conditionsInfo) audiencesOrEmpty() []string {
	if c == nil {
		return nil
	}
	return c.Audiences
}

func validateDestination(vctx *validationContext) error {
	const op = "saml.validateDestination"
	if vctx.opts.skipDestinationValidation {
		return nil
	}
	if vctx.destination == "" {
		// absence of a Destination attribute is silently accepted; see
		// DESIGN.md for the rationale behind keeping this behavior.
		return nil
	}
	if vctx.settings.AssertionConsumerServiceURL != "" && !uriEquivalent(vctx.destination, vctx.settings.AssertionConsumerServiceURL) {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
			"%s: Unrecognized Destination value, Expected: %s, Actual: %s", op, vctx.settings.AssertionConsumerServiceURL, vctx.destination,
		), ErrInvalidParameter)
	}
	return nil
}

func validateIssuer(vctx *validationContext) error {
	const op = "saml.validateIssuer"
	if vctx.settings.IDPEntityID == "" {
		return nil
	}
	for _, iss := range vctx.issuers {
		if !uriEquivalent(iss, vctx.settings.IDPEntityID) {
			return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
				"%s: Issuer %q does not match configured idp_entity_id %q", op, iss, vctx.settings.IDPEntityID,
			), ErrInvalidParameter)
		}
	}
	return nil
}

func validateSessionExpiration(vctx *validationContext) error {
	const op = "saml.validateSessionExpiration"
	if vctx.authnStmt == nil || vctx.authnStmt.SessionNotOnOrAfter == nil {
		return nil
	}

	drift := effectiveDrift(vctx.opts.allowedClockDrift)
	driftDur := time.Duration(drift * float64(time.Second))

	if !vctx.now.Before(vctx.authnStmt.SessionNotOnOrAfter.Add(driftDur)) {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
			"%s: session expired at %s", op, vctx.authnStmt.SessionNotOnOrAfter,
		), ErrInvalidTime)
	}
	return nil
}

func validateSubjectConfirmation(vctx *validationContext) error {
	const op = "saml.validateSubjectConfirmation"
	if vctx.opts.skipSubjectConfirmationValidation {
		return nil
	}

	drift := effectiveDrift(vctx.opts.allowedClockDrift)
	driftDur := time.Duration(drift * float64(time.Second))

	for _, c := range vctx.confirmations {
		if c.Method != "" && c.Method != string(core.ConfirmationMethodBearer) {
			continue
		}

		if c.InResponseTo != "" && c.InResponseTo != vctx.inResponseTo {
			continue
		}
		if c.NotBefore != nil && vctx.now.Before(c.NotBefore.Add(-driftDur)) {
			continue
		}
		if c.NotOnOrAfter != nil && !vctx.now.Before(c.NotOnOrAfter.Add(driftDur)) {
			continue
		}
		if !vctx.opts.skipRecipientCheck && c.Recipient != "" && !uriEquivalent(c.Recipient, vctx.settings.AssertionConsumerServiceURL) {
			continue
		}

		return nil
	}

	return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
		"%s: no valid bearer SubjectConfirmation found", op,
	), ErrInvalidParameter)
}

func validateNameID(vctx *validationContext) error {
	const op = "saml.validateNameID"
	if vctx.nameID == nil {
		if vctx.settings.WantNameID {
			return wrapValidationErr(ErrorKindProfile, fmt.Sprintf("%s: want_name_id is set but no NameID present", op), ErrMissingSubject)
		}
		return nil
	}

	if vctx.nameID.Value == "" {
		return wrapValidationErr(ErrorKindProfile, fmt.Sprintf("%s: NameID is present but empty", op), ErrMissingSubject)
	}

	if vctx.nameID.SPNameQualifier != "" && vctx.settings.SPEntityID != "" {
		if vctx.nameID.SPNameQualifier != vctx.settings.SPEntityID {
			return wrapValidationErr(ErrorKindProfile, fmt.Sprintf(
				"%s: NameID SPNameQualifier %q does not match sp_entity_id %q", op, vctx.nameID.SPNameQualifier, vctx.settings.SPEntityID,
			), ErrInvalidParameter)
		}
	}
	return nil
}

func validateSignature(vctx *validationContext) error {
	const op = "saml.validateSignature"

	if vctx.sigCert == nil {
		return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: Invalid Signature on SAML Response", op), ErrInvalidSignature)
	}

	if vctx.settings.CheckIDPCertExpiration {
		if vctx.now.Before(vctx.sigCert.cert.NotBefore) || vctx.now.After(vctx.sigCert.cert.NotAfter) {
			return wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: idp certificate expired or not yet valid", op), ErrCertExpired)
		}
	}
	return nil
}
