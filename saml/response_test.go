package saml_test

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-saml/core/saml"
	samltest "github.com/go-saml/core/saml/test"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSPEntityID  = "https://sp.example.com/metadata"
	testACSURL      = "https://sp.example.com/acs"
	testIDPEntityID = "https://idp.example.com/metadata"
)

// assertionFields is every value the fixture builders below let a test
// override; zero values fall back to a baseline happy-path assertion.
type assertionFields struct {
	id           string
	issueInstant string
	issuer       string

	nameID       string
	nameIDFormat string

	inResponseTo string
	notBefore    string
	notOnOrAfter string
	recipient    string

	audience string

	sessionIndex string
	sessionEnd   string

	attributesXML string
}

func defaultAssertionFields() assertionFields {
	return assertionFields{
		id:           "_assertion-id-1",
		issueInstant: "2024-01-01T00:00:00Z",
		issuer:       testIDPEntityID,
		nameID:       "someone@example.com",
		nameIDFormat: "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress",
		inResponseTo: "_request-id-1",
		notBefore:    "2023-12-31T23:59:00Z",
		notOnOrAfter: "2024-01-01T01:00:00Z",
		recipient:    testACSURL,
		audience:     testSPEntityID,
		sessionIndex: "_session-1",
		sessionEnd:   "2024-01-01T01:00:00Z",
		attributesXML: `<saml:Attribute Name="email"><saml:AttributeValue>someone@example.com</saml:AttributeValue></saml:Attribute>`,
	}
}

// buildAssertionXML renders a standalone, signable <saml:Assertion> fragment.
func buildAssertionXML(f assertionFields) string {
	return `<saml:Assertion xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ID="` + f.id + `" Version="2.0" IssueInstant="` + f.issueInstant + `">` +
		`<saml:Issuer>` + f.issuer + `</saml:Issuer>` +
		`<saml:Subject>` +
		`<saml:NameID Format="` + f.nameIDFormat + `">` + f.nameID + `</saml:NameID>` +
		`<saml:SubjectConfirmation Method="urn:oasis:names:tc:SAML:2.0:cm:bearer">` +
		`<saml:SubjectConfirmationData InResponseTo="` + f.inResponseTo + `" NotBefore="` + f.notBefore + `" NotOnOrAfter="` + f.notOnOrAfter + `" Recipient="` + f.recipient + `"/>` +
		`</saml:SubjectConfirmation>` +
		`</saml:Subject>` +
		`<saml:Conditions NotBefore="` + f.notBefore + `" NotOnOrAfter="` + f.notOnOrAfter + `">` +
		`<saml:AudienceRestriction><saml:Audience>` + f.audience + `</saml:Audience></saml:AudienceRestriction>` +
		`</saml:Conditions>` +
		`<saml:AuthnStatement AuthnInstant="` + f.issueInstant + `" SessionIndex="` + f.sessionIndex + `" SessionNotOnOrAfter="` + f.sessionEnd + `">` +
		`<saml:AuthnContext><saml:AuthnContextClassRef>urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport</saml:AuthnContextClassRef></saml:AuthnContext>` +
		`</saml:AuthnStatement>` +
		`<saml:AttributeStatement>` + f.attributesXML + `</saml:AttributeStatement>` +
		`</saml:Assertion>`
}

// buildResponseXML wraps assertionXML (already signed, or not) in an
// enclosing <samlp:Response>.
func buildResponseXML(responseID, inResponseTo, issueInstant, issuer, assertionXML string) string {
	return `<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ` +
		`ID="` + responseID + `" Version="2.0" IssueInstant="` + issueInstant + `" Destination="` + testACSURL + `" InResponseTo="` + inResponseTo + `">` +
		`<saml:Issuer>` + issuer + `</saml:Issuer>` +
		`<samlp:Status><samlp:StatusCode Value="urn:oasis:names:tc:SAML:2.0:status:Success"/></samlp:Status>` +
		assertionXML +
		`</samlp:Response>`
}

func encodeResponse(xml string) string {
	return base64.StdEncoding.EncodeToString([]byte(xml))
}

func fakeClockAt(instant string) clockwork.Clock {
	t, err := time.Parse(time.RFC3339, instant)
	if err != nil {
		panic(err)
	}
	return clockwork.NewFakeClockAt(t)
}

func happyPathSettings(t *testing.T, kp *samltest.KeyPair) *saml.Settings {
	t.Helper()
	s, err := saml.NewSettings(testSPEntityID, testACSURL, testIDPEntityID)
	require.NoError(t, err)
	s.IDPCert = kp.Cert
	return s
}

// signedHappyPathResponse builds a Response whose Assertion alone carries
// the XML-DSig signature, matching the IdP's usual signing choice.
func signedHappyPathResponse(t *testing.T, kp *samltest.KeyPair, mutate func(*assertionFields)) (string, assertionFields) {
	t.Helper()

	fields := defaultAssertionFields()
	if mutate != nil {
		mutate(&fields)
	}

	signedAssertion := samltest.SignXML(t, buildAssertionXML(fields), kp)
	raw := buildResponseXML("_response-id-1", fields.inResponseTo, fields.issueInstant, fields.issuer, signedAssertion)
	return raw, fields
}

func TestParseResponse_HappyPath(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, nil)
	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)
	require.NotNil(res)

	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
	assert.NoError(res.Validate())
	assert.True(res.Success())
	assert.Equal(fields.nameID, res.NameID())
	assert.Equal(fields.nameIDFormat, res.NameIDFormat())
	assert.Equal("someone@example.com", res.Attributes().Get("email"))
	assert.Equal([]string{testSPEntityID}, res.Audiences())
	assert.Equal([]string{testIDPEntityID}, res.Issuers())
	assert.Equal(fields.inResponseTo, res.InResponseTo())
	assert.Equal(testACSURL, res.Destination())
	assert.False(res.AssertionEncrypted())
}

func TestParseResponse_EncryptedAssertion(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	signingKP := samltest.GenerateKeyPair(t)
	encryptionKP := samltest.GenerateKeyPair(t)

	fields := defaultAssertionFields()
	signedAssertion := samltest.SignXML(t, buildAssertionXML(fields), signingKP)
	encryptedAssertion := samltest.EncryptAssertionXML(t, signedAssertion, encryptionKP)
	raw := buildResponseXML("_response-id-2", fields.inResponseTo, fields.issueInstant, fields.issuer, encryptedAssertion)

	settings := happyPathSettings(t, signingKP)
	settings.SPDecryptionKeys = []crypto.PrivateKey{encryptionKP.PrivateKey}

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
	assert.True(res.AssertionEncrypted())
	assert.Equal(fields.nameID, res.NameID())
}

func TestParseResponse_MultiCertRotation(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	retired := samltest.GenerateKeyPair(t)
	active := samltest.GenerateKeyPair(t)

	raw, fields := signedHappyPathResponse(t, active, nil)

	settings, err := saml.NewSettings(testSPEntityID, testACSURL, testIDPEntityID)
	require.NoError(err)
	settings.IDPCertMulti = map[string][]*x509.Certificate{
		"signing": {retired.Cert, active.Cert},
	}

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)
	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
}

func TestParseResponse_FingerprintTrust(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, nil)

	settings, err := saml.NewSettings(testSPEntityID, testACSURL, testIDPEntityID)
	require.NoError(err)
	settings.IDPCertFingerprintAlgorithm = saml.FingerprintSHA256
	settings.IDPCertFingerprint = fmt.Sprintf("%x", sha256.Sum256(kp.Cert.Raw))

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)
	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
}

func TestParseResponse_ExpiredConditions(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, nil)
	settings := happyPathSettings(t, kp)

	farFuture, err := time.Parse(time.RFC3339, fields.notOnOrAfter)
	require.NoError(err)

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(clockwork.NewFakeClockAt(farFuture.Add(time.Hour))))
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.ErrorIs(res.Validate(), saml.ErrInvalidTime)
}

func TestParseResponse_AudienceMismatch(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, func(f *assertionFields) {
		f.audience = "https://someone-else.example.com"
	})
	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.ErrorIs(res.Validate(), saml.ErrInvalidAudience)
}

func TestParseResponse_InResponseToMismatch(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, nil)
	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(
		settings,
		encodeResponse(raw),
		saml.WithClock(fakeClockAt(fields.issueInstant)),
		saml.WithMatchesRequestID("_some-other-request-id"),
	)
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.Error(res.Validate())
}

func TestParseResponse_TamperedSignatureRejected(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, nil)

	tampered := strings.Replace(raw, "someone@example.com", "attacker@example.com", 1)

	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(tampered), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.ErrorIs(res.Validate(), saml.ErrInvalidSignature)
}

// duplicateSignatureBlock finds the first <ds:Signature>...</ds:Signature>
// span in xmlStr and inserts a byte-identical copy right after it, so its
// parent ends up carrying two Signature children instead of one.
func duplicateSignatureBlock(t *testing.T, xmlStr string) string {
	t.Helper()
	re := regexp.MustCompile(`(?s)<ds:Signature.*?</ds:Signature>`)
	loc := re.FindStringIndex(xmlStr)
	require.NotNil(t, loc, "no ds:Signature block found in %q", xmlStr)
	block := xmlStr[loc[0]:loc[1]]
	return xmlStr[:loc[1]] + block + xmlStr[loc[1]:]
}

func TestParseResponse_ThreeSignaturesRejected(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	fields := defaultAssertionFields()

	signedAssertion := samltest.SignXML(t, buildAssertionXML(fields), kp)
	// Assertion now carries two Signature children under the same parent.
	doublySignedAssertion := duplicateSignatureBlock(t, signedAssertion)

	unsignedResponse := buildResponseXML("_response-id-3sig", fields.inResponseTo, fields.issueInstant, fields.issuer, doublySignedAssertion)
	// Signing the whole Response adds a third Signature, at the Response level.
	fullySigned := samltest.SignXML(t, unsignedResponse, kp)

	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(fullySigned), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.ErrorIs(res.Validate(), saml.ErrInvalidSignature)
}

func TestParseResponse_EmptyAudienceStrict(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	// An empty <saml:Audience/> text is dropped entirely by audience
	// extraction, leaving Conditions with zero audiences.
	raw, fields := signedHappyPathResponse(t, kp, func(f *assertionFields) {
		f.audience = ""
	})

	settings := happyPathSettings(t, kp)
	settings.StrictAudienceValidation = true

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.False(res.IsValid(true))
	assert.ErrorIs(res.Validate(), saml.ErrInvalidAudience)
}

func TestParseResponse_MultiValuedNameIDAttribute(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, func(f *assertionFields) {
		f.attributesXML = `<saml:Attribute Name="groups">` +
			`<saml:AttributeValue><saml:NameID NameQualifier="idp1">admins</saml:NameID><saml:NameID NameQualifier="idp2">viewers</saml:NameID></saml:AttributeValue>` +
			`</saml:Attribute>`
	})
	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
	assert.Equal([]string{"idp1/admins", "idp2/viewers"}, res.Attributes().GetAll("groups"))
}

func TestParseResponse_EncryptedAssertionPrefixAgnostic(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	signingKP := samltest.GenerateKeyPair(t)
	encryptionKP := samltest.GenerateKeyPair(t)

	fields := defaultAssertionFields()
	assertionXML := buildAssertionXML(fields)
	// Re-prefix the Assertion element itself as "saml2:" (as OpenSAML-based
	// IdPs commonly do), while its children keep declaring/using "saml:".
	assertionXML = strings.Replace(assertionXML,
		`<saml:Assertion xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"`,
		`<saml2:Assertion xmlns:saml2="urn:oasis:names:tc:SAML:2.0:assertion" xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"`,
		1)
	assertionXML = strings.Replace(assertionXML, `</saml:Assertion>`, `</saml2:Assertion>`, 1)

	signedAssertion := samltest.SignXML(t, assertionXML, signingKP)
	encryptedAssertion := samltest.EncryptAssertionXML(t, signedAssertion, encryptionKP)
	raw := buildResponseXML("_response-id-prefix", fields.inResponseTo, fields.issueInstant, fields.issuer, encryptedAssertion)

	settings := happyPathSettings(t, signingKP)
	settings.SPDecryptionKeys = []crypto.PrivateKey{encryptionKP.PrivateKey}

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
	assert.Equal(fields.nameID, res.NameID())
}

func TestParseResponse_XSINilAttributeValue(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	kp := samltest.GenerateKeyPair(t)
	raw, fields := signedHappyPathResponse(t, kp, func(f *assertionFields) {
		f.attributesXML = `<saml:Attribute Name="middleName" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><saml:AttributeValue xsi:nil="true"/></saml:Attribute>`
	})
	settings := happyPathSettings(t, kp)

	res, err := saml.ParseResponse(settings, encodeResponse(raw), saml.WithClock(fakeClockAt(fields.issueInstant)))
	require.NoError(err)

	assert.True(res.IsValid(true), "IsValid(true) errors: %v", res.Errors())
	assert.Equal("", res.Attributes().Get("middleName"))
	assert.Empty(res.Attributes().GetAll("middleName"))
}
