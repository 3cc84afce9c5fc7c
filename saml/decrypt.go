package saml

import (
	"crypto"
	"fmt"
	"regexp"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"
)

// encryptedElementKind names the three element kinds the SAML profile
// allows to be XML-Encrypted. The post-decryption scan matches the
// element by local name only, since real IdPs emit plaintext under a
// variety of prefixes (saml:, saml2:, or none via a default namespace).
type encryptedElementKind struct {
	name       string // e.g. "Assertion"
	closeTag   *regexp.Regexp
	openTag    *regexp.Regexp
	nsDecl     string
	needsXSINS bool
}

// prefixAgnosticTagPatterns builds the open/close tag regexps for a local
// element name, matching an optional "prefix:" and tolerating attributes
// or whitespace before the closing "/>"/">" of the opening tag.
func prefixAgnosticTagPatterns(name string) (open, close *regexp.Regexp) {
	open = regexp.MustCompile(`<(?:[\w.-]+:)?` + name + `(?:[\s/>])`)
	close = regexp.MustCompile(`</(?:[\w.-]+:)?` + name + `\s*>`)
	return open, close
}

var (
	encryptedAssertionKind = newEncryptedElementKind("Assertion", `xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"`, false)
	encryptedIDKind        = newEncryptedElementKind("NameID", `xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"`, false)
	encryptedAttributeKind = newEncryptedElementKind("Attribute", `xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"`, true)
)

func newEncryptedElementKind(name, nsDecl string, needsXSINS bool) encryptedElementKind {
	open, close := prefixAgnosticTagPatterns(name)
	return encryptedElementKind{name: name, openTag: open, closeTag: close, nsDecl: nsDecl, needsXSINS: needsXSINS}
}

// decryptElement decrypts container (an EncryptedAssertion, EncryptedID,
// or EncryptedAttribute element) using the first working key in keys,
// and returns the recovered plaintext element.
func decryptElement(container *etree.Element, kind encryptedElementKind, keys []crypto.PrivateKey) (*etree.Element, error) {
	const op = "saml.decryptElement"

	if len(keys) == 0 {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: %s", op, kind.name), ErrDecryptionKeyMissing)
	}

	encData := container.FindElement("./EncryptedData")
	if encData == nil {
		encData = container.FindElement(".//EncryptedData")
	}
	if encData == nil {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: %s: no EncryptedData child", op, kind.name), ErrDecryptionFailed)
	}

	var lastErr error
	for _, key := range keys {
		plaintext, err := xmlenc.Decrypt(key, encData)
		if err != nil {
			lastErr = err
			continue
		}

		el, err := parseDecryptedFragment(plaintext, kind)
		if err != nil {
			lastErr = err
			continue
		}
		return el, nil
	}

	return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: %s: all sp_decryption_keys failed", op, kind.name), lastErr)
}

// parseDecryptedFragment locates the element's opening/closing tag by
// local name regardless of namespace prefix (tolerating stray
// prefix/suffix bytes some ciphers leave around the plaintext), wraps the
// matched span in a namespace-declaring synthetic parent, and parses the
// result.
func parseDecryptedFragment(plaintext []byte, kind encryptedElementKind) (*etree.Element, error) {
	const op = "saml.parseDecryptedFragment"

	closeLoc := kind.closeTag.FindIndex(plaintext)
	if closeLoc == nil {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: closing tag for %s not found", op, kind.name), ErrMalformedPlaintext)
	}
	end := closeLoc[1]

	openLocs := kind.openTag.FindAllIndex(plaintext[:end], -1)
	if len(openLocs) == 0 {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: opening tag for %s not found", op, kind.name), ErrMalformedPlaintext)
	}
	startIdx := openLocs[len(openLocs)-1][0]

	fragment := plaintext[startIdx:end]

	nsDecl := kind.nsDecl
	if kind.needsXSINS {
		nsDecl += ` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xs="http://www.w3.org/2001/XMLSchema"`
	}

	wrapped := fmt.Sprintf("<decrypted-wrapper %s>%s</decrypted-wrapper>", nsDecl, fragment)

	doc := etree.NewDocument()
	if err := doc.ReadFromString(wrapped); err != nil {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: failed to reparse decrypted fragment", op), err)
	}

	root := doc.Root()
	if root == nil || len(root.ChildElements()) == 0 {
		return nil, wrapValidationErr(ErrorKindEncryption, fmt.Sprintf("%s: decrypted wrapper had no child", op), ErrMalformedPlaintext)
	}

	return root.ChildElements()[0], nil
}

// decryptAssertionInto deep-copies orig, locates its EncryptedAssertion,
// decrypts it, appends the recovered <Assertion> under <Response>, and
// removes the EncryptedAssertion node. Returns nil if orig carries no
// EncryptedAssertion (nothing to decrypt).
func decryptAssertionInto(orig *etree.Document, keys []crypto.PrivateKey) (*etree.Document, error) {
	const op = "saml.decryptAssertionInto"

	encrypted := orig.FindElement("./Response/EncryptedAssertion")
	if encrypted == nil {
		return nil, nil
	}

	assertion, err := decryptElement(encrypted, encryptedAssertionKind, keys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	decrypted := orig.Copy()
	decResponse := decrypted.FindElement("./Response")
	decEncrypted := decrypted.FindElement("./Response/EncryptedAssertion")
	if decResponse == nil || decEncrypted == nil {
		return nil, wrapValidationErr(ErrorKindStructural, fmt.Sprintf("%s: copied document missing EncryptedAssertion", op), ErrInternal)
	}

	decResponse.RemoveChild(decEncrypted)
	decResponse.AddChild(assertion.Copy())

	return decrypted, nil
}
