package saml

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/go-saml/core/saml/models/core"
)

// nameIDInfo is the extracted Subject/NameID (or decrypted EncryptedID).
type nameIDInfo struct {
	Value           string
	Format          string
	SPNameQualifier string
	NameQualifier   string
}

// subjectConfirmationInfo is one Subject/SubjectConfirmation entry.
type subjectConfirmationInfo struct {
	Method       string
	InResponseTo string
	NotBefore    *time.Time
	NotOnOrAfter *time.Time
	Recipient    string
}

// conditionsInfo is the extracted <Conditions>.
type conditionsInfo struct {
	NotBefore    *time.Time
	NotOnOrAfter *time.Time
	Audiences    []string
}

// authnStatementInfo is the extracted <AuthnStatement>.
type authnStatementInfo struct {
	SessionIndex        string
	SessionNotOnOrAfter *time.Time
}

func parseSAMLTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseSAMLTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := parseSAMLTime(s)
	if err != nil {
		return nil
	}
	return &t
}

// extractNameID prefers an EncryptedID over a plaintext NameID, decrypting
// it first when present, per the parser's documented precedence.
func extractNameID(root *etree.Element, id string, keys []crypto.PrivateKey) (*nameIDInfo, error) {
	encrypted := findElementInScope(root, id, "/Subject/EncryptedID")
	if encrypted != nil {
		el, err := decryptElement(encrypted, encryptedIDKind, keys)
		if err != nil {
			return nil, err
		}
		return nameIDFromElement(el), nil
	}

	plain := findElementInScope(root, id, "/Subject/NameID")
	if plain == nil {
		return nil, nil
	}
	return nameIDFromElement(plain), nil
}

func nameIDFromElement(el *etree.Element) *nameIDInfo {
	return &nameIDInfo{
		Value:           strings.TrimSpace(el.Text()),
		Format:          el.SelectAttrValue("Format", ""),
		SPNameQualifier: el.SelectAttrValue("SPNameQualifier", ""),
		NameQualifier:   el.SelectAttrValue("NameQualifier", ""),
	}
}

func extractAudiences(root *etree.Element, id string) []string {
	els := findElementsInScope(root, id, "/Conditions/AudienceRestriction/Audience")
	out := make([]string, 0, len(els))
	for _, el := range els {
		v := strings.TrimSpace(el.Text())
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func extractConditions(root *etree.Element, id string) *conditionsInfo {
	el := findElementInScope(root, id, "/Conditions")
	if el == nil {
		return nil
	}
	return &conditionsInfo{
		NotBefore:    parseSAMLTimePtr(el.SelectAttrValue("NotBefore", "")),
		NotOnOrAfter: parseSAMLTimePtr(el.SelectAttrValue("NotOnOrAfter", "")),
		Audiences:    extractAudiences(root, id),
	}
}

func extractAuthnStatement(root *etree.Element, id string) *authnStatementInfo {
	el := findElementInScope(root, id, "/AuthnStatement")
	if el == nil {
		return nil
	}
	return &authnStatementInfo{
		SessionIndex:         el.SelectAttrValue("SessionIndex", ""),
		SessionNotOnOrAfter:  parseSAMLTimePtr(el.SelectAttrValue("SessionNotOnOrAfter", "")),
	}
}

func extractSubjectConfirmations(root *etree.Element, id string) []subjectConfirmationInfo {
	els := findElementsInScope(root, id, "/Subject/SubjectConfirmation")
	out := make([]subjectConfirmationInfo, 0, len(els))
	for _, el := range els {
		info := subjectConfirmationInfo{
			Method: el.SelectAttrValue("Method", ""),
		}
		if data := el.FindElement("./SubjectConfirmationData"); data != nil {
			info.InResponseTo = data.SelectAttrValue("InResponseTo", "")
			info.NotBefore = parseSAMLTimePtr(data.SelectAttrValue("NotBefore", ""))
			info.NotOnOrAfter = parseSAMLTimePtr(data.SelectAttrValue("NotOnOrAfter", ""))
			info.Recipient = data.SelectAttrValue("Recipient", "")
		}
		out = append(out, info)
	}
	return out
}

// extractIssuers returns the union of the Response-level and
// Assertion-level <Issuer> texts (each expected to have exactly one).
func extractIssuers(responseEl *etree.Element, id string) ([]string, error) {
	const op = "saml.extractIssuers"

	responseIssuers := responseEl.FindElements("./Issuer")
	if len(responseIssuers) != 1 {
		return nil, wrapValidationErr(ErrorKindProfile, fmt.Sprintf("%s: Response must have exactly one Issuer, found %d", op, len(responseIssuers)), ErrInvalidParameter)
	}

	assertion := assertionInScope(responseEl, id)
	var assertionIssuers []*etree.Element
	if assertion != nil {
		assertionIssuers = assertion.FindElements("./Issuer")
		if len(assertionIssuers) != 1 {
			return nil, wrapValidationErr(ErrorKindProfile, fmt.Sprintf("%s: Assertion must have exactly one Issuer, found %d", op, len(assertionIssuers)), ErrInvalidParameter)
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, el := range append(responseIssuers, assertionIssuers...) {
		v := strings.TrimSpace(el.Text())
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// extractStatusCode concatenates the top-level and any nested StatusCode
// Value attributes with " | " when the response did not succeed.
func extractStatusCode(responseEl *etree.Element) (string, string) {
	status := responseEl.FindElement("./Status")
	if status == nil {
		return "", ""
	}

	msg := ""
	if m := status.FindElement("./StatusMessage"); m != nil {
		msg = strings.TrimSpace(m.Text())
	}

	top := status.FindElement("./StatusCode")
	if top == nil {
		return "", msg
	}

	topValue := top.SelectAttrValue("Value", "")
	if topValue == string(core.StatusCodeSuccess) {
		return topValue, msg
	}

	chain := []string{topValue}
	for _, nested := range top.FindElements("./StatusCode") {
		chain = append(chain, nested.SelectAttrValue("Value", ""))
	}
	return strings.Join(chain, " | "), msg
}

const successStatusCode = string(core.StatusCodeSuccess)

// extractAttributes walks every AttributeStatement/Attribute in the signed
// scope, decrypting EncryptedAttribute nodes as it goes.
func extractAttributes(root *etree.Element, id string, keys []crypto.PrivateKey) (Attributes, error) {
	attrs := Attributes{}

	for _, stmt := range findElementsInScope(root, id, "/AttributeStatement") {
		for _, child := range stmt.ChildElements() {
			switch child.Tag {
			case "Attribute":
				if err := addAttribute(attrs, child); err != nil {
					return nil, err
				}
			case "EncryptedAttribute":
				decrypted, err := decryptElement(child, encryptedAttributeKind, keys)
				if err != nil {
					return nil, err
				}
				if err := addAttribute(attrs, decrypted); err != nil {
					return nil, err
				}
			}
		}
	}

	return attrs, nil
}

func addAttribute(attrs Attributes, attrEl *etree.Element) error {
	name := attrEl.SelectAttrValue("Name", "")
	if name == "" {
		return wrapValidationErr(ErrorKindProfile, "saml.addAttribute: Attribute missing Name", ErrInvalidParameter)
	}

	var values []AttributeValue
	for _, valEl := range attrEl.FindElements("./AttributeValue") {
		values = append(values, attributeValuesFromElement(valEl)...)
	}

	attrs[name] = append(attrs[name], values...)
	return nil
}

// attributeValuesFromElement returns one AttributeValue per <NameID> child
// when present (each formatted as "{NameQualifier}/{text}" when a qualifier
// is set), otherwise the single plain or xsi:nil value the element carries.
func attributeValuesFromElement(valEl *etree.Element) []AttributeValue {
	var nameIDs []*etree.Element
	for _, child := range valEl.ChildElements() {
		if child.Tag == "NameID" {
			nameIDs = append(nameIDs, child)
		}
	}
	if len(nameIDs) > 0 {
		out := make([]AttributeValue, 0, len(nameIDs))
		for _, nid := range nameIDs {
			qualifier := nid.SelectAttrValue("NameQualifier", "")
			text := strings.TrimSpace(nid.Text())
			if qualifier != "" {
				out = append(out, AttributeValue{Value: qualifier + "/" + text})
			} else {
				out = append(out, AttributeValue{Value: text})
			}
		}
		return out
	}

	nilAttr := strings.ToLower(valEl.SelectAttrValue("xsi:nil", ""))
	if nilAttr == "true" || nilAttr == "1" {
		return []AttributeValue{{Nil: true}}
	}

	return []AttributeValue{{Value: valEl.Text()}}
}
