package saml

import "github.com/beevik/etree"

// resolveSigningDocument picks which of original/decrypted carries the
// signature that should be verified, per the documented behavior: "the
// signature is verified on the original document when a Response-level
// signature exists; otherwise on the decrypted document." A
// Response-level signature is detected with a direct XPath on the
// original document, matching the source's own selection order.
func resolveSigningDocument(original, decrypted *etree.Document) *etree.Document {
	if original.FindElement("./Response/Signature") != nil {
		return original
	}
	if decrypted != nil {
		return decrypted
	}
	return original
}

// findElementInScope tries both signed-scope XPath patterns and returns
// the first element matched; nil if neither hits.
func findElementInScope(root *etree.Element, id string, sub string) *etree.Element {
	if el := root.FindElement("./Assertion[@ID='" + id + "']" + sub); el != nil {
		return el
	}
	if root.SelectAttrValue("ID", "") == id {
		if el := root.FindElement("./Assertion" + sub); el != nil {
			return el
		}
	}
	return nil
}

// findElementsInScope is the list-returning counterpart of
// findElementInScope, used for repeated elements like <Audience>.
func findElementsInScope(root *etree.Element, id string, sub string) []*etree.Element {
	if els := root.FindElements("./Assertion[@ID='" + id + "']" + sub); len(els) > 0 {
		return els
	}
	if root.SelectAttrValue("ID", "") == id {
		if els := root.FindElements("./Assertion" + sub); len(els) > 0 {
			return els
		}
	}
	return nil
}

// assertionInScope returns the single Assertion element reachable from
// root under the signed scope rules, regardless of which pattern applies.
func assertionInScope(root *etree.Element, id string) *etree.Element {
	if el := root.FindElement("./Assertion[@ID='" + id + "']"); el != nil {
		return el
	}
	if root.SelectAttrValue("ID", "") == id {
		return root.FindElement("./Assertion")
	}
	return nil
}
