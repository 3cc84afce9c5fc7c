package saml

import (
	"crypto/sha1" //nolint:gosec // SHA-1 fingerprints are a supported, caller-opted-in trust mode
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// signatureVerification is the outcome of a successful verify call: which
// certificate validated the signature, so callers can layer expiration
// checks on top without re-deriving it.
type signatureVerification struct {
	validated  *etree.Element
	cert       *x509.Certificate
}

// verifySignature locates the <ds:Signature> whose parent carries
// ID=signedElementID within root, and verifies it against the trust
// anchors configured in settings: a single certificate, a fingerprint, or
// an ordered multi-cert rotation list (tried in order; the first
// candidate to validate wins, matching the "clear accumulated errors on
// first success" rule).
func verifySignature(root *etree.Element, signedElementID string, settings *Settings) (*signatureVerification, error) {
	const op = "saml.verifySignature"

	parent, sig := findSignatureForID(root, signedElementID)
	if parent == nil || sig == nil {
		return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: no signature found for element ID %q", op, signedElementID), ErrMissingSignature)
	}

	if settings.IDPCertFingerprint != "" {
		return verifyByFingerprint(parent, sig, settings)
	}

	candidates := settings.certificateCandidates()
	if len(candidates) == 0 {
		return nil, wrapValidationErr(ErrorKindConfiguration, fmt.Sprintf("%s: no trust anchor configured", op), ErrInvalidParameter)
	}

	var lastErr error
	for _, cert := range candidates {
		store := &dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}}
		ctx := dsig.NewDefaultValidationContext(store)
		validated, err := ctx.Validate(parent)
		if err != nil {
			lastErr = err
			continue
		}
		return &signatureVerification{validated: validated, cert: cert}, nil
	}

	return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: no configured certificate validated the signature", op), lastErr)
}

func verifyByFingerprint(parent *etree.Element, sig *etree.Element, settings *Settings) (*signatureVerification, error) {
	const op = "saml.verifyByFingerprint"

	cert, err := embeddedCertificate(sig)
	if err != nil {
		return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: no embedded certificate in signature KeyInfo", op), err)
	}

	fp, err := fingerprint(cert, settings.IDPCertFingerprintAlgorithm)
	if err != nil {
		return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: unsupported fingerprint algorithm", op), err)
	}

	if !strings.EqualFold(fp, normalizeFingerprint(settings.IDPCertFingerprint)) {
		return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: certificate fingerprint mismatch", op), ErrInvalidSignature)
	}

	store := &dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}}
	ctx := dsig.NewDefaultValidationContext(store)
	validated, err := ctx.Validate(parent)
	if err != nil {
		return nil, wrapValidationErr(ErrorKindSignature, fmt.Sprintf("%s: signature verification failed", op), err)
	}

	return &signatureVerification{validated: validated, cert: cert}, nil
}

// findSignatureForID returns the element carrying ID=id and its direct
// <ds:Signature> child, considering only Response and Assertion as valid
// parents per the signed-elements invariant.
func findSignatureForID(root *etree.Element, id string) (*etree.Element, *etree.Element) {
	if id == "" {
		return nil, nil
	}
	for _, candidate := range append([]*etree.Element{root}, root.FindElements(".//Assertion")...) {
		if candidate.SelectAttrValue("ID", "") != id {
			continue
		}
		sig := candidate.FindElement("./Signature")
		if sig == nil {
			sig = candidate.FindElement(".//[local-name()='Signature']")
		}
		if sig != nil {
			return candidate, sig
		}
	}
	return nil, nil
}

// signatureInfo pairs a <ds:Signature> with its parent element, for the
// signed_elements structural checks (predicate #7).
type signatureInfo struct {
	parent       *etree.Element
	sig          *etree.Element
	parentID     string
	referenceURI string
}

// allSignatures returns every <ds:Signature> found in root whose parent is
// the Response element itself or one of its Assertion children.
func allSignatures(root *etree.Element) []signatureInfo {
	var out []signatureInfo

	candidates := append([]*etree.Element{root}, root.FindElements(".//Assertion")...)
	for _, candidate := range candidates {
		for _, sig := range candidate.FindElements("./Signature") {
			out = append(out, signatureInfo{
				parent:       candidate,
				sig:          sig,
				parentID:     candidate.SelectAttrValue("ID", ""),
				referenceURI: referenceURI(sig),
			})
		}
	}
	return out
}

func referenceURI(sig *etree.Element) string {
	ref := sig.FindElement(".//Reference")
	if ref == nil {
		return ""
	}
	return ref.SelectAttrValue("URI", "")
}

func embeddedCertificate(sig *etree.Element) (*x509.Certificate, error) {
	certEl := sig.FindElement(".//X509Certificate")
	if certEl == nil {
		certEl = sig.FindElement(".//[local-name()='X509Certificate']")
	}
	if certEl == nil {
		return nil, ErrMissingSignature
	}

	raw := strings.Join(strings.Fields(certEl.Text()), "")
	der, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}

	return x509.ParseCertificate(der)
}

func fingerprint(cert *x509.Certificate, algo FingerprintAlgorithm) (string, error) {
	switch algo {
	case FingerprintSHA1, "":
		sum := sha1.Sum(cert.Raw) //nolint:gosec
		return fmt.Sprintf("%x", sum), nil
	case FingerprintSHA256:
		sum := sha256.Sum256(cert.Raw)
		return fmt.Sprintf("%x", sum), nil
	default:
		return "", fmt.Errorf("unsupported fingerprint algorithm %q", algo)
	}
}

func normalizeFingerprint(fp string) string {
	fp = strings.ToLower(fp)
	fp = strings.ReplaceAll(fp, ":", "")
	fp = strings.ReplaceAll(fp, " ", "")
	return fp
}
