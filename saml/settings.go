package saml

import (
	"crypto"
	"crypto/x509"
	"fmt"
)

// FingerprintAlgorithm names the hash algorithm used to compare a
// configured certificate fingerprint against the certificate embedded in
// an incoming signature's KeyInfo.
type FingerprintAlgorithm string

const (
	FingerprintSHA1   FingerprintAlgorithm = "sha1"
	FingerprintSHA256 FingerprintAlgorithm = "sha256"
)

// Settings is the read-only Service Provider configuration consumed by
// the validation engine. The core never mutates a Settings value.
type Settings struct {
	// SPEntityID is this Service Provider's globally unique identifier,
	// checked against the Response's audience restriction. (required)
	SPEntityID string

	// AssertionConsumerServiceURL is the endpoint the IDP redirects the
	// Response to; checked against Response.Destination. (required)
	AssertionConsumerServiceURL string

	// IDPEntityID, if set, every collected Issuer must URI-match.
	IDPEntityID string

	// IDPCert is a single trusted IDP signing certificate.
	IDPCert *x509.Certificate

	// IDPCertFingerprint, together with IDPCertFingerprintAlgorithm, trusts
	// whichever certificate is embedded in the signature's KeyInfo as long
	// as it hashes to this fingerprint.
	IDPCertFingerprint          string
	IDPCertFingerprintAlgorithm FingerprintAlgorithm

	// IDPCertMulti supports certificate rotation: an ordered list of
	// candidate signing certificates, keyed the way the source system
	// keys them (only "signing" is meaningful for Response validation).
	IDPCertMulti map[string][]*x509.Certificate

	// SPDecryptionKeys are tried, in order, against EncryptedAssertion,
	// EncryptedID, and EncryptedAttribute nodes.
	SPDecryptionKeys []crypto.PrivateKey

	// WantAssertionsSigned requires at least one <ds:Signature> to be
	// rooted at the Assertion (not just the Response).
	WantAssertionsSigned bool

	// WantNameID requires a NameID to be present in the Subject.
	WantNameID bool

	// CheckIDPCertExpiration rejects an otherwise-valid signature whose
	// winning certificate is expired.
	CheckIDPCertExpiration bool

	// StrictAudienceValidation rejects a Response with no Audience
	// elements at all, rather than treating an empty list as a pass.
	StrictAudienceValidation bool

	// Soft selects the validation mode used by Response.Valid: true
	// evaluates every predicate, false stops at the first failing one.
	// Individual calls may still override this with WithSoft.
	Soft bool
}

// NewSettings returns a Settings value with its required identity fields
// set. The caller must still assign a trust anchor (IDPCert,
// IDPCertFingerprint, or IDPCertMulti) before use; Validate, called
// internally by NewServiceProvider and ParseResponse, checks for one.
func NewSettings(
	spEntityID string,
	acsURL string,
	idpEntityID string,
) (*Settings, error) {
	const op = "saml.NewSettings"

	if spEntityID == "" {
		return nil, fmt.Errorf("%s: SPEntityID not set: %w", op, ErrInvalidParameter)
	}
	if acsURL == "" {
		return nil, fmt.Errorf("%s: AssertionConsumerServiceURL not set: %w", op, ErrInvalidParameter)
	}

	return &Settings{
		SPEntityID:                  spEntityID,
		AssertionConsumerServiceURL: acsURL,
		IDPEntityID:                 idpEntityID,
		IDPCertFingerprintAlgorithm: FingerprintSHA256,
		Soft:                        true,
	}, nil
}

// Validate checks that Settings carries enough information to attempt a
// validation: identity fields and at least one trust anchor.
func (s *Settings) Validate() error {
	const op = "saml.Settings.Validate"

	if s.SPEntityID == "" {
		return fmt.Errorf("%s: SPEntityID not set: %w", op, ErrInvalidParameter)
	}

	if s.AssertionConsumerServiceURL == "" {
		return fmt.Errorf("%s: AssertionConsumerServiceURL not set: %w", op, ErrInvalidParameter)
	}

	if !s.hasTrustAnchor() {
		return fmt.Errorf(
			"%s: no trust anchor configured, need one of IDPCert, IDPCertFingerprint, or IDPCertMulti: %w",
			op, ErrInvalidParameter,
		)
	}

	return nil
}

func (s *Settings) hasTrustAnchor() bool {
	if s.IDPCert != nil {
		return true
	}
	if s.IDPCertFingerprint != "" {
		return true
	}
	if len(s.IDPCertMulti["signing"]) > 0 {
		return true
	}
	return false
}

// certificateCandidates returns every certificate this Settings would
// accept as a signing root, in trial order: the single cert (if any)
// first, then the rotation list.
func (s *Settings) certificateCandidates() []*x509.Certificate {
	var out []*x509.Certificate
	if s.IDPCert != nil {
		out = append(out, s.IDPCert)
	}
	out = append(out, s.IDPCertMulti["signing"]...)
	return out
}
