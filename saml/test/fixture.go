// Package samltest builds signed and encrypted SAML Response documents
// for use as fixtures in saml package tests.
package samltest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/require"
)

// KeyPair is a self-signed RSA key/certificate pair for signing or
// encrypting test fixtures.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	Cert       *x509.Certificate
}

// GenerateKeyPair creates a throwaway self-signed RSA keypair.
func GenerateKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	r := require.New(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	r.NoError(err)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	r.NoError(err)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"saml test fixtures"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	r.NoError(err)

	cert, err := x509.ParseCertificate(der)
	r.NoError(err)

	return &KeyPair{PrivateKey: priv, Cert: cert}
}

// SignXML parses rawXML and returns it with an enveloped XML-DSig
// signature added to the root element, signed by kp.
func SignXML(t *testing.T, rawXML string, kp *KeyPair) string {
	t.Helper()
	r := require.New(t)

	doc := etree.NewDocument()
	r.NoError(doc.ReadFromString(rawXML))

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{kp.Cert.Raw},
		PrivateKey:  kp.PrivateKey,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signed, err := signingContext.SignEnveloped(doc.Root())
	r.NoError(err)

	doc.SetRoot(signed)
	out, err := doc.WriteToString()
	r.NoError(err)
	return out
}

// EncryptAssertionXML wraps assertionXML in an <EncryptedAssertion> whose
// <EncryptedData> is the RSA-OAEP encryption of assertionXML under kp's
// certificate, matching the shape decryptAssertionInto expects to find.
func EncryptAssertionXML(t *testing.T, assertionXML string, kp *KeyPair) string {
	t.Helper()
	r := require.New(t)

	e := xmlenc.OAEP()
	e.BlockCipher = xmlenc.AES128GCM
	e.DigestMethod = &xmlenc.SHA1

	encData, err := e.Encrypt(kp.Cert, []byte(assertionXML), nil)
	r.NoError(err)

	wrapper := etree.NewDocument()
	wrapper.CreateElement("EncryptedAssertion")
	wrapper.Root().AddChild(encData)

	out, err := wrapper.WriteToString()
	r.NoError(err)
	return out
}

