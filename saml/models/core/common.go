package core

const (
	SAMLVersion2 = "2.0"
)

type ServiceBinding string

const (
	ServiceBindingHTTPPost     ServiceBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	ServiceBindingHTTPRedirect ServiceBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	ServiceBindingSOAP         ServiceBinding = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
)

// See 8.3 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type NameIDFormat string

const (
	NameIDFormatUnspecified                NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmail                      NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatX509SubjectName            NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:X509SubjectName"
	NameIDFormatWindowsDomainQualifiedName NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:WindowsDomainQualifiedName"
	NameIDFormatKerberos                   NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:kerberos"
	NameIDFormatEntity                     NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	NameIDFormatPersistent                 NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient                  NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
)

type NameFormat string

const (
	NameFormatURI NameFormat = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
)

// StatusCodeType defines the possible status codes in a SAML Response.
// See 3.2.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type StatusCodeType string

const (
	StatusCodeSuccess                      StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Success"
	StatusCodeRequester                    StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Requester"
	StatusCodeResponder                    StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Responder"
	StatusCodeVersionMismatch              StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:VersionMismatch"
	StatusCodeAuthnFailed                  StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:AuthnFailed"
	StatusCodeInvalidAttrNameOrValue       StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:InvalidAttrNameOrValue"
	StatusCodeInvalidNameIDPolicy          StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:InvalidNameIDPolicy"
	StatusCodeNoAuthnContext               StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:NoAuthnContext"
	StatusCodeNoAvailableIDP               StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:NoAvailableIDP"
	StatusCodeNoPassive                    StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:NoPassive"
	StatusCodeNoSupportedIDP               StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:NoSupportedIDP"
	StatusCodePartialLogout                StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:PartialLogout"
	StatusCodeProxyCountExceeded           StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:ProxyCountExceeded"
	StatusCodeRequestDenied                StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:RequestDenied"
	StatusCodeRequestUnsupported           StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:RequestUnsupported"
	StatusCodeRequestVersionDeprecated     StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:RequestVersionDeprecated"
	StatusCodeRequestRequestVersionTooHigh StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:RequestVersionTooHigh"
	StatusCodeRequestVersionTooLow         StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:RequestVersionTooLow"
	StatusCodeResourceNotRecognized        StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:ResourceNotRecognized"
	StatusCodeTooManyResponses             StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:TooManyResponses"
	StatusCodeUnknownAttrProfile           StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:UnknownAttrProfile"
	StatusCodeUnknownPrincipal             StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:UnknownPrincipal"
	StatusCodeUnsupportedBinding           StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:UnsupportedBinding"
)

// ConfirmationMethod indicates the specific method used by the relying
// party to determine that the request or message came from a system
// entity associated with the subject of the assertion.
//
// See 3. http://docs.oasis-open.org/security/saml/v2.0/saml-profiles-2.0-os.pdf
type ConfirmationMethod string

const (
	ConfirmationMethodHolderOfKey   ConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:holder-of-key"
	ConfirmationMethodSenderVouches ConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:sender-vouches"
	ConfirmationMethodBearer        ConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
)
