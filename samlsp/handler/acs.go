// Package handler wires saml.ServiceProvider into the net/http handler a
// service provider's assertion consumer service endpoint needs.
package handler

import (
	"fmt"
	"net/http"

	"github.com/go-saml/core/saml"
)

// ACSHandlerFunc returns a handler for the assertion consumer service URL
// configured on sp. It parses the posted SAMLResponse, validates it in
// strict mode, and reports either the authenticated subject or a 401.
//
// RelayState, if present, is forwarded to onSuccess unchanged; callers that
// don't need it can pass a handler that ignores the argument.
func ACSHandlerFunc(sp *saml.ServiceProvider, onSuccess func(w http.ResponseWriter, r *http.Request, res *saml.Response, relayState string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		rawResp := r.PostForm.Get("SAMLResponse")
		if rawResp == "" {
			http.Error(w, "missing SAMLResponse", http.StatusBadRequest)
			return
		}

		res, err := sp.ParseResponse(rawResp)
		if err != nil {
			http.Error(w, "failed to parse SAML response", http.StatusUnauthorized)
			return
		}

		if err := res.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("SAML response rejected: %s", err.Error()), http.StatusUnauthorized)
			return
		}

		if onSuccess != nil {
			onSuccess(w, r, res, r.PostForm.Get("RelayState"))
			return
		}

		fmt.Fprintf(w, "Authenticated! subject=%s\n", res.NameID())
	}
}
