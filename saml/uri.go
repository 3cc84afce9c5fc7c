package saml

import (
	"net/url"
	"strings"
)

// uriEquivalent implements the "URI-match" comparison used by the
// destination and issuer predicates: exact string equality is always a
// match; failing that, both values are normalized (lowercase
// scheme+host, default ports stripped, an empty path treated as "/")
// and compared again.
func uriEquivalent(a, b string) bool {
	if a == b {
		return true
	}

	na, oka := normalizeURI(a)
	nb, okb := normalizeURI(b)
	if !oka || !okb {
		return false
	}
	return na == nb
}

func normalizeURI(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if isDefaultPort(scheme, port) {
		port = ""
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	normalized := scheme + "://" + host
	if port != "" {
		normalized += ":" + port
	}
	normalized += path
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}

	return normalized, true
}

func isDefaultPort(scheme, port string) bool {
	switch {
	case scheme == "http" && port == "80":
		return true
	case scheme == "https" && port == "443":
		return true
	}
	return false
}
