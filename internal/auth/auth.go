// Package auth consumes the authenticated principal established by the
// fronting identity layer. Scriptorium never authenticates anyone itself;
// it trusts the identity headers injected upstream and only reads the
// principal id, admin flag and terms-acceptance flag.
package auth

import "net/http"

// Header names set by the identity layer.
const (
	HeaderPrincipalID = "X-Principal-ID"
	HeaderAdmin       = "X-Principal-Admin"
	HeaderTerms       = "X-Principal-Terms"
)

// Principal is an authenticated user as seen by this service.
type Principal struct {
	ID            string
	Admin         bool
	TermsAccepted bool
}

// Valid reports whether a principal was actually present on the request.
func (p Principal) Valid() bool {
	return p.ID != ""
}

// FromRequest extracts the principal from identity headers. A missing
// principal id yields a zero Principal (Valid() == false).
func FromRequest(r *http.Request) Principal {
	return Principal{
		ID:            r.Header.Get(HeaderPrincipalID),
		Admin:         r.Header.Get(HeaderAdmin) == "true",
		TermsAccepted: r.Header.Get(HeaderTerms) == "true",
	}
}
