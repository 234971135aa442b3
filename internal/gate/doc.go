// Package gate decides, per request, whether a dashboard route may be
// served or must be redirected.
//
// The decision depends only on the request path, the raw session token
// cookie and the current time. Tokens are decoded structurally; their
// signatures are the REST API's concern. Any decode failure, a missing
// expiry, an unrecognized role or an expired token all collapse to the
// unauthenticated state, which at worst sends the browser to the login page.
package gate
