// Package transport implements the crawler's Fetcher on top of net/http.
//
// HTTPFetcher percent-encodes the outbound URL, sends the configured
// User-Agent, extra headers and cookie on every request (redirects
// included), and turns non-2xx responses into *StatusError values.
// Routing through Tor is decided by the *http.Client it is given; see
// package tor.
package transport
