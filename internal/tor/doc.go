// Package tor routes the mirror's HTTP traffic through a Tor SOCKS5 proxy.
//
// Client dials through an existing proxy (by default the system Tor daemon
// on 127.0.0.1:9050). Host names are passed to the proxy unresolved, so DNS
// lookups happen inside Tor as well. EmbeddedTor launches a private Tor
// daemon with tornago for machines without one.
//
// The package also validates .onion seed hosts, since a mistyped v3 address
// would otherwise only surface as an opaque proxy failure.
package tor
