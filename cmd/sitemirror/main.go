// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror downloads a website into a local directory and rewrites the
// links in its HTML, CSS and JavaScript so the copy can be browsed offline.
// Requests go through a Tor SOCKS5 proxy unless --direct is given.
//
// Usage:
//
//	sitemirror <url> <destination>
//	sitemirror history [url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
