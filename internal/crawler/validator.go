package crawler

import (
	"net/url"
	"strings"
)

// disallowedPathChars is ASCII punctuation minus the characters that appear
// in ordinary resource paths: "/", "-", ".", "_" and "@".
const disallowedPathChars = "!\"#$%&'()*+,:;<=>?[\\]^`{|}~"

// IsValidURL reports whether a pattern match looks like a real resource
// reference rather than, for example, a JavaScript call chain such as
// `$("#id").html()` that happens to contain a resource extension.
//
// The path as written in rawURL, minus one trailing resource extension, must
// not contain ASCII punctuation other than "/", "-", ".", "_" and "@".
// Letters outside ASCII are accepted; a literal percent escape is not. This is
// a heuristic, not a URL grammar check.
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := trimResourceExtension(writtenPath(u))
	return !strings.ContainsAny(p, disallowedPathChars)
}

// writtenPath returns the path of u the way it appeared in the parsed text.
// url.Parse keeps RawPath only when it differs from the default escaping of
// Path, so an empty RawPath means EscapedPath is what was written.
func writtenPath(u *url.URL) string {
	if u.RawPath != "" {
		return u.RawPath
	}
	return u.EscapedPath()
}
