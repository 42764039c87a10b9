package crawler

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Extractor finds resource references in text content.
// An Extractor is safe for concurrent use.
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor returns an Extractor matching the ResourceExtensions.
//
// A match is a run of characters that are not quotes, "=", "(" or whitespace,
// followed by a resource extension and any trailing characters up to a quote,
// ")", ">" or whitespace. The trailing part keeps query strings attached.
func NewExtractor() *Extractor {
	exts := make([]string, 0, len(ResourceExtensions))
	for _, ext := range ResourceExtensions {
		exts = append(exts, regexp.QuoteMeta(ext))
	}
	expr := `(?i)([^="'(\s]+)(` + strings.Join(exts, "|") + `)([^"')>\s]*)`
	return &Extractor{pattern: regexp.MustCompile(expr)}
}

// Extract scans content for references, resolves each valid one against base
// and returns the distinct absolute URLs in the order they were first seen.
// Characters outside ASCII stay unescaped in the returned path, so a URL
// written as "http://h/café.png" is returned in that form.
//
// onDiscover, when non-nil, is called once for every distinct URL before
// Extract returns. Candidates rejected by IsValidURL or that fail to parse are
// dropped silently.
func (e *Extractor) Extract(content string, base *url.URL, onDiscover func(string)) []string {
	matches := e.pattern.FindAllString(content, -1)
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))

	for _, m := range matches {
		candidate := strings.Trim(m, ` "'`)
		if candidate == "" || !IsValidURL(candidate) {
			continue
		}

		ref, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		absolute := unicodeString(base.ResolveReference(ref))

		if _, ok := seen[absolute]; ok {
			continue
		}
		seen[absolute] = struct{}{}
		urls = append(urls, absolute)

		if onDiscover != nil {
			onDiscover(absolute)
		}
	}

	return urls
}

// unicodeString returns u.String() with the percent escapes of non-ASCII
// characters in the path decoded. Other escapes are kept.
func unicodeString(u *url.URL) string {
	s := u.String()
	escaped := u.EscapedPath()
	decoded := unescapeNonASCII(escaped)
	if decoded == escaped {
		return s
	}
	head := (&url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}).String()
	if !strings.HasPrefix(s, head+escaped) {
		return s
	}
	return head + decoded + s[len(head)+len(escaped):]
}

// unescapeNonASCII decodes each run of %XX escapes in p whose bytes are 0x80
// or above and form valid UTF-8.
func unescapeNonASCII(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	var b strings.Builder
	for i := 0; i < len(p); {
		run, n := highByteEscapes(p[i:])
		switch {
		case n > 0 && utf8.Valid(run):
			b.Write(run)
		case n > 0:
			b.WriteString(p[i : i+n])
		default:
			b.WriteByte(p[i])
			n = 1
		}
		i += n
	}
	return b.String()
}

// highByteEscapes decodes the leading %XX escapes of s with a value of 0x80
// or above. n is the length of s they cover.
func highByteEscapes(s string) (run []byte, n int) {
	for n+3 <= len(s) && s[n] == '%' {
		v, err := strconv.ParseUint(s[n+1:n+3], 16, 8)
		if err != nil || v < 0x80 {
			break
		}
		run = append(run, byte(v))
		n += 3
	}
	return run, n
}
