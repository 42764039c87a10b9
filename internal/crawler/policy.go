package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FollowPolicy decides which discovered URLs are admitted to the frontier.
// The zero value follows every URL.
type FollowPolicy struct {
	// SameHostOnly restricts the crawl to the seed's host.
	SameHostOnly bool

	// IgnorePatterns are URL path globs that are never followed
	// (e.g. "/admin/*", "*.mp4").
	IgnorePatterns []string

	// FollowPatterns, when non-empty, restrict the crawl to URL paths
	// matching at least one glob. IgnorePatterns take precedence.
	FollowPatterns []string
}

// Allows reports whether target should be followed from a crawl seeded at seed.
func (p FollowPolicy) Allows(seed *url.URL, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	if p.SameHostOnly && seed != nil && !strings.EqualFold(u.Host, seed.Host) {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range p.IgnorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(p.FollowPatterns) == 0 {
		return true
	}
	for _, pattern := range p.FollowPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/edit"
//   - "*.mp4" matches "/media/intro.mp4"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare file globs such as "logo-*.png" match the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
