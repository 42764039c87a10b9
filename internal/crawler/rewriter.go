package crawler

import (
	"cmp"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Rewrite replaces every occurrence of the given absolute URLs in content with
// the root-relative reference of its local file ("/" + path below root).
//
// All URLs are replaced in a single pass. When one URL is a prefix of another,
// the longer one wins at a given position. Text that does not exactly match a
// URL in urls is left untouched. URLs that cannot be parsed or that map
// outside root are ignored.
func Rewrite(content, root string, urls []string) string {
	if content == "" || len(urls) == 0 {
		return content
	}

	refs := make(map[string]string, len(urls))
	for _, raw := range urls {
		if ref, ok := localReference(raw, root); ok {
			refs[raw] = ref
		}
	}
	if len(refs) == 0 {
		return content
	}

	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	pattern := regexp.MustCompile(strings.Join(quoted, "|"))

	return pattern.ReplaceAllStringFunc(content, func(match string) string {
		return refs[match]
	})
}

// localReference returns the root-relative reference for rawURL.
func localReference(rawURL, root string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	localPath := LocalPath(u, root)
	if !withinRoot(localPath, root) {
		return "", false
	}
	rel, err := filepath.Rel(root, localPath)
	if err != nil {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}
