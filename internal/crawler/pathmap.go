package crawler

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DefaultDocument is the file name used for URLs that name a directory.
const DefaultDocument = "index.html"

// LocalPath maps u to its file under root.
//
// The leading "/" of the URL path is dropped. An empty path, or a path whose
// last segment has no extension, is treated as a directory and gets
// DefaultDocument appended. Query and fragment never affect the result, so
// URLs that differ only in their query share one file.
func LocalPath(u *url.URL, root string) string {
	p := strings.TrimPrefix(u.Path, "/")
	if p == "" || !hasExtension(p) {
		p = path.Join(p, DefaultDocument)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// MapURL parses rawURL and maps it with LocalPath.
func MapURL(rawURL, root string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", rawURL, err)
	}
	return LocalPath(u, root), nil
}

// hasExtension reports whether the last segment of p has an extension.
// Leading dots do not start one: ".htaccess" has no extension.
func hasExtension(p string) bool {
	base := p[strings.LastIndex(p, "/")+1:]
	return path.Ext(strings.TrimLeft(base, ".")) != ""
}

// withinRoot reports whether localPath is root itself or lies below it.
func withinRoot(localPath, root string) bool {
	rel, err := filepath.Rel(root, localPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
