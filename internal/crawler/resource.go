package crawler

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/sitemirror/internal/model"
)

// ResourceExtensions are the extensions recognized as mirrorable resources.
// The extractor pattern is built from this list in this order.
var ResourceExtensions = []string{
	".svg", ".jpg", ".jpeg", ".png", ".gif", ".ico", ".css", ".js", ".html",
	".php", ".json", ".ttf", ".otf", ".woff2", ".woff", ".eot", ".mp4", ".ogg",
}

// ScannableExtensions are the extensions whose content is scanned for
// references and rewritten after download.
var ScannableExtensions = []string{".css", ".js", ".html", ".php", ".json"}

// Classify returns the kind of the file at localPath, judged by its extension.
// The comparison is case-insensitive.
func Classify(localPath string) model.ResourceKind {
	ext := strings.ToLower(filepath.Ext(localPath))
	switch {
	case ext == "":
		return model.KindUnknown
	case slices.Contains(ScannableExtensions, ext):
		return model.KindScannable
	case slices.Contains(ResourceExtensions, ext):
		return model.KindBinary
	default:
		return model.KindUnknown
	}
}

// IsScannable reports whether the file at localPath is scanned for references.
func IsScannable(localPath string) bool {
	return Classify(localPath) == model.KindScannable
}

// trimResourceExtension removes one trailing recognized extension from p.
// The longest matching extension wins, so ".woff2" is removed whole.
func trimResourceExtension(p string) string {
	lower := strings.ToLower(p)
	best := ""
	for _, ext := range ResourceExtensions {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	return p[:len(p)-len(best)]
}
