package crawler

import (
	"testing"

	"github.com/nao1215/sitemirror/internal/model"
)

// TestClassify tests resource classification by extension.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want model.ResourceKind
	}{
		{"m/index.html", model.KindScannable},
		{"m/app.js", model.KindScannable},
		{"m/style.css", model.KindScannable},
		{"m/data.json", model.KindScannable},
		{"m/page.php", model.KindScannable},
		{"m/PAGE.HTML", model.KindScannable},
		{"m/logo.png", model.KindBinary},
		{"m/photo.jpeg", model.KindBinary},
		{"m/font.woff2", model.KindBinary},
		{"m/movie.mp4", model.KindBinary},
		{"m/icon.svg", model.KindBinary},
		{"m/report.pdf", model.KindUnknown},
		{"m/README", model.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if !IsScannable("x/index.html") || IsScannable("x/logo.gif") {
		t.Error("IsScannable disagrees with Classify")
	}
}

// TestScannableSubset tests that every scannable extension is a resource extension.
func TestScannableSubset(t *testing.T) {
	t.Parallel()

	for _, ext := range ScannableExtensions {
		found := false
		for _, r := range ResourceExtensions {
			if r == ext {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("scannable extension %q is not a resource extension", ext)
		}
	}
}

// TestTrimResourceExtension tests removal of a trailing extension.
func TestTrimResourceExtension(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/fonts/a.woff2": "/fonts/a",
		"/a/logo.PNG":    "/a/logo",
		"/data.json":     "/data",
		"/page":          "/page",
		"/x.js.map":      "/x.js.map",
	}

	for in, want := range tests {
		if got := trimResourceExtension(in); got != want {
			t.Errorf("trimResourceExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
