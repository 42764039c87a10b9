package crawler

import (
	"strings"
	"testing"
)

// TestRewrite tests replacing absolute references with local paths.
func TestRewrite(t *testing.T) {
	t.Parallel()

	const root = "site_clone"
	urls := []string{
		"http://example.com/foo.js",
		"http://example.com/images/logo.png",
		"http://example.com/styles/main.css",
	}

	t.Run("rewrites absolute references and leaves script code alone", func(t *testing.T) {
		t.Parallel()

		content := `<html>
<head>
<script src="http://example.com/foo.js"></script>
<script>
$("#id").html()
</script>
</head>
<body>
<h1>Welcome to the Cloned Site</h1>
<img src="http://example.com/images/logo.png" alt="Logo">
<link rel="stylesheet" href="http://example.com/styles/main.css">
</body>
</html>`

		want := `<html>
<head>
<script src="/foo.js"></script>
<script>
$("#id").html()
</script>
</head>
<body>
<h1>Welcome to the Cloned Site</h1>
<img src="/images/logo.png" alt="Logo">
<link rel="stylesheet" href="/styles/main.css">
</body>
</html>`

		if got := Rewrite(content, root, urls); got != want {
			t.Errorf("Rewrite() mismatch\n got: %s\nwant: %s", got, want)
		}
	})

	t.Run("query variants map to the shared file", func(t *testing.T) {
		t.Parallel()

		content := `<script src="http://example.com/foo.js?version=1.2"></script>`
		got := Rewrite(content, root, []string{"http://example.com/foo.js?version=1.2"})
		if got != `<script src="/foo.js"></script>` {
			t.Errorf("unexpected result %q", got)
		}
	})

	t.Run("longer URL wins over its prefix", func(t *testing.T) {
		t.Parallel()

		content := `a="http://example.com/app.js" b="http://example.com/app.js?v=2"`
		got := Rewrite(content, root, []string{"http://example.com/app.js", "http://example.com/app.js?v=2"})
		if got != `a="/app.js" b="/app.js"` {
			t.Errorf("unexpected result %q", got)
		}

		content = `<a href="http://example.com/"></a><img src="http://example.com/x/y.png">`
		got = Rewrite(content, root, []string{"http://example.com/", "http://example.com/x/y.png"})
		if got != `<a href="/index.html"></a><img src="/x/y.png">` {
			t.Errorf("unexpected result %q", got)
		}
	})

	t.Run("URLs not in the set are untouched", func(t *testing.T) {
		t.Parallel()

		content := `<img src="http://example.com/other.png"><img src="images/logo.png">`
		if got := Rewrite(content, root, urls); got != content {
			t.Errorf("expected content unchanged, got %q", got)
		}
	})

	t.Run("regexp metacharacters in URLs are literal", func(t *testing.T) {
		t.Parallel()

		content := `x="http://example.com/a.js?q=(1)+[2]" y="http://example.comXa.js?q=(1)+[2]"`
		got := Rewrite(content, root, []string{"http://example.com/a.js?q=(1)+[2]"})
		if got != `x="/a.js" y="http://example.comXa.js?q=(1)+[2]"` {
			t.Errorf("unexpected result %q", got)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		t.Parallel()

		if got := Rewrite("unchanged", root, nil); got != "unchanged" {
			t.Errorf("expected unchanged content, got %q", got)
		}
		if got := Rewrite("", root, urls); got != "" {
			t.Errorf("expected empty content, got %q", got)
		}
	})

	t.Run("URLs outside root are ignored", func(t *testing.T) {
		t.Parallel()

		content := `src="http://example.com/../../x.js"`
		if got := Rewrite(content, root, []string{"http://example.com/../../x.js"}); got != content {
			t.Errorf("expected content unchanged, got %q", got)
		}
	})

	t.Run("every occurrence is replaced", func(t *testing.T) {
		t.Parallel()

		content := strings.Repeat(`<img src="http://example.com/images/logo.png">`, 3)
		got := Rewrite(content, root, urls)
		if strings.Contains(got, "http://") || strings.Count(got, `"/images/logo.png"`) != 3 {
			t.Errorf("unexpected result %q", got)
		}
	})
}
