package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/storage"
	"github.com/nao1215/sitemirror/internal/transport"
)

var (
	errNotFound  = errors.New("404 Not Found")
	errConnReset = errors.New("connection reset by peer")
)

// fakeFetcher serves pages from a map and counts calls per URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	calls map[string]int
	// cutOnce breaks the next body of a URL after the given number of bytes.
	cutOnce map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{
		pages: pages,
		fail:    make(map[string]error),
		calls:   make(map[string]int),
		cutOnce: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[rawURL]++
	if err, ok := f.fail[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errNotFound
	}
	if n, ok := f.cutOnce[rawURL]; ok {
		delete(f.cutOnce, rawURL)
		return io.NopCloser(io.MultiReader(strings.NewReader(body[:n]), brokenReader{errConnReset})), nil
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// brokenReader fails every read with err.
type brokenReader struct{ err error }

func (r brokenReader) Read([]byte) (int, error) { return 0, r.err }

// recorderFunc adapts a function to Recorder.
type recorderFunc func(ctx context.Context, r model.Resource) error

func (f recorderFunc) Record(ctx context.Context, r model.Resource) error { return f(ctx, r) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// TestSpiderMirrorEndToEnd mirrors a two-page site served over HTTP.
func TestSpiderMirrorEndToEnd(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/":
			fmt.Fprintf(w, `<html><body><script src="%[1]s/script.js"></script>`+
				`<link href="%[1]s/style.css" rel="stylesheet"></body></html>`, server.URL)
		case "/script.js":
			fmt.Fprint(w, "content of script.js")
		case "/style.css":
			fmt.Fprint(w, "content of style.css")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	root := t.TempDir()
	newSpider := func() *Spider {
		return NewSpider(
			transport.NewHTTPFetcher(server.Client()),
			storage.NewOSStore(),
			root,
			WithLogger(quietLogger()),
		)
	}

	summary, err := newSpider().Mirror(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	for _, name := range []string{"index.html", "script.js", "style.css"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("expected %s to be mirrored: %v", name, err)
		}
	}

	index, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatalf("failed to read index.html: %v", err)
	}
	if strings.Contains(string(index), server.URL) {
		t.Errorf("index.html still references the origin: %s", index)
	}
	if !strings.Contains(string(index), `src="/script.js"`) || !strings.Contains(string(index), `href="/style.css"`) {
		t.Errorf("index.html was not rewritten to local references: %s", index)
	}

	if summary.Count(model.OutcomeDownloaded) != 3 || summary.FailureCount() != 0 {
		t.Errorf("expected 3 downloads and no failures, got %v", summary.Counts)
	}
	if summary.RunID == "" || summary.FinishedAt.IsZero() || summary.Cancelled {
		t.Errorf("unexpected summary metadata: %+v", summary)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}

	t.Run("second run fetches nothing", func(t *testing.T) {
		summary, err := newSpider().Mirror(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}
		if hits.Load() != 3 {
			t.Errorf("expected no new requests, got %d total", hits.Load())
		}
		if summary.Count(model.OutcomeSkipped) != 1 || summary.Total() != 1 {
			t.Errorf("expected a single skipped seed, got %v", summary.Counts)
		}
	})
}

// TestSpiderSkipsExistingFiles tests resuming against a populated mirror.
func TestSpiderSkipsExistingFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := storage.NewStore(fs)
	if err := store.WriteText("/mirror/style.css", "old"); err != nil {
		t.Fatalf("failed to seed mirror: %v", err)
	}

	fetcher := newFakeFetcher(map[string]string{
		"http://h/":          `<link href="http://h/style.css"><img src="http://h/logo.png">`,
		"http://h/style.css": "new",
		"http://h/logo.png":  "png",
	})

	summary, err := NewSpider(fetcher, store, "/mirror", WithLogger(quietLogger())).
		Mirror(context.Background(), "http://h/")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if n := fetcher.callCount("http://h/style.css"); n != 0 {
		t.Errorf("existing file must not be fetched, got %d calls", n)
	}
	if got := readFile(t, fs, "/mirror/style.css"); got != "old" {
		t.Errorf("existing file was overwritten: %q", got)
	}
	if summary.Count(model.OutcomeSkipped) != 1 || summary.Count(model.OutcomeDownloaded) != 2 {
		t.Errorf("unexpected counts %v", summary.Counts)
	}

	index := readFile(t, fs, "/mirror/index.html")
	if index != `<link href="/style.css"><img src="/logo.png">` {
		t.Errorf("unexpected rewritten index %q", index)
	}
}

// TestSpiderFailures tests that per-resource failures do not stop the crawl.
func TestSpiderFailures(t *testing.T) {
	t.Parallel()

	t.Run("fetch failure is recorded and crawl continues", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		fetcher := newFakeFetcher(map[string]string{
			"http://h/":      `<script src="/a.js"></script><script src="/gone.js"></script>`,
			"http://h/a.js":  `load("/b.css")`,
			"http://h/b.css": "b",
		})

		summary, err := NewSpider(fetcher, storage.NewStore(fs), "/m", WithLogger(quietLogger())).
			Mirror(context.Background(), "http://h/")
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}

		if summary.Count(model.OutcomeFetchFailed) != 1 || summary.Count(model.OutcomeDownloaded) != 3 {
			t.Errorf("unexpected counts %v", summary.Counts)
		}
		if summary.Failures[0].URL != "http://h/gone.js" || !strings.Contains(summary.Failures[0].Error, "404") {
			t.Errorf("unexpected failure record %+v", summary.Failures[0])
		}
		if ok, _ := afero.Exists(fs, "/m/gone.js"); ok {
			t.Error("failed fetch must not create a file")
		}
		if ok, _ := afero.Exists(fs, "/m/b.css"); !ok {
			t.Error("reference found in a.js should have been mirrored")
		}
	})

	t.Run("non-UTF-8 text keeps the raw download", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		raw := "\xff\xfe http://h/x.png"
		fetcher := newFakeFetcher(map[string]string{"http://h/data.json": raw})

		summary, err := NewSpider(fetcher, storage.NewStore(fs), "/m", WithLogger(quietLogger())).
			Mirror(context.Background(), "http://h/data.json")
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}

		if summary.Count(model.OutcomeRewriteFailed) != 1 {
			t.Errorf("expected rewrite failure, got %v", summary.Counts)
		}
		if !strings.Contains(summary.Failures[0].Error, storage.ErrNotText.Error()) {
			t.Errorf("expected not-text error, got %q", summary.Failures[0].Error)
		}
		if got := readFile(t, fs, "/m/data.json"); got != raw {
			t.Errorf("raw download should be kept, got %q", got)
		}
		if fetcher.callCount("http://h/x.png") != 0 {
			t.Error("nothing should be discovered from an unreadable file")
		}
	})

	t.Run("seed outside root is rejected", func(t *testing.T) {
		t.Parallel()

		fetcher := newFakeFetcher(nil)
		summary, err := NewSpider(fetcher, storage.NewStore(afero.NewMemMapFs()), "/m", WithLogger(quietLogger())).
			Mirror(context.Background(), "http://h/../../etc/x.js")
		if err != nil {
			t.Fatalf("Mirror failed: %v", err)
		}
		if summary.Count(model.OutcomeRejected) != 1 || fetcher.totalCalls() != 0 {
			t.Errorf("expected rejection without fetch, got %v", summary.Counts)
		}
	})
}

// TestSpiderMirrorErrors tests the errors that end a crawl.
func TestSpiderMirrorErrors(t *testing.T) {
	t.Parallel()

	t.Run("relative seed", func(t *testing.T) {
		t.Parallel()

		_, err := NewSpider(newFakeFetcher(nil), storage.NewStore(afero.NewMemMapFs()), "/m").
			Mirror(context.Background(), "example.com/index.html")
		if !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})

	t.Run("root cannot be created", func(t *testing.T) {
		t.Parallel()

		fetcher := newFakeFetcher(map[string]string{"http://h/": "x"})
		store := storage.NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))

		_, err := NewSpider(fetcher, store, "/m", WithLogger(quietLogger())).
			Mirror(context.Background(), "http://h/")
		if !errors.Is(err, ErrRootNotCreatable) {
			t.Errorf("expected ErrRootNotCreatable, got %v", err)
		}
		if fetcher.totalCalls() != 0 {
			t.Error("nothing should be fetched when the root is unusable")
		}
	})

	t.Run("cancelled context returns partial summary", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetcher := newFakeFetcher(map[string]string{"http://h/": "x"})
		summary, err := NewSpider(fetcher, storage.NewStore(afero.NewMemMapFs()), "/m", WithLogger(quietLogger())).
			Mirror(ctx, "http://h/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary == nil || !summary.Cancelled {
			t.Errorf("expected cancelled summary, got %+v", summary)
		}
	})
}

// TestSpiderFollowPolicy tests that unfollowed URLs are neither fetched nor rewritten.
func TestSpiderFollowPolicy(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher(map[string]string{
		"http://h/":               `<img src="http://h/a.png"><script src="http://cdn.test/lib.js"></script><video src="/m/v.mp4">`,
		"http://h/a.png":          "a",
		"http://cdn.test/lib.js":  "lib",
		"http://h/m/v.mp4":        "video",
	})

	spider := NewSpider(fetcher, storage.NewStore(fs), "/mirror",
		WithLogger(quietLogger()),
		WithFollowPolicy(FollowPolicy{SameHostOnly: true, IgnorePatterns: []string{"*.mp4"}}),
	)
	summary, err := spider.Mirror(context.Background(), "http://h/")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if fetcher.callCount("http://cdn.test/lib.js") != 0 || fetcher.callCount("http://h/m/v.mp4") != 0 {
		t.Error("unfollowed URLs must not be fetched")
	}
	if summary.Total() != 2 {
		t.Errorf("expected 2 resources, got %v", summary.Counts)
	}

	index := readFile(t, fs, "/mirror/index.html")
	want := `<img src="/a.png"><script src="http://cdn.test/lib.js"></script><video src="/m/v.mp4">`
	if index != want {
		t.Errorf("unexpected index\n got: %s\nwant: %s", index, want)
	}
}

// TestSpiderQueryVariants tests that URLs differing only in query share one file.
func TestSpiderQueryVariants(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher(map[string]string{
		"http://h/":          `<script src="/app.js?v=1"></script><script src="/app.js?v=2"></script>`,
		"http://h/app.js?v=1": "one",
		"http://h/app.js?v=2": "two",
	})

	summary, err := NewSpider(fetcher, storage.NewStore(fs), "/m", WithLogger(quietLogger())).
		Mirror(context.Background(), "http://h/")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	fetched := fetcher.callCount("http://h/app.js?v=1") + fetcher.callCount("http://h/app.js?v=2")
	if fetched != 1 {
		t.Errorf("expected exactly one variant to be fetched, got %d", fetched)
	}
	if summary.Count(model.OutcomeSkipped) != 1 {
		t.Errorf("expected the other variant to be skipped, got %v", summary.Counts)
	}
	if got := readFile(t, fs, "/m/app.js"); got != "one" && got != "two" {
		t.Errorf("unexpected app.js content %q", got)
	}
}

// TestSpiderResumesBrokenDownload tests that a body failing mid-stream leaves
// nothing behind, so the next run fetches the resource again.
func TestSpiderResumesBrokenDownload(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := storage.NewStore(fs)
	fetcher := newFakeFetcher(map[string]string{
		"http://h/big.png": "half of the image and the rest of it",
	})
	fetcher.cutOnce["http://h/big.png"] = len("half of the im")

	spider := NewSpider(fetcher, store, "/m", WithLogger(quietLogger()))

	first, err := spider.Mirror(context.Background(), "http://h/big.png")
	if err != nil {
		t.Fatalf("first Mirror failed: %v", err)
	}
	if first.Count(model.OutcomeStoreFailed) != 1 {
		t.Fatalf("expected a store failure, got %v", first.Counts)
	}
	if !strings.Contains(first.Failures[0].Error, errConnReset.Error()) {
		t.Errorf("unexpected failure %q", first.Failures[0].Error)
	}
	if ok, _ := afero.Exists(fs, "/m/big.png"); ok {
		t.Error("interrupted download must not leave a file")
	}

	second, err := spider.Mirror(context.Background(), "http://h/big.png")
	if err != nil {
		t.Fatalf("second Mirror failed: %v", err)
	}
	if second.Count(model.OutcomeDownloaded) != 1 {
		t.Errorf("expected the resource to be downloaded again, got %v", second.Counts)
	}
	if n := fetcher.callCount("http://h/big.png"); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
	if got := readFile(t, fs, "/m/big.png"); got != "half of the image and the rest of it" {
		t.Errorf("unexpected content %q", got)
	}
}

// TestSpiderNonASCIIPaths tests mirroring resources with non-ASCII file names.
func TestSpiderNonASCIIPaths(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher(map[string]string{
		"http://h/":                `<img src="http://h/images/café.png"><img src="/画像/ロゴ.png">`,
		"http://h/images/café.png": "cafe",
		"http://h/画像/ロゴ.png":       "logo",
	})

	summary, err := NewSpider(fetcher, storage.NewStore(fs), "/m", WithLogger(quietLogger())).
		Mirror(context.Background(), "http://h/")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if summary.Count(model.OutcomeDownloaded) != 3 {
		t.Errorf("expected 3 downloads, got %v", summary.Counts)
	}
	if got := readFile(t, fs, "/m/images/café.png"); got != "cafe" {
		t.Errorf("unexpected café.png content %q", got)
	}
	if got := readFile(t, fs, "/m/画像/ロゴ.png"); got != "logo" {
		t.Errorf("unexpected ロゴ.png content %q", got)
	}
	if got := readFile(t, fs, "/m/index.html"); !strings.Contains(got, `src="/images/café.png"`) {
		t.Errorf("expected rewritten reference, got %q", got)
	}
}

// TestSpiderWorkers tests that a concurrent crawl visits every URL exactly once.
func TestSpiderWorkers(t *testing.T) {
	t.Parallel()

	const pages = 40
	site := make(map[string]string, pages)
	for i := range pages {
		// Every page links to the next two and back to the first.
		site[fmt.Sprintf("http://h/p%d.html", i)] = fmt.Sprintf(
			`<a href="/p%d.html"></a><a href="/p%d.html"></a><a href="/p0.html"></a><img src="/img/%d.png">`,
			(i+1)%pages, (i+2)%pages, i)
		site[fmt.Sprintf("http://h/img/%d.png", i)] = "png"
	}

	fetcher := newFakeFetcher(site)
	var recorded atomic.Int64
	recorder := recorderFunc(func(context.Context, model.Resource) error {
		recorded.Add(1)
		return nil
	})

	summary, err := NewSpider(fetcher, storage.NewStore(afero.NewMemMapFs()), "/m",
		WithLogger(quietLogger()),
		WithWorkers(8),
		WithRecorder(recorder),
		WithRunID("run-under-test"),
	).Mirror(context.Background(), "http://h/p0.html")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	for u := range site {
		if n := fetcher.callCount(u); n != 1 {
			t.Errorf("%s fetched %d times, want 1", u, n)
		}
	}
	if summary.Count(model.OutcomeDownloaded) != 2*pages {
		t.Errorf("expected %d downloads, got %v", 2*pages, summary.Counts)
	}
	if recorded.Load() != int64(summary.Total()) {
		t.Errorf("recorder saw %d resources, summary has %d", recorded.Load(), summary.Total())
	}
	if summary.RunID != "run-under-test" {
		t.Errorf("expected configured run ID, got %q", summary.RunID)
	}
}

// TestSpiderRecorderErrors tests that journal failures do not affect the crawl.
func TestSpiderRecorderErrors(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{"http://h/logo.png": "png"})
	recorder := recorderFunc(func(context.Context, model.Resource) error {
		return errors.New("disk full")
	})

	summary, err := NewSpider(fetcher, storage.NewStore(afero.NewMemMapFs()), "/m",
		WithLogger(quietLogger()),
		WithRecorder(recorder),
	).Mirror(context.Background(), "http://h/logo.png")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if summary.Count(model.OutcomeDownloaded) != 1 {
		t.Errorf("expected download despite recorder failure, got %v", summary.Counts)
	}
}

// TestSpiderResourceRecord tests the fields recorded for a download.
func TestSpiderResourceRecord(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"http://h/css/site.css": `body { background: url(../img/bg.jpg) }`,
		"http://h/img/bg.jpg":   "jpg",
	})

	var mu sync.Mutex
	records := map[string]model.Resource{}
	recorder := recorderFunc(func(_ context.Context, r model.Resource) error {
		mu.Lock()
		defer mu.Unlock()
		records[r.URL] = r
		return nil
	})

	_, err := NewSpider(fetcher, storage.NewStore(afero.NewMemMapFs()), "/m",
		WithLogger(quietLogger()),
		WithRecorder(recorder),
	).Mirror(context.Background(), "http://h/css/site.css")
	if err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	css := records["http://h/css/site.css"]
	if css.Kind != model.KindScannable || css.Discovered != 1 || css.Hash == "" || css.Bytes == 0 {
		t.Errorf("unexpected stylesheet record %+v", css)
	}
	if css.LocalPath != filepath.Join("/m", "css", "site.css") {
		t.Errorf("unexpected local path %q", css.LocalPath)
	}

	img := records["http://h/img/bg.jpg"]
	if img.Kind != model.KindBinary || img.Outcome != model.OutcomeDownloaded || img.Bytes != 3 {
		t.Errorf("unexpected image record %+v", img)
	}
}
