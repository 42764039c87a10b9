package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitemirror/internal/model"
)

// Fetcher retrieves the body of a URL.
// Implementations return an error for network failures and for
// non-success HTTP statuses; the caller closes the returned body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Storage is the file layer the spider writes the mirror through.
// Write and WriteText create parent directories as needed.
type Storage interface {
	Exists(path string) (bool, error)
	Write(path string, r io.Reader) (int64, error)
	ReadText(path string) (string, error)
	WriteText(path, text string) error
	MkdirAll(path string) error
}

// Recorder receives every processed resource as soon as it is final.
// The crawl journal implements it.
type Recorder interface {
	Record(ctx context.Context, r model.Resource) error
}

// Spider mirrors a site into a local directory.
type Spider struct {
	fetcher   Fetcher
	store     Storage
	root      string
	extractor *Extractor

	// workers bounds the number of URLs processed at the same time.
	workers int

	policy   FollowPolicy
	recorder Recorder
	runID    string
	logger   *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets how many URLs are fetched concurrently.
// Values below 1 are ignored.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for per-resource log lines.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithFollowPolicy restricts which discovered URLs are crawled.
func WithFollowPolicy(p FollowPolicy) SpiderOption {
	return func(s *Spider) {
		s.policy = p
	}
}

// WithRecorder sets a Recorder that receives every processed resource.
func WithRecorder(r Recorder) SpiderOption {
	return func(s *Spider) {
		s.recorder = r
	}
}

// WithRunID sets the run identifier reported in the summary.
// By default a random UUID is generated for each Mirror call.
func WithRunID(id string) SpiderOption {
	return func(s *Spider) {
		s.runID = id
	}
}

// NewSpider creates a Spider that stores the mirror under root.
func NewSpider(fetcher Fetcher, store Storage, root string, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		store:     store,
		root:      root,
		extractor: NewExtractor(),
		workers:   1,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// crawl is the state of one Mirror call.
type crawl struct {
	*Spider
	seed     *url.URL
	frontier *Frontier
	summary  *model.Summary
	locks    pathLocks
}

// Mirror crawls from seed until no URL is left to visit and returns the
// summary of the run.
//
// Per-resource failures are logged and recorded in the summary; they never
// stop the crawl. Mirror returns an error only when the seed is not an
// absolute URL, when the mirror root cannot be created, or when ctx is
// cancelled. On cancellation the partial summary is returned with ctx.Err().
func (s *Spider) Mirror(ctx context.Context, seed string) (*model.Summary, error) {
	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := model.NewSummary(runID, seed, s.root)

	seedURL, err := url.Parse(seed)
	if err != nil || !seedURL.IsAbs() || seedURL.Host == "" {
		summary.Finish(false)
		return summary, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	if err := s.store.MkdirAll(s.root); err != nil {
		summary.Finish(false)
		return summary, fmt.Errorf("%w: %s: %w", ErrRootNotCreatable, s.root, err)
	}

	c := &crawl{
		Spider:   s,
		seed:     seedURL,
		frontier: NewFrontier(),
		summary:  summary,
		locks:    pathLocks{locks: make(map[string]*sync.Mutex)},
	}
	c.frontier.Admit(seed)

	s.logger.Info("starting mirror",
		"run_id", runID,
		"seed", seed,
		"root", s.root,
		"workers", s.workers,
	)

	err = c.run(ctx)
	summary.Finish(err != nil)

	s.logger.Info("mirror finished",
		"run_id", runID,
		"resources", summary.Total(),
		"failed", summary.FailureCount(),
		"elapsed", summary.Elapsed(),
	)

	return summary, err
}

// run drains the frontier with at most s.workers URLs in flight.
// A worker admits the URLs it discovers before it reports completion, so an
// empty frontier with no worker in flight means the crawl is done.
func (c *crawl) run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(c.workers)

	var active atomic.Int64
	wake := make(chan struct{}, 1)

	var err error
	for {
		if err = ctx.Err(); err != nil {
			break
		}

		next, ok := c.frontier.Next()
		if !ok {
			if active.Load() == 0 {
				if c.frontier.Pending() == 0 {
					break
				}
				continue
			}
			select {
			case <-ctx.Done():
			case <-wake:
			}
			continue
		}

		active.Add(1)
		g.Go(func() error {
			defer func() {
				active.Add(-1)
				select {
				case wake <- struct{}{}:
				default:
				}
			}()
			c.process(ctx, next)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors
	return err
}

// process mirrors one URL and records the outcome.
func (c *crawl) process(ctx context.Context, rawURL string) {
	start := time.Now()
	res := c.mirrorOne(ctx, rawURL)
	res.Duration = time.Since(start)

	c.summary.Add(res)

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, res); err != nil {
			c.logger.Warn("failed to record resource",
				"url", rawURL,
				"error", err,
			)
		}
	}
}

func (c *crawl) mirrorOne(ctx context.Context, rawURL string) model.Resource {
	res := model.Resource{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil {
		return c.fail(res, model.OutcomeRejected, err)
	}

	localPath := LocalPath(u, c.root)
	if !withinRoot(localPath, c.root) {
		return c.fail(res, model.OutcomeRejected, fmt.Errorf("%w: %s", ErrOutsideRoot, localPath))
	}
	res.LocalPath = localPath
	res.Kind = Classify(localPath)

	// URLs that differ only in their query share a file.
	unlock := c.locks.lock(localPath)
	defer unlock()

	exists, err := c.store.Exists(localPath)
	if err != nil {
		return c.fail(res, model.OutcomeStoreFailed, err)
	}
	if exists {
		c.logger.Info("skipping existing file", "url", rawURL, "path", localPath)
		res.Outcome = model.OutcomeSkipped
		return res
	}

	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return c.fail(res, model.OutcomeFetchFailed, err)
	}

	hasher := xxh3.New()
	n, err := c.store.Write(localPath, io.TeeReader(body, hasher))
	closeErr := body.Close()
	res.Bytes = n
	if err = errors.Join(err, closeErr); err != nil {
		return c.fail(res, model.OutcomeStoreFailed, err)
	}
	res.Hash = fmt.Sprintf("%016x", hasher.Sum64())
	res.Outcome = model.OutcomeDownloaded

	c.logger.Info("downloaded",
		"url", rawURL,
		"path", localPath,
		"bytes", n,
	)

	if res.Kind != model.KindScannable {
		return res
	}

	discovered, err := c.scan(u, localPath)
	res.Discovered = discovered
	if err != nil {
		return c.fail(res, model.OutcomeRewriteFailed, err)
	}
	return res
}

// scan re-reads a stored text resource, admits the references it contains
// and rewrites the followed ones to local paths. It returns the number of
// distinct references found.
//
// Only references allowed by the follow policy are rewritten; the others keep
// pointing at the live site.
func (c *crawl) scan(page *url.URL, localPath string) (int, error) {
	text, err := c.store.ReadText(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	var followed []string
	found := c.extractor.Extract(text, page, func(link string) {
		if !c.policy.Allows(c.seed, link) {
			c.logger.Debug("not following", "url", link, "page", page.String())
			return
		}
		followed = append(followed, link)
		if c.frontier.Admit(link) {
			c.logger.Debug("queued", "url", link, "page", page.String())
		}
	})

	if err := c.store.WriteText(localPath, Rewrite(text, c.root, followed)); err != nil {
		return len(found), fmt.Errorf("failed to write rewritten %s: %w", localPath, err)
	}
	return len(found), nil
}

func (c *crawl) fail(res model.Resource, outcome model.Outcome, err error) model.Resource {
	res.Outcome = outcome
	res.Error = err.Error()
	c.logger.Error("resource failed",
		"url", res.URL,
		"outcome", string(outcome),
		"error", err,
	)
	return res
}

// pathLocks serializes work on the same local path.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *pathLocks) lock(path string) func() {
	p.mu.Lock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
