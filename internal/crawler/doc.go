// Package crawler implements the mirror engine: it walks a site from a seed
// URL, stores every referenced resource under a mirror root and rewrites
// absolute references inside text resources so the copy can be browsed
// offline.
//
// # Components
//
//   - LocalPath / MapURL: map a URL to its file under the mirror root
//   - IsValidURL: filter pattern matches that are not resource references
//   - Extractor: pattern-based discovery of references in text content
//   - Rewrite: replace absolute references with root-relative local paths
//   - Frontier: the to-visit and visited URL sets
//   - Spider: the driver that ties the above to a Fetcher and a Storage
//
// # Discovery
//
// Link discovery is a permissive token scan over the raw text, not an HTML or
// CSS parser. Anything that looks like a path ending in a recognized resource
// extension is a candidate, so references inside <script>, CSS url() and
// inline JSON are found the same way as src and href attributes.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, store, "/var/mirror/example",
//		crawler.WithWorkers(4),
//		crawler.WithLogger(logger),
//	)
//	summary, err := spider.Mirror(ctx, "http://example.com/")
//
// Files that already exist under the mirror root are never fetched again,
// so re-running Mirror against a partial mirror resumes it.
package crawler
