// Package database provides the SQLite crawl journal of sitemirror.
//
// The journal records every mirror run and every resource processed in it:
//   - runs: seed, mirror root, start and finish time, per-outcome counts
//   - resources: URL, local path, kind, outcome, size, content hash, error
//
// It uses modernc.org/sqlite, a CGO-free driver, so the journal is a single
// file that needs no external service. The crawl itself never reads the
// journal: resume decisions are taken from the mirror directory alone.
package database
