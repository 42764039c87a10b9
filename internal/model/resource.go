package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResourceKind classifies a mirrored file by its extension.
// The kind decides whether the file is re-opened and scanned for links.
type ResourceKind int

const (
	// KindUnknown is a file whose extension is not a recognized resource extension.
	// Extension-less URLs never produce this kind because they are stored as index.html.
	KindUnknown ResourceKind = iota

	// KindScannable is a text resource (html, css, js, json, php) that is
	// scanned for embedded references and rewritten.
	KindScannable

	// KindBinary is a recognized resource (images, fonts, media) that is
	// stored as-is and never scanned.
	KindBinary
)

// String returns the lowercase name of the kind.
func (k ResourceKind) String() string {
	switch k {
	case KindScannable:
		return "scannable"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its name.
func (k ResourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name.
func (k *ResourceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParseResourceKind(s)
	return nil
}

// ParseResourceKind converts a name produced by String back into a kind.
// Unrecognized names yield KindUnknown.
func ParseResourceKind(s string) ResourceKind {
	switch s {
	case "scannable":
		return KindScannable
	case "binary":
		return KindBinary
	default:
		return KindUnknown
	}
}

// Outcome is the terminal state of one URL in a crawl.
type Outcome string

const (
	// OutcomeDownloaded means the resource was fetched and stored
	// (and, for scannable kinds, rewritten).
	OutcomeDownloaded Outcome = "downloaded"

	// OutcomeSkipped means the local file already existed, so nothing was fetched.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFetchFailed means the transport returned an error or a non-success status.
	OutcomeFetchFailed Outcome = "fetch_failed"

	// OutcomeStoreFailed means the downloaded bytes could not be written.
	OutcomeStoreFailed Outcome = "store_failed"

	// OutcomeRewriteFailed means the raw file was stored but reading,
	// rewriting or re-writing it failed. The raw download stays on disk.
	OutcomeRewriteFailed Outcome = "rewrite_failed"

	// OutcomeRejected means the URL could not be mapped to a path inside the mirror root.
	OutcomeRejected Outcome = "rejected"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeDownloaded,
	OutcomeSkipped,
	OutcomeFetchFailed,
	OutcomeStoreFailed,
	OutcomeRewriteFailed,
	OutcomeRejected,
}

// IsFailure reports whether the outcome represents a failed resource.
func (o Outcome) IsFailure() bool {
	switch o {
	case OutcomeFetchFailed, OutcomeStoreFailed, OutcomeRewriteFailed, OutcomeRejected:
		return true
	default:
		return false
	}
}

// Resource is the record of one URL processed by the crawler.
type Resource struct {
	// URL is the absolute URL that was popped from the frontier.
	URL string `json:"url"`

	// LocalPath is the file the URL maps to under the mirror root.
	// Empty when the URL could not be mapped.
	LocalPath string `json:"local_path,omitempty"`

	// Kind is the classification derived from LocalPath.
	Kind ResourceKind `json:"kind"`

	// Outcome is what happened to the URL.
	Outcome Outcome `json:"outcome"`

	// Bytes is the number of raw bytes written to LocalPath.
	Bytes int64 `json:"bytes"`

	// Hash is the xxh3 hash of the raw bytes, hex encoded.
	Hash string `json:"hash,omitempty"`

	// Discovered is the number of references found in the resource
	// (only for scannable kinds).
	Discovered int `json:"discovered"`

	// Duration is the wall time spent on the URL.
	Duration time.Duration `json:"duration"`

	// Error holds the error message for failed outcomes.
	Error string `json:"error,omitempty"`
}

// String returns a short single-line description used in logs and tests.
func (r Resource) String() string {
	if r.Error != "" {
		return fmt.Sprintf("%s %s (%s)", r.Outcome, r.URL, r.Error)
	}
	return fmt.Sprintf("%s %s", r.Outcome, r.URL)
}
