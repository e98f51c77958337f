// Package fetch defines the fetch engine contract and its yt-dlp implementation.
package fetch

import (
	"context"

	"fetcharr/internal/models"
)

// ProgressFunc is invoked synchronously by the engine for each progress
// event. Returning a non-nil error aborts the engine call with that error.
// The callback runs on the engine's own goroutine and must return quickly.
type ProgressFunc func(models.ProgressUpdate) error

// Options configures one engine invocation.
type Options struct {
	// OutputDir is the directory resolved media files are written into.
	OutputDir string

	// FormatType is "video" or "audio"; ignored when FormatID is set.
	FormatType string

	// FormatID is an explicit format selector.
	FormatID string

	// RateLimitBps caps the transfer speed in bytes per second. Zero means
	// unlimited.
	RateLimitBps int64

	// CookieFile is an optional Netscape-format cookie file path.
	CookieFile string

	// FragmentRetries is passed through to the engine's own retry logic for
	// network fragments.
	FragmentRetries int

	// OnProgress receives progress snapshots during the transfer.
	OnProgress ProgressFunc
}

// Metadata is the loosely-typed info document an engine resolves for a URL.
type Metadata map[string]any

// SearchResult is one entry returned by Search.
type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Uploader  string `json:"uploader"`
	Duration  int64  `json:"duration"`
	ViewCount int64  `json:"view_count"`
}

// Engine resolves a source URL's real media locations and transfers the
// bytes to disk, reporting progress through Options.OnProgress. Fetch blocks
// for the duration of the transfer.
type Engine interface {
	Fetch(ctx context.Context, url string, opts Options) error
	Metadata(ctx context.Context, url string) (Metadata, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
