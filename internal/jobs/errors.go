// Package jobs implements the concurrent fetch-job manager: the job store,
// the bounded worker pool, and the orchestration around the fetch engine.
package jobs

import (
	"errors"
	"strings"
)

var (
	// ErrCancelled is the distinguished cancellation signal. It is raised by
	// the progress hook when the cancel flag is set and caught only by the
	// worker's own run loop, never surfaced as a generic failure.
	ErrCancelled = errors.New("download cancelled")

	// ErrNotFound reports an operation referencing an unknown job ID.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID reports a submission reusing a live job ID.
	ErrDuplicateID = errors.New("job ID already exists")
)

// FriendlyError maps known engine failures to user-facing messages and
// passes everything else through verbatim.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	lowered := strings.ToLower(msg)

	switch {
	case strings.Contains(lowered, "sign in to confirm you're not a bot"),
		strings.Contains(lowered, "sign in to confirm you’re not a bot"):
		return "The source blocked this request and wants verification. Upload a cookies.txt file under Settings and retry."
	case strings.Contains(lowered, "this video is private"):
		return "This video is private. Ask the uploader for access before downloading."
	case strings.Contains(lowered, "members-only"):
		return "This video is for channel members only. Sign in with an account that has access."
	case strings.Contains(lowered, "premium"):
		return "This content requires a paid subscription. Provide cookies from an account with access."
	}

	if msg != "" {
		return msg
	}
	return "Download failed due to an unknown error."
}
