// Package consts holds constants used throughout Fetcharr.
package consts

import "time"

// JobStatus represents the lifecycle state of a fetch job.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobPreparing   JobStatus = "preparing"
	JobDownloading JobStatus = "downloading"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobCancelled   JobStatus = "cancelled"
)

// Terminal reports whether s is a terminal job status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Format kinds accepted on submission.
const (
	FormatVideo = "video"
	FormatAudio = "audio"
)

// Defaults applied when no flag or config value is set.
const (
	DefaultMaxWorkers      = 4
	DefaultRetentionHours  = 24
	DefaultCleanupEveryN   = 20
	DefaultFragmentRetries = 5
	DefaultPort            = "8756"
)

// Cache lifetimes for the metadata/search endpoints.
const (
	InfoCacheTTL      = 10 * time.Minute
	SearchCacheTTL    = 5 * time.Minute
	CacheMaxEntries   = 64
	MaxBatchURLs      = 10
	MaxSearchResults  = 30
	CancelledByUser   = "Download cancelled by user"
	ClientCookieName  = "fetcharr_client"
	SessionCookieDays = 30
)
