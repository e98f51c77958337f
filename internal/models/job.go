// Package models holds the shared data models for Fetcharr.
package models

import (
	"math"
	"path/filepath"
	"sync"
	"time"

	"fetcharr/internal/domain/consts"
)

// Progress event kinds reported by the fetch engine.
const (
	EventDownloading = "downloading"
	EventFinished    = "finished"
)

// ProgressUpdate is one snapshot reported by the fetch engine's hook.
type ProgressUpdate struct {
	Event      string
	Filename   string
	Downloaded int64
	Total      int64
	Speed      float64
	ETA        int64
}

// Job is one tracked fetch request. Identity and request parameters are
// immutable after creation; all other fields are guarded by the job's own
// mutex so that status polling never contends with unrelated jobs.
type Job struct {
	ID           string
	URL          string
	FormatType   string
	FormatID     string
	PlaylistURLs []string
	RequestedBy  string
	CreatedAt    time.Time

	mu              sync.Mutex
	status          consts.JobStatus
	progress        float64
	filename        string
	filePath        string
	filesize        int64
	downloaded      int64
	speed           float64
	eta             int64
	errMsg          string
	metadata        map[string]any
	updatedAt       time.Time
	completedAt     time.Time
	cancelRequested bool
}

// NewJob returns a queued job for the given request parameters.
func NewJob(id, url, formatType, formatID string, playlistURLs []string, requestedBy string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           id,
		URL:          url,
		FormatType:   formatType,
		FormatID:     formatID,
		PlaylistURLs: append([]string(nil), playlistURLs...),
		RequestedBy:  requestedBy,
		CreatedAt:    now,
		status:       consts.JobQueued,
		metadata:     make(map[string]any),
		updatedAt:    now,
	}
}

// ApplyHook merges an engine progress snapshot into the job. Updates arriving
// after the job reached a terminal state are silently ignored.
func (j *Job) ApplyHook(u ProgressUpdate) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return
	}

	switch u.Event {
	case EventDownloading:
		j.status = consts.JobDownloading
		if u.Filename != "" {
			j.filename = filepath.Base(u.Filename)
		}
		if u.Downloaded > 0 {
			j.downloaded = u.Downloaded
		}
		if u.Total > 0 {
			j.filesize = u.Total
			pct := (float64(j.downloaded) / float64(j.filesize)) * 100.0
			pct = math.Max(0.0, math.Min(100.0, pct))
			if pct > j.progress {
				j.progress = pct
			}
		}
		j.speed = u.Speed
		j.eta = u.ETA

	case EventFinished:
		if u.Filename != "" {
			j.filename = filepath.Base(u.Filename)
			j.filePath = u.Filename
		}
		j.progress = 100.0
		j.status = consts.JobCompleted
		if j.completedAt.IsZero() {
			j.completedAt = time.Now().UTC()
		}
	}
	j.updatedAt = time.Now().UTC()
}

// BeginPreparing moves the job into the preparing state for a fresh run.
func (j *Job) BeginPreparing() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = consts.JobPreparing
	j.errMsg = ""
	j.progress = 0.0
	j.updatedAt = time.Now().UTC()
}

// Complete finalizes a successful run. A job already forced to cancelled
// keeps its cancelled status.
func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == consts.JobCancelled {
		return
	}
	j.status = consts.JobCompleted
	j.progress = 100.0
	if j.completedAt.IsZero() {
		j.completedAt = time.Now().UTC()
	}
	j.updatedAt = time.Now().UTC()
}

// Fail marks the job failed with a user-facing message, retaining the raw
// engine error under metadata for diagnostics. A job already in a terminal
// state keeps it; a forced cancel must never resurface as a failure.
func (j *Job) Fail(friendly, raw string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = consts.JobFailed
	j.errMsg = friendly
	debug, ok := j.metadata["debug"].(map[string]any)
	if !ok {
		debug = make(map[string]any)
		j.metadata["debug"] = debug
	}
	debug["raw_error"] = raw
	j.updatedAt = time.Now().UTC()
}

// RequestCancel sets the cancellation flag and optimistically forces the
// cancelled status so pollers observe it before the worker notices.
func (j *Job) RequestCancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelRequested = true
	if !j.status.Terminal() {
		j.status = consts.JobCancelled
		j.errMsg = consts.CancelledByUser
	}
	j.updatedAt = time.Now().UTC()
}

// CancelRequested reports whether cancellation has been requested.
func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// Status returns the current job status.
func (j *Job) Status() consts.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// FilePath returns the resolved on-disk path, empty until completion.
func (j *Job) FilePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.filePath
}

// CompletedAt returns the completion timestamp, zero if not completed.
func (j *Job) CompletedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

// MergeMetadata folds the given fields into the job's metadata map. Nil
// values are skipped.
func (j *Job) MergeMetadata(fields map[string]any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for k, v := range fields {
		if v == nil {
			continue
		}
		j.metadata[k] = v
	}
	j.updatedAt = time.Now().UTC()
}

// JobSnapshot is the serializable view of a job for API responses.
type JobSnapshot struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	FormatType  string         `json:"format_type"`
	FormatID    string         `json:"format_id,omitempty"`
	Status      string         `json:"status"`
	Progress    float64        `json:"progress"`
	Filename    string         `json:"filename"`
	Filesize    int64          `json:"filesize"`
	Downloaded  int64          `json:"downloaded"`
	Speed       float64        `json:"speed"`
	ETA         int64          `json:"eta"`
	Error       *string        `json:"error"`
	Completed   bool           `json:"completed"`
	FileReady   bool           `json:"file_ready"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}

// Snapshot returns a consistent copy of the job's current state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	meta := make(map[string]any, len(j.metadata))
	for k, v := range j.metadata {
		meta[k] = v
	}

	s := JobSnapshot{
		ID:         j.ID,
		URL:        j.URL,
		FormatType: j.FormatType,
		FormatID:   j.FormatID,
		Status:     string(j.status),
		Progress:   math.Round(j.progress*100) / 100,
		Filename:   j.filename,
		Filesize:   j.filesize,
		Downloaded: j.downloaded,
		Speed:      j.speed,
		ETA:        j.eta,
		Completed:  j.status == consts.JobCompleted,
		FileReady:  j.filePath != "" && j.status == consts.JobCompleted,
		Metadata:   meta,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.updatedAt,
	}
	if j.errMsg != "" {
		msg := j.errMsg
		s.Error = &msg
	}
	if !j.completedAt.IsZero() {
		t := j.completedAt
		s.CompletedAt = &t
	}
	return s
}
