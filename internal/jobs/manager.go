package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fetcharr/internal/domain/consts"
	"fetcharr/internal/fetch"
	"fetcharr/internal/models"
	"fetcharr/internal/parsing"
	"fetcharr/internal/utils/logging"
)

// CookieProvider resolves a Netscape cookie file usable for the given URL.
// Implementations may return an empty path when no cookies are available.
type CookieProvider interface {
	CookieFile(ctx context.Context, url string) (string, error)
}

// PreviewFunc scrapes lightweight page metadata for a URL. Used as a
// fallback when the engine's own metadata extraction fails.
type PreviewFunc func(ctx context.Context, url string) map[string]any

// Config configures a Manager.
type Config struct {
	DownloadRoot string
	MaxWorkers   int
	Retention    time.Duration
	Engine       fetch.Engine
	Cookies      CookieProvider // optional
	Preview      PreviewFunc    // optional
}

// Manager orchestrates fetch jobs: it registers them in the store, schedules
// them on the worker pool, applies the global rate limit, and handles
// cancellation, retry, and retention cleanup.
type Manager struct {
	store  *Store
	pool   *Pool
	engine fetch.Engine

	cookies CookieProvider
	preview PreviewFunc

	retention time.Duration

	mu           sync.Mutex
	cancels      map[string]*runHandle
	jobDirs      map[string]string
	rateLimitBps int64
	root         string
}

// runHandle identifies one worker run's cancel function. Retry can start a
// fresh run under the same ID while the old one drains; comparing handles
// keeps the finished run from removing its successor's entry.
type runHandle struct {
	cancel context.CancelFunc
}

// NewManager creates the manager and starts its worker pool. The download
// root is created if absent.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, errors.New("fetch engine is required")
	}

	root, err := resolveRoot(cfg.DownloadRoot)
	if err != nil {
		return nil, err
	}

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = consts.DefaultMaxWorkers
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = consts.DefaultRetentionHours * time.Hour
	}

	m := &Manager{
		store:     NewStore(),
		engine:    cfg.Engine,
		cookies:   cfg.Cookies,
		preview:   cfg.Preview,
		retention: retention,
		cancels:   make(map[string]*runHandle),
		jobDirs:   make(map[string]string),
		root:      root,
	}
	m.pool = NewPool(workers, m.runJob)
	return m, nil
}

// Shutdown stops admission and waits for in-flight jobs.
func (m *Manager) Shutdown() {
	m.pool.Shutdown()
}

// Submit registers the job and hands it to the worker pool. Returns
// ErrDuplicateID if the ID is already live. Non-blocking.
func (m *Manager) Submit(job *models.Job) (*models.Job, error) {
	if job.URL == "" {
		return nil, errors.New("job URL is required")
	}
	if err := m.store.Insert(job); err != nil {
		return nil, fmt.Errorf("submit %s: %w", job.ID, err)
	}
	m.pool.Submit(job.ID)
	logging.D(1, "Job %s submitted", job.ID)
	return job, nil
}

// Get returns the job for id.
func (m *Manager) Get(id string) (*models.Job, bool) {
	return m.store.Get(id)
}

// List returns all jobs, or the subset matching ids when non-nil.
func (m *Manager) List(ids []string) []*models.Job {
	return m.store.List(ids)
}

// Cancel requests cancellation. The job's visible status flips to cancelled
// immediately; the in-flight worker observes the flag at its next
// checkpoint. Returns false for unknown or already-terminal jobs.
func (m *Manager) Cancel(id string) bool {
	job, ok := m.store.Get(id)
	if !ok {
		return false
	}
	if job.Status().Terminal() {
		return false
	}

	job.RequestCancel()

	m.mu.Lock()
	h := m.cancels[id]
	m.mu.Unlock()
	if h != nil {
		h.cancel()
	}
	return true
}

// Retry builds a fresh job from the prior one's immutable parameters and
// re-submits it under the same ID, replacing the store entry atomically.
func (m *Manager) Retry(id string) (*models.Job, error) {
	old, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("retry %s: %w", id, ErrNotFound)
	}

	job := models.NewJob(old.ID, old.URL, old.FormatType, old.FormatID, old.PlaylistURLs, old.RequestedBy)
	m.store.Replace(job)
	m.pool.Submit(job.ID)
	logging.I("Job %s resubmitted", id)
	return job, nil
}

// Clear removes the job from the store, cancels it if still running, and
// deletes its on-disk artifacts and working directory. Filesystem errors are
// logged, never raised.
func (m *Manager) Clear(id string) bool {
	job, ok := m.store.Remove(id)

	m.mu.Lock()
	h := m.cancels[id]
	dir, haveDir := m.jobDirs[id]
	delete(m.jobDirs, id)
	if !haveDir {
		dir = filepath.Join(m.root, id)
	}
	m.mu.Unlock()

	if h != nil {
		h.cancel()
	}
	if !ok {
		return false
	}

	if path := job.FilePath(); path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.W("Could not remove file for job %s: %v", id, err)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		logging.W("Could not remove directory for job %s: %v", id, err)
	}
	return true
}

// CleanupExpired clears every job whose completion timestamp is older than
// the retention window. Jobs that never completed are left alone. Idempotent;
// intended to be triggered externally.
func (m *Manager) CleanupExpired() {
	cutoff := time.Now().UTC().Add(-m.retention)
	for _, job := range m.store.List(nil) {
		if completed := job.CompletedAt(); !completed.IsZero() && completed.Before(cutoff) {
			logging.D(1, "Clearing expired job %s (completed %s)", job.ID, completed)
			m.Clear(job.ID)
		}
	}
}

// SetDownloadRoot changes the base directory for future job working
// directories. Jobs already running or completed are unaffected.
func (m *Manager) SetDownloadRoot(path string) (string, error) {
	root, err := resolveRoot(path)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.root = root
	m.mu.Unlock()
	return root, nil
}

// DownloadRoot returns the current download root.
func (m *Manager) DownloadRoot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// SetRateLimit caps the per-job transfer speed for subsequently started
// jobs. Values <= 0 remove the limit. Running jobs keep their snapshot.
func (m *Manager) SetRateLimit(kbPerSec int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kbPerSec <= 0 {
		m.rateLimitBps = 0
		return
	}
	m.rateLimitBps = int64(kbPerSec) * 1024
}

// RateLimitKB returns the current limit in KB/s, 0 when unlimited.
func (m *Manager) RateLimitKB() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.rateLimitBps / 1024)
}

// Stats aggregates counters over all live jobs.
type Stats struct {
	TotalDownloads       int     `json:"total_downloads"`
	ActiveDownloads      int     `json:"active_downloads"`
	CompletedDownloads   int     `json:"completed_downloads"`
	FailedDownloads      int     `json:"failed_downloads"`
	TotalDownloadedBytes int64   `json:"total_downloaded_bytes"`
	AverageSpeed         float64 `json:"average_speed"`
}

// Stats returns aggregate download statistics.
func (m *Manager) Stats() Stats {
	var (
		st         Stats
		speedCount int
	)
	for _, job := range m.store.List(nil) {
		s := job.Snapshot()
		st.TotalDownloads++
		switch consts.JobStatus(s.Status) {
		case consts.JobQueued, consts.JobPreparing, consts.JobDownloading:
			st.ActiveDownloads++
		case consts.JobCompleted:
			st.CompletedDownloads++
		case consts.JobFailed:
			st.FailedDownloads++
		}
		st.TotalDownloadedBytes += s.Downloaded
		if s.Speed > 0 {
			st.AverageSpeed += s.Speed
			speedCount++
		}
	}
	if speedCount > 0 {
		st.AverageSpeed /= float64(speedCount)
	}
	return st
}

// runJob executes one job's full lifecycle inside a worker slot.
func (m *Manager) runJob(id string) {
	job, ok := m.store.Get(id)
	if !ok {
		return
	}
	if job.CancelRequested() {
		logging.I("Job %s cancelled before starting", id)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot manager configuration at job start; later changes do not
	// retroactively affect this run.
	handle := &runHandle{cancel: cancel}
	m.mu.Lock()
	m.cancels[id] = handle
	root := m.root
	rateLimit := m.rateLimitBps
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.cancels[id] == handle {
			delete(m.cancels, id)
		}
		m.mu.Unlock()
	}()

	jobDir := filepath.Join(root, id)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		job.Fail(FriendlyError(err), err.Error())
		logging.E("Job %s failed to create working directory: %v", id, err)
		return
	}
	m.mu.Lock()
	m.jobDirs[id] = jobDir
	m.mu.Unlock()

	job.BeginPreparing()

	m.prefetchMetadata(ctx, job)

	opts := fetch.Options{
		OutputDir:       jobDir,
		FormatType:      job.FormatType,
		FormatID:        job.FormatID,
		RateLimitBps:    rateLimit,
		FragmentRetries: consts.DefaultFragmentRetries,
		OnProgress: func(u models.ProgressUpdate) error {
			if job.CancelRequested() {
				return ErrCancelled
			}
			job.ApplyHook(u)
			return nil
		},
	}

	if m.cookies != nil {
		cookieFile, err := m.cookies.CookieFile(ctx, job.URL)
		if err != nil {
			logging.D(2, "No cookies for job %s: %v", id, err)
		} else {
			opts.CookieFile = cookieFile
		}
	}

	err := m.fetchAll(ctx, job, opts)
	switch {
	case err == nil:
		job.Complete()
		logging.S("Job %s completed", id)
	case errors.Is(err, ErrCancelled), job.CancelRequested():
		// A context-killed engine call surfaces its own error, not the
		// sentinel; the cancel flag decides.
		logging.I("Job %s cancelled", id)
	default:
		job.Fail(FriendlyError(err), err.Error())
		logging.E("Job %s failed: %v", id, err)
	}
}

// fetchAll runs the engine once per playlist entry, or once for the job URL.
// Cancellation is checked at each playlist-entry boundary.
func (m *Manager) fetchAll(ctx context.Context, job *models.Job, opts fetch.Options) error {
	if len(job.PlaylistURLs) == 0 {
		return m.engine.Fetch(ctx, job.URL, opts)
	}
	for _, entry := range job.PlaylistURLs {
		if job.CancelRequested() {
			return ErrCancelled
		}
		if err := m.engine.Fetch(ctx, entry, opts); err != nil {
			return err
		}
	}
	return nil
}

// prefetchMetadata populates the job's metadata map opportunistically before
// the transfer. Failures are logged and never fail the job.
func (m *Manager) prefetchMetadata(ctx context.Context, job *models.Job) {
	info, err := m.engine.Metadata(ctx, job.URL)
	if err != nil {
		logging.D(1, "Metadata extraction failed for job %s: %v", job.ID, err)
		if m.preview != nil {
			if og := m.preview(ctx, job.URL); len(og) > 0 {
				job.MergeMetadata(og)
			}
		}
		return
	}

	fields := map[string]any{
		"title":       info["title"],
		"uploader":    info["uploader"],
		"duration":    info["duration"],
		"view_count":  info["view_count"],
		"thumbnail":   info["thumbnail"],
		"ext":         info["ext"],
		"webpage_url": info["webpage_url"],
	}
	if raw, ok := info["upload_date"].(string); ok {
		if date, err := parsing.ParseUploadDate(raw); err == nil {
			fields["upload_date"] = date
		}
	}
	job.MergeMetadata(fields)

	if len(job.PlaylistURLs) > 0 {
		m.prefetchPlaylistTitles(ctx, job)
	}
}

// prefetchPlaylistTitles resolves playlist-entry titles concurrently, bounded
// so the probe never swamps the host.
func (m *Manager) prefetchPlaylistTitles(ctx context.Context, job *models.Job) {
	entries := job.PlaylistURLs
	if len(entries) > consts.MaxBatchURLs {
		entries = entries[:consts.MaxBatchURLs]
	}

	titles := make([]string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range entries {
		i, u := i, u
		g.Go(func() error {
			info, err := m.engine.Metadata(gctx, u)
			if err != nil {
				logging.D(2, "Playlist entry metadata failed for %s: %v", u, err)
				return nil
			}
			if title, ok := info["title"].(string); ok {
				titles[i] = title
			}
			return nil
		})
	}
	_ = g.Wait()

	members := make([]map[string]any, 0, len(entries))
	for i, u := range entries {
		members = append(members, map[string]any{"url": u, "title": titles[i]})
	}
	job.MergeMetadata(map[string]any{"entries": members})
}

// resolveRoot normalizes and creates a download root directory.
func resolveRoot(path string) (string, error) {
	if path == "" {
		return "", errors.New("download root is required")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve download root %q: %w", path, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("could not create download root %q: %w", root, err)
	}
	return root, nil
}
