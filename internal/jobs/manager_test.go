package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fetcharr/internal/domain/consts"
	"fetcharr/internal/fetch"
	"fetcharr/internal/models"
)

// fakeEngine is a scriptable fetch.Engine. Each Fetch call optionally
// announces itself on started, blocks on proceed, then runs the script.
// scriptCtx takes precedence over script for runs that must observe their
// context, the way a killed child process would.
type fakeEngine struct {
	mu        sync.Mutex
	started   chan string
	proceed   chan struct{}
	script    func(url string, opts fetch.Options) error
	scriptCtx func(ctx context.Context, url string, opts fetch.Options) error
	meta      fetch.Metadata
	metaErr   error
	calls     int
}

func (f *fakeEngine) Fetch(ctx context.Context, url string, opts fetch.Options) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- url
	}
	if f.proceed != nil {
		<-f.proceed
	}
	if f.scriptCtx != nil {
		return f.scriptCtx(ctx, url, opts)
	}
	if f.script != nil {
		return f.script(url, opts)
	}
	return nil
}

func (f *fakeEngine) Metadata(ctx context.Context, url string) (fetch.Metadata, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	if f.meta != nil {
		return f.meta, nil
	}
	return fetch.Metadata{"title": "Test Video"}, nil
}

func (f *fakeEngine) Search(ctx context.Context, query string, limit int) ([]fetch.SearchResult, error) {
	return nil, nil
}

func (f *fakeEngine) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestManager(t *testing.T, eng fetch.Engine, workers int, retention time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		DownloadRoot: t.TempDir(),
		MaxWorkers:   workers,
		Retention:    retention,
		Engine:       eng,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	mid := make(chan struct{})
	release := make(chan struct{})
	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			if err := opts.OnProgress(models.ProgressUpdate{
				Event:      models.EventDownloading,
				Downloaded: 50,
				Total:      100,
			}); err != nil {
				return err
			}
			mid <- struct{}{}
			<-release
			return opts.OnProgress(models.ProgressUpdate{
				Event:    models.EventFinished,
				Filename: filepath.Join(opts.OutputDir, "X.mp4"),
			})
		},
	}
	m := newTestManager(t, eng, 2, 0)

	job := models.NewJob("job-1", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-mid
	s := job.Snapshot()
	if s.Status != string(consts.JobDownloading) {
		t.Fatalf("mid-transfer status = %s, want downloading", s.Status)
	}
	if s.Progress != 50.0 {
		t.Fatalf("mid-transfer progress = %v, want 50", s.Progress)
	}

	close(release)
	waitFor(t, "job completion", func() bool { return job.Status().Terminal() })

	s = job.Snapshot()
	if s.Status != string(consts.JobCompleted) {
		t.Fatalf("final status = %s, want completed", s.Status)
	}
	if s.Progress != 100.0 {
		t.Fatalf("final progress = %v, want 100", s.Progress)
	}
	if s.Filename != "X.mp4" {
		t.Fatalf("final filename = %q, want X.mp4", s.Filename)
	}
	if s.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
}

func TestSubmitDuplicateID(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	m := newTestManager(t, eng, 1, 0)

	first := models.NewJob("dup", "https://example.com/a", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(first); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	waitFor(t, "first job completion", func() bool { return first.Status().Terminal() })

	second := models.NewJob("dup", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(second); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Submit error = %v, want ErrDuplicateID", err)
	}

	got, ok := m.Get("dup")
	if !ok || got.URL != "https://example.com/a" {
		t.Fatal("duplicate submission disturbed the existing job")
	}
}

func TestSubmitRequiresURL(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)
	if _, err := m.Submit(models.NewJob("j", "", consts.FormatVideo, "", nil, "")); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCancelVisibleImmediately(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	eng := &fakeEngine{
		started: make(chan string, 1),
		proceed: release,
		script: func(url string, opts fetch.Options) error {
			// Mimics the engine observing the abort at the next hook call.
			return opts.OnProgress(models.ProgressUpdate{Event: models.EventDownloading, Downloaded: 1, Total: 100})
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("c1", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-eng.started

	if !m.Cancel("c1") {
		t.Fatal("Cancel returned false for a running job")
	}
	if got := job.Status(); got != consts.JobCancelled {
		t.Fatalf("status after Cancel = %s, want cancelled before the worker reacts", got)
	}

	close(release)
	waitFor(t, "worker to drain", func() bool { return eng.fetchCalls() == 1 && job.Status().Terminal() })
	if got := job.Status(); got != consts.JobCancelled {
		t.Fatalf("status after worker drained = %s, want cancelled", got)
	}
}

func TestCancelContextKilledEngineStaysCancelled(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	eng := &fakeEngine{
		// Behaves like the real engine when its process group is killed:
		// blocks until the run context dies, then surfaces its error.
		scriptCtx: func(ctx context.Context, url string, opts fetch.Options) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("ck", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	if !m.Cancel("ck") {
		t.Fatal("Cancel returned false for a running job")
	}
	if got := job.Status(); got != consts.JobCancelled {
		t.Fatalf("status right after Cancel = %s, want cancelled", got)
	}

	// Wait for the worker to run the job's epilogue and release its handle.
	waitFor(t, "worker to drain", func() bool {
		m.mu.Lock()
		_, live := m.cancels["ck"]
		m.mu.Unlock()
		return !live
	})

	s := job.Snapshot()
	if s.Status != string(consts.JobCancelled) {
		t.Fatalf("status after worker drained = %s, want cancelled", s.Status)
	}
	if s.Error == nil || *s.Error != consts.CancelledByUser {
		t.Fatalf("cancelled job error = %v, want %q", s.Error, consts.CancelledByUser)
	}
}

func TestCancelTerminalJob(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)
	job := models.NewJob("c2", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "job completion", func() bool { return job.Status().Terminal() })

	if m.Cancel("c2") {
		t.Fatal("Cancel succeeded on a terminal job")
	}
	if got := job.Status(); got != consts.JobCompleted {
		t.Fatalf("terminal status disturbed: %s", got)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)
	if m.Cancel("nope") {
		t.Fatal("Cancel succeeded on an unknown job")
	}
}

func TestCancelBeforeWorkerStarts(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	eng := &fakeEngine{
		started: make(chan string, 1),
		proceed: release,
	}
	m := newTestManager(t, eng, 1, 0)

	blocker := models.NewJob("b", "https://example.com/a", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(blocker); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	<-eng.started

	queued := models.NewJob("q", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(queued); err != nil {
		t.Fatalf("Submit queued: %v", err)
	}

	if !m.Cancel("q") {
		t.Fatal("Cancel returned false for a queued job")
	}
	close(release)
	waitFor(t, "queue to drain", func() bool { return blocker.Status().Terminal() })

	// The worker must skip the cancelled job without touching the engine.
	waitFor(t, "no second fetch", func() bool { return eng.fetchCalls() == 1 })
	if got := queued.Status(); got != consts.JobCancelled {
		t.Fatalf("queued job status = %s, want cancelled", got)
	}
}

func TestRetryProducesFreshJob(t *testing.T) {
	t.Parallel()

	var fail bool = true
	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			if fail {
				fail = false
				return errors.New("network unreachable")
			}
			return nil
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("r", "https://example.com/v", consts.FormatAudio, "bestaudio", nil, "client-7")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "failure", func() bool { return job.Status() == consts.JobFailed })

	fresh, err := m.Retry("r")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if fresh == job {
		t.Fatal("Retry returned the old job object")
	}
	if fresh.ID != "r" || fresh.URL != job.URL || fresh.FormatType != consts.FormatAudio ||
		fresh.FormatID != "bestaudio" || fresh.RequestedBy != "client-7" {
		t.Fatal("Retry dropped immutable request parameters")
	}

	stored, ok := m.Get("r")
	if !ok || stored != fresh {
		t.Fatal("store still maps the ID to the old job")
	}
	waitFor(t, "retry completion", func() bool { return fresh.Status() == consts.JobCompleted })
	if s := fresh.Snapshot(); s.Error != nil {
		t.Fatalf("retried job kept the old error: %v", *s.Error)
	}
}

func TestRetryWhileOldRunDrains(t *testing.T) {
	t.Parallel()

	firstGate := make(chan struct{})
	secondStarted := make(chan struct{})
	var mu sync.Mutex
	var call int
	eng := &fakeEngine{
		scriptCtx: func(ctx context.Context, url string, opts fetch.Options) error {
			mu.Lock()
			call++
			n := call
			mu.Unlock()
			if n == 1 {
				<-firstGate
				return errors.New("stream interrupted")
			}
			close(secondStarted)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m := newTestManager(t, eng, 2, 0)

	job := models.NewJob("rr", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "first run to start", func() bool { return eng.fetchCalls() == 1 })

	fresh, err := m.Retry("rr")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	<-secondStarted

	// The old run finishes after the retry registered its own handle; its
	// epilogue must leave the new run's handle in place.
	close(firstGate)
	waitFor(t, "old run to drain", func() bool { return job.Status().Terminal() })
	time.Sleep(20 * time.Millisecond)

	m.mu.Lock()
	_, live := m.cancels["rr"]
	m.mu.Unlock()
	if !live {
		t.Fatal("old run removed the retried run's cancel handle")
	}

	if !m.Cancel("rr") {
		t.Fatal("Cancel returned false for the retried run")
	}
	waitFor(t, "retried run to stop", func() bool { return fresh.Status().Terminal() })
	if got := fresh.Status(); got != consts.JobCancelled {
		t.Fatalf("retried run status = %s, want cancelled", got)
	}
}

func TestRetryUnknownJob(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)
	if _, err := m.Retry("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Retry error = %v, want ErrNotFound", err)
	}
}

func TestClearRemovesArtifacts(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			path := filepath.Join(opts.OutputDir, "out.mp4")
			if err := os.WriteFile(path, []byte("bytes"), 0o644); err != nil {
				return err
			}
			return opts.OnProgress(models.ProgressUpdate{Event: models.EventFinished, Filename: path})
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("cl", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "completion", func() bool { return job.Status() == consts.JobCompleted })

	dir := filepath.Dir(job.FilePath())
	if !m.Clear("cl") {
		t.Fatal("Clear returned false for a live job")
	}
	if _, ok := m.Get("cl"); ok {
		t.Fatal("job still in store after Clear")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("working directory survived Clear: %v", err)
	}
}

func TestClearUnknownJob(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)
	if m.Clear("ghost") {
		t.Fatal("Clear succeeded on an unknown job")
	}
}

func TestCleanupExpired(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	m := newTestManager(t, eng, 2, 50*time.Millisecond)

	old := models.NewJob("old", "https://example.com/a", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(old); err != nil {
		t.Fatalf("Submit old: %v", err)
	}
	waitFor(t, "old job completion", func() bool { return old.Status().Terminal() })

	time.Sleep(80 * time.Millisecond)

	fresh := models.NewJob("fresh", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(fresh); err != nil {
		t.Fatalf("Submit fresh: %v", err)
	}
	waitFor(t, "fresh job completion", func() bool { return fresh.Status().Terminal() })

	running := models.NewJob("never-done", "https://example.com/c", consts.FormatVideo, "", nil, "")
	if err := m.store.Insert(running); err != nil {
		t.Fatalf("Insert running: %v", err)
	}

	m.CleanupExpired()

	if _, ok := m.Get("old"); ok {
		t.Fatal("expired job survived cleanup")
	}
	if _, ok := m.Get("fresh"); !ok {
		t.Fatal("recent job was cleaned up")
	}
	if _, ok := m.Get("never-done"); !ok {
		t.Fatal("non-completed job was cleaned up")
	}
}

func TestSingleWorkerSerializes(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		started: make(chan string),
		proceed: make(chan struct{}),
	}
	m := newTestManager(t, eng, 1, 0)

	a := models.NewJob("a", "https://example.com/a", consts.FormatVideo, "", nil, "")
	b := models.NewJob("b", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(a); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	if _, err := m.Submit(b); err != nil {
		t.Fatalf("Submit b: %v", err)
	}

	if url := <-eng.started; url != "https://example.com/a" {
		t.Fatalf("first fetch was %s, want a", url)
	}
	if got := b.Status(); got != consts.JobQueued {
		t.Fatalf("second job status = %s while first is in flight, want queued", got)
	}

	eng.proceed <- struct{}{}
	if url := <-eng.started; url != "https://example.com/b" {
		t.Fatalf("second fetch was %s, want b", url)
	}
	eng.proceed <- struct{}{}
	waitFor(t, "both jobs done", func() bool { return a.Status().Terminal() && b.Status().Terminal() })
}

func TestFailedJobGetsFriendlyMessage(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			return errors.New("ERROR: This video is private")
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("f", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "failure", func() bool { return job.Status() == consts.JobFailed })

	s := job.Snapshot()
	if s.Error == nil || *s.Error != "This video is private. Ask the uploader for access before downloading." {
		t.Fatalf("unexpected friendly message: %v", s.Error)
	}
	debug, _ := s.Metadata["debug"].(map[string]any)
	if debug == nil || debug["raw_error"] != "ERROR: This video is private" {
		t.Fatalf("raw error not preserved: %v", s.Metadata)
	}
}

func TestPlaylistFetchesEveryEntry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var fetched []string
	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			mu.Lock()
			fetched = append(fetched, url)
			mu.Unlock()
			return nil
		},
	}
	m := newTestManager(t, eng, 1, 0)

	entries := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	job := models.NewJob("pl", "https://example.com/list", consts.FormatVideo, "", entries, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "playlist completion", func() bool { return job.Status().Terminal() })

	mu.Lock()
	defer mu.Unlock()
	if len(fetched) != 3 {
		t.Fatalf("fetched %d entries, want 3", len(fetched))
	}
	for i, want := range entries {
		if fetched[i] != want {
			t.Fatalf("entry %d fetched %s, want %s", i, fetched[i], want)
		}
	}
}

func TestRateLimitSnapshotPerJob(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	limits := make(chan int64, 2)
	eng := &fakeEngine{
		started: make(chan string, 2),
		proceed: release,
		script: func(url string, opts fetch.Options) error {
			limits <- opts.RateLimitBps
			return nil
		},
	}
	m := newTestManager(t, eng, 1, 0)
	m.SetRateLimit(500)

	a := models.NewJob("a", "https://example.com/a", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(a); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	<-eng.started

	// Changing the limit mid-flight applies only to later jobs.
	m.SetRateLimit(0)

	b := models.NewJob("b", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(b); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	close(release)
	waitFor(t, "both jobs done", func() bool { return a.Status().Terminal() && b.Status().Terminal() })

	if got := <-limits; got != 500*1024 {
		t.Fatalf("first job limit = %d, want %d", got, 500*1024)
	}
	if got := <-limits; got != 0 {
		t.Fatalf("second job limit = %d, want 0", got)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	var n int
	var mu sync.Mutex
	eng := &fakeEngine{
		script: func(url string, opts fetch.Options) error {
			mu.Lock()
			n++
			fail := n == 1
			mu.Unlock()
			if fail {
				return errors.New("boom")
			}
			return opts.OnProgress(models.ProgressUpdate{Event: models.EventDownloading, Downloaded: 2048, Total: 2048})
		},
	}
	m := newTestManager(t, eng, 1, 0)

	a := models.NewJob("a", "https://example.com/a", consts.FormatVideo, "", nil, "")
	b := models.NewJob("b", "https://example.com/b", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(a); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	waitFor(t, "a terminal", func() bool { return a.Status().Terminal() })
	if _, err := m.Submit(b); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	waitFor(t, "b terminal", func() bool { return b.Status().Terminal() })

	st := m.Stats()
	if st.TotalDownloads != 2 {
		t.Fatalf("TotalDownloads = %d, want 2", st.TotalDownloads)
	}
	if st.FailedDownloads != 1 || st.CompletedDownloads != 1 {
		t.Fatalf("failed/completed = %d/%d, want 1/1", st.FailedDownloads, st.CompletedDownloads)
	}
	if st.TotalDownloadedBytes != 2048 {
		t.Fatalf("TotalDownloadedBytes = %d, want 2048", st.TotalDownloadedBytes)
	}
}

func TestSetDownloadRoot(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeEngine{}, 1, 0)

	next := filepath.Join(t.TempDir(), "nested", "media")
	got, err := m.SetDownloadRoot(next)
	if err != nil {
		t.Fatalf("SetDownloadRoot: %v", err)
	}
	if got != m.DownloadRoot() {
		t.Fatalf("returned root %q differs from DownloadRoot() %q", got, m.DownloadRoot())
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestMetadataPrefetch(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		meta: fetch.Metadata{
			"title":       "A Title",
			"uploader":    "Someone",
			"upload_date": "20240115",
			"duration":    42.0,
		},
	}
	m := newTestManager(t, eng, 1, 0)

	job := models.NewJob("meta", "https://example.com/v", consts.FormatVideo, "", nil, "")
	if _, err := m.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "completion", func() bool { return job.Status().Terminal() })

	meta := job.Snapshot().Metadata
	if meta["title"] != "A Title" || meta["uploader"] != "Someone" {
		t.Fatalf("metadata not merged: %v", meta)
	}
	if meta["upload_date"] != "2024-01-15" {
		t.Fatalf("upload_date not normalized: %v", meta["upload_date"])
	}
}
