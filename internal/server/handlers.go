package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fetcharr/internal/domain/consts"
	"fetcharr/internal/models"
	"fetcharr/internal/utils/logging"
)

// handleStartDownload submits a new fetch job for the client's session.
func handleStartDownload(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "url")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	url := stringValue(payload["url"])
	formatType := normalizeFormatType(payload["format"])
	formatID := stringValue(payload["format_id"])
	playlistURLs := cleanedURLList(payload["playlist_urls"], consts.MaxBatchURLs)

	clientID := ensureClientID(w, r)
	job := models.NewJob(uuid.NewString(), url, formatType, formatID, playlistURLs, clientID)

	if _, err := mgr.Submit(job); err != nil {
		writeError(w, http.StatusConflict, "could not start download: %v", err)
		return
	}
	if err := sessions.Track(clientID, job.ID); err != nil {
		logging.E("failed to track download %s: %v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"download_id": job.ID,
		"job":         job.Snapshot(),
	})
}

// handleBatchDownload submits up to MaxBatchURLs video downloads at once.
func handleBatchDownload(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "urls")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	urls := cleanedURLList(payload["urls"], consts.MaxBatchURLs)
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "urls must be a non-empty list")
		return
	}

	clientID := ensureClientID(w, r)
	submitted := make([]map[string]string, 0, len(urls))
	for _, url := range urls {
		job := models.NewJob(uuid.NewString(), url, consts.FormatVideo, "", nil, clientID)
		if _, err := mgr.Submit(job); err != nil {
			logging.E("batch submission failed for %s: %v", url, err)
			continue
		}
		if err := sessions.Track(clientID, job.ID); err != nil {
			logging.E("failed to track download %s: %v", job.ID, err)
		}
		submitted = append(submitted, map[string]string{"url": url, "download_id": job.ID})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":   fmt.Sprintf("Processing %d URLs", len(submitted)),
		"downloads": submitted,
	})
}

// handleMyDownloads lists the session's downloads.
func handleMyDownloads(w http.ResponseWriter, r *http.Request) {
	clientID := ensureClientID(w, r)
	writeJSON(w, http.StatusOK, map[string]any{
		"downloads": sessionSnapshots(clientID),
	})
}

// handleGetDownload returns one job's current snapshot.
func handleGetDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := jobOr404(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleDownloadFile serves a completed job's artifact.
func handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	job, ok := jobOr404(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	s := job.Snapshot()
	path := job.FilePath()
	if !s.Completed || path == "" {
		writeError(w, http.StatusBadRequest, "download not completed yet")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found on server")
		return
	}

	w.Header().Set("Content-Type", guessMimetype(s.Filename))
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.Filename+`"`)
	http.ServeFile(w, r, path)
}

// handleCancelDownload requests cooperative cancellation of a running job.
func handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := jobOr404(w, id)
	if !ok {
		return
	}
	if job.Status().Terminal() {
		writeError(w, http.StatusBadRequest, "download cannot be cancelled in its current state")
		return
	}

	mgr.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Download cancelled",
		"job":     job.Snapshot(),
	})
}

// handleRetryDownload restarts a failed or cancelled job under the same ID.
func handleRetryDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := jobOr404(w, id)
	if !ok {
		return
	}
	switch job.Status() {
	case consts.JobFailed, consts.JobCancelled:
	default:
		writeError(w, http.StatusBadRequest, "only failed or cancelled downloads can be retried")
		return
	}

	fresh, err := mgr.Retry(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unable to retry download: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Download restarted",
		"job":     fresh.Snapshot(),
	})
}

// handleClearDownload removes a download from the session's history and, if
// terminal, clears the job and its artifacts.
func handleClearDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	clientID := ensureClientID(w, r)

	if err := sessions.Untrack(clientID, id); err != nil {
		logging.E("failed to untrack download %s: %v", id, err)
	}

	if job, ok := mgr.Get(id); ok && job.Status().Terminal() {
		mgr.Clear(id)
		if err := sessions.UntrackJob(id); err != nil {
			logging.E("failed to purge download %s from sessions: %v", id, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Download " + id + " removed"})
}

// handleClearHistory wipes the session's download history, clearing any of
// its terminal jobs and their artifacts along the way.
func handleClearHistory(w http.ResponseWriter, r *http.Request) {
	clientID := ensureClientID(w, r)

	ids, err := sessions.JobIDs(clientID)
	if err != nil {
		logging.E("failed to read session downloads for %s: %v", clientID, err)
	}

	cleared := 0
	for _, id := range ids {
		if job, ok := mgr.Get(id); ok && job.Status().Terminal() {
			mgr.Clear(id)
			if err := sessions.UntrackJob(id); err != nil {
				logging.E("failed to purge download %s from sessions: %v", id, err)
			}
			cleared++
		}
	}

	if err := sessions.ClearClient(clientID); err != nil {
		logging.E("failed to clear history for %s: %v", clientID, err)
		writeError(w, http.StatusInternalServerError, "could not clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Download history cleared",
		"cleared_jobs": cleared,
	})
}

// handleVideoInfo probes a URL's metadata and available formats.
func handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "url")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	url := stringValue(payload["url"])

	if cached := infoCache.Get(url); cached != nil {
		logging.D(1, "video info cache hit for %s", url)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	started := time.Now()
	info, err := engine.Metadata(r.Context(), url)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	response := infoResponse(info)
	infoCache.Set(url, response)
	logging.I("video info fetched in %.2fs for %s", time.Since(started).Seconds(), url)
	writeJSON(w, http.StatusOK, response)
}

// handleSearch runs a provider search for the given query.
func handleSearch(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "query")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	query := stringValue(payload["query"])

	limit := 10
	if f, ok := payload["limit"].(float64); ok && int(f) > 0 {
		limit = int(f)
	}
	if limit > consts.MaxSearchResults {
		limit = consts.MaxSearchResults
	}

	cacheKey := query + "|" + strconv.Itoa(limit)
	if cached := searchCache.Get(cacheKey); cached != nil {
		logging.D(1, "search cache hit for %q", query)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	results, err := engine.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	response := map[string]any{"query": query, "results": results}
	searchCache.Set(cacheKey, response)
	writeJSON(w, http.StatusOK, response)
}

// handleStats reports aggregate download statistics.
func handleStats(w http.ResponseWriter, r *http.Request) {
	stats := mgr.Stats()

	active := make([]models.JobSnapshot, 0)
	for _, job := range mgr.List(nil) {
		switch job.Status() {
		case consts.JobPreparing, consts.JobDownloading:
			active = append(active, job.Snapshot())
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_downloads":        stats.TotalDownloads,
		"active_downloads":       stats.ActiveDownloads,
		"completed_downloads":    stats.CompletedDownloads,
		"failed_downloads":       stats.FailedDownloads,
		"total_downloaded_bytes": stats.TotalDownloadedBytes,
		"average_speed":          stats.AverageSpeed,
		"server_uptime":          int(time.Since(startTime).Seconds()),
		"active_jobs":            active,
	})
}

// handleOptions reports server capabilities and defaults.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"max_parallel_downloads":  consts.DefaultMaxWorkers,
		"speed_limit":             mgr.RateLimitKB(),
		"supported_formats":       []string{"mp4", "mp3", "webm", "m4a", "wav", "aac", "flac"},
		"default_download_folder": mgr.DownloadRoot(),
		"history_export_formats":  []string{"json", "csv"},
		"max_batch_urls":          consts.MaxBatchURLs,
	})
}

// handleGetDirectory reports the current download root.
func handleGetDirectory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"directory": mgr.DownloadRoot()})
}

// handleSetDirectory changes the download root for future jobs.
func handleSetDirectory(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "path")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	resolved, err := mgr.SetDownloadRoot(stringValue(payload["path"]))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not use directory: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"directory": resolved, "user_selected": true})
}

// handleSetRateLimit sets or clears the global per-job speed cap.
func handleSetRateLimit(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON(r, "speed_limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	f, ok := payload["speed_limit"].(float64)
	if !ok {
		writeError(w, http.StatusBadRequest, "speed_limit must be numeric")
		return
	}

	kb := int(f)
	mgr.SetRateLimit(kb)
	if kb <= 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Speed limit disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Speed limit set", "speed_limit_kb": kb})
}
