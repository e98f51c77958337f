package server

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fetcharr/internal/domain/consts"
	"fetcharr/internal/models"
	"fetcharr/internal/utils/logging"
)

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.E("failed to encode JSON response: %v", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// decodeJSON decodes the request body into a generic map, enforcing that the
// required keys are present and non-empty.
func decodeJSON(r *http.Request, required ...string) (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("request must include a JSON body")
	}
	for _, key := range required {
		v, ok := payload[key]
		if !ok || v == nil {
			return nil, fmt.Errorf("%s is required", key)
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
	}
	return payload, nil
}

// ensureClientID returns the request's session client ID, minting and
// setting a cookie when absent.
func ensureClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(consts.ClientCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     consts.ClientCookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(consts.SessionCookieDays * 24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// jobOr404 fetches a job, writing a 404 response if absent.
func jobOr404(w http.ResponseWriter, id string) (*models.Job, bool) {
	job, ok := mgr.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "download %s not found", id)
		return nil, false
	}
	return job, true
}

// guessMimetype maps a filename to a MIME type, defaulting to octet-stream.
func guessMimetype(filename string) string {
	if m := mime.TypeByExtension(filepath.Ext(filename)); m != "" {
		return m
	}
	return "application/octet-stream"
}

// sessionSnapshots returns the snapshots of the client's live jobs, oldest
// submission first.
func sessionSnapshots(clientID string) []models.JobSnapshot {
	ids, err := sessions.JobIDs(clientID)
	if err != nil {
		logging.E("failed to read session downloads for %s: %v", clientID, err)
		return []models.JobSnapshot{}
	}
	// A nil ID list means "all jobs" to the store; an empty history must
	// stay empty.
	if len(ids) == 0 {
		return []models.JobSnapshot{}
	}

	live := mgr.List(ids)
	snapshots := make([]models.JobSnapshot, 0, len(live))
	for _, job := range live {
		snapshots = append(snapshots, job.Snapshot())
	}
	return snapshots
}

// cleanedURLList extracts up to max non-empty trimmed strings from a raw
// JSON list value.
func cleanedURLList(raw any, max int) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	urls := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		urls = append(urls, s)
		if len(urls) == max {
			break
		}
	}
	return urls
}

// normalizeFormatType clamps the requested format kind to video or audio.
func normalizeFormatType(raw any) string {
	s, _ := raw.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == consts.FormatAudio {
		return consts.FormatAudio
	}
	return consts.FormatVideo
}

// stringValue returns the trimmed string held by a JSON value, or "".
func stringValue(raw any) string {
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}
