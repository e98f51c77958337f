package fetch

import (
	"path/filepath"
	"strconv"
	"strings"

	"fetcharr/internal/domain/command"
	"fetcharr/internal/models"
)

// mediaExtensions are the output extensions recognized as a final file path
// printed by yt-dlp on completion.
var mediaExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".avi": {}, ".flv": {},
	".mp3": {}, ".m4a": {}, ".opus": {}, ".flac": {}, ".wav": {}, ".aac": {}, ".ogg": {},
}

// parseOutputLine interprets one line of yt-dlp output. It recognizes the
// tagged progress-template lines and the absolute file path printed after
// the final move; everything else is skipped.
func parseOutputLine(line string) (models.ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.ProgressUpdate{}, false
	}

	if rest, ok := strings.CutPrefix(line, command.ProgressPrefix+"|"); ok {
		return parseProgressFields(rest)
	}

	// Completed file path, e.g. "/downloads/<id>/Title [abc123].mp4".
	if strings.HasPrefix(line, "/") {
		if _, ok := mediaExtensions[strings.ToLower(filepath.Ext(line))]; ok {
			return models.ProgressUpdate{
				Event:    models.EventFinished,
				Filename: line,
			}, true
		}
	}

	return models.ProgressUpdate{}, false
}

// parseProgressFields decodes the pipe-separated progress-template payload:
// downloaded|total|total_estimate|speed|eta|filename.
func parseProgressFields(rest string) (models.ProgressUpdate, bool) {
	fields := strings.SplitN(rest, "|", 6)
	if len(fields) < 6 {
		return models.ProgressUpdate{}, false
	}

	u := models.ProgressUpdate{
		Event:      models.EventDownloading,
		Downloaded: parseIntField(fields[0]),
		Speed:      parseFloatField(fields[3]),
		ETA:        parseIntField(fields[4]),
		Filename:   strings.TrimSpace(fields[5]),
	}

	if total := parseIntField(fields[1]); total > 0 {
		u.Total = total
	} else if estimate := parseIntField(fields[2]); estimate > 0 {
		u.Total = estimate
	}
	return u, true
}

// parseIntField parses a numeric field, tolerating yt-dlp's "NA" and float
// renderings of byte counts.
func parseIntField(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseFloatField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
