package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fetcharr/internal/models"
	"fetcharr/internal/utils/logging"
)

// handleExportHistory serializes the session's download history as an
// attachment, JSON by default or CSV via ?format=csv.
func handleExportHistory(w http.ResponseWriter, r *http.Request) {
	clientID := ensureClientID(w, r)
	snapshots := sessionSnapshots(clientID)

	switch r.URL.Query().Get("format") {
	case "csv":
		exportCSV(w, snapshots)
	case "", "json":
		exportJSON(w, snapshots)
	default:
		writeError(w, http.StatusBadRequest, "unsupported export format")
	}
}

func exportJSON(w http.ResponseWriter, snapshots []models.JobSnapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=download_history.json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshots); err != nil {
		logging.E("failed to encode history export: %v", err)
	}
}

func exportCSV(w http.ResponseWriter, snapshots []models.JobSnapshot) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=download_history.csv")

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"id", "title", "filename", "status", "filesize", "progress", "completed", "error"}); err != nil {
		logging.E("failed to write history export header: %v", err)
		return
	}

	for _, s := range snapshots {
		title, _ := s.Metadata["title"].(string)
		errMsg := ""
		if s.Error != nil {
			errMsg = *s.Error
		}
		record := []string{
			s.ID,
			title,
			s.Filename,
			s.Status,
			strconv.FormatInt(s.Filesize, 10),
			fmt.Sprintf("%.2f", s.Progress),
			strconv.FormatBool(s.Completed),
			errMsg,
		}
		if err := cw.Write(record); err != nil {
			logging.E("failed to write history export row: %v", err)
			return
		}
	}
}
